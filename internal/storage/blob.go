package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// BlobStore writes datasets to an object store through gocloud.dev.
// It backs both the GCS and S3 backends; only the bucket URL differs.
type BlobStore struct {
	bucket     *blob.Bucket
	scheme     string // "gs" | "s3"
	bucketName string
	prefix     string
}

func newBlobStore(ctx context.Context, bucketURL, scheme, bucketName, prefix string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketName, err)
	}

	return &BlobStore{
		bucket:     bucket,
		scheme:     scheme,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// writeKey writes data to a key through a bucket writer.
func (s *BlobStore) writeKey(ctx context.Context, key string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}

	return nil
}

// readKey reads a full object, mapping not-found onto ErrNotFound.
func (s *BlobStore) readKey(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// WriteParquet writes parquet bytes to the dataset's canonical key.
func (s *BlobStore) WriteParquet(ctx context.Context, ref DatasetRef, data []byte) error {
	return s.writeKey(ctx, ref.Path(s.prefix), data)
}

// WriteManifest writes the dataset manifest.
func (s *BlobStore) WriteManifest(ctx context.Context, ref DatasetRef, manifest *Manifest) error {
	data, err := manifest.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.writeKey(ctx, ref.ManifestPath(s.prefix), data)
}

// WriteSnapshot stores a compressed raw-source snapshot.
func (s *BlobStore) WriteSnapshot(ctx context.Context, ref DatasetRef, sourceChecksum string, compressed []byte) (string, error) {
	key := ref.SnapshotPath(s.prefix, sourceChecksum)
	if err := s.writeKey(ctx, key, compressed); err != nil {
		return "", err
	}
	return key, nil
}

// ReadParquet reads the dataset's parquet bytes.
func (s *BlobStore) ReadParquet(ctx context.Context, ref DatasetRef) ([]byte, error) {
	return s.readKey(ctx, ref.Path(s.prefix))
}

// ReadManifest reads and decodes the dataset manifest.
func (s *BlobStore) ReadManifest(ctx context.Context, ref DatasetRef) (*Manifest, error) {
	data, err := s.readKey(ctx, ref.ManifestPath(s.prefix))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", ref.ManifestPath(s.prefix), err)
	}
	return &m, nil
}

// Exists checks if the dataset has been published.
func (s *BlobStore) Exists(ctx context.Context, ref DatasetRef) (bool, error) {
	return s.bucket.Exists(ctx, ref.Path(s.prefix))
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s", s.scheme, s.bucketName, key)
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

// --- AtomicStore implementation ---

// WriteParquetTemp writes parquet bytes to a temporary location.
func (s *BlobStore) WriteParquetTemp(ctx context.Context, ref DatasetRef, data []byte) (string, error) {
	tempKey := ref.Path(s.prefix) + ".tmp." + uuid.New().String()
	if err := s.writeKey(ctx, tempKey, data); err != nil {
		return "", err
	}
	return tempKey, nil
}

// WriteManifestTemp writes a manifest to a temporary location.
func (s *BlobStore) WriteManifestTemp(ctx context.Context, ref DatasetRef, manifest *Manifest) (string, error) {
	data, err := manifest.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	tempKey := ref.ManifestPath(s.prefix) + ".tmp." + uuid.New().String()
	if err := s.writeKey(ctx, tempKey, data); err != nil {
		return "", err
	}
	return tempKey, nil
}

// Finalize moves temp files to their canonical locations using the
// copy + delete pattern. Temp keys must be given in the order
// parquet, manifest.
func (s *BlobStore) Finalize(ctx context.Context, ref DatasetRef, tempKeys []string) error {
	finalKeys := []string{
		ref.Path(s.prefix),
		ref.ManifestPath(s.prefix),
	}

	if len(tempKeys) != len(finalKeys) {
		return fmt.Errorf("expected %d temp keys, got %d", len(finalKeys), len(tempKeys))
	}

	// Copy all temp files to final locations
	for i, tempKey := range tempKeys {
		finalKey := finalKeys[i]

		if err := s.copyObject(ctx, tempKey, finalKey); err != nil {
			// Rollback: delete any copied objects
			for j := 0; j < i; j++ {
				s.bucket.Delete(ctx, finalKeys[j])
			}
			// Clean up temp files
			s.Abort(ctx, tempKeys)
			return fmt.Errorf("finalize %s -> %s: %w", tempKey, finalKey, err)
		}
	}

	// Delete all temp files after successful copy
	for _, tempKey := range tempKeys {
		s.bucket.Delete(ctx, tempKey) // ignore errors
	}

	return nil
}

// copyObject copies an object within the bucket.
func (s *BlobStore) copyObject(ctx context.Context, srcKey, dstKey string) error {
	// Read source
	r, err := s.bucket.NewReader(ctx, srcKey, nil)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer r.Close()

	// Write to destination
	w, err := s.bucket.NewWriter(ctx, dstKey, nil)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstKey, err)
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to %s: %w", dstKey, err)
	}

	return w.Close()
}

// Abort removes temporary files without publishing.
func (s *BlobStore) Abort(ctx context.Context, tempKeys []string) error {
	var lastErr error
	for _, key := range tempKeys {
		if err := s.bucket.Delete(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Head returns metadata about a stored object.
func (s *BlobStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get attributes for %s: %w", key, err)
	}

	return &ObjectInfo{
		Key:     key,
		Size:    attrs.Size,
		ETag:    attrs.ETag,
		ModTime: attrs.ModTime,
	}, nil
}

// List returns all keys with the given prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	iter := s.bucket.List(&blob.ListOptions{
		Prefix: prefix,
	})

	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}

	return keys, nil
}

// Verify BlobStore implements AtomicStore.
var _ AtomicStore = (*BlobStore)(nil)
