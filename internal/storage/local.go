package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes datasets to the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{
		baseDir: baseDir,
		prefix:  prefix,
	}, nil
}

// writeAtomic writes data to path using temp file + rename.
func (s *LocalStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}

	return nil
}

// WriteParquet writes parquet bytes to the dataset's canonical path.
func (s *LocalStore) WriteParquet(ctx context.Context, ref DatasetRef, data []byte) error {
	return s.writeAtomic(filepath.Join(s.baseDir, ref.Path(s.prefix)), data)
}

// WriteManifest writes the dataset manifest.
func (s *LocalStore) WriteManifest(ctx context.Context, ref DatasetRef, manifest *Manifest) error {
	data, err := manifest.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.writeAtomic(filepath.Join(s.baseDir, ref.ManifestPath(s.prefix)), data)
}

// WriteSnapshot stores a compressed raw-source snapshot.
func (s *LocalStore) WriteSnapshot(ctx context.Context, ref DatasetRef, sourceChecksum string, compressed []byte) (string, error) {
	key := ref.SnapshotPath(s.prefix, sourceChecksum)
	if err := s.writeAtomic(filepath.Join(s.baseDir, key), compressed); err != nil {
		return "", err
	}
	return key, nil
}

// ReadParquet reads the dataset's parquet bytes.
func (s *LocalStore) ReadParquet(ctx context.Context, ref DatasetRef) ([]byte, error) {
	path := filepath.Join(s.baseDir, ref.Path(s.prefix))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// ReadManifest reads and decodes the dataset manifest.
func (s *LocalStore) ReadManifest(ctx context.Context, ref DatasetRef) (*Manifest, error) {
	path := filepath.Join(s.baseDir, ref.ManifestPath(s.prefix))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}

// Exists checks if the dataset has been published.
func (s *LocalStore) Exists(ctx context.Context, ref DatasetRef) (bool, error) {
	path := filepath.Join(s.baseDir, ref.Path(s.prefix))
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	absPath := filepath.Join(s.baseDir, key)
	return "file://" + absPath
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}

// --- AtomicStore implementation ---

// WriteParquetTemp writes parquet bytes to a temporary location.
func (s *LocalStore) WriteParquetTemp(ctx context.Context, ref DatasetRef, data []byte) (string, error) {
	tempPath := filepath.Join(s.baseDir, ref.Path(s.prefix)) + ".tmp." + uuid.New().String()

	dir := filepath.Dir(tempPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	return tempPath, nil
}

// WriteManifestTemp writes a manifest to a temporary location.
func (s *LocalStore) WriteManifestTemp(ctx context.Context, ref DatasetRef, manifest *Manifest) (string, error) {
	data, err := manifest.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	tempPath := filepath.Join(s.baseDir, ref.ManifestPath(s.prefix)) + ".tmp." + uuid.New().String()
	dir := filepath.Dir(tempPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	return tempPath, nil
}

// Finalize renames temp files to their canonical locations. Temp keys
// must be given in the order parquet, manifest.
func (s *LocalStore) Finalize(ctx context.Context, ref DatasetRef, tempKeys []string) error {
	finalPaths := []string{
		filepath.Join(s.baseDir, ref.Path(s.prefix)),
		filepath.Join(s.baseDir, ref.ManifestPath(s.prefix)),
	}

	if len(tempKeys) != len(finalPaths) {
		return fmt.Errorf("expected %d temp keys, got %d", len(finalPaths), len(tempKeys))
	}

	for i, tempKey := range tempKeys {
		if err := os.Rename(tempKey, finalPaths[i]); err != nil {
			s.Abort(ctx, tempKeys[i:])
			return fmt.Errorf("finalize %s -> %s: %w", tempKey, finalPaths[i], err)
		}
	}
	return nil
}

// Abort removes temporary files without publishing.
func (s *LocalStore) Abort(ctx context.Context, tempKeys []string) error {
	var lastErr error
	for _, key := range tempKeys {
		if err := os.Remove(key); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}

// Head returns metadata about a stored object.
func (s *LocalStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	path := filepath.Join(s.baseDir, key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return &ObjectInfo{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// List returns all keys with the given prefix.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	return keys, nil
}

// Verify LocalStore implements AtomicStore.
var _ AtomicStore = (*LocalStore)(nil)
