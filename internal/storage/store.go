// Package storage persists the published campaign dataset, its
// manifest, and raw-source snapshots on pluggable backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a dataset or manifest does not exist.
var ErrNotFound = errors.New("object not found in storage")

// DatasetRef describes a published dataset location. The parquet file
// lives at a fixed well-known key so downstream consumers never have to
// discover it; the version travels in the manifest, not the path.
type DatasetRef struct {
	Name    string // "marketing_data"
	Version string // "v1"
}

// Path returns the storage key for the dataset's parquet file.
func (r DatasetRef) Path(prefix string) string {
	return fmt.Sprintf("%s%s.parquet", prefix, r.Name)
}

// ManifestPath returns the storage key for the dataset's manifest.
func (r DatasetRef) ManifestPath(prefix string) string {
	return fmt.Sprintf("%s%s.manifest.json", prefix, r.Name)
}

// SnapshotPath returns the storage key for a raw-source snapshot,
// keyed by the source checksum so distinct inputs never collide.
func (r DatasetRef) SnapshotPath(prefix, sourceChecksum string) string {
	return fmt.Sprintf("%ssnapshots/%s-%s.csv.zst", prefix, r.Name, shortChecksum(sourceChecksum))
}

// shortChecksum trims the algorithm prefix and truncates for key use.
func shortChecksum(checksum string) string {
	sum := strings.TrimPrefix(checksum, "sha256:")
	if len(sum) > 12 {
		sum = sum[:12]
	}
	if sum == "" {
		sum = "unknown"
	}
	return sum
}

// Manifest describes a published dataset.
type Manifest struct {
	Dataset   DatasetInfo  `json:"dataset"`
	Source    SourceInfo   `json:"source"`
	Producer  ProducerInfo `json:"producer"`
	CreatedAt time.Time    `json:"created_at"`
}

// DatasetInfo describes the parquet payload.
type DatasetInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
	File          string `json:"file"`
	Checksum      string `json:"checksum"`
	RowCount      int64  `json:"row_count"`
	ByteSize      int64  `json:"byte_size"`
}

// SourceInfo describes the raw input a dataset was produced from.
// Columns lists the normalized source headers so consumers can tell
// whether an optional column was present at all.
type SourceInfo struct {
	URI          string   `json:"uri"`
	Checksum     string   `json:"checksum"`
	Columns      []string `json:"columns"`
	RowCount     int64    `json:"row_count"`
	FilteredRows int64    `json:"filtered_rows,omitempty"`
	SnapshotKey  string   `json:"snapshot_key,omitempty"`
}

// ProducerInfo describes the software that produced the dataset.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as indented JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// DatasetStore abstracts reading and writing published datasets.
type DatasetStore interface {
	// WriteParquet writes parquet bytes to the dataset's canonical key,
	// replacing any previous version.
	WriteParquet(ctx context.Context, ref DatasetRef, parquetBytes []byte) error

	// WriteManifest writes the dataset manifest.
	WriteManifest(ctx context.Context, ref DatasetRef, manifest *Manifest) error

	// WriteSnapshot stores a compressed raw-source snapshot and returns
	// its storage key.
	WriteSnapshot(ctx context.Context, ref DatasetRef, sourceChecksum string, compressed []byte) (string, error)

	// ReadParquet reads the dataset's parquet bytes.
	// Returns ErrNotFound when the dataset has not been published.
	ReadParquet(ctx context.Context, ref DatasetRef) ([]byte, error)

	// ReadManifest reads and decodes the dataset manifest.
	ReadManifest(ctx context.Context, ref DatasetRef) (*Manifest, error)

	// Exists checks if the dataset has been published.
	Exists(ctx context.Context, ref DatasetRef) (bool, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// AtomicStore extends DatasetStore with atomic publish capabilities.
// This is the preferred interface for production use: the dataset and
// manifest become visible together or not at all.
type AtomicStore interface {
	DatasetStore

	// WriteParquetTemp writes parquet bytes to a temporary location.
	// Returns the temp key that can be passed to Finalize.
	WriteParquetTemp(ctx context.Context, ref DatasetRef, parquetBytes []byte) (tempKey string, err error)

	// WriteManifestTemp writes a manifest to a temporary location.
	WriteManifestTemp(ctx context.Context, ref DatasetRef, manifest *Manifest) (tempKey string, err error)

	// Finalize atomically moves temp files to their canonical location.
	// For object stores this is copy+delete; for local filesystem it's rename.
	// If any file fails to finalize, all should be rolled back.
	Finalize(ctx context.Context, ref DatasetRef, tempKeys []string) error

	// Abort removes temporary files without publishing.
	Abort(ctx context.Context, tempKeys []string) error

	// Head returns metadata about a stored object.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ETag    string // MD5 for S3/GCS, empty for local
	ModTime time.Time
}

// Config configures the storage backend.
type Config struct {
	Backend string // "local" | "gcs" | "s3"

	// Local filesystem
	LocalDir string // ./assets

	// GCS
	GCSBucket string

	// S3 (also works for B2, R2, MinIO)
	S3Bucket   string
	S3Endpoint string // custom endpoint for B2/MinIO/R2
	S3Region   string

	// Common
	Prefix string // key prefix within bucket or local dir
}

// NewStore creates a storage backend based on configuration.
// All supported backends implement AtomicStore.
func NewStore(cfg Config) (AtomicStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCSBucket required for gcs backend")
		}
		return NewGCSStore(cfg.GCSBucket, cfg.Prefix)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3Bucket required for s3 backend")
		}
		return NewS3Store(cfg.S3Bucket, cfg.Prefix, cfg.S3Endpoint, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
