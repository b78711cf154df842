package ingest

import (
	"errors"
	"time"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/storage"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// ErrValidationFailed is returned when the cleaned dataset fails
// pre-publish validation. Nothing is written in that case.
var ErrValidationFailed = errors.New("dataset validation failed")

// BuiltDataset is the local build artifact before publishing.
type BuiltDataset struct {
	Ref            storage.DatasetRef
	Records        []campaign.Record
	ParquetBytes   []byte
	Checksum       string   // sha256 over the parquet bytes
	RowCount       int64
	Columns        []string // normalized source columns present
	SourceURI      string
	SourceChecksum string
	SourceData     []byte // raw bytes, kept for the optional snapshot
	FilteredRows   int64
	BuildID        string
	BuiltAt        time.Time
}

// RunOptions tweak one pipeline invocation.
type RunOptions struct {
	// Force republishes even when the source checksum matches the
	// last recorded run.
	Force bool
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID        string
	Skipped      bool
	RowCount     int64
	FilteredRows int64
	Checksum     string
	StorageURI   string
	Duration     time.Duration
}
