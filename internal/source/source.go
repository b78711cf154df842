// Package source acquires the raw campaign export from a local path or
// an object store. The whole input is read into memory: the pipeline is
// single-pass and batch-style, with no streaming.
package source

import (
	"context"
	"errors"
	"strings"
)

// RawInput is one fully-read raw export.
type RawInput struct {
	Data []byte
	URI  string
}

// ErrUnreadable is the fatal condition: the raw source is entirely
// absent or cannot be read. It aborts the whole run.
var ErrUnreadable = errors.New("raw source missing or unreadable")

// Source fetches the raw campaign export.
type Source interface {
	Fetch(ctx context.Context) (*RawInput, error)
	Close() error
}

// New constructs a source from a local path or a gs:// / s3:// URI.
func New(path string) (Source, error) {
	switch {
	case strings.HasPrefix(path, "gs://"), strings.HasPrefix(path, "s3://"):
		return NewBlobSource(path)
	default:
		return NewFileSource(path), nil
	}
}
