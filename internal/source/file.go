package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSource reads the raw export from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource creates a new local file source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the whole file. Any failure to read is fatal.
func (s *FileSource) Fetch(ctx context.Context) (*RawInput, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, s.path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadable, s.path)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, s.path, err)
	}

	uri := s.path
	if abs, err := filepath.Abs(s.path); err == nil {
		uri = "file://" + abs
	}

	return &RawInput{Data: data, URI: uri}, nil
}

// Close is a no-op for local files.
func (s *FileSource) Close() error {
	return nil
}
