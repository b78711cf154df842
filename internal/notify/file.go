package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileEmitter appends events to a local NDJSON file, one event per line.
type FileEmitter struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileEmitter opens (or creates) the event log file in append mode.
func NewFileEmitter(path string) (*FileEmitter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create event log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}

	return &FileEmitter{file: f}, nil
}

// Emit appends the event as a single JSON line.
func (e *FileEmitter) Emit(_ context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (e *FileEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Close()
}

var _ Emitter = (*FileEmitter)(nil)
