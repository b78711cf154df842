package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNoRunState is returned when no prior run has been recorded.
	ErrNoRunState = errors.New("no run state found")
)

// State records the outcome of the last successful ingest run.
type State struct {
	RunID          string    `json:"run_id"`
	Dataset        string    `json:"dataset"`
	Version        string    `json:"version"`
	SourceURI      string    `json:"source_uri"`
	SourceChecksum string    `json:"source_checksum"`
	OutputChecksum string    `json:"output_checksum"`
	RowCount       int64     `json:"row_count"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Manager handles run state persistence and retrieval.
type Manager interface {
	// Load reads the last recorded run state.
	Load(ctx context.Context) (*State, error)

	// Save persists the run state.
	Save(ctx context.Context, st *State) error
}

// Config configures the run state manager.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// NewManager creates a run state manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create run state directory %s: %w", cfg.Dir, err)
	}

	return &fileManager{path: filepath.Join(cfg.Dir, "state.json")}, nil
}

// fileManager persists run state to a local JSON file.
type fileManager struct {
	path string
}

// Load reads the run state from file.
func (m *fileManager) Load(ctx context.Context) (*State, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRunState
		}
		return nil, fmt.Errorf("read run state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse run state file: %w", err)
	}

	return &st, nil
}

// Save persists the run state to file.
func (m *fileManager) Save(ctx context.Context, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	// Write atomically
	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write run state temp file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename run state file: %w", err)
	}

	return nil
}

// noopManager is used when run state tracking is disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context) (*State, error) {
	return nil, ErrNoRunState
}

func (m *noopManager) Save(ctx context.Context, st *State) error {
	return nil
}
