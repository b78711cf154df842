package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/campaignlens/campaignlens/internal/config"
)

// EventTypePublished is emitted after a dataset commit completes.
const EventTypePublished = "dataset.published"

// Event describes a published dataset. Consumers use it to trigger
// downstream refreshes without polling the bucket.
type Event struct {
	Type       string    `json:"type"`
	Dataset    string    `json:"dataset"`
	Version    string    `json:"version"`
	StorageURI string    `json:"storage_uri"`
	Checksum   string    `json:"checksum"`
	RowCount   int64     `json:"row_count"`
	RunID      string    `json:"run_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Emitter is the interface for dataset event emission.
type Emitter interface {
	Emit(ctx context.Context, evt Event) error
	Close() error
}

// NewEmitter creates an appropriate emitter based on configuration.
func NewEmitter(cfg config.NotifyConfig) Emitter {
	log := slog.With("component", "notify")

	switch cfg.Mode {
	case "file":
		emitter, err := NewFileEmitter(cfg.Path)
		if err != nil {
			log.Warn("failed to create file emitter, using no-op", "error", err)
			return &noopEmitter{}
		}
		log.Info("using file emitter", "path", cfg.Path)
		return emitter
	case "http":
		log.Info("using http emitter", "endpoint", cfg.Endpoint)
		return NewHTTPEmitter(cfg.Endpoint)
	default:
		return &noopEmitter{}
	}
}

// noopEmitter discards all events.
type noopEmitter struct{}

func (n *noopEmitter) Emit(_ context.Context, _ Event) error {
	return nil
}

func (n *noopEmitter) Close() error {
	return nil
}
