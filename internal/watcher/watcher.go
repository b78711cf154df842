// Package watcher polls the published dataset manifest so a running
// server can pick up a fresh ingest without restarting.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/campaignlens/campaignlens/internal/storage"
)

// OnChange reloads the consumer's view of the dataset. Returning an
// error leaves the change pending, so it is retried on the next poll.
type OnChange func(ctx context.Context) error

// Watcher fires a callback when the published dataset checksum moves.
type Watcher struct {
	store    storage.DatasetStore
	ref      storage.DatasetRef
	interval time.Duration
	onChange OnChange
	last     string
	log      *slog.Logger
}

func New(store storage.DatasetStore, ref storage.DatasetRef, interval time.Duration, onChange OnChange) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		store:    store,
		ref:      ref,
		interval: interval,
		onChange: onChange,
		log:      slog.With("component", "watcher"),
	}
}

// Prime records the checksum the caller already serves, so the first
// poll does not refire for a dataset that is current.
func (w *Watcher) Prime(checksum string) {
	w.last = checksum
}

// Run polls until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	w.log.Info("watching published dataset", "dataset", w.ref.Name, "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	manifest, err := w.store.ReadManifest(ctx, w.ref)
	if err != nil {
		w.log.Warn("failed to read manifest", "error", err)
		return
	}

	sum := manifest.Dataset.Checksum
	if sum == "" || sum == w.last {
		return
	}

	w.log.Info("published dataset changed", "checksum", sum)
	if err := w.onChange(ctx); err != nil {
		w.log.Warn("dataset reload failed, will retry", "error", err)
		return
	}
	w.last = sum
}
