package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/catalog"
	"github.com/campaignlens/campaignlens/internal/notify"
	"github.com/campaignlens/campaignlens/internal/runlog"
	"github.com/campaignlens/campaignlens/internal/storage"
)

// publish is the transactional lifecycle for committing a built dataset.
//
// The order of operations is deliberate and must not be changed:
//  1. Write parquet and manifest to temp locations
//  2. Finalize (atomic swap to the well-known keys)
//  3. Write the raw-source snapshot (optional, non-fatal)
//  4. Record catalog run and lineage (non-fatal)
//  5. Emit the published event (after storage commit, non-fatal)
//  6. Save run state (last, only after everything else)
//
// Steps 3-5 degrade to warnings: the dataset is already committed and a
// failed side channel must not fail the run.
func (ing *Ingestor) publish(ctx context.Context, runID string, built *BuiltDataset) (*Result, error) {
	log := ing.log.With("run_id", runID, "dataset", built.Ref.Name)
	log.Debug("starting dataset publish")
	startTime := time.Now()

	manifest := ing.buildManifest(built)

	// Step 1: temp writes
	var tempKeys []string
	tempParquet, err := ing.store.WriteParquetTemp(ctx, built.Ref, built.ParquetBytes)
	if err != nil {
		return nil, fmt.Errorf("write parquet temp: %w", err)
	}
	tempKeys = append(tempKeys, tempParquet)

	tempManifest, err := ing.store.WriteManifestTemp(ctx, built.Ref, manifest)
	if err != nil {
		ing.store.Abort(ctx, tempKeys)
		return nil, fmt.Errorf("write manifest temp: %w", err)
	}
	tempKeys = append(tempKeys, tempManifest)

	// Step 2: atomic finalize
	if err := ing.store.Finalize(ctx, built.Ref, tempKeys); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	storageURI := ing.store.URI(built.Ref.Path(ing.prefix))
	log.Info("published dataset",
		"uri", storageURI,
		"rows", built.RowCount,
		"bytes", len(built.ParquetBytes),
		"checksum", built.Checksum,
	)

	// Step 3: raw snapshot
	if ing.cfg.Snapshot.Enabled {
		if err := ing.writeSnapshot(ctx, built); err != nil {
			log.Warn("failed to write raw snapshot", "error", err)
		}
	}

	// Step 4: catalog
	ing.recordCatalog(ctx, runID, built, storageURI, startTime)

	// Step 5: published event
	evt := notify.Event{
		Type:       notify.EventTypePublished,
		Dataset:    built.Ref.Name,
		Version:    built.Ref.Version,
		StorageURI: storageURI,
		Checksum:   built.Checksum,
		RowCount:   built.RowCount,
		RunID:      runID,
		OccurredAt: time.Now().UTC(),
	}
	if err := ing.emitter.Emit(ctx, evt); err != nil {
		log.Warn("failed to emit published event", "error", err)
	}

	// Step 6: run state
	st := &runlog.State{
		RunID:          runID,
		Dataset:        built.Ref.Name,
		Version:        built.Ref.Version,
		SourceURI:      built.SourceURI,
		SourceChecksum: built.SourceChecksum,
		OutputChecksum: built.Checksum,
		RowCount:       built.RowCount,
		CompletedAt:    time.Now().UTC(),
	}
	if err := ing.runs.Save(ctx, st); err != nil {
		log.Warn("failed to save run state", "error", err)
	}

	return &Result{
		RunID:        runID,
		RowCount:     built.RowCount,
		FilteredRows: built.FilteredRows,
		Checksum:     built.Checksum,
		StorageURI:   storageURI,
		Duration:     time.Since(startTime),
	}, nil
}

// buildManifest assembles the manifest describing a built dataset.
func (ing *Ingestor) buildManifest(built *BuiltDataset) *storage.Manifest {
	src := storage.SourceInfo{
		URI:          built.SourceURI,
		Checksum:     built.SourceChecksum,
		Columns:      built.Columns,
		RowCount:     built.RowCount + built.FilteredRows,
		FilteredRows: built.FilteredRows,
	}
	if ing.cfg.Snapshot.Enabled {
		src.SnapshotKey = built.Ref.SnapshotPath(ing.prefix, built.SourceChecksum)
	}

	return &storage.Manifest{
		Dataset: storage.DatasetInfo{
			Name:          built.Ref.Name,
			Version:       built.Ref.Version,
			SchemaVersion: campaign.SchemaVersion,
			File:          built.Ref.Name + ".parquet",
			Checksum:      built.Checksum,
			RowCount:      built.RowCount,
			ByteSize:      int64(len(built.ParquetBytes)),
		},
		Source: src,
		Producer: storage.ProducerInfo{
			Name:    "campaignlens",
			Version: Version,
			GitSHA:  GitSHA,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// writeSnapshot compresses and stores the raw source bytes.
func (ing *Ingestor) writeSnapshot(ctx context.Context, built *BuiltDataset) error {
	compressed, err := storage.CompressSnapshot(built.SourceData)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	key, err := ing.store.WriteSnapshot(ctx, built.Ref, built.SourceChecksum, compressed)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	ing.log.Debug("wrote raw snapshot", "key", key, "bytes", len(compressed))
	return nil
}

// recordCatalog persists the run and its lineage entry. Catalog errors
// are logged, never fatal.
func (ing *Ingestor) recordCatalog(ctx context.Context, runID string, built *BuiltDataset, storageURI string, startTime time.Time) {
	datasetID, err := ing.cat.EnsureDataset(ctx, catalog.DatasetInfo{
		Name:          built.Ref.Name,
		Version:       built.Ref.Version,
		SchemaVersion: campaign.SchemaVersion,
		Description:   "cleaned SME marketing campaign dataset",
	})
	if err != nil {
		ing.log.Warn("failed to ensure dataset in catalog", "error", err)
		return
	}
	if datasetID == 0 {
		return // catalog disabled
	}

	prevHash, err := ing.cat.LastLineageHash(ctx, datasetID)
	if err != nil {
		ing.log.Warn("failed to get last lineage hash", "error", err)
	}

	chainHash := catalog.ChainHash(built.Ref.Name, built.SourceChecksum, built.Checksum, prevHash)
	err = ing.cat.RecordLineage(ctx, catalog.LineageRecord{
		DatasetID:       datasetID,
		RunID:           runID,
		SourceChecksum:  built.SourceChecksum,
		OutputChecksum:  built.Checksum,
		PrevHash:        prevHash,
		ChainHash:       chainHash,
		StorageURI:      storageURI,
		RowCount:        built.RowCount,
		ByteSize:        int64(len(built.ParquetBytes)),
		ProducerVersion: fmt.Sprintf("campaignlens@%s", Version),
		ProducerGitSHA:  GitSHA,
	})
	if err != nil {
		ing.log.Warn("failed to record lineage", "error", err)
	}

	err = ing.cat.RecordRun(ctx, catalog.RunRecord{
		DatasetID:      datasetID,
		RunID:          runID,
		SourceURI:      built.SourceURI,
		SourceChecksum: built.SourceChecksum,
		OutputChecksum: built.Checksum,
		RowCount:       built.RowCount,
		FilteredRows:   built.FilteredRows,
		Status:         "completed",
		DurationMs:     time.Since(startTime).Milliseconds(),
		CompletedAt:    time.Now().UTC(),
	})
	if err != nil {
		ing.log.Warn("failed to record run", "error", err)
	}
}
