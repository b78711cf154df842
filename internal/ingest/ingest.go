// Package ingest implements the ingestion-and-normalization pipeline:
// read one raw campaign export, standardize its schema, coerce types,
// derive metrics, and publish one clean parquet dataset.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/catalog"
	"github.com/campaignlens/campaignlens/internal/config"
	"github.com/campaignlens/campaignlens/internal/logging"
	"github.com/campaignlens/campaignlens/internal/metrics"
	"github.com/campaignlens/campaignlens/internal/notify"
	"github.com/campaignlens/campaignlens/internal/runlog"
	"github.com/campaignlens/campaignlens/internal/source"
	"github.com/campaignlens/campaignlens/internal/storage"
)

// Ingestor orchestrates one pipeline run end to end.
type Ingestor struct {
	cfg     config.Config
	src     source.Source
	store   storage.AtomicStore
	cat     catalog.Writer
	emitter notify.Emitter
	runs    runlog.Manager
	norm    *Normalizer
	filter  *Filter
	ref     storage.DatasetRef
	prefix  string
	log     *slog.Logger
}

// New creates an Ingestor. The catalog and run state manager are built
// from configuration; both are optional and degrade to no-ops.
func New(ctx context.Context, cfg config.Config, src source.Source, store storage.AtomicStore) *Ingestor {
	log := slog.With("component", "ingest")

	cat, err := catalog.NewWriter(ctx, cfg.Catalog)
	if err != nil {
		log.Warn("failed to connect catalog, continuing without it", "error", err)
		cat = catalog.Noop()
	}

	runs, err := runlog.NewManager(runlog.Config{Enabled: cfg.RunLog.Enabled, Dir: cfg.RunLog.Dir})
	if err != nil {
		log.Warn("failed to create run state manager, continuing without it", "error", err)
		runs, _ = runlog.NewManager(runlog.Config{})
	}

	return &Ingestor{
		cfg:     cfg,
		src:     src,
		store:   store,
		cat:     cat,
		emitter: notify.NewEmitter(cfg.Notify),
		runs:    runs,
		norm:    NewNormalizer(cfg.SizeTable()),
		filter:  NewFilter(cfg.Filter),
		ref:     storage.DatasetRef{Name: cfg.Output.Dataset, Version: cfg.Output.Version},
		prefix:  cfg.Output.Prefix,
		log:     log,
	}
}

// Close releases the side channels.
func (ing *Ingestor) Close() error {
	if err := ing.emitter.Close(); err != nil {
		ing.log.Warn("failed to close emitter", "error", err)
	}
	return ing.cat.Close()
}

// Run executes one pipeline pass: fetch, parse, filter, normalize,
// validate, publish. The only fatal error paths are an absent or
// unparseable source (source.ErrUnreadable) and a dataset that fails
// validation (ErrValidationFailed); malformed cells never abort a run.
func (ing *Ingestor) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.RunLogger(runID, ing.ref.Name, ing.ref.Version)
	labels := ing.metricsLabels()
	startTime := time.Now()

	// Step 1: fetch the raw source
	raw, err := ing.src.Fetch(ctx)
	if err != nil {
		ing.countFailure(labels)
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	sourceChecksum := campaign.ComputeChecksum(raw.Data)
	log.Info("fetched raw source", "uri", raw.URI, "bytes", len(raw.Data), "checksum", sourceChecksum)

	// Step 2: idempotent-run skip
	if !opts.Force && ing.upToDate(ctx, log, sourceChecksum) {
		if m := metrics.Get(); m != nil {
			m.IncRunsSkipped(labels)
		}
		return &Result{
			RunID:    runID,
			Skipped:  true,
			Checksum: sourceChecksum,
			Duration: time.Since(startTime),
		}, nil
	}

	// Step 3: parse
	table, err := ParseCSV(raw.Data)
	if err != nil {
		ing.countFailure(labels)
		return nil, err
	}
	log.Info("parsed source", "columns", len(table.Columns), "rows", len(table.Rows))

	// Step 4: denylist filter
	rows, dropped := ing.filter.Apply(table.Rows)
	if dropped > 0 {
		log.Info("dropped denylisted rows", "count", dropped)
	}

	// Step 5: normalize
	records, stats := ing.norm.NormalizeStats(rows)
	stats.FilteredRows = dropped
	for field, n := range stats.CoercionFallbacks {
		log.Warn("numeric coercion fallback", "field", field, "count", n)
	}
	if stats.UnknownSizes > 0 {
		log.Warn("company size matched no rule", "count", stats.UnknownSizes)
	}

	// Step 6: build parquet in memory
	built, err := ing.build(table, records, raw, sourceChecksum, dropped)
	if err != nil {
		ing.countFailure(labels)
		return nil, fmt.Errorf("build dataset: %w", err)
	}

	// Step 7: validate before anything is written
	vr := Validate(built)
	for _, w := range vr.Warnings {
		log.Warn("validation warning", "detail", w)
	}
	if !vr.Passed {
		ing.countFailure(labels)
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(vr.Errors, "; "))
	}

	// Step 8: transactional publish
	result, err := ing.publish(ctx, runID, built)
	if err != nil {
		ing.countFailure(labels)
		return nil, err
	}
	result.Duration = time.Since(startTime)

	ing.observeRun(labels, stats, built, result)
	log.Info("run complete",
		"rows", result.RowCount,
		"filtered", result.FilteredRows,
		"checksum", result.Checksum,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// upToDate reports whether the last recorded run consumed this exact
// source and its output still exists in storage.
func (ing *Ingestor) upToDate(ctx context.Context, log *slog.Logger, sourceChecksum string) bool {
	st, err := ing.runs.Load(ctx)
	if err != nil {
		if !errors.Is(err, runlog.ErrNoRunState) {
			log.Warn("failed to load run state", "error", err)
		}
		return false
	}
	if st.Dataset != ing.ref.Name || st.Version != ing.ref.Version {
		return false
	}
	if st.SourceChecksum != sourceChecksum {
		return false
	}

	exists, err := ing.store.Exists(ctx, ing.ref)
	if err != nil {
		log.Warn("failed to check published dataset", "error", err)
		return false
	}
	if !exists {
		return false
	}

	log.Info("source unchanged since last run, skipping", "checksum", sourceChecksum)
	return true
}

// build encodes the cleaned records to parquet and assembles the
// publish artifact.
func (ing *Ingestor) build(table *RawTable, records []campaign.Record, raw *source.RawInput, sourceChecksum string, dropped int64) (*BuiltDataset, error) {
	pcfg := campaign.DefaultParquetConfig()
	pcfg.PipelineVersion = Version
	pcfg.SourceChecksum = sourceChecksum

	parquetBytes, err := storage.EncodeParquet(records, pcfg)
	if err != nil {
		return nil, fmt.Errorf("encode parquet: %w", err)
	}

	return &BuiltDataset{
		Ref:            ing.ref,
		Records:        records,
		ParquetBytes:   parquetBytes,
		Checksum:       campaign.ComputeChecksum(parquetBytes),
		RowCount:       int64(len(records)),
		Columns:        table.Columns,
		SourceURI:      raw.URI,
		SourceChecksum: sourceChecksum,
		SourceData:     raw.Data,
		FilteredRows:   dropped,
		BuildID:        uuid.New().String(),
		BuiltAt:        time.Now().UTC(),
	}, nil
}

func (ing *Ingestor) metricsLabels() metrics.Labels {
	return metrics.Labels{
		Dataset: ing.ref.Name,
		Version: ing.ref.Version,
	}
}

func (ing *Ingestor) countFailure(labels metrics.Labels) {
	if m := metrics.Get(); m != nil {
		m.IncRunsFailed(labels)
	}
}

// observeRun records the metrics for a completed run.
func (ing *Ingestor) observeRun(labels metrics.Labels, stats Stats, built *BuiltDataset, result *Result) {
	m := metrics.Get()
	if m == nil {
		return
	}

	m.IncRunsCompleted(labels)
	m.ObserveIngestDuration(labels, result.Duration.Seconds())
	m.AddRowsRead(labels, float64(stats.RowsIn+stats.FilteredRows))
	m.AddRowsEmitted(labels, float64(stats.RowsOut))
	m.AddRowsFiltered(labels, float64(stats.FilteredRows))
	m.SetDatasetRows(labels, float64(built.RowCount))
	m.SetDatasetBytes(labels, float64(len(built.ParquetBytes)))
	m.AddUnknownCompanySize(labels, float64(stats.UnknownSizes))
	for field, n := range stats.CoercionFallbacks {
		fieldLabels := labels
		fieldLabels.Field = field
		m.AddCoercionFallbacks(fieldLabels, float64(n))
	}
}
