package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campaignlens/campaignlens/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool         *pgxpool.Pool
	namespace    string
	log          *slog.Logger
	mu           sync.RWMutex
	datasetCache map[string]int64
}

// NewPostgresWriter creates a new PostgreSQL catalog writer and applies
// the embedded schema.
func NewPostgresWriter(ctx context.Context, cfg config.CatalogConfig) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}

	w := &PostgresWriter{
		pool:         pool,
		namespace:    namespace,
		log:          slog.With("component", "catalog"),
		datasetCache: make(map[string]int64),
	}

	if err := w.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	w.log.Info("connected to catalog", "namespace", namespace)
	return w, nil
}

// initSchema creates the cl_* tables if they don't exist.
func (w *PostgresWriter) initSchema(ctx context.Context) error {
	if _, err := w.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// EnsureDataset registers or retrieves a dataset entry.
func (w *PostgresWriter) EnsureDataset(ctx context.Context, info DatasetInfo) (int64, error) {
	cacheKey := fmt.Sprintf("%s.%s.%s", w.namespace, info.Name, info.Version)
	w.mu.RLock()
	if id, ok := w.datasetCache[cacheKey]; ok {
		w.mu.RUnlock()
		return id, nil
	}
	w.mu.RUnlock()

	query := `
		INSERT INTO cl_datasets (namespace, name, version, schema_version, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, name, version)
		DO UPDATE SET schema_version = EXCLUDED.schema_version, updated_at = NOW()
		RETURNING id
	`

	var id int64
	err := w.pool.QueryRow(ctx, query,
		w.namespace,
		info.Name,
		info.Version,
		info.SchemaVersion,
		info.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure dataset: %w", err)
	}

	w.mu.Lock()
	w.datasetCache[cacheKey] = id
	w.mu.Unlock()

	return id, nil
}

// RecordRun persists the outcome of one ingest run.
func (w *PostgresWriter) RecordRun(ctx context.Context, rec RunRecord) error {
	query := `
		INSERT INTO cl_ingest_runs (
			dataset_id, run_id, source_uri, source_checksum, output_checksum,
			row_count, filtered_rows, status, duration_ms, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id)
		DO UPDATE SET
			output_checksum = EXCLUDED.output_checksum,
			row_count = EXCLUDED.row_count,
			filtered_rows = EXCLUDED.filtered_rows,
			status = EXCLUDED.status,
			duration_ms = EXCLUDED.duration_ms,
			completed_at = EXCLUDED.completed_at
	`

	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	_, err := w.pool.Exec(ctx, query,
		rec.DatasetID,
		rec.RunID,
		rec.SourceURI,
		rec.SourceChecksum,
		rec.OutputChecksum,
		rec.RowCount,
		rec.FilteredRows,
		rec.Status,
		rec.DurationMs,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	w.log.Debug("recorded run", "run_id", rec.RunID, "status", rec.Status)
	return nil
}

// RecordLineage appends a lineage entry to the dataset's hash chain.
func (w *PostgresWriter) RecordLineage(ctx context.Context, rec LineageRecord) error {
	query := `
		INSERT INTO cl_lineage (
			dataset_id, run_id, source_checksum, output_checksum,
			prev_hash, chain_hash, storage_uri, row_count, byte_size,
			producer_version, producer_git_sha
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (dataset_id, run_id)
		DO UPDATE SET
			output_checksum = EXCLUDED.output_checksum,
			prev_hash = EXCLUDED.prev_hash,
			chain_hash = EXCLUDED.chain_hash,
			storage_uri = EXCLUDED.storage_uri,
			row_count = EXCLUDED.row_count,
			byte_size = EXCLUDED.byte_size,
			created_at = NOW()
	`

	var prevHash *string
	if rec.PrevHash != "" {
		prevHash = &rec.PrevHash
	}

	_, err := w.pool.Exec(ctx, query,
		rec.DatasetID,
		rec.RunID,
		rec.SourceChecksum,
		rec.OutputChecksum,
		prevHash,
		rec.ChainHash,
		rec.StorageURI,
		rec.RowCount,
		rec.ByteSize,
		rec.ProducerVersion,
		rec.ProducerGitSHA,
	)
	if err != nil {
		return fmt.Errorf("record lineage: %w", err)
	}

	w.log.Debug("recorded lineage", "run_id", rec.RunID, "chain_hash", rec.ChainHash)
	return nil
}

// LastLineageHash returns the chain hash of the most recent lineage entry.
func (w *PostgresWriter) LastLineageHash(ctx context.Context, datasetID int64) (string, error) {
	query := `
		SELECT chain_hash FROM cl_lineage
		WHERE dataset_id = $1
		ORDER BY id DESC
		LIMIT 1
	`

	var hash string
	err := w.pool.QueryRow(ctx, query, datasetID).Scan(&hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get last lineage hash: %w", err)
	}
	return hash, nil
}

// Close releases database connections.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

var _ Writer = (*PostgresWriter)(nil)
