package storage

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/campaignlens/campaignlens/internal/campaign"
)

// EncodeParquet serializes records into parquet bytes. Output is
// deterministic for identical input: timestamps and other run-varying
// values belong in the manifest, never in the parquet payload.
func EncodeParquet(records []campaign.Record, cfg campaign.ParquetConfig) ([]byte, error) {
	opts := []parquet.WriterOption{
		parquet.KeyValueMetadata("schema_version", campaign.SchemaVersion),
		parquet.KeyValueMetadata("pipeline_version", cfg.PipelineVersion),
	}
	if cfg.SourceChecksum != "" {
		opts = append(opts, parquet.KeyValueMetadata("source_checksum", cfg.SourceChecksum))
	}

	switch cfg.Compression {
	case "", "snappy":
		opts = append(opts, parquet.Compression(&parquet.Snappy))
	case "zstd":
		opts = append(opts, parquet.Compression(&parquet.Zstd))
	case "none":
		opts = append(opts, parquet.Compression(&parquet.Uncompressed))
	default:
		return nil, fmt.Errorf("unsupported parquet compression: %s", cfg.Compression)
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[campaign.Record](&buf, opts...)

	if len(records) > 0 {
		if _, err := w.Write(records); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeParquet reads records back from parquet bytes.
func DecodeParquet(data []byte) ([]campaign.Record, error) {
	records, err := parquet.Read[campaign.Record](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return records, nil
}
