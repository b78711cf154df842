package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/config"
	"github.com/campaignlens/campaignlens/internal/source"
	"github.com/campaignlens/campaignlens/internal/storage"
)

const sampleCSV = "Industry,Company Size,Ad Spend,Duration,Audience Reach,Engagement Metric,Conversion Rate,Marketing Channel,Target Audience,Device,Region\n" +
	"Retail,Jan,150,30,1000,0,5,Social Media,18-24,Mobile,North\n" +
	"Tech,51-100,2400.50,45,50000,1200,2.5,Email,25-34,Desktop,South\n"

// newTestIngestor wires a pipeline against a temp source file and a
// temp local store.
func newTestIngestor(t *testing.T, csv string, mutate func(*config.Config)) (*Ingestor, config.Config) {
	t.Helper()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "raw.csv")
	if err := os.WriteFile(srcPath, []byte(csv), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	cfg := *config.Default()
	cfg.Source.Path = srcPath
	cfg.Output.LocalDir = filepath.Join(dir, "assets")
	cfg.RunLog.Dir = filepath.Join(dir, "runlog")
	if mutate != nil {
		mutate(&cfg)
	}

	src, err := source.New(cfg.Source.Path)
	if err != nil {
		t.Fatalf("source.New: %v", err)
	}
	store, err := storage.NewStore(storage.Config{
		Backend:  cfg.Output.Backend,
		LocalDir: cfg.Output.LocalDir,
		Prefix:   cfg.Output.Prefix,
	})
	if err != nil {
		t.Fatalf("storage.NewStore: %v", err)
	}

	return New(context.Background(), cfg, src, store), cfg
}

func TestRunEndToEnd(t *testing.T) {
	ing, _ := newTestIngestor(t, sampleCSV, nil)
	defer ing.Close()

	ctx := context.Background()
	result, err := ing.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Skipped {
		t.Error("first run reported skipped")
	}
	if result.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", result.RowCount)
	}
	if result.FilteredRows != 0 {
		t.Errorf("FilteredRows = %d, want 0", result.FilteredRows)
	}
	if len(result.Checksum) < 7 || result.Checksum[:7] != "sha256:" {
		t.Errorf("Checksum = %q, want sha256: prefix", result.Checksum)
	}

	// Read the published dataset back
	data, err := ing.store.ReadParquet(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	records, err := storage.DecodeParquet(data)
	if err != nil {
		t.Fatalf("DecodeParquet: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("published records = %d, want 2", len(records))
	}

	first := records[0]
	if first.Industry != "Retail" || first.CompanySize != "1-10" {
		t.Errorf("first record = %+v, want Retail/1-10", first)
	}
	if first.DurationDays != 30 {
		t.Errorf("DurationDays = %v, want 30 (via duration alias)", first.DurationDays)
	}
	if first.Conversions != 50 || first.CostPerEngagement != 0 || first.CostPerConversion != 3.0 {
		t.Errorf("first derived = conversions %d cpe %v cpc %v, want 50/0/3.0",
			first.Conversions, first.CostPerEngagement, first.CostPerConversion)
	}

	second := records[1]
	if second.Conversions != 1250 {
		t.Errorf("second conversions = %d, want 1250", second.Conversions)
	}
	if want := campaign.DeriveCostPer(2400.50, 1200); second.CostPerEngagement != want {
		t.Errorf("second cpe = %v, want %v", second.CostPerEngagement, want)
	}

	// Manifest describes the source
	manifest, err := ing.store.ReadManifest(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.Dataset.RowCount != 2 || manifest.Dataset.Checksum != result.Checksum {
		t.Errorf("manifest dataset = %+v, want rows 2 checksum %s", manifest.Dataset, result.Checksum)
	}
	if !hasColumn(manifest.Source.Columns, "company_size") || !hasColumn(manifest.Source.Columns, "duration_days") {
		t.Errorf("manifest columns = %v, want normalized source columns", manifest.Source.Columns)
	}
}

func TestRunSkipsUnchangedSource(t *testing.T) {
	ing, _ := newTestIngestor(t, sampleCSV, nil)
	defer ing.Close()

	ctx := context.Background()
	if _, err := ing.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	second, err := ing.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Skipped {
		t.Error("second run on unchanged source not skipped")
	}

	forced, err := ing.Run(ctx, RunOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if forced.Skipped {
		t.Error("forced run reported skipped")
	}
}

func TestRunIdempotentOutput(t *testing.T) {
	ing, _ := newTestIngestor(t, sampleCSV, nil)
	defer ing.Close()

	ctx := context.Background()
	if _, err := ing.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstBytes, err := ing.store.ReadParquet(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadParquet after first run: %v", err)
	}

	if _, err := ing.Run(ctx, RunOptions{Force: true}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	secondBytes, err := ing.store.ReadParquet(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadParquet after second run: %v", err)
	}

	if !bytes.Equal(firstBytes, secondBytes) {
		t.Error("same raw input produced different output bytes")
	}
}

func TestRunEmptyInputFatal(t *testing.T) {
	ing, _ := newTestIngestor(t, "", nil)
	defer ing.Close()

	ctx := context.Background()
	_, err := ing.Run(ctx, RunOptions{})
	if !errors.Is(err, source.ErrUnreadable) {
		t.Fatalf("Run on empty input = %v, want ErrUnreadable", err)
	}

	// No output written
	if exists, _ := ing.store.Exists(ctx, ing.ref); exists {
		t.Error("empty input still produced an output file")
	}
}

func TestRunBadInputPreservesPreviousOutput(t *testing.T) {
	ing, cfg := newTestIngestor(t, sampleCSV, nil)
	defer ing.Close()

	ctx := context.Background()
	if _, err := ing.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	goodBytes, err := ing.store.ReadParquet(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}

	// Truncate the source to a header-only file and rerun
	if err := os.WriteFile(cfg.Source.Path, []byte("industry,ad_spend\n"), 0644); err != nil {
		t.Fatalf("truncate source: %v", err)
	}
	if _, err := ing.Run(ctx, RunOptions{}); !errors.Is(err, source.ErrUnreadable) {
		t.Fatalf("Run on header-only input = %v, want ErrUnreadable", err)
	}

	afterBytes, err := ing.store.ReadParquet(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadParquet after failed run: %v", err)
	}
	if !bytes.Equal(goodBytes, afterBytes) {
		t.Error("failed run overwrote the previous output")
	}
}

func TestRunMissingSourceFatal(t *testing.T) {
	dir := t.TempDir()
	cfg := *config.Default()
	cfg.Source.Path = filepath.Join(dir, "missing.csv")
	cfg.Output.LocalDir = filepath.Join(dir, "assets")
	cfg.RunLog.Dir = filepath.Join(dir, "runlog")

	src, err := source.New(cfg.Source.Path)
	if err != nil {
		t.Fatalf("source.New: %v", err)
	}
	store, err := storage.NewStore(storage.Config{Backend: "local", LocalDir: cfg.Output.LocalDir})
	if err != nil {
		t.Fatalf("storage.NewStore: %v", err)
	}

	ing := New(context.Background(), cfg, src, store)
	defer ing.Close()

	if _, err := ing.Run(context.Background(), RunOptions{}); !errors.Is(err, source.ErrUnreadable) {
		t.Fatalf("Run on missing source = %v, want ErrUnreadable", err)
	}
}

func TestRunAllRowsFiltered(t *testing.T) {
	csv := "Industry,Description,Ad Spend\n" +
		"Retail,manual adjustment,100\n" +
		"Tech,bank charges for march,200\n"

	ing, _ := newTestIngestor(t, csv, func(cfg *config.Config) {
		cfg.Filter.Enabled = true
	})
	defer ing.Close()

	ctx := context.Background()
	_, err := ing.Run(ctx, RunOptions{})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Run with all rows filtered = %v, want ErrValidationFailed", err)
	}
	if exists, _ := ing.store.Exists(ctx, ing.ref); exists {
		t.Error("validation failure still produced an output file")
	}
}

func TestRunDenylistFilter(t *testing.T) {
	csv := "Industry,Description,Ad Spend,Audience Reach,Conversion Rate\n" +
		"Retail,Spring campaign,100,1000,5\n" +
		"Misc,quarterly adjustment,50,0,0\n" +
		"Tech,Summer push,200,2000,2\n"

	ing, _ := newTestIngestor(t, csv, func(cfg *config.Config) {
		cfg.Filter.Enabled = true
	})
	defer ing.Close()

	ctx := context.Background()
	result, err := ing.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RowCount != 2 || result.FilteredRows != 1 {
		t.Errorf("rows/filtered = %d/%d, want 2/1", result.RowCount, result.FilteredRows)
	}

	manifest, err := ing.store.ReadManifest(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.Source.FilteredRows != 1 || manifest.Source.RowCount != 3 {
		t.Errorf("manifest source = %+v, want 3 raw rows, 1 filtered", manifest.Source)
	}
}

func TestRunMissingCompanySizeColumn(t *testing.T) {
	csv := "Industry,Ad Spend,Audience Reach,Conversion Rate\n" +
		"Retail,100,1000,5\n"

	ing, _ := newTestIngestor(t, csv, nil)
	defer ing.Close()

	ctx := context.Background()
	result, err := ing.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("Run without company_size column: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}

	data, err := ing.store.ReadParquet(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	records, err := storage.DecodeParquet(data)
	if err != nil {
		t.Fatalf("DecodeParquet: %v", err)
	}
	if records[0].CompanySize != "unknown" {
		t.Errorf("CompanySize = %q, want unknown", records[0].CompanySize)
	}

	manifest, err := ing.store.ReadManifest(ctx, ing.ref)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if hasColumn(manifest.Source.Columns, "company_size") {
		t.Errorf("manifest columns = %v, company_size should be absent", manifest.Source.Columns)
	}
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}
