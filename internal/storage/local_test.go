package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testManifest(rowCount int64, byteSize int) *Manifest {
	return &Manifest{
		Dataset: DatasetInfo{
			Name:          "marketing_data",
			Version:       "v1",
			SchemaVersion: "1.0.0",
			File:          "marketing_data.parquet",
			Checksum:      "sha256:abc123",
			RowCount:      rowCount,
			ByteSize:      int64(byteSize),
		},
		Source: SourceInfo{
			URI:      "file:///tmp/raw.csv",
			Checksum: "sha256:def456",
			Columns:  []string{"industry", "company_size", "ad_spend"},
			RowCount: rowCount,
		},
		Producer: ProducerInfo{
			Name:    "campaignlens",
			Version: "test",
		},
		CreatedAt: time.Now(),
	}
}

func TestLocalStoreAtomicOperations(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campaignlens-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalStore(tmpDir, "")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	ref := DatasetRef{Name: "marketing_data", Version: "v1"}

	parquetData := []byte("fake parquet data for testing")
	manifest := testManifest(10, len(parquetData))

	// Test WriteParquetTemp
	tempParquet, err := store.WriteParquetTemp(ctx, ref, parquetData)
	if err != nil {
		t.Fatalf("WriteParquetTemp failed: %v", err)
	}
	if _, err := os.Stat(tempParquet); os.IsNotExist(err) {
		t.Error("temp parquet file should exist")
	}

	// Test WriteManifestTemp
	tempManifest, err := store.WriteManifestTemp(ctx, ref, manifest)
	if err != nil {
		t.Fatalf("WriteManifestTemp failed: %v", err)
	}
	if _, err := os.Stat(tempManifest); os.IsNotExist(err) {
		t.Error("temp manifest file should exist")
	}

	// Final paths shouldn't exist yet
	finalParquet := filepath.Join(tmpDir, ref.Path(""))
	finalManifest := filepath.Join(tmpDir, ref.ManifestPath(""))

	if _, err := os.Stat(finalParquet); !os.IsNotExist(err) {
		t.Error("final parquet should not exist before Finalize")
	}

	// Test Finalize
	tempKeys := []string{tempParquet, tempManifest}
	if err := store.Finalize(ctx, ref, tempKeys); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// Verify final files exist
	if _, err := os.Stat(finalParquet); os.IsNotExist(err) {
		t.Error("final parquet should exist after Finalize")
	}
	if _, err := os.Stat(finalManifest); os.IsNotExist(err) {
		t.Error("final manifest should exist after Finalize")
	}

	// Verify temp files are gone
	if _, err := os.Stat(tempParquet); !os.IsNotExist(err) {
		t.Error("temp parquet should be removed after Finalize")
	}
	if _, err := os.Stat(tempManifest); !os.IsNotExist(err) {
		t.Error("temp manifest should be removed after Finalize")
	}

	// Verify data integrity
	data, err := store.ReadParquet(ctx, ref)
	if err != nil {
		t.Fatalf("ReadParquet failed: %v", err)
	}
	if string(data) != string(parquetData) {
		t.Error("parquet data mismatch")
	}

	// Exists should now report true
	exists, err := store.Exists(ctx, ref)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Exists should be true after Finalize")
	}
}

func TestLocalStoreAbort(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campaignlens-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalStore(tmpDir, "")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	ref := DatasetRef{Name: "marketing_data", Version: "v1"}

	tempParquet, _ := store.WriteParquetTemp(ctx, ref, []byte("test data"))
	tempManifest, _ := store.WriteManifestTemp(ctx, ref, testManifest(1, 9))

	if _, err := os.Stat(tempParquet); os.IsNotExist(err) {
		t.Error("temp parquet should exist before Abort")
	}

	tempKeys := []string{tempParquet, tempManifest}
	if err := store.Abort(ctx, tempKeys); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	if _, err := os.Stat(tempParquet); !os.IsNotExist(err) {
		t.Error("temp parquet should be removed after Abort")
	}
	if _, err := os.Stat(tempManifest); !os.IsNotExist(err) {
		t.Error("temp manifest should be removed after Abort")
	}

	// Nothing was published, so reads must report not-found
	if _, err := store.ReadParquet(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadParquet after Abort = %v, want ErrNotFound", err)
	}
}

func TestLocalStoreManifestRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campaignlens-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalStore(tmpDir, "marketing/")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	ref := DatasetRef{Name: "marketing_data", Version: "v1"}
	manifest := testManifest(42, 1024)

	if err := store.WriteManifest(ctx, ref, manifest); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	got, err := store.ReadManifest(ctx, ref)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if got.Dataset.Name != "marketing_data" || got.Dataset.Version != "v1" {
		t.Errorf("manifest dataset = %+v", got.Dataset)
	}
	if got.Dataset.RowCount != 42 {
		t.Errorf("RowCount = %d, want 42", got.Dataset.RowCount)
	}
	if len(got.Source.Columns) != 3 {
		t.Errorf("Source.Columns = %v, want 3 entries", got.Source.Columns)
	}
}

func TestLocalStoreHeadAndList(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campaignlens-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalStore(tmpDir, "marketing/")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	ref := DatasetRef{Name: "marketing_data", Version: "v1"}

	testData := []byte("test parquet data for head test")
	if err := store.WriteParquet(ctx, ref, testData); err != nil {
		t.Fatalf("WriteParquet failed: %v", err)
	}

	key := ref.Path("marketing/")
	info, err := store.Head(ctx, key)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if info.Size != int64(len(testData)) {
		t.Errorf("Head size = %d, want %d", info.Size, len(testData))
	}

	keys, err := store.List(ctx, "marketing/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	found := false
	for _, k := range keys {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("List should include %s, got %v", key, keys)
	}
}

func TestLocalStoreSnapshot(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campaignlens-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalStore(tmpDir, "")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	ref := DatasetRef{Name: "marketing_data", Version: "v1"}

	raw := []byte("industry,ad_spend\nretail,100\n")
	compressed, err := CompressSnapshot(raw)
	if err != nil {
		t.Fatalf("CompressSnapshot failed: %v", err)
	}

	key, err := store.WriteSnapshot(ctx, ref, "sha256:0123456789abcdef", compressed)
	if err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	if key != "snapshots/marketing_data-0123456789ab.csv.zst" {
		t.Errorf("snapshot key = %q", key)
	}

	stored, err := os.ReadFile(filepath.Join(tmpDir, key))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	restored, err := DecompressSnapshot(stored)
	if err != nil {
		t.Fatalf("DecompressSnapshot failed: %v", err)
	}
	if string(restored) != string(raw) {
		t.Error("snapshot round trip mismatch")
	}
}
