package runlog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileManagerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(Config{Enabled: true, Dir: dir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx := context.Background()

	// No state yet
	if _, err := mgr.Load(ctx); !errors.Is(err, ErrNoRunState) {
		t.Errorf("Load on empty dir = %v, want ErrNoRunState", err)
	}

	st := &State{
		RunID:          "run-1",
		Dataset:        "marketing_data",
		Version:        "v1",
		SourceURI:      "file:///data/raw.csv",
		SourceChecksum: "sha256:abc",
		OutputChecksum: "sha256:def",
		RowCount:       200,
		CompletedAt:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := mgr.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := mgr.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RunID != st.RunID || got.SourceChecksum != st.SourceChecksum || got.RowCount != st.RowCount {
		t.Errorf("Load = %+v, want %+v", got, st)
	}
	if !got.CompletedAt.Equal(st.CompletedAt) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, st.CompletedAt)
	}
}

func TestFileManagerOverwrite(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(Config{Enabled: true, Dir: dir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx := context.Background()
	if err := mgr.Save(ctx, &State{RunID: "run-1", SourceChecksum: "sha256:aaa"}); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := mgr.Save(ctx, &State{RunID: "run-2", SourceChecksum: "sha256:bbb"}); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	got, err := mgr.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RunID != "run-2" || got.SourceChecksum != "sha256:bbb" {
		t.Errorf("Load after overwrite = %+v, want run-2 state", got)
	}
}

func TestNoopManager(t *testing.T) {
	mgr, err := NewManager(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx := context.Background()
	if err := mgr.Save(ctx, &State{RunID: "run-1"}); err != nil {
		t.Errorf("noop Save = %v, want nil", err)
	}
	if _, err := mgr.Load(ctx); !errors.Is(err, ErrNoRunState) {
		t.Errorf("noop Load = %v, want ErrNoRunState", err)
	}
}
