package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/campaignlens/campaignlens/internal/config"
)

func TestNewWriterWithoutDSN(t *testing.T) {
	w, err := NewWriter(context.Background(), config.CatalogConfig{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, ok := w.(noopWriter); !ok {
		t.Fatalf("NewWriter without DSN = %T, want noopWriter", w)
	}

	ctx := context.Background()
	id, err := w.EnsureDataset(ctx, DatasetInfo{Name: "marketing_data", Version: "v1"})
	if err != nil || id != 0 {
		t.Errorf("noop EnsureDataset = (%d, %v), want (0, nil)", id, err)
	}
	if err := w.RecordRun(ctx, RunRecord{RunID: "run-1"}); err != nil {
		t.Errorf("noop RecordRun = %v, want nil", err)
	}
	if hash, err := w.LastLineageHash(ctx, 1); err != nil || hash != "" {
		t.Errorf("noop LastLineageHash = (%q, %v), want empty", hash, err)
	}
}

func TestChainHashDeterministic(t *testing.T) {
	h1 := ChainHash("marketing_data", "sha256:src", "sha256:out", "")
	h2 := ChainHash("marketing_data", "sha256:src", "sha256:out", "")
	if h1 != h2 {
		t.Errorf("ChainHash not deterministic: %s != %s", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("ChainHash = %s, want sha256: prefix", h1)
	}
}

func TestChainHashLinksPredecessor(t *testing.T) {
	first := ChainHash("marketing_data", "sha256:src", "sha256:out", "")
	second := ChainHash("marketing_data", "sha256:src", "sha256:out", first)
	if first == second {
		t.Error("ChainHash ignores prev hash, chained entries should differ")
	}

	// Field boundaries matter: shifting bytes between fields must change the hash
	a := ChainHash("data", "xsrc", "out", "")
	b := ChainHash("datax", "src", "out", "")
	if a == b {
		t.Error("ChainHash is ambiguous across field boundaries")
	}
}
