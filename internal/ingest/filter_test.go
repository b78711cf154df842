package ingest

import (
	"testing"

	"github.com/campaignlens/campaignlens/internal/config"
)

func TestFilterDisabled(t *testing.T) {
	f := NewFilter(config.FilterConfig{
		Enabled: false,
		Column:  "description",
		Terms:   []string{"adjustment"},
	})

	rows := []RawRow{{"description": "adjustment for Q1"}}
	kept, dropped := f.Apply(rows)
	if len(kept) != 1 || dropped != 0 {
		t.Errorf("disabled filter kept %d dropped %d, want 1/0", len(kept), dropped)
	}
}

func TestFilterDropsDenylistedRows(t *testing.T) {
	f := NewFilter(config.FilterConfig{
		Enabled: true,
		Column:  "Description",
		Terms:   []string{"adjustment", "discount", "bank charges"},
	})

	rows := []RawRow{
		{"description": "Spring campaign", "industry": "Retail"},
		{"description": "Bank Charges for March"},
		{"description": "Seasonal DISCOUNT applied"},
		{"description": "Summer push", "industry": "Tech"},
		{"description": "manual adjustment entry"},
	}

	kept, dropped := f.Apply(rows)
	if dropped != 3 {
		t.Fatalf("dropped = %d, want 3", dropped)
	}
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}
	// Survivors keep their relative order
	if kept[0]["industry"] != "Retail" || kept[1]["industry"] != "Tech" {
		t.Errorf("kept rows out of order: %v", kept)
	}
}

func TestFilterMissingColumnKeepsRows(t *testing.T) {
	f := NewFilter(config.FilterConfig{
		Enabled: true,
		Column:  "description",
		Terms:   []string{"adjustment"},
	})

	rows := []RawRow{
		{"industry": "Retail"},
		{"industry": "Tech"},
	}

	kept, dropped := f.Apply(rows)
	if len(kept) != 2 || dropped != 0 {
		t.Errorf("filter on missing column kept %d dropped %d, want 2/0", len(kept), dropped)
	}
}

func TestFilterEmptyTermsDisables(t *testing.T) {
	f := NewFilter(config.FilterConfig{
		Enabled: true,
		Column:  "description",
		Terms:   []string{"", "   "},
	})
	if f.Enabled() {
		t.Error("filter with only blank terms should be disabled")
	}
}
