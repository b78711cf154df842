package ingest

import (
	"fmt"
	"testing"

	"github.com/campaignlens/campaignlens/internal/sizeclass"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(sizeclass.DefaultTable())
}

func TestNormalizeScenarioRow(t *testing.T) {
	n := newTestNormalizer()
	rows := []RawRow{{
		"company_size":      "Jan",
		"ad_spend":          "150",
		"audience_reach":    "1000",
		"conversion_rate":   "5",
		"engagement_metric": "0",
	}}

	records := n.Normalize(rows)
	if len(records) != 1 {
		t.Fatalf("Normalize returned %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.CompanySize != "1-10" {
		t.Errorf("CompanySize = %q, want 1-10", rec.CompanySize)
	}
	if rec.AudienceReach != 1000 {
		t.Errorf("AudienceReach = %d, want 1000", rec.AudienceReach)
	}
	if rec.Conversions != 50 {
		t.Errorf("Conversions = %d, want 50", rec.Conversions)
	}
	if rec.CostPerEngagement != 0 {
		t.Errorf("CostPerEngagement = %v, want 0", rec.CostPerEngagement)
	}
	if rec.CostPerConversion != 3.0 {
		t.Errorf("CostPerConversion = %v, want 3.0", rec.CostPerConversion)
	}
}

func TestNormalizeUnparseableReach(t *testing.T) {
	n := newTestNormalizer()
	rows := []RawRow{{
		"company_size":    "11-50",
		"ad_spend":        "100",
		"audience_reach":  "abc",
		"conversion_rate": "5",
	}}

	records, stats := n.NormalizeStats(rows)
	rec := records[0]
	if rec.AudienceReach != 0 {
		t.Errorf("AudienceReach = %d, want 0", rec.AudienceReach)
	}
	if rec.Conversions != 0 {
		t.Errorf("Conversions = %d, want 0", rec.Conversions)
	}
	if stats.CoercionFallbacks["audience_reach"] != 1 {
		t.Errorf("coercion fallbacks for audience_reach = %d, want 1",
			stats.CoercionFallbacks["audience_reach"])
	}
}

func TestNormalizeCategoryDomain(t *testing.T) {
	n := newTestNormalizer()
	raw := []string{"Jan", "Nov", "11-50", "51-100", "100+", "huge", "", "N/A", "10-Jan", "enterprise"}

	var rows []RawRow
	for _, s := range raw {
		rows = append(rows, RawRow{"company_size": s})
	}

	domain := map[string]bool{"1-10": true, "11-50": true, "51-100": true, "100+": true, "unknown": true}
	for i, rec := range n.Normalize(rows) {
		if !domain[rec.CompanySize] {
			t.Errorf("row %d (%q): CompanySize = %q, outside domain", i, raw[i], rec.CompanySize)
		}
	}
}

func TestCoerce(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		raw          string
		expected     float64
		wantFallback bool
	}{
		{"", 0, false},
		{"   ", 0, false},
		{"12.5", 12.5, false},
		{" 42 ", 42, false},
		{"1e3", 1000, false},
		{"0", 0, false},
		{"abc", 0, true},
		{"1,000", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"-Inf", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		stats := Stats{CoercionFallbacks: make(map[string]int64)}
		got := n.coerce(RawRow{"ad_spend": tt.raw}, "ad_spend", &stats)
		if got != tt.expected {
			t.Errorf("coerce(%q) = %v, want %v", tt.raw, got, tt.expected)
		}
		gotFallback := stats.CoercionFallbacks["ad_spend"] > 0
		if gotFallback != tt.wantFallback {
			t.Errorf("coerce(%q) fallback = %v, want %v", tt.raw, gotFallback, tt.wantFallback)
		}
	}
}

func TestCoerceCount(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		raw          string
		expected     int64
		wantFallback bool
	}{
		{"1000", 1000, false},
		{"1000.6", 1001, false},
		{"9e18", 9000000000000000000, false},
		{"1e19", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		stats := Stats{CoercionFallbacks: make(map[string]int64)}
		got := n.coerceCount(RawRow{"audience_reach": tt.raw}, "audience_reach", &stats)
		if got != tt.expected {
			t.Errorf("coerceCount(%q) = %d, want %d", tt.raw, got, tt.expected)
		}
		gotFallback := stats.CoercionFallbacks["audience_reach"] > 0
		if gotFallback != tt.wantFallback {
			t.Errorf("coerceCount(%q) fallback = %v, want %v", tt.raw, gotFallback, tt.wantFallback)
		}
	}
}

func TestNormalizePreservesOrder(t *testing.T) {
	n := newTestNormalizer()

	var rows []RawRow
	for i := 0; i < 25; i++ {
		rows = append(rows, RawRow{"industry": fmt.Sprintf("industry-%02d", i)})
	}

	records := n.Normalize(rows)
	if len(records) != 25 {
		t.Fatalf("Normalize returned %d records, want 25", len(records))
	}
	for i, rec := range records {
		want := fmt.Sprintf("industry-%02d", i)
		if rec.Industry != want {
			t.Errorf("record %d industry = %q, want %q", i, rec.Industry, want)
		}
	}
}

func TestNormalizeMissingColumns(t *testing.T) {
	n := newTestNormalizer()
	rows := []RawRow{{"industry": "Retail"}}

	records, stats := n.NormalizeStats(rows)
	rec := records[0]
	if rec.CompanySize != "unknown" {
		t.Errorf("CompanySize = %q, want unknown", rec.CompanySize)
	}
	if rec.AdSpend != 0 || rec.AudienceReach != 0 || rec.Conversions != 0 {
		t.Errorf("numeric defaults = %+v, want zeros", rec)
	}
	// Missing cells are absent data, not malformed data
	if len(stats.CoercionFallbacks) != 0 {
		t.Errorf("coercion fallbacks = %v, want none", stats.CoercionFallbacks)
	}
	if stats.UnknownSizes != 1 {
		t.Errorf("unknown sizes = %d, want 1", stats.UnknownSizes)
	}
}

func TestNormalizeRecomputesDerivedFields(t *testing.T) {
	n := newTestNormalizer()

	// Raw columns that shadow derived names must be ignored
	rows := []RawRow{{
		"ad_spend":            "100",
		"audience_reach":      "1000",
		"conversion_rate":     "10",
		"engagement_metric":   "50",
		"conversions":         "999999",
		"cost_per_engagement": "123.45",
		"cost_per_conversion": "678.90",
	}}

	rec := n.Normalize(rows)[0]
	if rec.Conversions != 100 {
		t.Errorf("Conversions = %d, want recomputed 100", rec.Conversions)
	}
	if rec.CostPerEngagement != 2.0 {
		t.Errorf("CostPerEngagement = %v, want recomputed 2.0", rec.CostPerEngagement)
	}
	if rec.CostPerConversion != 1.0 {
		t.Errorf("CostPerConversion = %v, want recomputed 1.0", rec.CostPerConversion)
	}
}

func TestNormalizeConversionRateAbove100(t *testing.T) {
	n := newTestNormalizer()
	rows := []RawRow{{
		"audience_reach":  "100",
		"conversion_rate": "150",
	}}

	// Dirty but legal: rate is not clamped, conversions may exceed reach
	rec := n.Normalize(rows)[0]
	if rec.ConversionRate != 150 {
		t.Errorf("ConversionRate = %v, want 150 unclamped", rec.ConversionRate)
	}
	if rec.Conversions != 150 {
		t.Errorf("Conversions = %d, want 150", rec.Conversions)
	}
}
