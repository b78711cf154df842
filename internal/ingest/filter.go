package ingest

import (
	"strings"

	"github.com/campaignlens/campaignlens/internal/config"
)

// Filter drops rows whose free-text column contains a denylisted term.
// Accounting exports mix bookkeeping lines ("adjustment", "bank charges")
// into campaign data; the filter removes them before derivation. It is
// optional configuration, off by default.
type Filter struct {
	enabled bool
	column  string
	terms   []string
}

// NewFilter builds a row filter from configuration. The column name and
// terms are normalized once here, matching is case-insensitive.
func NewFilter(cfg config.FilterConfig) *Filter {
	terms := make([]string, 0, len(cfg.Terms))
	for _, t := range cfg.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}

	return &Filter{
		enabled: cfg.Enabled && len(terms) > 0,
		column:  NormalizeHeader(cfg.Column),
		terms:   terms,
	}
}

// Enabled reports whether the filter will drop anything at all.
func (f *Filter) Enabled() bool {
	return f.enabled
}

// Apply returns the rows that survive the denylist, preserving order,
// and the number of rows dropped. A row with no value in the filter
// column is kept.
func (f *Filter) Apply(rows []RawRow) ([]RawRow, int64) {
	if !f.enabled {
		return rows, 0
	}

	kept := make([]RawRow, 0, len(rows))
	var dropped int64
	for _, row := range rows {
		if f.matches(row[f.column]) {
			dropped++
			continue
		}
		kept = append(kept, row)
	}
	return kept, dropped
}

func (f *Filter) matches(cell string) bool {
	if cell == "" {
		return false
	}
	needle := strings.ToLower(cell)
	for _, term := range f.terms {
		if strings.Contains(needle, term) {
			return true
		}
	}
	return false
}
