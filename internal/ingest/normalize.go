package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/sizeclass"
)

// NumericFields are the raw columns coerced to numbers during cleaning.
var NumericFields = []string{
	"ad_spend",
	"duration_days",
	"engagement_metric",
	"conversion_rate",
	"audience_reach",
}

// Stats counts what one pipeline pass did to the data. The counts feed
// logs and metrics; they never turn into errors.
type Stats struct {
	RowsIn            int64
	RowsOut           int64
	FilteredRows      int64
	CoercionFallbacks map[string]int64
	UnknownSizes      int64
}

// Normalizer turns raw rows into clean campaign records. Every step is
// total over row content: malformed cells fall back to their defaults
// and no row is ever dropped here.
type Normalizer struct {
	sizes *sizeclass.Table
}

// NewNormalizer creates a normalizer using the given size rule table.
func NewNormalizer(sizes *sizeclass.Table) *Normalizer {
	return &Normalizer{sizes: sizes}
}

// Normalize cleans the rows in order. See NormalizeStats.
func (n *Normalizer) Normalize(rows []RawRow) []campaign.Record {
	records, _ := n.NormalizeStats(rows)
	return records
}

// NormalizeStats cleans the rows in order and reports what it did.
// Output preserves input row order one-to-one.
func (n *Normalizer) NormalizeStats(rows []RawRow) ([]campaign.Record, Stats) {
	stats := Stats{
		RowsIn:            int64(len(rows)),
		CoercionFallbacks: make(map[string]int64),
	}

	records := make([]campaign.Record, 0, len(rows))
	for _, row := range rows {
		rec := campaign.Record{
			Industry:         row["industry"],
			MarketingChannel: row["marketing_channel"],
			TargetAudience:   row["target_audience"],
			Device:           row["device"],
			Region:           row["region"],
		}

		size := n.sizes.Canonicalize(row["company_size"])
		if size == sizeclass.SizeUnknown {
			stats.UnknownSizes++
		}
		rec.CompanySize = string(size)

		rec.AdSpend = n.coerce(row, "ad_spend", &stats)
		rec.DurationDays = n.coerce(row, "duration_days", &stats)
		rec.EngagementMetric = n.coerce(row, "engagement_metric", &stats)
		rec.ConversionRate = n.coerce(row, "conversion_rate", &stats)

		// Fractional reach counts are not physically meaningful
		rec.AudienceReach = n.coerceCount(row, "audience_reach", &stats)

		// Derived fields are always recomputed, never read from raw input
		rec.Derive()

		records = append(records, rec)
	}

	stats.RowsOut = int64(len(records))
	return records, stats
}

// coerce parses a numeric cell. An empty cell is missing data and
// becomes 0 silently; a non-empty cell that fails to parse, or parses to
// NaN, ±Inf or a negative value, becomes 0 and counts as a fallback.
func (n *Normalizer) coerce(row RawRow, field string, stats *Stats) float64 {
	s := strings.TrimSpace(row[field])
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		stats.CoercionFallbacks[field]++
		return 0
	}
	return v
}

// coerceCount parses a numeric cell into a whole count. Values beyond
// the int64 range fall back to 0 like any other junk cell.
func (n *Normalizer) coerceCount(row RawRow, field string, stats *Stats) int64 {
	v := math.Round(n.coerce(row, field, stats))
	if v >= math.MaxInt64 {
		stats.CoercionFallbacks[field]++
		return 0
	}
	return int64(v)
}
