package campaign

// Record represents a single cleaned marketing campaign row.
// This is the canonical dataset schema consumed by the reporting
// and narrative layers; derived fields are always recomputed from
// the base fields, never carried over from raw input.
type Record struct {
	// Categorical grouping keys
	Industry         string `parquet:"industry"`
	CompanySize      string `parquet:"company_size"`
	MarketingChannel string `parquet:"marketing_channel"`
	TargetAudience   string `parquet:"target_audience"`
	Device           string `parquet:"device"`
	Region           string `parquet:"region"`

	// Base numeric fields (coerced, non-negative)
	AdSpend          float64 `parquet:"ad_spend"`          // currency units
	DurationDays     float64 `parquet:"duration_days"`     // campaign length
	AudienceReach    int64   `parquet:"audience_reach"`    // people exposed
	EngagementMetric float64 `parquet:"engagement_metric"` // engagement events
	ConversionRate   float64 `parquet:"conversion_rate"`   // percentage, not clamped above 100

	// Derived fields (recomputed, zero-guarded)
	Conversions       int64   `parquet:"conversions"`
	CostPerEngagement float64 `parquet:"cost_per_engagement"`
	CostPerConversion float64 `parquet:"cost_per_conversion"`
}

// TableName returns the canonical dataset name.
func (Record) TableName() string {
	return "marketing_data"
}

// ParquetConfig configures parquet output generation.
type ParquetConfig struct {
	PipelineVersion string // e.g., "v1"
	SourceChecksum  string // checksum of the raw input
	Compression     string // "snappy" | "zstd" | "none"
}

// DefaultParquetConfig returns sensible defaults.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{
		PipelineVersion: "v1",
		Compression:     "snappy",
	}
}

// SchemaVersion returns the version of the schema.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"
