package campaign

import "math"

// DeriveConversions computes whole-number conversions from reach and a
// percentage conversion rate: round(reach * rate / 100). Never negative;
// results beyond the int64 range fall back to 0.
func DeriveConversions(reach int64, conversionRate float64) int64 {
	c := math.Round(float64(reach) * conversionRate / 100)
	if math.IsNaN(c) || c < 0 || c >= math.MaxInt64 {
		return 0
	}
	return int64(c)
}

// DeriveCostPer divides spend by a count, returning 0 when the count is 0.
// The zero-guard is absolute: no derived field may ever divide by zero.
func DeriveCostPer(spend, count float64) float64 {
	if count == 0 {
		return 0
	}
	return spend / count
}

// Derive recomputes all derived fields from the base fields. Raw input
// columns with the same names are ignored even when present.
func (r *Record) Derive() {
	r.Conversions = DeriveConversions(r.AudienceReach, r.ConversionRate)
	r.CostPerEngagement = DeriveCostPer(r.AdSpend, r.EngagementMetric)
	r.CostPerConversion = DeriveCostPer(r.AdSpend, float64(r.Conversions))
}
