package campaign

import (
	"testing"
)

func TestDeriveConversions(t *testing.T) {
	tests := []struct {
		reach    int64
		rate     float64
		expected int64
	}{
		{1000, 5, 50},
		{1000, 0, 0},
		{0, 50, 0},
		{333, 10, 33},     // 33.3 rounds down
		{335, 10, 34},     // 33.5 rounds up
		{100, 150, 150},   // rate above 100 is not clamped
		{2500000, 2.5, 62500},
		{9000000000000000000, 200, 0}, // beyond int64 falls back to 0
	}

	for _, tt := range tests {
		if got := DeriveConversions(tt.reach, tt.rate); got != tt.expected {
			t.Errorf("DeriveConversions(%d, %v) = %d, want %d", tt.reach, tt.rate, got, tt.expected)
		}
	}
}

func TestDeriveCostPerZeroGuard(t *testing.T) {
	tests := []struct {
		spend    float64
		count    float64
		expected float64
	}{
		{150, 0, 0}, // zero denominator yields 0, never a division
		{150, 50, 3},
		{0, 50, 0},
		{99.9, 3, 33.3},
	}

	for _, tt := range tests {
		if got := DeriveCostPer(tt.spend, tt.count); got != tt.expected {
			t.Errorf("DeriveCostPer(%v, %v) = %v, want %v", tt.spend, tt.count, got, tt.expected)
		}
	}
}

func TestRecordDerive(t *testing.T) {
	r := Record{
		AdSpend:          150,
		AudienceReach:    1000,
		ConversionRate:   5,
		EngagementMetric: 0,
	}
	r.Derive()

	if r.Conversions != 50 {
		t.Errorf("Conversions = %d, want 50", r.Conversions)
	}
	if r.CostPerEngagement != 0 {
		t.Errorf("CostPerEngagement = %v, want 0 (engagement is 0)", r.CostPerEngagement)
	}
	if r.CostPerConversion != 3.0 {
		t.Errorf("CostPerConversion = %v, want 3.0", r.CostPerConversion)
	}
}

func TestRecordDeriveIgnoresStaleValues(t *testing.T) {
	// Pre-populated derived fields must be overwritten from base fields.
	r := Record{
		AdSpend:           100,
		AudienceReach:     0,
		ConversionRate:    50,
		EngagementMetric:  0,
		Conversions:       999,
		CostPerEngagement: 12.5,
		CostPerConversion: 42,
	}
	r.Derive()

	if r.Conversions != 0 {
		t.Errorf("Conversions = %d, want 0", r.Conversions)
	}
	if r.CostPerEngagement != 0 || r.CostPerConversion != 0 {
		t.Errorf("cost fields = (%v, %v), want (0, 0)", r.CostPerEngagement, r.CostPerConversion)
	}
}

func TestComputeChecksum(t *testing.T) {
	data := []byte("campaign data")
	sum := ComputeChecksum(data)

	if len(sum) != len("sha256:")+64 {
		t.Errorf("checksum length = %d, want %d", len(sum), len("sha256:")+64)
	}
	if sum[:7] != "sha256:" {
		t.Errorf("checksum prefix = %q, want \"sha256:\"", sum[:7])
	}
	if !VerifyChecksum(data, sum) {
		t.Error("VerifyChecksum should accept its own output")
	}
	if VerifyChecksum([]byte("other data"), sum) {
		t.Error("VerifyChecksum should reject different data")
	}
}
