package storage

import (
	"bytes"
	"testing"

	"github.com/campaignlens/campaignlens/internal/campaign"
)

func sampleRecords() []campaign.Record {
	records := []campaign.Record{
		{
			Industry:         "Retail",
			CompanySize:      "1-10",
			MarketingChannel: "Social Media",
			TargetAudience:   "Young Adults",
			Device:           "Mobile",
			Region:           "North",
			AdSpend:          150,
			DurationDays:     30,
			AudienceReach:    1000,
			EngagementMetric: 200,
			ConversionRate:   5,
		},
		{
			Industry:         "Finance",
			CompanySize:      "100+",
			MarketingChannel: "Email",
			TargetAudience:   "Professionals",
			Device:           "Desktop",
			Region:           "South",
			AdSpend:          900.5,
			DurationDays:     14,
			AudienceReach:    50000,
			EngagementMetric: 0,
			ConversionRate:   1.2,
		},
	}
	for i := range records {
		records[i].Derive()
	}
	return records
}

func TestParquetRoundTrip(t *testing.T) {
	records := sampleRecords()

	data, err := EncodeParquet(records, campaign.DefaultParquetConfig())
	if err != nil {
		t.Fatalf("EncodeParquet failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeParquet returned empty payload")
	}

	decoded, err := DecodeParquet(data)
	if err != nil {
		t.Fatalf("DecodeParquet failed: %v", err)
	}
	if len(decoded) != len(records) {
		t.Fatalf("decoded %d records, want %d", len(decoded), len(records))
	}

	// Row order must be preserved.
	for i := range records {
		if decoded[i] != records[i] {
			t.Errorf("record %d mismatch:\n got %+v\nwant %+v", i, decoded[i], records[i])
		}
	}
}

func TestParquetDeterministicOutput(t *testing.T) {
	records := sampleRecords()
	cfg := campaign.ParquetConfig{
		PipelineVersion: "v1",
		SourceChecksum:  "sha256:feedface",
		Compression:     "snappy",
	}

	first, err := EncodeParquet(records, cfg)
	if err != nil {
		t.Fatalf("EncodeParquet failed: %v", err)
	}
	second, err := EncodeParquet(records, cfg)
	if err != nil {
		t.Fatalf("EncodeParquet failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("encoding the same records twice should be byte-for-byte identical")
	}
}

func TestParquetRejectsUnknownCompression(t *testing.T) {
	cfg := campaign.ParquetConfig{Compression: "lzma"}
	if _, err := EncodeParquet(sampleRecords(), cfg); err == nil {
		t.Error("EncodeParquet should fail for unsupported compression")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	raw := []byte("Industry,Company Size,Ad Spend (USD)\nRetail,Jan,150\n")

	compressed, err := CompressSnapshot(raw)
	if err != nil {
		t.Fatalf("CompressSnapshot failed: %v", err)
	}

	restored, err := DecompressSnapshot(compressed)
	if err != nil {
		t.Fatalf("DecompressSnapshot failed: %v", err)
	}
	if !bytes.Equal(restored, raw) {
		t.Error("snapshot round trip mismatch")
	}
}
