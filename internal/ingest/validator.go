package ingest

import (
	"fmt"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/sizeclass"
)

// ValidationResult contains the outcome of pre-publish dataset validation.
type ValidationResult struct {
	Passed   bool
	Errors   []string
	Warnings []string
	RowCount int64
}

// Validate performs quality checks on a built dataset before commit.
// This validates:
// - Non-empty record set (an empty dataset is never published)
// - company_size values stay inside the category domain
// - Numeric fields are non-negative
// - Derived fields match recomputation from their base fields
// - Parquet output and checksum are present
func Validate(built *BuiltDataset) ValidationResult {
	result := ValidationResult{
		Passed:   true,
		RowCount: int64(len(built.Records)),
	}

	if len(built.Records) == 0 {
		result.Errors = append(result.Errors, "dataset has no records")
		result.Passed = false
	}

	for i, rec := range built.Records {
		if _, ok := sizeclass.ParseCategory(rec.CompanySize); !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: company_size %q outside category domain", i, rec.CompanySize))
			result.Passed = false
		}

		if rec.AdSpend < 0 || rec.DurationDays < 0 || rec.EngagementMetric < 0 ||
			rec.ConversionRate < 0 || rec.AudienceReach < 0 || rec.Conversions < 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: negative value survived cleaning", i))
			result.Passed = false
		}

		if want := campaign.DeriveConversions(rec.AudienceReach, rec.ConversionRate); rec.Conversions != want {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: conversions %d, recomputed %d", i, rec.Conversions, want))
			result.Passed = false
		}

		if want := campaign.DeriveCostPer(rec.AdSpend, rec.EngagementMetric); rec.CostPerEngagement != want {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: cost_per_engagement %v, recomputed %v", i, rec.CostPerEngagement, want))
			result.Passed = false
		}

		if want := campaign.DeriveCostPer(rec.AdSpend, float64(rec.Conversions)); rec.CostPerConversion != want {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: cost_per_conversion %v, recomputed %v", i, rec.CostPerConversion, want))
			result.Passed = false
		}

		if rec.ConversionRate > 100 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: conversion_rate %v above 100%%", i, rec.ConversionRate))
		}
		if rec.Conversions > rec.AudienceReach {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: conversions %d exceed reach %d", i, rec.Conversions, rec.AudienceReach))
		}
	}

	if len(built.ParquetBytes) == 0 {
		result.Errors = append(result.Errors, "no parquet output generated")
		result.Passed = false
	}
	if len(built.Checksum) < 7 || built.Checksum[:7] != "sha256:" {
		result.Errors = append(result.Errors,
			fmt.Sprintf("output checksum missing or in non-standard format: %q", built.Checksum))
		result.Passed = false
	}

	return result
}
