// Package query answers the aggregate views over a published dataset.
// It loads the parquet output and its manifest read-only, applies
// categorical filters, and computes the per-view group-bys. Money and
// rate aggregates round to two decimal places at this boundary so every
// consumer reports the same numbers.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/sizeclass"
	"github.com/campaignlens/campaignlens/internal/storage"
)

// Dataset is a published dataset held in memory for querying.
type Dataset struct {
	Records  []campaign.Record
	Manifest *storage.Manifest
	LoadedAt time.Time
}

// Load reads the published parquet file and its manifest.
func Load(ctx context.Context, store storage.DatasetStore, ref storage.DatasetRef) (*Dataset, error) {
	data, err := store.ReadParquet(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	records, err := storage.DecodeParquet(data)
	if err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	manifest, err := store.ReadManifest(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return &Dataset{
		Records:  records,
		Manifest: manifest,
		LoadedAt: time.Now().UTC(),
	}, nil
}

// Filter selects records by verbatim category match. Empty criteria
// match everything. The unknown company size is an ordinary filterable
// value like any other.
type Filter struct {
	Industries []string `json:"industries"`
	Sizes      []string `json:"sizes"`
}

// Filter returns the records matching f, in dataset order.
func (d *Dataset) Filter(f Filter) []campaign.Record {
	industries := toSet(f.Industries)
	sizes := toSet(f.Sizes)
	if len(industries) == 0 && len(sizes) == 0 {
		return d.Records
	}

	matched := make([]campaign.Record, 0, len(d.Records))
	for _, r := range d.Records {
		if len(industries) > 0 && !industries[r.Industry] {
			continue
		}
		if len(sizes) > 0 && !sizes[r.CompanySize] {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = true
		}
	}
	return set
}

// Options lists the distinct filter values present in a record set.
type Options struct {
	Industries   []string `json:"industries"`
	CompanySizes []string `json:"company_sizes"`
}

// FilterOptions collects the distinct industries (sorted) and company
// sizes (domain order, unknown last) for populating filter controls.
func FilterOptions(rows []campaign.Record) Options {
	industries := make(map[string]bool)
	sizes := make(map[string]bool)
	for _, r := range rows {
		if r.Industry != "" {
			industries[r.Industry] = true
		}
		if r.CompanySize != "" {
			sizes[r.CompanySize] = true
		}
	}

	opts := Options{
		Industries:   make([]string, 0, len(industries)),
		CompanySizes: make([]string, 0, len(sizes)),
	}
	for industry := range industries {
		opts.Industries = append(opts.Industries, industry)
	}
	sort.Strings(opts.Industries)
	for _, c := range sizeclass.Categories() {
		if sizes[string(c)] {
			opts.CompanySizes = append(opts.CompanySizes, string(c))
		}
	}
	return opts
}
