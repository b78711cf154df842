package query

import (
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/campaignlens/campaignlens/internal/campaign"
)

// round2 rounds an aggregate to two decimal places. Non-finite values
// pass through untouched; NewFromFloat panics on them.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// OverviewStats is the executive summary over a record set.
type OverviewStats struct {
	TotalSpend           float64        `json:"total_spend"`
	TotalReach           int64          `json:"total_reach"`
	TotalConversions     int64          `json:"total_conversions"`
	AvgCostPerConversion float64        `json:"avg_cost_per_conversion"`
	Funnel               Funnel         `json:"funnel"`
	SpendByChannel       []ChannelSpend `json:"spend_by_channel"`
}

// Funnel is the customer journey: reach, engagement, conversion.
type Funnel struct {
	Reach       int64   `json:"reach"`
	Engagements float64 `json:"engagements"`
	Conversions int64   `json:"conversions"`
}

// ChannelSpend is one channel's share of total spend.
type ChannelSpend struct {
	Channel string  `json:"channel"`
	Spend   float64 `json:"spend"`
}

// Overview computes the executive summary. The average cost per
// conversion covers only records with a positive CPC and is 0 when no
// record converted.
func Overview(rows []campaign.Record) OverviewStats {
	var stats OverviewStats
	var cpcSum float64
	var cpcCount int

	spendByChannel := make(map[string]float64)
	for _, r := range rows {
		stats.TotalSpend += r.AdSpend
		stats.TotalReach += r.AudienceReach
		stats.TotalConversions += r.Conversions
		stats.Funnel.Engagements += r.EngagementMetric
		if r.CostPerConversion > 0 {
			cpcSum += r.CostPerConversion
			cpcCount++
		}
		if r.MarketingChannel != "" {
			spendByChannel[r.MarketingChannel] += r.AdSpend
		}
	}

	stats.TotalSpend = round2(stats.TotalSpend)
	if cpcCount > 0 {
		stats.AvgCostPerConversion = round2(cpcSum / float64(cpcCount))
	}
	stats.Funnel.Reach = stats.TotalReach
	stats.Funnel.Engagements = round2(stats.Funnel.Engagements)
	stats.Funnel.Conversions = stats.TotalConversions

	stats.SpendByChannel = make([]ChannelSpend, 0, len(spendByChannel))
	for _, channel := range slices.Sorted(maps.Keys(spendByChannel)) {
		stats.SpendByChannel = append(stats.SpendByChannel, ChannelSpend{
			Channel: channel,
			Spend:   round2(spendByChannel[channel]),
		})
	}
	return stats
}

// ChannelRow is one channel's aggregate performance.
type ChannelRow struct {
	Channel    string  `json:"channel"`
	TotalSpend float64 `json:"total_spend"`
	AvgCVR     float64 `json:"avg_cvr"`
	AvgCPC     float64 `json:"avg_cpc"`
}

// ChannelStats ranks marketing channels. Ties go to the first channel
// in name order.
type ChannelStats struct {
	Channels      []ChannelRow `json:"channels"`
	MostEfficient string       `json:"most_efficient_channel,omitempty"`
	HighestCVR    string       `json:"highest_cvr_channel,omitempty"`
}

// Channels aggregates per-channel spend and efficiency. The most
// efficient channel is the lowest positive average CPC; a channel whose
// campaigns never converted cannot win it.
func Channels(rows []campaign.Record) ChannelStats {
	type acc struct {
		spend, cvr, cpc float64
		n               int
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		if r.MarketingChannel == "" {
			continue
		}
		g := groups[r.MarketingChannel]
		if g == nil {
			g = &acc{}
			groups[r.MarketingChannel] = g
		}
		g.spend += r.AdSpend
		g.cvr += r.ConversionRate
		g.cpc += r.CostPerConversion
		g.n++
	}

	stats := ChannelStats{Channels: make([]ChannelRow, 0, len(groups))}
	var bestCPC, bestCVR float64
	for _, channel := range slices.Sorted(maps.Keys(groups)) {
		g := groups[channel]
		row := ChannelRow{
			Channel:    channel,
			TotalSpend: round2(g.spend),
			AvgCVR:     round2(g.cvr / float64(g.n)),
			AvgCPC:     round2(g.cpc / float64(g.n)),
		}
		stats.Channels = append(stats.Channels, row)

		if row.AvgCPC > 0 && (stats.MostEfficient == "" || row.AvgCPC < bestCPC) {
			stats.MostEfficient = channel
			bestCPC = row.AvgCPC
		}
		if stats.HighestCVR == "" || row.AvgCVR > bestCVR {
			stats.HighestCVR = channel
			bestCVR = row.AvgCVR
		}
	}
	return stats
}

// ConversionGroup is total conversions for one category value.
type ConversionGroup struct {
	Name        string `json:"name"`
	Conversions int64  `json:"conversions"`
}

// AudienceDevice is total conversions for one audience/device pair.
type AudienceDevice struct {
	Audience    string `json:"audience"`
	Device      string `json:"device"`
	Conversions int64  `json:"conversions"`
}

// AudienceStats breaks conversions down by who converted and on what.
type AudienceStats struct {
	ByAudience  []ConversionGroup `json:"by_audience"`
	ByDevice    []ConversionGroup `json:"by_device"`
	ByPair      []AudienceDevice  `json:"by_audience_device"`
	TopAudience string            `json:"top_audience,omitempty"`
	TopDevice   string            `json:"top_device,omitempty"`
}

// Audiences sums conversions per target audience, per device, and per
// audience/device pair. Top spots go to summed conversions, not to an
// average of rates.
func Audiences(rows []campaign.Record) AudienceStats {
	type pair struct{ audience, device string }
	byAudience := make(map[string]int64)
	byDevice := make(map[string]int64)
	byPair := make(map[pair]int64)

	for _, r := range rows {
		if r.TargetAudience != "" {
			byAudience[r.TargetAudience] += r.Conversions
		}
		if r.Device != "" {
			byDevice[r.Device] += r.Conversions
		}
		if r.TargetAudience != "" && r.Device != "" {
			byPair[pair{r.TargetAudience, r.Device}] += r.Conversions
		}
	}

	stats := AudienceStats{
		ByAudience: make([]ConversionGroup, 0, len(byAudience)),
		ByDevice:   make([]ConversionGroup, 0, len(byDevice)),
		ByPair:     make([]AudienceDevice, 0, len(byPair)),
	}
	var bestAudience, bestDevice int64
	for _, name := range slices.Sorted(maps.Keys(byAudience)) {
		stats.ByAudience = append(stats.ByAudience, ConversionGroup{Name: name, Conversions: byAudience[name]})
		if stats.TopAudience == "" || byAudience[name] > bestAudience {
			stats.TopAudience = name
			bestAudience = byAudience[name]
		}
	}
	for _, name := range slices.Sorted(maps.Keys(byDevice)) {
		stats.ByDevice = append(stats.ByDevice, ConversionGroup{Name: name, Conversions: byDevice[name]})
		if stats.TopDevice == "" || byDevice[name] > bestDevice {
			stats.TopDevice = name
			bestDevice = byDevice[name]
		}
	}

	pairs := make([]pair, 0, len(byPair))
	for p := range byPair {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].audience != pairs[j].audience {
			return pairs[i].audience < pairs[j].audience
		}
		return pairs[i].device < pairs[j].device
	})
	for _, p := range pairs {
		stats.ByPair = append(stats.ByPair, AudienceDevice{
			Audience:    p.audience,
			Device:      p.device,
			Conversions: byPair[p],
		})
	}
	return stats
}

// GeoRow is one region's aggregate performance.
type GeoRow struct {
	Region     string  `json:"region"`
	TotalSpend float64 `json:"total_spend"`
	AvgCPC     float64 `json:"avg_cpc"`
}

// GeoStats ranks regions by spend and efficiency.
type GeoStats struct {
	Regions       []GeoRow `json:"regions"`
	HighestSpend  string   `json:"highest_spend_region,omitempty"`
	MostEfficient string   `json:"most_efficient_region,omitempty"`
}

// Geo aggregates spend and efficiency per region.
func Geo(rows []campaign.Record) GeoStats {
	type acc struct {
		spend, cpc float64
		n          int
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		if r.Region == "" {
			continue
		}
		g := groups[r.Region]
		if g == nil {
			g = &acc{}
			groups[r.Region] = g
		}
		g.spend += r.AdSpend
		g.cpc += r.CostPerConversion
		g.n++
	}

	stats := GeoStats{Regions: make([]GeoRow, 0, len(groups))}
	var bestSpend, bestCPC float64
	for _, region := range slices.Sorted(maps.Keys(groups)) {
		g := groups[region]
		row := GeoRow{
			Region:     region,
			TotalSpend: round2(g.spend),
			AvgCPC:     round2(g.cpc / float64(g.n)),
		}
		stats.Regions = append(stats.Regions, row)

		if stats.HighestSpend == "" || row.TotalSpend > bestSpend {
			stats.HighestSpend = region
			bestSpend = row.TotalSpend
		}
		if row.AvgCPC > 0 && (stats.MostEfficient == "" || row.AvgCPC < bestCPC) {
			stats.MostEfficient = region
			bestCPC = row.AvgCPC
		}
	}
	return stats
}

