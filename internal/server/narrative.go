package server

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/insights"
	"github.com/campaignlens/campaignlens/internal/query"
)

func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(v float64) string {
	return money(v) + "%"
}

// buildFacts turns one view's aggregates into the fact list handed to
// the narrative backend. The funnel stage rates ship with the overview
// so the backend can name the drop-off point without doing arithmetic.
func buildFacts(view string, rows []campaign.Record) ([]insights.Fact, error) {
	switch view {
	case "overview":
		o := query.Overview(rows)
		var reachToEng, engToConv float64
		if o.Funnel.Reach > 0 {
			reachToEng = o.Funnel.Engagements / float64(o.Funnel.Reach) * 100
		}
		if o.Funnel.Engagements > 0 {
			engToConv = float64(o.Funnel.Conversions) / o.Funnel.Engagements * 100
		}
		return []insights.Fact{
			{Name: "Total ad spend", Value: money(o.TotalSpend)},
			{Name: "Audience reached", Value: strconv.FormatInt(o.TotalReach, 10)},
			{Name: "Engagements", Value: money(o.Funnel.Engagements)},
			{Name: "Conversions", Value: strconv.FormatInt(o.TotalConversions, 10)},
			{Name: "Reach to engagement rate", Value: percent(reachToEng)},
			{Name: "Engagement to conversion rate", Value: percent(engToConv)},
		}, nil

	case "channels":
		c := query.Channels(rows)
		facts := make([]insights.Fact, 0, len(c.Channels)+2)
		for _, row := range c.Channels {
			facts = append(facts, insights.Fact{
				Name:  "Channel " + row.Channel,
				Value: fmt.Sprintf("spend %s, avg CVR %s, avg CPC %s", money(row.TotalSpend), percent(row.AvgCVR), money(row.AvgCPC)),
			})
		}
		if c.MostEfficient != "" {
			facts = append(facts, insights.Fact{Name: "Most efficient channel by CPC", Value: c.MostEfficient})
		}
		if c.HighestCVR != "" {
			facts = append(facts, insights.Fact{Name: "Highest converting channel by CVR", Value: c.HighestCVR})
		}
		return facts, nil

	case "audiences":
		a := query.Audiences(rows)
		facts := make([]insights.Fact, 0, len(a.ByAudience)+len(a.ByDevice)+2)
		for _, g := range a.ByAudience {
			facts = append(facts, insights.Fact{
				Name:  "Audience " + g.Name,
				Value: strconv.FormatInt(g.Conversions, 10) + " conversions",
			})
		}
		for _, g := range a.ByDevice {
			facts = append(facts, insights.Fact{
				Name:  "Device " + g.Name,
				Value: strconv.FormatInt(g.Conversions, 10) + " conversions",
			})
		}
		if a.TopAudience != "" {
			facts = append(facts, insights.Fact{Name: "Top audience by conversions", Value: a.TopAudience})
		}
		if a.TopDevice != "" {
			facts = append(facts, insights.Fact{Name: "Top device by conversions", Value: a.TopDevice})
		}
		return facts, nil

	case "geo":
		g := query.Geo(rows)
		facts := make([]insights.Fact, 0, len(g.Regions)+2)
		for _, row := range g.Regions {
			facts = append(facts, insights.Fact{
				Name:  "Region " + row.Region,
				Value: fmt.Sprintf("spend %s, avg CPC %s", money(row.TotalSpend), money(row.AvgCPC)),
			})
		}
		if g.HighestSpend != "" {
			facts = append(facts, insights.Fact{Name: "Highest spend region", Value: g.HighestSpend})
		}
		if g.MostEfficient != "" {
			facts = append(facts, insights.Fact{Name: "Most efficient region by CPC", Value: g.MostEfficient})
		}
		return facts, nil

	default:
		return nil, fmt.Errorf("unknown view %q (use overview, channels, audiences, or geo)", view)
	}
}
