package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/campaignlens/campaignlens/internal/config"
	"github.com/campaignlens/campaignlens/internal/logging"
	"github.com/campaignlens/campaignlens/internal/query"
	"github.com/campaignlens/campaignlens/internal/storage"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print aggregate views from the published dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "view",
				Value: "overview",
				Usage: "View to report (overview, channels, audiences, geo)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, csv)",
			},
			&cli.StringSliceFlag{
				Name:  "industry",
				Usage: "Only include campaigns in this industry (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "size",
				Usage: "Only include campaigns in this company size bucket (repeatable)",
			},
		},
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging)

	store, err := storage.NewStore(storageConfig(cfg))
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	ref := storage.DatasetRef{Name: cfg.Output.Dataset, Version: cfg.Output.Version}
	d, err := query.Load(c.Context, store, ref)
	if err != nil {
		return fmt.Errorf("load published dataset (run ingest first): %w", err)
	}

	rows := d.Filter(query.Filter{
		Industries: c.StringSlice("industry"),
		Sizes:      c.StringSlice("size"),
	})

	format := c.String("format")
	switch format {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q (use table, json, or csv)", format)
	}

	switch view := c.String("view"); view {
	case "overview":
		return renderOverview(query.Overview(rows), format)
	case "channels":
		return renderChannels(query.Channels(rows), format)
	case "audiences":
		return renderAudiences(query.Audiences(rows), format)
	case "geo":
		return renderGeo(query.Geo(rows), format)
	default:
		return fmt.Errorf("unknown view %q (use overview, channels, audiences, or geo)", view)
	}
}

func renderOverview(o query.OverviewStats, format string) error {
	switch format {
	case "json":
		return printJSON(o)
	case "csv":
		records := [][]string{
			{"metric", "value"},
			{"total_spend", fixed2(o.TotalSpend)},
			{"total_reach", strconv.FormatInt(o.TotalReach, 10)},
			{"total_conversions", strconv.FormatInt(o.TotalConversions, 10)},
			{"avg_cost_per_conversion", fixed2(o.AvgCostPerConversion)},
			{"funnel_engagements", fixed2(o.Funnel.Engagements)},
		}
		for _, cs := range o.SpendByChannel {
			records = append(records, []string{"spend:" + cs.Channel, fixed2(cs.Spend)})
		}
		return writeCSV(records)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Metric", "Value"})
		table.Append([]string{"Total ad spend", fixed2(o.TotalSpend)})
		table.Append([]string{"Total audience reach", strconv.FormatInt(o.TotalReach, 10)})
		table.Append([]string{"Total conversions", strconv.FormatInt(o.TotalConversions, 10)})
		table.Append([]string{"Avg cost per conversion", fixed2(o.AvgCostPerConversion)})
		table.Append([]string{"Funnel engagements", fixed2(o.Funnel.Engagements)})
		for _, cs := range o.SpendByChannel {
			table.Append([]string{"Spend: " + cs.Channel, fixed2(cs.Spend)})
		}
		table.Render()
		return nil
	}
}

func renderChannels(s query.ChannelStats, format string) error {
	switch format {
	case "json":
		return printJSON(s)
	case "csv":
		records := [][]string{{"channel", "total_spend", "avg_cvr", "avg_cpc"}}
		for _, row := range s.Channels {
			records = append(records, []string{row.Channel, fixed2(row.TotalSpend), fixed2(row.AvgCVR), fixed2(row.AvgCPC)})
		}
		return writeCSV(records)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Channel", "Spend", "Avg CVR %", "Avg CPC"})
		for _, row := range s.Channels {
			table.Append([]string{row.Channel, fixed2(row.TotalSpend), fixed2(row.AvgCVR), fixed2(row.AvgCPC)})
		}
		table.Render()
		if s.MostEfficient != "" {
			fmt.Printf("Most efficient channel (lowest avg CPC): %s\n", s.MostEfficient)
		}
		if s.HighestCVR != "" {
			fmt.Printf("Highest converting channel (avg CVR): %s\n", s.HighestCVR)
		}
		return nil
	}
}

func renderAudiences(s query.AudienceStats, format string) error {
	switch format {
	case "json":
		return printJSON(s)
	case "csv":
		records := [][]string{{"audience", "device", "conversions"}}
		for _, p := range s.ByPair {
			records = append(records, []string{p.Audience, p.Device, strconv.FormatInt(p.Conversions, 10)})
		}
		return writeCSV(records)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Audience", "Device", "Conversions"})
		for _, p := range s.ByPair {
			table.Append([]string{p.Audience, p.Device, strconv.FormatInt(p.Conversions, 10)})
		}
		table.Render()
		if s.TopAudience != "" {
			fmt.Printf("Top audience (conversions): %s\n", s.TopAudience)
		}
		if s.TopDevice != "" {
			fmt.Printf("Top device (conversions): %s\n", s.TopDevice)
		}
		return nil
	}
}

func renderGeo(s query.GeoStats, format string) error {
	switch format {
	case "json":
		return printJSON(s)
	case "csv":
		records := [][]string{{"region", "total_spend", "avg_cpc"}}
		for _, row := range s.Regions {
			records = append(records, []string{row.Region, fixed2(row.TotalSpend), fixed2(row.AvgCPC)})
		}
		return writeCSV(records)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Region", "Spend", "Avg CPC"})
		for _, row := range s.Regions {
			table.Append([]string{row.Region, fixed2(row.TotalSpend), fixed2(row.AvgCPC)})
		}
		table.Render()
		if s.HighestSpend != "" {
			fmt.Printf("Highest spend region: %s\n", s.HighestSpend)
		}
		if s.MostEfficient != "" {
			fmt.Printf("Most efficient region (lowest avg CPC): %s\n", s.MostEfficient)
		}
		return nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(records [][]string) error {
	w := csv.NewWriter(os.Stdout)
	return w.WriteAll(records)
}

// fixed2 renders a two-decimal aggregate for display.
func fixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
