// CampaignLens CLI.
//
// Usage:
//   campaignlens ingest --config campaignlens.yaml
//   campaignlens serve --addr :8080
//   campaignlens report --view channels --format table
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/campaignlens/campaignlens/internal/config"
	"github.com/campaignlens/campaignlens/internal/ingest"
	"github.com/campaignlens/campaignlens/internal/insights"
	"github.com/campaignlens/campaignlens/internal/logging"
	"github.com/campaignlens/campaignlens/internal/metrics"
	"github.com/campaignlens/campaignlens/internal/server"
	"github.com/campaignlens/campaignlens/internal/source"
	"github.com/campaignlens/campaignlens/internal/storage"
)

// Exit codes. Validation failures get their own code so schedulers can
// tell "bad data, keep the previous dataset" from operational errors.
const (
	exitFatal      = 1
	exitValidation = 3
)

func main() {
	app := &cli.App{
		Name:    "campaignlens",
		Usage:   "SME marketing campaign analytics: ingest raw exports, serve aggregate views",
		Version: fmt.Sprintf("%s (%s)", ingest.Version, ingest.GitSHA),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"CAMPAIGNLENS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			ingestCommand(),
			serveCommand(),
			reportCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, ingest.ErrValidationFailed) {
			os.Exit(exitValidation)
		}
		os.Exit(exitFatal)
	}
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Run the ingestion pipeline: fetch, clean, derive, publish",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Usage:   "Raw export path or gs:// / s3:// URI (overrides config)",
				EnvVars: []string{"SOURCE_PATH"},
			},
			&cli.StringFlag{
				Name:    "output",
				Usage:   "Local output directory (overrides config, sets backend to local)",
				EnvVars: []string{"OUTPUT_DIR"},
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Republish even when the source checksum is unchanged",
			},
		},
		Action: runIngest,
	}
}

func runIngest(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("source"); v != "" {
		cfg.Source.Path = v
	}
	if v := c.String("output"); v != "" {
		cfg.Output.Backend = "local"
		cfg.Output.LocalDir = v
	}
	logging.Setup(cfg.Logging)

	m := metrics.Init("campaignlens")
	m.SetBuildInfo(ingest.Version, ingest.GitSHA)

	ctx, cancel := signalContext()
	defer cancel()

	src, err := source.New(cfg.Source.Path)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	defer src.Close()

	store, err := storage.NewStore(storageConfig(cfg))
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	ing := ingest.New(ctx, *cfg, src, store)
	defer ing.Close()

	result, err := ing.Run(ctx, ingest.RunOptions{Force: c.Bool("force")})
	if err != nil {
		return err
	}
	if result.Skipped {
		slog.Info("source unchanged, nothing to do", "run_id", result.RunID)
		return nil
	}
	slog.Info("dataset published",
		"run_id", result.RunID,
		"rows", result.RowCount,
		"filtered_rows", result.FilteredRows,
		"checksum", result.Checksum,
		"uri", result.StorageURI,
		"duration", result.Duration.Round(time.Millisecond).String(),
	)
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the published dataset over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address (overrides config)",
				EnvVars: []string{"SERVER_ADDR"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("addr"); v != "" {
		cfg.Server.Addr = v
	}
	logging.Setup(cfg.Logging)

	m := metrics.Init("campaignlens")
	m.SetBuildInfo(ingest.Version, ingest.GitSHA)

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.NewStore(storageConfig(cfg))
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	srv, err := server.New(ctx, *cfg, store, insights.New(cfg.Insights))
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("campaignlens %s (%s)\n", ingest.Version, ingest.GitSHA)
			return nil
		},
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()
	return ctx, cancel
}

func storageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Backend:    cfg.Output.Backend,
		LocalDir:   cfg.Output.LocalDir,
		GCSBucket:  cfg.Output.Bucket,
		S3Bucket:   cfg.Output.Bucket,
		S3Endpoint: cfg.Output.Endpoint,
		S3Region:   cfg.Output.Region,
		Prefix:     cfg.Output.Prefix,
	}
}
