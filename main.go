package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reviews-refresh/config"
	"reviews-refresh/models"
	"reviews-refresh/scraper/places"
	"reviews-refresh/services"
	"reviews-refresh/storage"
	"reviews-refresh/utils"
)

// options are command-line overrides applied on top of the loaded Config.
type options struct {
	envFile   string
	clients   string
	dataDir   string
	delay     time.Duration
	reportCSV string
	quiet     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "reviews-refresh",
		Short: "Refresh cached Google place reviews and schema.org markup for every client",
		Long: `Loads the client list, and for every client whose data/<slug>.json is older
than the cache window fetches place details, keeps the top five reviews and
writes the result together with LocalBusiness markup.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runRefresh(cmd.Context(), cfg, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load instead of ./.env")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory holding <slug>.json results (default DATA_DIR or ./data)")
	root.Flags().StringVar(&opts.clients, "clients", "", "client list, .json or .yaml (default CLIENTS_PATH or ./clients.json)")
	root.Flags().DurationVar(&opts.delay, "delay", 0, "start stagger between clients (default RATE_LIMIT_MS)")
	root.Flags().StringVar(&opts.reportCSV, "report-csv", "", "also write the run report to this CSV file")
	root.Flags().BoolVar(&opts.quiet, "quiet", false, "do not print the summary table")

	root.AddCommand(newHistoryCmd(opts))
	return root
}

func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	var envFiles []string
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	if opts.clients != "" {
		cfg.ClientsPath = opts.clients
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if f := cmd.Flags().Lookup("delay"); f != nil && f.Changed {
		cfg.RateLimitMs = int(opts.delay / time.Millisecond)
	}
	if opts.reportCSV != "" {
		cfg.ReportCSVPath = opts.reportCSV
	}
	return cfg, nil
}

func runRefresh(ctx context.Context, cfg *config.Config, opts *options) error {
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("=== Review refresh starting ===")
	logger.Info("Config: clients: %s | data: %s | cache: %v | stagger: %dms",
		cfg.ClientsPath, cfg.DataDir, cfg.CacheDuration, cfg.RateLimitMs)

	clients, err := config.LoadClients(cfg.ClientsPath)
	if err != nil {
		return fmt.Errorf("load clients: %w", err)
	}
	logger.Info("Loaded %d clients", len(clients))

	store := storage.NewJSONStore(cfg.DataDir)
	refresher := services.NewRefresher(cfg, places.New(cfg, logger), store, logger)

	if cfg.SnapshotDriver != "" {
		retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
		snapshots, err := storage.NewSnapshotWriter(ctx, cfg.SnapshotDriver, cfg.SnapshotDSN, retry)
		if err != nil {
			logger.Warn("Snapshot store unavailable, continuing without history: %v", err)
		} else {
			defer snapshots.Close()
			refresher.WithSnapshots(snapshots)
		}
	}

	report, err := refresher.Run(ctx, clients)
	if err != nil {
		return err
	}

	if cfg.ReportCSVPath != "" {
		if err := writeCSVReport(cfg.ReportCSVPath, report); err != nil {
			logger.Warn("CSV report not written: %v", err)
		} else {
			logger.Info("Run report saved to %s", cfg.ReportCSVPath)
		}
	}

	if !opts.quiet {
		services.NewReportPrinter(os.Stdout).Print(report)
	}
	return nil
}

func writeCSVReport(path string, report *models.RunReport) error {
	w, err := storage.NewCSVReportWriter(path)
	if err != nil {
		return err
	}
	return saveReport(w, report)
}

// saveReport writes report and always closes w.
func saveReport(w storage.ReportWriter, report *models.RunReport) error {
	return errors.Join(w.WriteReport(report), w.Close())
}
