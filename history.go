package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"reviews-refresh/services"
	"reviews-refresh/storage"
	"reviews-refresh/utils"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <slug>",
		Short: "Show recorded rating snapshots for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cfg.SnapshotDriver == "" {
				return errors.New("history needs SNAPSHOT_DRIVER and SNAPSHOT_DSN to be set")
			}

			logger := utils.NewLoggerWithLevel(cfg.LogLevel)
			retry := &utils.RetryConfig{MaxAttempts: 1, Logger: logger}
			snapshots, err := storage.NewSnapshotWriter(cmd.Context(), cfg.SnapshotDriver, cfg.SnapshotDSN, retry)
			if err != nil {
				return err
			}
			defer snapshots.Close()

			rows, err := snapshots.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			services.NewReportPrinter(os.Stdout).PrintHistory(args[0], rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of snapshots to show")
	return cmd
}
