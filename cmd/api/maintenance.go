package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"arp/api/internal/config"
	"arp/api/internal/reminder"
	"arp/api/internal/section"
	"arp/api/internal/store"
)

func migrateCmd(cfg config.Config, logger zerolog.Logger) *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations, or roll back with --down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if down > 0 {
				if err := store.RollbackMigrations(ctx, db, cfg.MigrationsDir, down); err != nil {
					return err
				}
				logger.Info().Int("steps", down).Msg("migrations rolled back")
				return nil
			}
			if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
				return err
			}
			logger.Info().Str("dir", cfg.MigrationsDir).Msg("migrations applied")
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}

// normalizeCmd prints a persisted section list the way the API would load it.
func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Normalize a stored section list and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			return out.Encode(section.NormalizeListJSON(data))
		},
	}
}

func remindersCmd(cfg config.Config, logger zerolog.Logger) *cobra.Command {
	var loop bool
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Send due section reminders by email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			mailer := newMailer(cfg)
			if !mailer.IsConfigured() {
				return reminder.ErrMailNotConfigured
			}
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			runner := reminder.NewRunner(store.NewPostgresStore(db), mailer, cfg.ReminderTo, logger)
			report, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			if !loop {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
			}

			period := cfg.ReminderPeriod
			if period <= 0 {
				period = time.Hour
			}
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, err := runner.Run(ctx); err != nil {
						logger.Error().Err(err).Msg("reminder run failed")
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "keep running on ARP_REMINDER_INTERVAL_SECONDS")
	return cmd
}
