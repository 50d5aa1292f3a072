package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"arp/api/internal/ai"
	"arp/api/internal/app"
	"arp/api/internal/assets"
	"arp/api/internal/cache"
	"arp/api/internal/collab"
	"arp/api/internal/config"
	"arp/api/internal/history"
	"arp/api/internal/reminder"
	"arp/api/internal/search"
	"arp/api/internal/store"
)

func serveCmd(cfg config.Config, logger zerolog.Logger) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg, logger, !skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger, migrate bool) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	dataStore := store.NewPostgresStore(db)
	deps := app.Deps{
		Store:   dataStore,
		History: history.New(cfg.HistoryDir),
		Logger:  logger,
	}

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisCache.Close()
		deps.Cache = redisCache
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("section cache enabled")
	}

	var meiliClient *search.Meili
	if cfg.MeiliURL != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), logger)
	deps.Search = searchService
	go searchService.ReindexAllFromPG(ctx)

	if cfg.MinioEndpoint != "" {
		objects, err := assets.NewMinioStore(ctx, assets.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		deps.Assets = assets.NewService(objects, cfg.AssetURLExpiry, logger)
	}

	if cfg.AIEndpoint != "" || cfg.AnthropicAPIKey != "" || cfg.GeminiAPIKey != "" {
		gen, err := ai.New(ctx, ai.Options{
			Provider:     cfg.AIProvider,
			Endpoint:     cfg.AIEndpoint,
			AnthropicKey: cfg.AnthropicAPIKey,
			GeminiKey:    cfg.GeminiAPIKey,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("assistant disabled")
		} else {
			deps.Generator = gen
		}
	}

	if cfg.CollabBaseURL != "" {
		client := collab.NewHTTPClient(cfg.CollabBaseURL, cfg.CollabToken)
		deps.Tasks = client
		deps.Users = client
		deps.Notifications = client
	}

	service := app.New(cfg, deps)
	startReminders(ctx, cfg, dataStore, logger)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("ARP API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	service.CloseSessions(shutdownCtx)
	logger.Info().Msg("ARP API stopped")
	return nil
}

// startReminders runs the reminder job on ReminderPeriod while ctx is live.
func startReminders(ctx context.Context, cfg config.Config, dataStore *store.PostgresStore, logger zerolog.Logger) {
	if cfg.ReminderPeriod <= 0 {
		return
	}
	mailer := newMailer(cfg)
	if !mailer.IsConfigured() {
		logger.Warn().Msg("reminder interval set but SMTP is not configured")
		return
	}
	runner := reminder.NewRunner(dataStore, mailer, cfg.ReminderTo, logger)
	go func() {
		ticker := time.NewTicker(cfg.ReminderPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := runner.Run(ctx); err != nil {
					logger.Error().Err(err).Msg("reminder run failed")
				}
			}
		}
	}()
}

func newMailer(cfg config.Config) *reminder.Mailer {
	return reminder.NewMailer(reminder.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
}
