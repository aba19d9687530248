package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgersync/internal/auth"
	"ledgersync/internal/autosync"
	"ledgersync/internal/config"
	"ledgersync/internal/database"
	"ledgersync/internal/logger"
	"ledgersync/internal/models"
	"ledgersync/internal/rates"
	"ledgersync/internal/server"
	"ledgersync/internal/services"
	"ledgersync/internal/sheets"
	"ledgersync/internal/storage"
	"ledgersync/internal/validator"
)

// @title           Ledgersync API
// @version         1.0
// @description     Ledgersync keeps a personal finance ledger locally and replicates it to a Google spreadsheet.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbConfig := database.NewConfig(appConfig)
	if err := dbConfig.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()
	localStore := storage.NewLocalStore(db)
	settings := storage.NewSettingsStore(db)
	syncConfigs := storage.NewAutoSyncConfigStore(settings)
	history := services.NewSyncHistoryService(storage.NewSyncLogStore(db), services.DefaultHistoryLimit)

	// Remote credential
	provider, err := auth.NewProvider(settings, appConfig.CredentialsSecret, auth.Options{
		PollInterval: appConfig.CredentialsPollInterval,
		TokenFile:    appConfig.CredentialsTokenFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create credential provider: %w", err)
	}
	if err := provider.Restore(ctx); err != nil {
		log.Warnw("Failed to restore credential", "error", err)
	}
	provider.OnExpire(func() {
		log.Infow("Remote credential expired; auto-sync will skip until a new token is set")
	})
	go func() {
		if err := provider.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("Credential watcher stopped", "error", err)
		}
	}()

	// Exchange rates
	rateCache := rates.NewCache(rates.NewFetcher(nil, appConfig.RatesTimeout), rates.CacheOptions{
		TTL:        appConfig.RatesCacheTTL,
		MinRefresh: appConfig.RatesMinRefresh,
	})

	// Remote store and auto-sync
	connector, err := sheets.NewConnector(appConfig.RemoteBackend, appConfig.SheetsEndpoint, appConfig.RemoteWorkbookPath)
	if err != nil {
		return fmt.Errorf("failed to create remote connector: %w", err)
	}
	orchestrator := autosync.New(services.NewRemotePusher(connector, appConfig.RemoteTimeout), syncConfigs, provider, autosync.Options{
		Debounce:    appConfig.SyncDebounce,
		MinInterval: appConfig.SyncMinInterval,
		Cooldown:    appConfig.SyncCooldown,
		PushTimeout: appConfig.RemoteTimeout,
		OnResult: func(r autosync.Result) {
			history.Record(models.SyncOperationPush, r.Outcome, "", r.Err, 0, r.Duration)
		},
	})
	defer orchestrator.Close()
	if err := orchestrator.Restore(ctx); err != nil {
		log.Warnw("Failed to restore auto-sync state", "error", err)
	}

	// Services
	ledger := services.NewLedgerService(localStore, services.LedgerOptions{
		Notifier:    orchestrator,
		Credentials: provider,
		Rates:       rateCache,
	})
	if err := ledger.LoadFromLocal(ctx); err != nil {
		return fmt.Errorf("failed to load local ledger: %w", err)
	}
	syncService := services.NewSyncService(ledger, services.SyncOptions{
		Connector:     connector,
		Configs:       syncConfigs,
		Credentials:   provider,
		Orchestrator:  orchestrator,
		History:       history,
		RemoteTimeout: appConfig.RemoteTimeout,
		ExportDir:     appConfig.ExportDir,
	})

	validator.Register()
	router := server.NewRouter(server.Dependencies{
		Ledger:      ledger,
		Sync:        syncService,
		Credentials: provider,
		Rates:       rateCache,
		JWTSecret:   appConfig.JWTSecret,
		TokenTTL:    appConfig.JWTExpirationDur,
		APIKey:      appConfig.CredentialsAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Ledgersync server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
