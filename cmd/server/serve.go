package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tontine/internal/api"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/config"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/service"
	"github.com/mmynk/tontine/internal/storage"
	"github.com/mmynk/tontine/internal/storage/gormdb"
	"github.com/mmynk/tontine/internal/storage/sqlite"
	"github.com/mmynk/tontine/internal/telemetry"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := commonRun(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("Failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.Database.Driver)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store, cfg.Defaults.Role)

	if cfg.Log.Level != "debug" && !globalFlags.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(api.Deps{
		Contributions: service.NewContributionService(store, logger, m, service.OptionsFromConfig(cfg)),
		Auth:          service.NewAuthService(authenticator, jwtManager, store, logger),
		JWT:           jwtManager,
		Logger:        logger,
		Metrics:       m,
		Gatherer:      reg,
		AuthRequired:  cfg.Auth.Required,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(server.Handler(), &http2.Server{}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// openStore opens the configured backend. Every backend migrates its schema on open.
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	opts := []gormdb.Option{
		gormdb.WithLogger(logger),
		gormdb.WithTracing(telemetry.Enabled(cfg.Telemetry)),
	}

	var (
		store storage.Store
		err   error
	)
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err = sqlite.New(cfg.Database.Path)
	case config.DriverGormSQLite:
		store, err = gormdb.OpenSQLite(cfg.Database.Path, opts...)
	case config.DriverPostgres:
		pg := cfg.Database.Postgres
		store, err = gormdb.OpenPostgres(gormdb.PostgresConfig{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			Database: pg.Name,
			SSLMode:  pg.SSLMode,
		}, opts...)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
