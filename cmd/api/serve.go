package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/building-insights/internal/advisory"
	"github.com/denisok6893-rgb/building-insights/internal/config"
	"github.com/denisok6893-rgb/building-insights/internal/dashboard"
	"github.com/denisok6893-rgb/building-insights/internal/filtering"
	httpapi "github.com/denisok6893-rgb/building-insights/internal/http"
	"github.com/denisok6893-rgb/building-insights/internal/observability"
	"github.com/denisok6893-rgb/building-insights/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the dataset and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func loadEngine(path string, log *zap.Logger) (*filtering.Engine, error) {
	views, err := filtering.LoadViewsFromFile(path)
	if err != nil {
		log.Warn("use default views", zap.String("path", path), zap.Error(err))
	}
	return filtering.NewEngine(views)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := loadEngine(cfg.ViewsPath, logger)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	adv := advisory.NewClient(
		cfg.Advisory.BaseURL,
		&http.Client{Timeout: config.Duration(cfg.Advisory.Timeout, 15*time.Second)},
		logger.Named("advisory"),
		metrics,
	)

	var snaps httpapi.SnapshotStore
	store, err := storage.OpenSQLite(cfg.Snapshots.DatabasePath)
	if err == nil {
		err = store.EnsureSchema()
	}
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		logger.Error("snapshot store unavailable", zap.String("path", cfg.Snapshots.DatabasePath), zap.Error(err))
	} else {
		defer store.Close()
		snaps = store
	}

	ctrl := dashboard.NewController(dashboard.Options{
		Engine: engine,
		Load: dashboard.SourceLoader(
			&http.Client{},
			cfg.Dataset.Source,
			cfg.Dataset.Delimiter,
			config.Duration(cfg.Dataset.FetchTimeout, 30*time.Second),
		),
		Advisor: adv,
		Logger:  logger.Named("dashboard"),
		Metrics: metrics,
	})

	// a failed warmup still serves; health reports the state
	if err := ctrl.Warmup(ctx); err != nil {
		logger.Warn("warmup incomplete", zap.Error(err))
	}

	srv := httpapi.NewServer(ctrl, adv, snaps, metrics, logger.Named("http"))
	if cfg.Snapshots.DefaultKey != "" {
		srv.DefaultSnapshotKey = cfg.Snapshots.DefaultKey
	}

	var h http.Handler = srv.Routes()
	h = handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
	)(h)
	h = handlers.LoggingHandler(os.Stdout, h)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", zap.String("address", cfg.Server.Address))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
