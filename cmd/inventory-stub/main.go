package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/treyturner/ninjaone-e2e/internal/config"
	"github.com/treyturner/ninjaone-e2e/internal/db"
	"github.com/treyturner/ninjaone-e2e/internal/handlers"
	"github.com/treyturner/ninjaone-e2e/internal/metrics"
	"github.com/treyturner/ninjaone-e2e/internal/middleware"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

type stubConfig struct {
	token   string
	dbPath  string
	apiPort string
	uiPort  string
}

// loadConfig reads service configuration from environment variables and
// applies defaults. API_TOKEN is optional; without it the API is open.
func loadConfig() (stubConfig, error) {
	cfg := stubConfig{
		token:   os.Getenv("API_TOKEN"),
		dbPath:  envOr("DB_PATH", "./inventory.db"),
		apiPort: envOr("API_PORT", "3000"),
		uiPort:  envOr("UI_PORT", "3001"),
	}
	for name, port := range map[string]string{"API_PORT": cfg.apiPort, "UI_PORT": cfg.uiPort} {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return stubConfig{}, fmt.Errorf("%s must be a port number, got %q", name, port)
		}
	}
	if cfg.apiPort == cfg.uiPort {
		return stubConfig{}, fmt.Errorf("API_PORT and UI_PORT must differ, both are %s", cfg.apiPort)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newHandlers builds the API and UI handlers over database. The API also
// serves Prometheus metrics from reg.
func newHandlers(cfg stubConfig, database *db.DB, logger *slog.Logger, reg *prometheus.Registry) (api, ui http.Handler) {
	h := &handlers.Handler{DB: database, Version: version, Commit: commit}
	m := metrics.Register(reg, database)

	apiMux := h.APIRoutes(cfg.token, m)
	apiMux.Handle("GET /metrics", metrics.Handler(reg))

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	api = middleware.RequestLogger(logger.With("server", "api"), skip, apiMux)
	ui = middleware.RequestLogger(logger.With("server", "ui"), skip, h.UIRoutes(m))
	return api, ui
}

func newServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	database, err := db.New(cfg.dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	apiHandler, uiHandler := newHandlers(cfg, database, logger, prometheus.NewRegistry())
	servers := []*http.Server{
		newServer(cfg.apiPort, apiHandler),
		newServer(cfg.uiPort, uiHandler),
	}
	if cfg.token == "" {
		logger.Warn("API_TOKEN is not set; the device API accepts unauthenticated requests")
	}

	for _, srv := range servers {
		go func() {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("server error on %s: %v", srv.Addr, err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "addr", srv.Addr, "error", err)
		}
	}
	if err := database.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
	logger.Info("servers stopped")
}
