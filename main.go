// Command retail-pos runs the point-of-sale HTTP service: catalog, stock,
// register sessions with checkout, reports and user auth.
package main

import (
	"context"
	_ "embed"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retail-pos/auth"
	"retail-pos/checkout"
	"retail-pos/config"
	"retail-pos/handler"
	"retail-pos/obs"
	"retail-pos/service"
	"retail-pos/session"
	"retail-pos/store"

	"github.com/gorilla/mux"
)

//go:embed migrations.sql
var migrationSQL string

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting",
		"addr", cfg.HTTPAddr,
		"oversell_policy", cfg.OversellPolicy,
		"tax_rate", cfg.TaxRate.String(),
	)

	shutdownTracing, err := obs.InitTracing(cfg.OTelStdout)
	if err != nil {
		obs.Logger.Error("tracing_init_failed", "error", err)
		os.Exit(1)
	}

	// --- Store ---
	st, err := store.NewPostgresStore(cfg.DatabaseURL, cfg.LowStockThreshold, cfg.OversellPolicy)
	if err != nil {
		obs.Logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.RunMigrations {
		if _, err := st.DB.Exec(migrationSQL); err != nil {
			obs.Logger.Error("db_migrate_failed", "error", err)
			os.Exit(1)
		}
		obs.Logger.Info("db_migrated")
	}

	// --- Sessions ---
	var sessions session.Store
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		cancel()
		if err != nil {
			obs.Logger.Error("redis_connect_failed", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		sessions = rs
	} else {
		obs.Logger.Warn("sessions_in_memory", "reason", "REDIS_URL not set")
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	// --- Service ---
	retry := checkout.DefaultRetryConfig()
	retry.MaxAttempts = cfg.CheckoutMaxAttempts
	svc := service.NewService(st, sessions, auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL), service.Options{
		TaxRate:       cfg.TaxRate,
		CommitterOpts: []checkout.Option{checkout.WithRetry(retry, store.IsTransient)},
	})
	if err := svc.Warm(context.Background()); err != nil {
		obs.Logger.Warn("catalog_warm_failed", "error", err)
	}
	var serviceInterface service.ServiceInterface = svc

	// --- Handlers ---
	h := handler.NewHandler(serviceInterface)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	// --- Server ---
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Wrap(r),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		obs.Logger.Error("tracing_shutdown_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}
