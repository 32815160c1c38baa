// authstate-server serves the auth API and the guarded console pages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/directory"
	"github.com/MrEthical07/authstate/httpapi"
	"github.com/MrEthical07/authstate/internal/config"
	"github.com/MrEthical07/authstate/internal/logging"
	otelexport "github.com/MrEthical07/authstate/metrics/export/otel"
	promexport "github.com/MrEthical07/authstate/metrics/export/prometheus"
	"github.com/MrEthical07/authstate/middleware"
	"github.com/MrEthical07/authstate/session"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	debug := flag.Bool("debug", false, "Shorthand for logging.level=debug")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	logger := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := directory.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	dir := directory.New(db)
	logger.Info("database ready", "path", cfg.Database.Path)

	builder := authstate.New().
		WithConfig(cfg.EngineConfig()).
		WithDirectory(dir).
		WithLogger(logger)

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		builder = builder.WithRedis(rdb)
		logger.Info("redis ready", "addr", cfg.Redis.Addr)
	}
	if cfg.Auth.Audit {
		builder = builder.WithAuditSink(authstate.NewSlogSink(logger.With("component", "audit")))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		"production", report.ProductionMode,
		"signing", report.SigningAlgorithm,
		"default_ttl", report.DefaultTTL,
		"remember_ttl", report.RememberTTL,
		"secure_cookies", report.SecureCookies,
		"login_throttle", report.LoginThrottle,
		"audit", report.AuditEnabled,
	)
	for _, w := range cfg.EngineConfig().Lint() {
		logger.Warn("config warning", "code", w.Code, "message", w.Message)
	}

	if err := seedAdmin(ctx, cfg.Seed, dir, engine, logger); err != nil {
		return err
	}

	deps := httpapi.Deps{
		Backend:    engine,
		Logger:     logger,
		Table:      cfg.RouteTable(),
		Authorizer: cfg.Authorizer(),
		Stores:     middleware.CookieStores(engine.CookieConfig()),
	}
	if cfg.Redis.Sessions {
		rs := session.NewRedisStore(rdb, "as:pages", engine.CookieConfig().Retention)
		deps.Stores = middleware.RedisStores(rs, engine.CookieConfig())
	}
	if cfg.Metrics.Prometheus {
		deps.Metrics = promexport.New(engine).Handler()
	}
	if cfg.Metrics.OTel {
		exp, err := otelexport.New(otel.Meter("github.com/MrEthical07/authstate"), engine)
		if err != nil {
			return fmt.Errorf("otel exporter: %w", err)
		}
		defer exp.Close()
	}

	api, err := httpapi.New(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
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

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// seedAdmin creates the configured administrator when the directory is empty.
func seedAdmin(ctx context.Context, seed config.SeedConfig, dir *directory.SQLDirectory, engine *authstate.Engine, logger *slog.Logger) error {
	if seed.Username == "" {
		return nil
	}
	n, err := dir.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	hash, err := engine.HashPassword(seed.Password)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	roles := seed.Roles
	if len(roles) == 0 {
		roles = []string{"superadmin"}
	}
	u, err := dir.CreateUser(ctx, seed.Username, hash, "", session.NewRoleSet(roles...))
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("seeded administrator", "username", u.Username, "roles", u.Roles.String())
	return nil
}
