// Command marketauth serves signup, login and token-checked profile
// endpoints for the student marketplace.
//
// Settings come from the environment or a .env file; see internal/config.
//
//	JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/marketauth
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/internal/config"
	"github.com/MrEthical07/marketAuth/internal/httpapi"
	"github.com/MrEthical07/marketAuth/internal/logger"
	"github.com/MrEthical07/marketAuth/metrics/export/prometheus"
	"github.com/MrEthical07/marketAuth/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("marketauth stopped", zap.Error(err))
	}
}

func run(cfg *config.Service, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sqlstore.Open(openCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(openCtx); err != nil {
		return err
	}
	log.Info("database ready", zap.String("driver", string(db.Dialect())))

	builder := marketAuth.New().
		WithConfig(cfg.Engine()).
		WithLogger(log).
		WithUserProvider(sqlstore.NewUserStore(db)).
		WithAuditSink(marketAuth.NewZapSink(log))

	// Redis, when configured, backs signup throttling. Login attempts stay in
	// the database so lockouts survive a Redis flush.
	if cfg.RedisAddr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		defer rdb.Close()
		if err := rdb.Ping(openCtx).Err(); err != nil {
			return err
		}
		builder.WithRedis(rdb)
		log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	}
	builder.WithAttemptStore(sqlstore.NewAttemptStore(db))

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	policy := engine.ThrottlePolicy()
	log.Info("login throttle",
		zap.Int("threshold", policy.Threshold),
		zap.Duration("lockout", policy.LockoutDuration),
		zap.Bool("fail_open", cfg.FailOpen),
	)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Auth:        engine,
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
		Health:      db.Ping,
		Metrics:     prometheus.New(engine).Handler(),
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
