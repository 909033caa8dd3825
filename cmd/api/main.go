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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fastprodman/providerwallet/internal/api"
	"github.com/fastprodman/providerwallet/internal/codec"
	"github.com/fastprodman/providerwallet/internal/infra/logging"
	"github.com/fastprodman/providerwallet/internal/infra/metrics"
	"github.com/fastprodman/providerwallet/internal/infra/pgutils"
	pgusers "github.com/fastprodman/providerwallet/internal/repos/users/postgres"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/provider"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
	"github.com/fastprodman/providerwallet/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg, err := readConfig()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	syncLogs := logging.Setup(cfg.App.LogLevel, cfg.App.LogJSON)

	// LIFO: registered first so logs are flushed last
	shutdown := shutdownqueue.New()
	shutdown.Add("flush logs", func(context.Context) error {
		// syncing a terminal stderr fails on some platforms
		_ = syncLogs()
		return nil
	})

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		serr := shutdown.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdown.Add("close db", func(context.Context) error {
		return db.Close()
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cc, err := codec.New(cfg.Provider.AESKey)
	if err != nil {
		return fmt.Errorf("init codec: %w", err)
	}

	// --- Services ---
	adapter := provider.New(cfg.Provider, provider.Deps{
		Codec:    cc,
		Ledger:   ledger.New(db, cfg.Ledger, m),
		Sessions: sessionstore.New(db, cfg.Sessions),
		Users:    pgusers.New(db),
		Metrics:  m,
	})

	// --- HTTP server ---
	router := api.NewRouter(api.RouterDeps{
		Games:           adapter,
		Auth:            api.NewAuthenticator(cfg.Auth.JWTSecret),
		Gatherer:        reg,
		LaunchPerSecond: cfg.RateLimit.LaunchPerSecond,
		LaunchBurst:     cfg.RateLimit.LaunchBurst,
	})

	srv := api.NewServer(cfg.App.Port, router, cfg.Provider.LaunchTimeout)

	shutdown.Add("http server", func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.App.Port, "provider", cfg.Provider.BaseURL)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
