package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cbtscan/internal/app"
	"cbtscan/internal/autosave"
	"cbtscan/internal/db"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("storage error", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	if dbConn != nil {
		defer dbConn.Close()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.NewRouter(cfg, app.Deps{Logger: logger, DB: dbConn, Store: store}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("cbtscan web listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.DBDriver))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}

// openStore picks the autosave backend from DB_DRIVER. The returned DB is
// nil for the memory store.
func openStore(ctx context.Context, cfg app.Config) (*sql.DB, autosave.Store, error) {
	switch cfg.DBDriver {
	case "", "memory":
		return nil, autosave.NewMemoryStore(), nil
	case string(db.DriverPostgres), string(db.DriverSQLite):
		conn, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN, db.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime(),
		})
		if err != nil {
			return nil, nil, err
		}
		store, err := autosave.NewSQLStore(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return conn, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}
