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
	"time"

	charmlog "charm.land/log/v2"
	"github.com/alexedwards/scs/pgxstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tradepost/tradepost/config"
	tradepostminio "github.com/tradepost/tradepost/minio"
	"github.com/tradepost/tradepost/postgres"
	"github.com/tradepost/tradepost/postgres/migrator"
	"github.com/tradepost/tradepost/service"
	"github.com/tradepost/tradepost/web"
)

const messageBucket = "message-images"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	errLogger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	}))
	infoLogger := slog.New(charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		ReportTimestamp: true,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open postgres connection pool: %w", err)
	}

	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	migrationStart := time.Now()
	infoLogger.Info("starting postgres migrations")

	if err := migrator.Migrate(ctx, dbPool, postgres.MigrationsFS); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}

	infoLogger.Info("finished postgres migrations", "took", time.Since(migrationStart))

	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return fmt.Errorf("create minio client: %w", err)
	}

	minioStore := tradepostminio.New(ctx, minioClient, cfg.CleanupTimeout)
	go func() {
		for err := range minioStore.Errs() {
			errLogger.Error("minio error", "error", err)
		}
	}()

	if err := minioStore.CreateReadOnlyBucket(ctx, messageBucket); err != nil {
		return fmt.Errorf("create minio bucket: %w", err)
	}

	svc := service.New(&service.Config{
		Postgres: postgres.New(dbPool),
		Minio:    minioStore,

		BaseCtx:           ctx,
		BackgroundTimeout: cfg.BackgroundTimeout,
		PairLockWait:      cfg.PairLockWait,
		ConfirmWindow:     cfg.ConfirmWindow,
		SweepInterval:     cfg.SweepInterval,
		MessageBucket:     messageBucket,
	})

	go func() {
		for err := range svc.Errs() {
			errLogger.Error("service error", "error", err)
		}
	}()

	if cfg.SweepInterval > 0 {
		go svc.SweepExpiredConfirmations(ctx)
	}

	handler := &web.Handler{
		Service:      svc,
		ErrorLogger:  errLogger,
		SessionStore: pgxstore.New(dbPool),
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			errLogger.Error("server shutdown", "error", err)
		}
	}()

	infoLogger.Info("starting tradepost server", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start tradepost server: %w", err)
	}

	return svc.Close()
}
