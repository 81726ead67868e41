package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"newsroom/app/internal/cms"
	"newsroom/app/internal/config"
	appdb "newsroom/app/internal/db"
	apphttp "newsroom/app/internal/http"
	applog "newsroom/app/internal/log"
	"newsroom/app/internal/uploads"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{Path: cfg.DBPath})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := cms.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running migrations")
	}

	store, err := uploads.NewStore(cfg.UploadsDir, logger)
	if err != nil {
		return eris.Wrap(err, "initialising upload store")
	}

	articles, err := cms.NewArticleRepository(dbConn, store, logger)
	if err != nil {
		return eris.Wrap(err, "building article repository")
	}

	categories, err := cms.NewCategoryRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building category repository")
	}

	members, err := cms.NewMemberRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building member repository")
	}

	transport, err := apphttp.NewServer(apphttp.Options{
		Articles:       articles,
		Categories:     categories,
		Members:        members,
		Database:       dbConn,
		Logger:         logger,
		SentryHub:      sentryHub,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: transport.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr": httpServer.Addr,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("http server shut down cleanly")
	return nil
}
