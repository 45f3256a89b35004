package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericchu94/foos/internal/api"
	"github.com/ericchu94/foos/internal/board"
	"github.com/ericchu94/foos/internal/config"
	"github.com/ericchu94/foos/internal/engine"
	"github.com/ericchu94/foos/internal/feed"
	"github.com/ericchu94/foos/internal/graphql"
	"github.com/ericchu94/foos/internal/httpapi"
	"github.com/ericchu94/foos/internal/journal"
	"github.com/ericchu94/foos/internal/logging"
	"github.com/ericchu94/foos/internal/service"
	"github.com/ericchu94/foos/internal/streams"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gql := graphql.NewClient(cfg.GraphQLHTTPURL, cfg.GraphQLWSURL,
		graphql.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		graphql.WithReconnectDelay(cfg.ReconnectDelay),
		graphql.WithLogger(log))
	client := api.New(gql)

	var jrnl *journal.Journal
	var history httpapi.History
	observers := []board.Observer{}
	if cfg.JournalDSN != "" {
		store, openErr := journal.OpenPostgres(cfg.JournalDSN)
		if openErr != nil {
			return openErr
		}
		jrnl = journal.New(store, log)
		history = jrnl
		observers = append(observers, jrnl.Record)
		defer func() { err = multierr.Append(err, jrnl.Close()) }()
	}

	// The feed needs the board and the board reports to the feed.
	var fd *feed.Feed
	observers = append(observers, func(events []engine.Event) { fd.Observe(events) })
	b := board.NewBoard(ctx, log, observers...)
	registry := streams.NewRegistry(ctx, log)
	fd = feed.New(client, b, registry, log)
	svc := service.New(client, b, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.SetupRoutes(b, svc, history, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gql.Run(gctx) })
	if jrnl != nil {
		g.Go(func() error { return jrnl.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Streams first: whatever they push before the read lands is merged with it.
	fd.Start()
	if err := svc.Load(gctx); err != nil {
		log.Error("bulk read failed", zap.Error(err))
	}

	// Cancelling ctx also tears down the board, the registry and every stream.
	err = g.Wait()
	log.Info("shut down")
	return err
}
