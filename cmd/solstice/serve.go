package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"solstice/internal/config"
	"solstice/internal/events"
	"solstice/internal/httpapi"
	"solstice/internal/observability/jsonlog"
	"solstice/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFlags(cmd.Flags(), os.Getenv)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	// Root context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return serve(ctx, cfg, ln, logger)
}

// serve runs the API on ln until ctx is done. It owns ln and every
// resource it opens.
func serve(ctx context.Context, cfg config.Config, ln net.Listener, logger *jsonlog.Logger) error {
	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer pub.Close()

	dispatcher := events.NewDispatcher(pub, events.DispatcherConfig{
		SubjectPrefix: cfg.Events.SubjectPrefix,
		BufferSize:    cfg.Events.BufferSize,
	}, logger)

	metrics := httpapi.NewMetrics()
	if err := metrics.RegisterEventStats(dispatcher); err != nil {
		_ = ln.Close()
		return fmt.Errorf("register event metrics: %w", err)
	}

	svc := task.NewService(repo, dispatcher)
	handler := httpapi.NewServer(svc, repo, logger, httpapi.Options{
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        metrics,
	})

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// The dispatcher outlives the HTTP server so events from in-flight
	// requests still get published.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		logger.Info("listening", map[string]any{"addr": ln.Addr().String()})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		stopDispatch()
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logEventLosses(logger, dispatcher)
	logger.Info("bye", nil)
	return err
}

func newPublisher(cfg config.Config, logger *jsonlog.Logger) (events.Publisher, error) {
	if cfg.Events.NATSURL == "" {
		return events.NoopPublisher{}, nil
	}
	natsCfg := events.DefaultNATSConfig()
	natsCfg.URL = cfg.Events.NATSURL
	pub, err := events.NewNATSPublisher(natsCfg)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing task events", map[string]any{"nats_url": cfg.Events.NATSURL, "prefix": cfg.Events.SubjectPrefix})
	return pub, nil
}

type eventStats interface {
	Dropped() int64
	Failed() int64
}

// logEventLosses reports events that never reached the broker.
func logEventLosses(logger *jsonlog.Logger, stats eventStats) {
	dropped, failed := stats.Dropped(), stats.Failed()
	if dropped == 0 && failed == 0 {
		return
	}
	logger.Warn("events lost", map[string]any{"dropped": dropped, "failed": failed})
}
