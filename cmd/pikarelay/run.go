package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/pikarelay/internal/adapters/metrics"
	"github.com/bft-labs/pikarelay/internal/cliconfig"
	"github.com/bft-labs/pikarelay/internal/input"
	"github.com/bft-labs/pikarelay/pkg/log"
	"github.com/bft-labs/pikarelay/pkg/relay"
)

func run(cfg cliconfig.Config) error {
	logger, err := cliconfig.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	logCfg := cfg
	if logCfg.Password != "" {
		logCfg.Password = "*****"
	}
	logger.Info("configuration", log.Any("config", logCfg))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(reg, cfg.ID)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sender, err := relay.New(cfg.RelayConfig(),
		relay.WithLogger(logger),
		relay.WithEventHandler(collector),
	)
	if err != nil {
		return fmt.Errorf("create sender: %w", err)
	}
	if err := collector.WatchQueue(sender); err != nil {
		return fmt.Errorf("register queue metrics: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	// The sender gets its own context: a signal stops producing and starts
	// the drain, only the shutdown timeout aborts sending.
	if err := sender.Start(context.Background()); err != nil {
		return fmt.Errorf("start sender: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	produced := make(chan error, 1)
	go func() { produced <- produce(ctx, cfg, sender, logger) }()

	var inputErr error
	select {
	case err := <-produced:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("input failed", log.Err(err))
			inputErr = err
		}
	case <-ctx.Done():
		logger.Info("received signal, draining queue", log.Int("queued", sender.QueueSize()))
	case <-sender.Done():
	}

	// Queued commands are still drained after an input error.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	shutdownErr := sender.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		shutdownErr = fmt.Errorf("shutdown: %w", shutdownErr)
	}

	logger.Info("done", log.Int64("elements", sender.Elements()))
	return errors.Join(inputErr, shutdownErr)
}

// produce feeds the sender from the configured input.
func produce(ctx context.Context, cfg cliconfig.Config, sender *relay.Sender, logger log.Logger) error {
	load := func(ctx context.Context, args []string) error {
		return sender.LoadCommand(ctx, input.Key(args), args...)
	}

	if cfg.Follow {
		return input.NewFollower(cfg.Input, load, logger).Run(ctx)
	}

	var r io.Reader = os.Stdin
	if cfg.Input != cliconfig.StdinInput {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	n, err := input.Scan(ctx, r, load)
	logger.Info("input complete", log.Int("commands", n))
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Err(err))
		}
	}()
	return srv
}
