package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkarvelis/routeproxy/config"
	"github.com/pkarvelis/routeproxy/internal/circuitbreaker"
	"github.com/pkarvelis/routeproxy/internal/dispatch"
	"github.com/pkarvelis/routeproxy/internal/forwarder"
	"github.com/pkarvelis/routeproxy/internal/httpserver"
	"github.com/pkarvelis/routeproxy/internal/metrics"
	"github.com/pkarvelis/routeproxy/internal/pool"
	"github.com/pkarvelis/routeproxy/internal/ratelimit"
	"github.com/pkarvelis/routeproxy/internal/routing"
	"github.com/pkarvelis/routeproxy/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	table, err := buildTable(cfg)
	if err != nil {
		log.Error("Invalid routing configuration", slog.Any("err", err))
		os.Exit(1)
	}

	breakers := circuitbreaker.NewRegistry(cfg.CircuitBreaker.Threshold, cfg.BreakerResetTimeout())
	fwd := forwarder.New(log, breakers, cfg.ReplyTimeout(), 0)

	workerPool := pool.New(ctx, log, table, fwd, pool.NewRandomSelector(), cfg.Workers.Count)
	go workerPool.Watch(ctx, cfg.WatchInterval(), cfg.Workers.Respawn)

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)
	workerPool.SetCollector(collector)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	dispatcher := dispatch.New(log, workerPool, collector, limiter, responseHeaders(cfg), cfg.ReplyTimeout())

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(dispatcher, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Proxy listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("workers", cfg.Workers.Count))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
		workerPool.Shutdown()
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting proxy", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// buildTable converts the validated config into the immutable routing table
// every worker shares. Referential errors abort startup before the listener
// binds.
func buildTable(cfg *config.Config) (*routing.Table, error) {
	upstreams := make([]routing.Upstream, len(cfg.Upstreams))
	for i, u := range cfg.Upstreams {
		upstreams[i] = routing.Upstream{ID: u.ID, Address: u.Address}
	}

	rules := make([]routing.Rule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = routing.Rule{PathPrefix: r.PathPrefix, UpstreamIDs: r.UpstreamIDs}
	}

	table, err := routing.NewTable(upstreams, rules)
	if err != nil {
		return nil, err
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}

	return table, nil
}

func responseHeaders(cfg *config.Config) []dispatch.Header {
	headers := make([]dispatch.Header, len(cfg.Headers))
	for i, h := range cfg.Headers {
		headers[i] = dispatch.Header{Key: h.Key, Value: h.Value}
	}
	return headers
}
