package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/quotestream/quotestream/pkg/version"
	"github.com/quotestream/quotestream/server/internal/api"
	"github.com/quotestream/quotestream/server/internal/broadcast"
	"github.com/quotestream/quotestream/server/internal/config"
	"github.com/quotestream/quotestream/server/internal/health"
	"github.com/quotestream/quotestream/server/internal/metrics"
	"github.com/quotestream/quotestream/server/internal/quote"
	"github.com/quotestream/quotestream/server/internal/registry"
	"github.com/quotestream/quotestream/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file; built-in defaults when empty")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("quotestream-server starting", "version", version.String(), "config", *configPath)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	sc := cfg.Server
	level.Set(sc.Level())

	slog.Info("config loaded",
		"http_port", sc.HTTPPort,
		"grpc_port", sc.GRPCPort,
		"ws_path", sc.WSPath,
		"broadcast_interval", sc.Broadcast.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	reg := registry.New()
	src := quote.NewRandom(sc.Quote.SecurityID, sc.Quote.MinPrice, sc.Quote.MaxPrice)
	mgr := ws.New(reg, src, ws.Options{
		SendBuffer:   sc.Connection.SendBuffer,
		WriteTimeout: sc.Connection.WriteTimeout,
		PongWait:     sc.Connection.PongWait,
		ReadLimit:    sc.Connection.ReadLimit,
	}, m, logger)
	sched := broadcast.New(reg, src, sc.Broadcast.Interval, m, logger)

	// Combined HTTP server: WebSocket endpoint, REST API and metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle(sc.WSPath, mgr)
	httpMux.Handle("/api/", api.New(reg, mgr, sched))
	httpMux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var hs *health.Server
	var grpcLis net.Listener
	if sc.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", sc.GRPCPort))
		if err != nil {
			slog.Error("failed to listen on gRPC port", "port", sc.GRPCPort, "err", err)
			os.Exit(1)
		}
		grpcLis = lis
		hs = health.New(logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if hs != nil {
		g.Go(func() error {
			if err := hs.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if hs != nil {
			hs.SetServing(true)
			defer hs.SetServing(false)
		}
		sched.Run(gctx)
		return nil
	})

	if *configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, *configPath, func(c *config.Config) {
				sched.SetInterval(c.Server.Broadcast.Interval)
				level.Set(c.Server.Level())
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("quotestream-server shutting down")

		mgr.Shutdown()
		if hs != nil {
			hs.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("quotestream-server stopped", "err", err)
		os.Exit(1)
	}
}
