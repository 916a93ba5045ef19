package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signalbroker/internal/core/domain"
	"signalbroker/internal/core/services"
	"signalbroker/internal/infrastructure/admin"
	"signalbroker/internal/infrastructure/metrics"
	"signalbroker/internal/infrastructure/monitoring"
	transport "signalbroker/internal/infrastructure/signal"
	"signalbroker/pkg/config"
	"signalbroker/pkg/logger"
	"signalbroker/pkg/tracing"
)

func main() {
	configPath := "configs/config.yaml"
	if v := os.Getenv("SIGNALBROKER_CONFIG"); v != "" {
		configPath = v
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zlog.Sync()
	sugar := zlog.Sugar()

	tp, err := tracing.Init(tracing.DefaultConfig())
	if err != nil {
		sugar.Fatalw("failed to init tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	observer, closers := buildObserver(cfg, sugar)
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	graph := services.NewSubscriptionGraph(cfg.Signal.MaxSubscribers, observer)
	registry := services.NewRegistry(cfg.ConnectionTimeout(), observer, sugar)

	health := monitoring.NewHealthChecker()
	health.AddCheck("registry", func(ctx context.Context) (bool, error) {
		return true, nil
	}, 30*time.Second, 2*time.Second)

	authService := services.NewAdminAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	adminServer := admin.NewServer(cfg, registry, graph, health, authService, sugar)

	iceServers := make([]domain.ICEServerConfig, 0, len(cfg.Signal.ICEServers))
	for _, s := range cfg.Signal.ICEServers {
		iceServers = append(iceServers, domain.ICEServerConfig{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	opts := transport.Options{
		MaxFrameSize:      cfg.Signal.MaxFrameSize,
		PingInterval:      cfg.PingInterval(),
		ConnectionTimeout: cfg.ConnectionTimeout(),
		WriteTimeout:      10 * time.Second,
		EnableSFU:         cfg.Signal.EnableSFU,
		ICEServers:        iceServers,
		PlayerPath:        cfg.Signal.PlayerPath,
		StreamerPath:      cfg.Signal.StreamerPath,
		SFUPath:           cfg.Signal.SFUPath,
		UnrealPath:        cfg.Signal.UnrealPath,
	}
	front := transport.NewServer(registry, graph, opts, observer, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go registry.RunIdleReaper(ctx, 30*time.Second)

	servers := startServers(cfg, front, adminServer, sugar)

	<-ctx.Done()
	sugar.Info("shutdown signal received")
	shutdownServers(servers, sugar)
}

// buildObserver composes the synchronous Prometheus collector with an
// optional best-effort batched Redis event mirror. Losing Redis never
// affects routing: the Prometheus collector stays authoritative for this
// process's own metrics regardless of what else is wired in.
func buildObserver(cfg *config.Config, sugar *zap.SugaredLogger) (*metrics.MultiObserver, []func() error) {
	prom := monitoring.NewPrometheusCollector()
	if !cfg.Redis.Enabled {
		return metrics.NewMultiObserver(prom), nil
	}

	id := instanceID()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	batched := metrics.NewBatchedEventObserver(client, id, 100, cfg.Redis.MirrorInterval, sugar)

	return metrics.NewMultiObserver(prom, batched), []func() error{
		func() error { batched.Stop(); return nil },
		client.Close,
	}
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "signalbroker"
	}
	return host
}

type httpServer struct {
	name   string
	server *http.Server
}

// startServers wires the role-dispatch transport onto either a single
// unified port or the split player/streamer/sfu ports named in §6, plus
// the always-separate admin and (optional) Prometheus scrape ports. In
// split mode each port is hard-wired to exactly one role (§4.F) via
// PlayerMux/StreamerMux/SFUMux, independent of the request path.
func startServers(cfg *config.Config, front *transport.Server, adminServer *admin.Server, sugar *zap.SugaredLogger) []httpServer {
	var servers []httpServer

	listen := func(name, addr string, handler http.Handler) {
		srv := &http.Server{Addr: addr, Handler: handler}
		servers = append(servers, httpServer{name: name, server: srv})
		go func() {
			sugar.Infow("server listening", "server", name, "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sugar.Errorw("server stopped", "server", name, "error", err)
			}
		}()
	}

	if cfg.Signal.EnableUnifiedPort {
		mux := http.NewServeMux()
		front.Mux(mux)
		listen("signal", fmt.Sprintf("%s:%d", cfg.Signal.Host, cfg.Signal.UnifiedPort), mux)
	} else {
		playerMux := http.NewServeMux()
		front.PlayerMux(playerMux)
		listen("signal-player", fmt.Sprintf("%s:%d", cfg.Signal.Host, cfg.Signal.PlayerPort), playerMux)

		streamerMux := http.NewServeMux()
		front.StreamerMux(streamerMux)
		listen("signal-streamer", fmt.Sprintf("%s:%d", cfg.Signal.Host, cfg.Signal.StreamerPort), streamerMux)

		if cfg.Signal.EnableSFU {
			sfuMux := http.NewServeMux()
			front.SFUMux(sfuMux)
			listen("signal-sfu", fmt.Sprintf("%s:%d", cfg.Signal.Host, cfg.Signal.SFUPort), sfuMux)
		}
	}

	listen("admin", fmt.Sprintf("%s:%d", cfg.Signal.Host, cfg.Signal.HTTPPort), adminServer.Handler())

	if cfg.Monitoring.PrometheusEnabled {
		promMux := http.NewServeMux()
		promMux.Handle("/metrics", promhttp.Handler())
		listen("metrics", fmt.Sprintf("%s:%d", cfg.Signal.Host, cfg.Monitoring.PrometheusPort), promMux)
	}

	return servers
}

func shutdownServers(servers []httpServer, sugar *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range servers {
		if err := s.server.Shutdown(ctx); err != nil {
			sugar.Warnw("server shutdown error", "server", s.name, "error", err)
		}
	}
}
