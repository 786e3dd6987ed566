package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cyberinferno/state-relay/cacher"
	"github.com/cyberinferno/state-relay/config"
	"github.com/cyberinferno/state-relay/logger"
	"github.com/cyberinferno/state-relay/metrics"
	"github.com/cyberinferno/state-relay/packet"
	"github.com/cyberinferno/state-relay/relay"
	"github.com/cyberinferno/state-relay/session"
)

func main() {
	configFile := flag.String("c", "state-relay.toml", "Config file path")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	log := logger.NewStdoutLogger("state-relay", logLevel(cfg.LogLevel))

	retained := buildRetention(cfg, log)
	registry := session.NewRegistry(retained, cfg.ReconnectWindow.Duration(), cfg.WriteTimeout.Duration())

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.NewMetrics(prometheus.DefaultRegisterer)
		go serveMetrics(cfg.MetricsAddr, log)
	}

	server := &relay.Server{
		Logger:     log,
		Addr:       cfg.ListenAddr,
		MaxClients: cfg.MaxClients,
		Registry:   registry,
		Codecs:     packet.Builtin(),
		Metrics:    m,
		RateLimit: relay.RateLimitConfig{
			Enabled:         cfg.RateLimit.Enabled,
			FramesPerSecond: rate.Limit(cfg.RateLimit.FramesPerSecond),
			Burst:           cfg.RateLimit.Burst,
		},
	}

	if err := server.Start(); err != nil {
		log.Error("startup failed", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	server.Stop()
}

// buildRetention selects the reconnect-window backend: Redis when
// configured, in-memory otherwise.
func buildRetention(cfg config.Config, log logger.Logger) cacher.Cacher[session.Retained] {
	if cfg.Redis.Addr == "" {
		return cacher.NewMemoryCacher[session.Retained](cfg.ReconnectWindow.Duration(), time.Minute)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	log.Info("using redis reconnect-window backend", logger.Field{Key: "addr", Value: cfg.Redis.Addr})
	return cacher.NewRedisCacher[session.Retained](client, "state-relay:retained")
}

func serveMetrics(addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("serving metrics", logger.Field{Key: "addr", Value: addr})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server failed", logger.Field{Key: "error", Value: err})
	}
}

func logLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
