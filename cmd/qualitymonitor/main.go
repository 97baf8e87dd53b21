// Command qualitymonitor wires config, logging, tracing and the Prometheus
// metrics endpoint around a qualityengine.Analyzer. It starts the analyzer
// with no transport attached; embedding programs call
// Analyzer.SetPeerConnection once they have a live *webrtc.PeerConnection,
// and it serves /metrics and /health until terminated.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"peerqual/internal/infrastructure/metrics"
	"peerqual/internal/infrastructure/qualityengine"
	"peerqual/pkg/config"
	apperrors "peerqual/pkg/errors"
	"peerqual/pkg/logger"
	"peerqual/pkg/tracing"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/peerqual/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			log.Printf("loaded config from: %s", path)
			break
		}
	}
	if cfg == nil {
		log.Printf("could not load config from any path, using defaults")
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "configuration failed validation"))
	}

	zapLogger, err := newZapLogger(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zapLogger.Sync()
	ctxLogger := logger.NewContextLogger(zapLogger)
	ctxLogger.LogInfo(context.Background(), "starting peerqual")

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: "production",
		SampleRate:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			zapLogger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector()

	analyzer := qualityengine.New(
		qualityengine.WithLogger(zapLogger.Sugar()),
		qualityengine.WithMetrics(collector),
	)
	defer analyzer.Close()

	if cfg.Monitoring.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})

		go func() {
			zapLogger.Sugar().Infow("serving metrics", "address", cfg.Monitoring.PrometheusAddress)
			if err := http.ListenAndServe(cfg.Monitoring.PrometheusAddress, mux); err != nil {
				ctxLogger.LogError(context.Background(), err, "metrics server exited")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	ctxLogger.LogInfo(context.Background(), "shutting down peerqual")
}

func newZapLogger(format, level string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = lvl

	return zapCfg.Build()
}
