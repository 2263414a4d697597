package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum-optimism/infra/op-scripttest/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the listen addresses of the service servers.
type Config struct {
	HealthzAddr string
	MetricsAddr string
	Log         log.Logger
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	config Config
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Service{
		Healthz: &HealthzServer{log: cfg.Log},
		Metrics: &MetricsServer{},
		config:  cfg,
	}
}

// Start launches the servers in the background. Servers without an address are skipped.
func (s *Service) Start(ctx context.Context) {
	log := s.config.Log
	log.Info("service starting")

	if addr := s.config.HealthzAddr; addr != "" {
		go func() {
			log.Info("starting healthz server", "addr", addr)
			if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting healthz server", "err", err)
				metrics.RecordErrorDetails("error starting healthz server", err)
			}
		}()
	}

	if addr := s.config.MetricsAddr; addr != "" {
		go func() {
			log.Info("starting metrics server", "addr", addr)
			if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("error starting metrics server", err)
			}
		}()
	}

	log.Info("service started")
}

func (s *Service) Shutdown() {
	log := s.config.Log
	log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	log.Info("metrics stopped")

	log.Info("service stopped")
}
