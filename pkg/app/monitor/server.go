// Package monitor implements app.Runner for the settlement monitor process.
package monitor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/chainsafe/switchly-settlement/pkg/app/bootstrap"
	"github.com/chainsafe/switchly-settlement/pkg/app/httpserver"
	"github.com/chainsafe/switchly-settlement/pkg/auth"
	"github.com/chainsafe/switchly-settlement/pkg/config"
	"github.com/chainsafe/switchly-settlement/pkg/pgutil"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
	"github.com/chainsafe/switchly-settlement/pkg/settlementstore"
	swapservice "github.com/chainsafe/switchly-settlement/pkg/swap/service"
)

const (
	serviceName                  = "settlement-monitor"
	defaultHTTPMiddlewareTimeout = 60 * time.Second
	readyCheckTimeout            = 2 * time.Second
	resumeTimeout                = 30 * time.Second
)

// Server holds configuration for the settlement monitor process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new monitor Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the settlement correlator, the API and the health endpoints.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging, serviceName)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting settlement monitor",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("bridge", cfg.Bridge.BaseURL),
	)

	db, err := pgutil.ConnectDB(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect monitor db: %w", err)
	}
	defer func() { _ = db.Close() }()
	store := settlementstore.NewStore(db)

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}
	defer components.Close()

	correlator := components.NewCorrelator(settlement.WithStore(store))
	service := swapservice.NewLog(
		swapservice.NewService(components.Pools, components.Registry, components.Engine, components.Matcher, correlator, logger),
		logger,
	)

	readiness := newReadiness(store)
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	stopGRPC, err := s.startGRPC(healthSrv, logger)
	if err != nil {
		return err
	}
	defer stopGRPC()

	resumeCtx, cancel := context.WithTimeout(ctx, resumeTimeout)
	resumed, err := correlator.Resume(resumeCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("resume settlements: %w", err)
	}
	logger.Info("Settlement correlator ready", zap.Int("resumed", resumed))
	readiness.markReady()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var guard func(http.Handler) http.Handler
	if validator := auth.NewJWTValidator(cfg.Auth); validator.IsConfigured() {
		guard = validator.Middleware(logger)
	} else {
		logger.Warn("auth.jwt_secret not set, settlement routes are unauthenticated")
	}

	router := newRouter(cfg, service, guard, readiness, logger)
	err = httpserver.ServeAndWait(ctx, logger, httpserver.New(&cfg.Server, router), cfg.Server.ShutdownTimeout)

	// Stop polling before the deferred DB close; stopped sessions resume on next start.
	healthSrv.Shutdown()
	correlator.Stop()

	return err
}

func (s *Server) startGRPC(healthSrv *health.Server, logger *zap.Logger) (func(), error) {
	if s.cfg.Server.GRPCPort == 0 {
		return func() {}, nil
	}

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.GRPCPort))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen grpc %s: %w", addr, err)
	}

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	go func() {
		logger.Info("gRPC health server listening", zap.String("address", addr))
		if err := srv.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	return srv.GracefulStop, nil
}

func newRouter(
	cfg *config.Config,
	service swapservice.Service,
	guard func(http.Handler) http.Handler,
	ready *readiness,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()
		if err := ready.check(ctx); err != nil {
			logger.Debug("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle(cfg.Monitoring.MetricsPath, promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", cfg.Monitoring.MetricsPath))
	}

	r.Route("/api/v1", func(r chi.Router) {
		swapservice.RegisterRoutes(r, service, guard, logger)
	})

	return r
}
