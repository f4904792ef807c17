// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/cardwright/internal/core/api"
	"github.com/solatis/cardwright/internal/core/auth"
	"github.com/solatis/cardwright/internal/core/config"
	"github.com/solatis/cardwright/internal/metrics"
	"github.com/solatis/cardwright/internal/platform/logger"
)

// RequestIDKey is the metadata key carrying the request ID in both directions.
const RequestIDKey = "x-request-id"

// GRPCServer manages gRPC server lifecycle, plus the optional /metrics listener.
type GRPCServer struct {
	server        *grpc.Server
	health        *health.Server
	config        *config.ServerConfig
	authenticator *auth.Authenticator
	metrics       *metrics.Metrics
	logger        *logger.Logger
	metricsServer *http.Server
}

// Option configures a GRPCServer.
type Option func(*GRPCServer)

// WithAuthenticator requires a bearer token on every non-health call.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(s *GRPCServer) { s.authenticator = a }
}

// WithMetrics exposes m on config.MetricsAddr.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *GRPCServer) { s.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *GRPCServer) { s.logger = l }
}

// NewGRPCServer creates gRPC server with interceptors and service registration.
func NewGRPCServer(cfg *config.ServerConfig, expression *api.ExpressionService, validator *api.ValidatorService, opts ...Option) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if expression == nil {
		return nil, fmt.Errorf("expression service cannot be nil")
	}

	s := &GRPCServer{config: cfg, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	interceptors := []grpc.UnaryServerInterceptor{LoggingInterceptor(s.logger)}
	if s.authenticator != nil {
		interceptors = append(interceptors, s.authenticator.UnaryInterceptor())
	}
	interceptors = append(interceptors, TimeoutInterceptor(cfg.RequestTimeout))

	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	api.RegisterExpressionAPIServer(s.server, expression)
	if validator != nil {
		api.RegisterValidatorServer(s.server, validator)
	}

	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(api.ExpressionServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	if validator != nil {
		s.health.SetServingStatus(api.ValidatorServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	if cfg.MetricsAddr != "" && s.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// Start binds listener and serves until Shutdown is called or ctx is done.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves gRPC on lis and, when configured, /metrics on MetricsAddr.
// The first listener to fail stops the other; Shutdown or ctx stops both.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return s.server.Serve(lis)
	})
	if s.metricsServer != nil {
		g.Go(func() error {
			s.logger.Info("serving metrics", "addr", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		s.stopAll()
		return nil
	})
	return g.Wait()
}

// Shutdown gracefully stops server with 30-second timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	var err error
	select {
	case <-stopped:
	case <-ctx.Done():
		s.server.Stop()
		err = fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(30 * time.Second):
		s.server.Stop()
		err = fmt.Errorf("graceful shutdown timeout, forced stop")
	}

	if s.metricsServer != nil {
		if merr := s.metricsServer.Shutdown(ctx); merr != nil && err == nil {
			err = fmt.Errorf("metrics shutdown: %w", merr)
		}
	}
	return err
}

func (s *GRPCServer) stopAll() {
	s.server.Stop()
	if s.metricsServer != nil {
		s.metricsServer.Close()
	}
}

// LoggingInterceptor assigns every call a request ID (taken from the incoming
// x-request-id header when present), echoes it in the response header and
// logs method, code and duration.
func LoggingInterceptor(l *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(RequestIDKey); len(values) > 0 {
				requestID = values[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, requestID))

		resp, err := handler(ctx, req)

		code := status.Code(err)
		kv := []any{"method", info.FullMethod, "request_id", requestID, "code", code.String(), "duration", time.Since(start)}
		if err != nil {
			l.Warn("rpc failed", append(kv, "error", err)...)
		} else {
			l.Debug("rpc completed", kv...)
		}
		return resp, err
	}
}

// TimeoutInterceptor bounds every call by d (no bound when d <= 0). A shorter
// client deadline still wins.
func TimeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}
