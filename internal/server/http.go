package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ChuLiYu/cpu-sched/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ShutdownTimeout bounds the graceful stop of both listeners.
const ShutdownTimeout = 5 * time.Second

// NewRouter serves /metrics from collector and a /healthz probe.
func NewRouter(collector *metrics.Collector) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if collector != nil {
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}
	return r
}

// Options configures Serve.
type Options struct {
	GRPCPort int
	// MetricsPort enables the HTTP listener when positive.
	MetricsPort int
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	Limits      Limits
}

// Serve runs the gRPC service, and the HTTP listener when enabled, until
// ctx is cancelled. Both listeners are then stopped gracefully.
func Serve(ctx context.Context, opts Options) error {
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", opts.GRPCPort, err)
	}

	var httpLis net.Listener
	if opts.MetricsPort > 0 {
		httpLis, err = net.Listen("tcp", fmt.Sprintf(":%d", opts.MetricsPort))
		if err != nil {
			grpcLis.Close()
			return fmt.Errorf("failed to listen on port %d: %w", opts.MetricsPort, err)
		}
	}
	return serveListeners(ctx, grpcLis, httpLis, opts)
}

func serveListeners(ctx context.Context, grpcLis, httpLis net.Listener, opts Options) error {
	logger, collector := opts.Logger, opts.Metrics
	if logger == nil {
		logger = zap.NewNop()
	}
	grpcServer := grpc.NewServer()
	Register(grpcServer, NewServer(logger, collector).WithLimits(opts.Limits))

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	var httpServer *http.Server
	if httpLis != nil {
		httpServer = &http.Server{
			Handler:           NewRouter(collector),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", zap.String("addr", httpLis.Addr().String()))
			if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server stopped unexpectedly", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
			serveErr = fmt.Errorf("metrics server shutdown: %w", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	logger.Info("server stopped")
	return serveErr
}
