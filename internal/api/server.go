// Package api serves the backtester over HTTP and gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"spxbacktest/internal/config"
	"spxbacktest/internal/strategy"
)

const shutdownTimeout = 5 * time.Second

// Server hosts the HTTP and gRPC endpoints over one Backtester.
type Server struct {
	bt       *strategy.Backtester
	defaults config.BacktestConfig
	httpAddr string
	grpcAddr string
	log      *slog.Logger
}

// NewServer creates a Server listening on the addresses in cfg.Server.
// Request fields left empty take their values from cfg.Backtest.
func NewServer(cfg *config.Config, bt *strategy.Backtester) *Server {
	return &Server{
		bt:       bt,
		defaults: cfg.Backtest,
		httpAddr: cfg.Server.HTTPAddr(),
		grpcAddr: cfg.Server.GRPCAddr(),
		log:      slog.Default().With("component", "api"),
	}
}

// GRPCServer returns a grpc.Server with the backtest service registered.
func (s *Server) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	gs := grpc.NewServer(append([]grpc.ServerOption{grpc.UnaryInterceptor(s.logUnary)}, opts...)...)
	RegisterBacktestServer(gs, &BacktestService{srv: s})
	return gs
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs. On cancellation both servers
// drain in-flight requests before it returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	grpcLis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve runs both servers on the given listeners until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := s.GRPCServer()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.log.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		err := httpServer.Shutdown(shutdownCtx)
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		if err != nil {
			return fmt.Errorf("HTTP shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	attrs := []any{"method", info.FullMethod, "elapsed", time.Since(start).Round(time.Microsecond)}
	if err != nil {
		s.log.Warn("grpc request failed", append(attrs, "error", err)...)
	} else {
		s.log.Info("grpc request", attrs...)
	}
	return resp, err
}
