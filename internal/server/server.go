// Package server serves the login routes over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/brizzai/passport/internal/auth"
	"github.com/brizzai/passport/internal/auth/handlers"
	"github.com/brizzai/passport/internal/config"
	"github.com/brizzai/passport/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout   = 5 * time.Second
	// requestTimeout bounds a single request, including the provider round trips
	requestTimeout    = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server is the demo login site.
type Server struct {
	config  *config.Config
	handler http.Handler
}

// NewServer creates a Server serving the routes of p.
func NewServer(cfg *config.Config, p *auth.Passport) *Server {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)
	handlers.NewHandler(p).RegisterRoutes(r)

	logger.Info("Registered login routes", zap.Strings("strategies", p.Names()))
	return &Server{config: cfg, handler: r}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Channel for server errors
	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting server", zap.String("address", ln.Addr().String()))

		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		// query strings carry codes and states, only the path is logged
		logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Module provides the server and runs it for the lifetime of the app
var Module = fx.Module("server",
	fx.Provide(
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server, shutdowner fx.Shutdowner) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				ln, err := net.Listen("tcp", s.config.Server.Address())
				if err != nil {
					return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Address(), err)
				}
				go func() {
					defer close(done)
					if err := s.Serve(ctx, ln); err != nil {
						logger.Error("Server stopped", zap.Error(err))
						_ = shutdowner.Shutdown(fx.ExitCode(1))
					}
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-done:
					return nil
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			},
		})
	}),
)
