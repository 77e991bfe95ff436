package server

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"github.com/relaygrid/mcpgate/internal/errors"
)

// RouteRegistrar wires a set of routes onto the server. Most routes are
// registered through the huma API; handlers that need raw path wildcards
// can attach directly to the chi mux.
type RouteRegistrar func(mux chi.Router, routerAPI huma.API)

// Server manages the HTTP surface for a gateway or bridge process.
// New should be used to create instances of Server.
type Server struct {
	// Logger for server operations.
	logger hclog.Logger

	// Addr specifies the network address to bind.
	addr string

	// Title shown in the generated OpenAPI document.
	title string

	// Version shown in the generated OpenAPI document.
	version string

	// Register attaches the routes this server exposes.
	register RouteRegistrar

	// CORS configuration for cross-origin requests.
	cors CORSConfig

	// ShutdownTimeout specifies how long to wait for graceful shutdown.
	shutdownTimeout time.Duration
}

// New creates an HTTP server with the provided route registrar and options.
func New(logger hclog.Logger, addr string, title string, version string, register RouteRegistrar, opt ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if register == nil {
		return nil, fmt.Errorf("route registrar is required")
	}
	if err := ValidateAddr(addr); err != nil {
		return nil, err
	}

	options, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid server options: %w", err)
	}

	return &Server{
		logger:          logger.Named("http"),
		addr:            addr,
		title:           title,
		version:         version,
		register:        register,
		cors:            options.CORS,
		shutdownTimeout: options.ShutdownTimeout,
	}, nil
}

// Start starts the server and blocks until the context is canceled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	if s.cors.Enabled {
		s.applyCORS(mux)
	}

	config := huma.DefaultConfig(s.title, s.version)
	router := humachi.New(mux, config)

	// Configure the error handling wrapping.
	huma.NewErrorWithContext = ErrorHandler(s.logger)

	s.register(mux, router)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HTTP server", "address", s.addr)
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle graceful shutdown.
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server...")
		_ = srv.Shutdown(shutdownCtx)
		s.logger.Info("Shutdown complete")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// applyCORS applies CORS middleware to the router based on the configured options.
func (s *Server) applyCORS(mux *chi.Mux) {
	s.logger.Info("Enabling CORS", "origins", s.cors.AllowOrigins)

	corsOptions := cors.Options{
		AllowedOrigins:   s.cors.AllowOrigins,
		AllowedMethods:   s.cors.AllowMethods,
		AllowedHeaders:   s.cors.AllowedHeaders,
		AllowCredentials: s.cors.AllowCredentials,
		MaxAge:           int(s.cors.MaxAge.Seconds()),
	}

	// Handle wildcard origins properly.
	for i, origin := range corsOptions.AllowedOrigins {
		if origin == "*" {
			corsOptions.AllowedOrigins = []string{"*"}
			corsOptions.AllowCredentials = false
			break
		}
		corsOptions.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	mux.Use(cors.Handler(corsOptions))
}

// mapError maps application domain errors to appropriate HTTP status codes.
//
// NOTE: Keep this function in sync with internal/errors/errors.go.
// Every error defined there should have an explicit case here otherwise it will default to 500.
func mapError(logger hclog.Logger, err error) huma.StatusError {
	switch {
	case stdErrors.Is(err, errors.ErrBadRequest):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrUnauthorized):
		return huma.Error401Unauthorized(err.Error())
	case stdErrors.Is(err, errors.ErrProviderNotFound):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrUpstreamUnreachable):
		logger.Error("Upstream unreachable", "error", err)
		return huma.Error502BadGateway("Upstream provider unreachable", err)
	case stdErrors.Is(err, errors.ErrToolCallFailed):
		logger.Error("Tool call failed", "error", err)
		return huma.Error502BadGateway("MCP server error calling tool", err)
	case stdErrors.Is(err, errors.ErrAdminDisabled):
		return huma.Error503ServiceUnavailable(err.Error())
	case stdErrors.Is(err, errors.ErrNotConfigured):
		return huma.Error503ServiceUnavailable(err.Error())
	case stdErrors.Is(err, errors.ErrBridgeNotRunning):
		return huma.Error503ServiceUnavailable(err.Error())
	case stdErrors.Is(err, errors.ErrRequestTimedOut):
		logger.Error("Request timed out", "error", err)
		return huma.Error504GatewayTimeout(err.Error())
	default:
		logger.Error("Unexpected error handling request", "error", err)
		return huma.Error500InternalServerError("Internal server error", err)
	}
}

// ErrorHandler wraps error handling for the application when converting to API friendly errors.
// It allows the logger to be supplied to functions that resolve huma.StatusError,
// and it supports different behaviors based on the variadic errors parameter.
// Start installs it as huma.NewErrorWithContext for every served API.
func ErrorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		switch len(errs) {
		case 0:
			// No errors provided; return a generic error.
			return huma.NewError(status, msg)
		case 1:
			// Single error; map it directly.
			return mapError(logger, errs[0])
		default:
			// Multiple errors; join them and map.
			combinedErr := stdErrors.Join(errs...)
			return mapError(logger, combinedErr)
		}
	}
}
