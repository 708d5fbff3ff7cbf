package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gregriff/vogo/relay/configs"
	"github.com/gregriff/vogo/relay/internal/metrics"
	"github.com/gregriff/vogo/relay/internal/middleware"
	"github.com/gregriff/vogo/relay/internal/presence"
	"github.com/gregriff/vogo/relay/internal/registry"
	"github.com/gregriff/vogo/relay/internal/routes"
	"github.com/gregriff/vogo/relay/internal/signaling"
	"github.com/gregriff/vogo/relay/internal/store"
)

const requestTimeout = 30 * time.Second

// Server holds the relay's components for the lifetime of the process.
type Server struct {
	Registry *registry.Registry
	Hub      *signaling.Hub

	store   store.Store
	handler http.Handler
	log     *slog.Logger
}

// NewServer opens the configured store, loads the channel registry and builds
// the http handler. The hub is not running until Run is called.
func NewServer(ctx context.Context, settings configs.Settings, logger *slog.Logger) (*Server, error) {
	iceServers, err := settings.ICE()
	if err != nil {
		return nil, err
	}

	path, err := settings.StorePath()
	if err != nil {
		return nil, fmt.Errorf("error resolving store path: %w", err)
	}
	s, err := store.Open(settings.Store.Driver, path)
	if err != nil {
		return nil, err
	}
	logger.Info("channel store opened", "driver", settings.Store.Driver, "path", path)

	reg, err := registry.New(ctx, s, settings.DefaultCapacity, logger.With("component", "registry"))
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	m := metrics.New()
	hub := signaling.NewHub(reg, presence.NewTable(reg), iceServers, m, logger.With("component", "hub"))
	h := routes.NewRouteHandler(reg, hub, m, logger, iceServers, settings.Signaling)

	mux := http.NewServeMux()
	createRoutes(mux, h)

	return &Server{
		Registry: reg,
		Hub:      hub,
		store:    s,
		handler: middleware.Chain(mux,
			middleware.Recover(logger),
			middleware.RequestLogger(logger),
			middleware.Origin(settings.AllowedOrigins),
		),
		log: logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run drives the signaling hub until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Hub.Run(ctx)
}

func (s *Server) Close() error {
	return s.store.Close()
}

// CreateAndListen serves the relay on settings.Addr() until SIGINT or SIGTERM.
func CreateAndListen(settings configs.Settings, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = srv.Run(ctx)
	}()

	server := &http.Server{
		Addr:              settings.Addr(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		Handler:           srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-hubDone
			return fmt.Errorf("http server error: %w", err)
		}
	case <-ctx.Done():
	}

	// the hub closes every websocket when ctx ends, shutdown drains the rest
	<-hubDone
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	logger.Info("graceful shutdown complete")
	return nil
}

// createRoutes creates the routing rules for the webserver
func createRoutes(mux *http.ServeMux, h *routes.RouteHandler) {
	mux.Handle("GET /channels", withTimeout(h.ListChannels))
	mux.Handle("GET /channels/{id}", withTimeout(h.GetChannel))
	mux.Handle("POST /channels", withTimeout(h.CreateChannel))
	mux.Handle("PATCH /channels/{id}", withTimeout(h.UpdateChannel))

	mux.HandleFunc("GET /ice", h.ICE)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", h.Metrics())
	mux.HandleFunc("GET /ws", h.SignalingWS)
}

// long-lived websocket connections must not go through http.TimeoutHandler
func withTimeout(fn http.HandlerFunc) http.Handler {
	return http.TimeoutHandler(fn, requestTimeout, `{"error":"INTERNAL","message":"request timed out"}`)
}
