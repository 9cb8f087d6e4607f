// Package gateway exposes the relay over HTTP: the client-facing API, the
// provider webhook endpoints, and a WebSocket channel that delivers
// completed videos to watching clients.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/voxvid/voxvid/pkg/akool"
	"github.com/voxvid/voxvid/pkg/config"
	"github.com/voxvid/voxvid/pkg/logger"
	"github.com/voxvid/voxvid/pkg/relay"
	"github.com/voxvid/voxvid/pkg/store"
)

// apiVersion is set by the caller (main.go) via SetVersion.
var apiVersion = "dev"

// SetVersion sets the version string returned by the health endpoint.
func SetVersion(v string) {
	apiVersion = v
}

// Server is the voxvid HTTP server.
type Server struct {
	cfg     *config.Config
	relay   *relay.Service
	video   *akool.Client
	jobs    store.JobStore
	hub     *Hub
	limiter *rate.Limiter
	server  *http.Server
}

// NewServer wires the HTTP surface. The relay's notifier is pointed at the
// watch hub so video completions reach subscribed clients.
func NewServer(cfg *config.Config, relaySvc *relay.Service, video *akool.Client, jobs store.JobStore) *Server {
	perMinute := cfg.RateLimit.GeneratePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := cfg.RateLimit.GenerateBurst
	if burst <= 0 {
		burst = 10
	}

	s := &Server{
		cfg:     cfg,
		relay:   relaySvc,
		video:   video,
		jobs:    jobs,
		hub:     NewHub(),
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
	relaySvc.SetNotifier(s.hub.Broadcast)
	return s
}

// Handler returns the full route tree with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	mux.HandleFunc("GET /api/avatars", s.handleAvatars)
	mux.HandleFunc("POST /api/generate", s.rateLimit(s.handleGenerate))
	mux.HandleFunc("POST /api/tts-webhook", s.handleTTSWebhook)
	mux.HandleFunc("POST /api/akool-webhook", s.handleVideoWebhook)
	mux.HandleFunc("GET /api/videos/{id}", s.handleVideoResult)
	mux.HandleFunc("GET /api/watch", s.hub.handleWatch)

	return corsMiddleware(mux)
}

// Start begins listening on the configured host:port.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve runs the server on an existing listener (tests pass a :0 listener).
func (s *Server) Serve(listener net.Listener) error {
	s.server = &http.Server{Handler: s.Handler()}
	logger.InfoCF("gateway", "HTTP server listening", map[string]any{
		"addr": listener.Addr().String(),
	})
	err := s.server.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server and disconnects watchers.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
