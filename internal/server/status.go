package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"valorant-live-tracker/internal/api"
	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/middleware"
	"valorant-live-tracker/internal/sink"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const (
	GamePath    = "/api/game"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// StatusServer exposes the latest snapshot over HTTP. It is also a sink, so
// the monitor keeps it current.
type StatusServer struct {
	mu          sync.RWMutex
	snapshot    *domain.MatchSnapshot
	lastEventAt time.Time

	srv    *http.Server
	logger zerolog.Logger
}

func NewStatusServer(port string, logger zerolog.Logger) *StatusServer {
	s := &StatusServer{logger: logger.With().Str("component", "status_server").Logger()}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: constants.LocalAPITimeout,
	}
	return s
}

func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(GamePath, s.handleGame)
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle(MetricsPath, promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return middleware.RequestID(s.logger)(c.Handler(mux))
}

func (s *StatusServer) handleGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	payload := sink.NewGamePayload(s.snapshot)
	lastEventAt := s.lastEventAt
	s.mu.RUnlock()

	if !lastEventAt.IsZero() {
		w.Header().Set("X-Last-Event", lastEventAt.UTC().Format(time.RFC3339))
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to write game payload")
	}
}

func (s *StatusServer) Snapshot(snapshot *domain.MatchSnapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.lastEventAt = time.Time{}
	s.mu.Unlock()
}

func (s *StatusServer) Waiting() {}

func (s *StatusServer) Ended(string) {
	s.mu.Lock()
	s.snapshot = nil
	s.lastEventAt = time.Time{}
	s.mu.Unlock()
}

func (s *StatusServer) StateChanged(string, api.Event) {
	s.mu.Lock()
	s.lastEventAt = time.Now()
	s.mu.Unlock()
}

// Start binds the listener synchronously so port errors surface at startup.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("status server starting")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("status server failed")
		}
	}()
	return nil
}

func (s *StatusServer) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down status server")
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("status server shutdown failed")
		return err
	}
	s.logger.Info().Msg("status server stopped gracefully")
	return nil
}
