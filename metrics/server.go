package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryarchy/fiverr-tools/utils"
)

// HealthFunc reports whether the browser session is alive.
type HealthFunc func() bool

// Server exposes /metrics and /healthz.
type Server struct {
	srv    *http.Server
	logger *utils.Logger
}

// NewRouter builds the HTTP routes. A nil health func always reports healthy.
func NewRouter(m *Metrics, health HealthFunc) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil && !health() {
			http.Error(w, "browser session unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	return router
}

func NewServer(addr string, m *Metrics, health HealthFunc, logger *utils.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(m, health),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("[metrics] Server failed: %v", err)
		}
	}()
	s.logger.Info("[metrics] Listening on %s", s.srv.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
