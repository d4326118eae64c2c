package sampling

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flowlab.dev/flowlab/internal/logging"
)

// ServerConfig holds HTTP server timeouts, matching the teacher's
// ServerConfig/DefaultServerConfig security-hardening defaults.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultServerConfig returns secure default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Server exposes the sampling RPCs over HTTP/JSON.
type Server struct {
	client *Client
	logger *logging.Logger
	router *mux.Router
	http   *http.Server
}

// NewServer builds a Server over store, listening at addr once Start is
// called.
func NewServer(store Store, logger *logging.Logger, cfg ServerConfig, addr string) *Server {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}
	s := &Server{
		client: NewClient(store),
		logger: logger,
		router: mux.NewRouter(),
	}
	s.initRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// requestID assigns every inbound request a correlation id for log
// lines, matching the session-id pattern grimm-is-flywall/internal/api's
// import handler uses (uuid.New().String()).
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		s.logger.Debug("sampling request", "request_id", id, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) initRoutes() {
	s.router.Use(s.requestID)
	s.router.HandleFunc("/sampling/num_flows", s.handleNumFlows).Methods("GET")
	s.router.HandleFunc("/sampling/flow_ids", s.handleFlowIDs).Methods("GET")
	s.router.HandleFunc("/sampling/flow_ts/{id}", s.handleFlowTS).Methods("GET")
	s.router.HandleFunc("/sampling/flow_delta/{id}", s.handleFlowDelta).Methods("GET")
	s.router.HandleFunc("/sampling/flow_miss_min/{id}", s.handleFlowMissMIN).Methods("GET")
	s.router.HandleFunc("/sampling/flow_miss_sim/{id}", s.handleFlowMissSim).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Router returns the underlying gorilla/mux router, useful for tests that
// want to drive requests without a real listener.
func (s *Server) Router() *mux.Router { return s.router }

// Start begins serving and blocks until the server stops or errors.
func (s *Server) Start() error {
	s.logger.Info("sampling server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, matching the teacher's
// srv.Shutdown(ctx) pattern in cmd/flywall-sim/server.go.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleNumFlows(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]int64{"num_flows": s.client.NumFlows()})
}

func (s *Server) handleFlowIDs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string][]int64{"flow_ids": s.client.GetFlowIDs()})
}

func (s *Server) handleFlowTS(w http.ResponseWriter, r *http.Request) {
	id, err := flowIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, map[string][]int64{"ts": s.client.GetFlowTS(id)})
}

func (s *Server) handleFlowDelta(w http.ResponseWriter, r *http.Request) {
	id, err := flowIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, map[string][]int64{"delta": s.client.GetFlowDelta(id)})
}

func (s *Server) handleFlowMissMIN(w http.ResponseWriter, r *http.Request) {
	id, err := flowIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, map[string][]int64{"miss_min": s.client.GetFlowMissMIN(id)})
}

func (s *Server) handleFlowMissSim(w http.ResponseWriter, r *http.Request) {
	id, err := flowIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, map[string][]int64{"miss_sim": s.client.GetFlowMissSim(id)})
}

func flowIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
