package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-stats-cache/internal/cache/service"
	"go-stats-cache/internal/config"
	"go-stats-cache/internal/revalidation"
)

const unixPrefix = "unix:"

// Server represents the edge HTTP server
type Server struct {
	cacheService *service.CacheService
	gateway      *revalidation.Gateway
	cfg          config.ServerConfig
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a new edge HTTP server
func NewServer(cacheService *service.CacheService, gateway *revalidation.Gateway, cfg config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		cacheService: cacheService,
		gateway:      gateway,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start listens on the configured address and serves until Stop.
// An address of the form unix:<path> listens on a Unix socket.
func (s *Server) Start() error {
	listener, err := s.listen()
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting edge HTTP server", zap.String("addr", s.cfg.ListenAddr))
	return s.server.Serve(listener)
}

func (s *Server) listen() (net.Listener, error) {
	socketPath, ok := strings.CutPrefix(s.cfg.ListenAddr, unixPrefix)
	if !ok {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}

	// Remove existing socket file
	if err := os.RemoveAll(socketPath); err != nil {
		s.logger.Warn("Failed to remove existing socket file", zap.String("path", socketPath), zap.Error(err))
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	// Readable/writable by owner and group
	if err := os.Chmod(socketPath, 0660); err != nil {
		s.logger.Warn("Failed to set socket permissions", zap.String("path", socketPath), zap.Error(err))
	}
	return listener, nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping edge HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.requestID)

	router.HandleFunc("/api/revalidate", s.handleRevalidate).Methods(http.MethodPost)
	router.PathPrefix("/api/").HandlerFunc(s.handleData).Methods(http.MethodGet)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// requestID tags every response with the caller's request ID or a new one
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, &HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes v as a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeBody writes a pre-encoded JSON body
func (s *Server) writeBody(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func isClientDisconnect(err error) bool {
	return errors.Is(err, context.Canceled)
}
