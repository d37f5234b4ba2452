package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"waitline/internal/config"
	"waitline/internal/database"
	"waitline/internal/metrics"
	"waitline/internal/queue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the queue operations over HTTP.
type HTTPServer struct {
	cfg         config.APIConfig
	engine      *queue.Engine
	db          *database.DB
	server      *http.Server
	auth        *HTTPAuth
	exportsPath string
	logger      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, exports config.ExportConfig, engine *queue.Engine, db *database.DB, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:         cfg,
		engine:      engine,
		db:          db,
		exportsPath: exports.Path,
		logger:      logger.With().Str("component", "http").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/shops/", srv.handleShops)
	mux.HandleFunc("/queue/", srv.handleFinish)
	mux.HandleFunc("/save_token", srv.handleSaveToken)
	mux.HandleFunc("/admin/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealthz)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// handleShops routes /shops/{shopId}/queue and /shops/{shopId}/customers.
func (s *HTTPServer) handleShops(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/shops/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	shopID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || shopID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid shop id")
		return
	}

	switch parts[1] {
	case "queue":
		s.handleGetQueue(w, r, shopID)
	case "customers":
		s.handleAddCustomer(w, r, shopID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleGetQueue(w http.ResponseWriter, r *http.Request, shopID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := s.engine.GetQueue(r.Context(), shopID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"seated":  snap.Seated,
		"waiting": snap.Waiting,
	})
}

func (s *HTTPServer) handleAddCustomer(w http.ResponseWriter, r *http.Request, shopID int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := s.engine.AddCustomer(r.Context(), shopID, body.Name, body.Phone)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := map[string]any{
		"message": "customer added",
		"id":      entry.ID,
		"status":  entry.Status,
	}
	if entry.Position != nil {
		resp["position"] = *entry.Position
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleFinish routes POST /queue/{entryId}/finish.
func (s *HTTPServer) handleFinish(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/queue/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "finish" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entryID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || entryID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	if err := s.engine.FinishCustomer(r.Context(), entryID); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "finished"})
}

func (s *HTTPServer) handleSaveToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Phone string `json:"phone"`
		Token string `json:"token"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.engine.SaveToken(r.Context(), body.Phone, body.Token); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "token saved"})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps engine errors to HTTP statuses. Anything that is not
// a validation or lookup failure is treated as a storage problem.
func (s *HTTPServer) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	}
}

const requestIDHeader = "X-Request-Id"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(normalizeEndpoint(r.URL.Path))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// normalizeEndpoint collapses numeric path segments so metric labels stay
// low-cardinality.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if _, err := strconv.ParseInt(p, 10, 64); err == nil && p != "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
