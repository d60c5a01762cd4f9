// Package http exposes the IVR engine over a JSON API with a server-sent
// event stream of session changes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/internal/logging"
	"github.com/praveen131106/ivr-modern/internal/presentation/graph"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Engine defines the interface of the IVR core used by the server.
type Engine interface {
	CreateSession(ctx context.Context) (*domain.TurnResult, error)
	Advance(ctx context.Context, sessionID, raw string, ch domain.Channel) (*domain.TurnResult, error)
	EndSession(ctx context.Context, sessionID string) (*domain.Summary, error)
	Session(ctx context.Context, sessionID string) (*domain.SessionState, error)
	ActiveSessions(ctx context.Context) ([]string, error)
	ListFlows() []domain.FlowInfo
	Flows() []*domain.FlowDefinition
	Subscribe(ctx context.Context, sessionID string) (<-chan *domain.SessionDiff, func(), error)
}

// Endpoints is the route list reported by GET /.
var Endpoints = []string{
	"/api/ivr/start",
	"/api/ivr/input",
	"/api/ivr/end",
	"/api/ivr/events",
	"/api/flows",
	"/api/flows/graph",
	"/health",
	"/info",
	"/metrics",
	"/openapi.yaml",
	"/swagger",
}

// Server handles the API routes.
type Server struct {
	Engine  Engine
	spec    *openapi3.T
	logger  *slog.Logger
	metrics http.Handler
	started time.Time
	now     func() time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithClock replaces the wall clock used for uptime.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewHandler creates a new HTTP handler for the engine.
// It fails when the embedded OpenAPI document does not load.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	spec, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	server := &Server{
		Engine: engine,
		spec:   spec,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.started = server.now()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(server.logRequests)
	r.Use(enableCORS)

	r.Get("/", server.GetRoot)
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Route("/api", func(r chi.Router) {
		r.Post("/ivr/start", server.StartCall)
		r.Post("/ivr/input", server.SendInput)
		r.Post("/ivr/end", server.EndCall)
		r.Get("/ivr/events", server.SubscribeEvents)
		r.Get("/flows", server.ListFlows)
		r.Get("/flows/graph", server.GetGraph)
	})
	if server.metrics != nil {
		r.Handle("/metrics", server.metrics)
	}

	// Swagger UI
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(RawSpec())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})

	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Train IVR API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// SessionRequest identifies a call.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// InputRequest carries one caller input.
type InputRequest struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
	// Channel is optional; a single key press is treated as keypad input.
	Channel string `json:"channel,omitempty"`
}

// EndResponse wraps the summary of an ended call.
type EndResponse struct {
	Summary *domain.Summary `json:"summary"`
}

// HealthResponse is the liveness report.
type HealthResponse struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	ActiveSessions int     `json:"active_sessions"`
}

// FlowsResponse lists the loaded flows.
type FlowsResponse struct {
	AvailableFlows []string          `json:"available_flows"`
	Flows          []domain.FlowInfo `json:"flows"`
}

// GetRoot handles the GET / request.
func (s *Server) GetRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Train IVR System API",
		"endpoints": Endpoints,
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		UptimeSeconds: s.now().Sub(s.started).Seconds(),
	}
	ids, err := s.Engine.ActiveSessions(r.Context())
	if err != nil {
		s.logger.Error("Failed to list sessions", "err", err)
		resp.Status = "degraded"
	}
	resp.ActiveSessions = len(ids)
	s.writeJSON(w, http.StatusOK, resp)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "ivr-http",
		"version":     strings.TrimSpace(ivr.Version),
		"api_version": apiVersion,
	})
}

// StartCall handles the POST /api/ivr/start request.
func (s *Server) StartCall(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(s.spec, w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.Engine.CreateSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// SendInput handles the POST /api/ivr/input request.
func (s *Server) SendInput(w http.ResponseWriter, r *http.Request) {
	var body InputRequest
	if err := decodeBody(s.spec, w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	ch, err := domain.ResolveChannel(body.Channel, body.Input)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	res, err := s.Engine.Advance(r.Context(), body.SessionID, body.Input, ch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// EndCall handles the POST /api/ivr/end request.
func (s *Server) EndCall(w http.ResponseWriter, r *http.Request) {
	var body SessionRequest
	if err := decodeBody(s.spec, w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	summary, err := s.Engine.EndSession(r.Context(), body.SessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EndResponse{Summary: summary})
}

// ListFlows handles the GET /api/flows request.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows := s.Engine.ListFlows()
	resp := FlowsResponse{AvailableFlows: make([]string, 0, len(flows)), Flows: flows}
	for _, f := range flows {
		resp.AvailableFlows = append(resp.AvailableFlows, f.Name)
	}
	sort.Strings(resp.AvailableFlows)
	s.writeJSON(w, http.StatusOK, resp)
}

// GetGraph handles the GET /api/flows/graph request.
// With a session_id the live position of that call is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session_id"); id != "" {
		state, err := s.Engine.Session(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		overlay = graph.OverlayFor(state)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(s.Engine.Flows(), overlay)))
}

// SubscribeEvents handles the GET /api/ivr/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeError(w, fmt.Errorf("%w: session_id is required", errBadRequest))
		return
	}
	diffs, cancel, err := s.Engine.Subscribe(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to session updates", "session_id", sessionID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_id", sessionID)
			return
		case diff, ok := <-diffs:
			if !ok {
				fmt.Fprintf(w, "event: end\ndata: {\"session_id\":%q}\n\n", sessionID)
				flusher.Flush()
				return
			}
			payload, err := json.Marshal(diff)
			if err != nil {
				s.logger.Error("SSE: failed to encode diff", "session_id", sessionID, "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// writeError maps engine errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	status, detail := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status, detail = http.StatusNotFound, "Session not found. Start a new call with POST /api/ivr/start."
	case errors.As(err, &maxBytes):
		status, detail = http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, errBadRequest):
		status, detail = http.StatusBadRequest, err.Error()
	default:
		s.logger.Error("Request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
