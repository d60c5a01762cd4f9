// Package mcp exposes the IVR engine to AI agents over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/internal/logging"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// FlowsURI is the resource listing the loaded flows.
const FlowsURI = "ivr://flows"

// Engine defines the interface required by the MCP server to drive calls.
type Engine interface {
	CreateSession(ctx context.Context) (*domain.TurnResult, error)
	Advance(ctx context.Context, sessionID, raw string, ch domain.Channel) (*domain.TurnResult, error)
	EndSession(ctx context.Context, sessionID string) (*domain.Summary, error)
	ListFlows() []domain.FlowInfo
}

// InputArgs are the arguments of send_input.
type InputArgs struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
	Channel   string `json:"channel,omitempty"`
}

// SessionArgs identify a call.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// TurnResponse aligns with the HTTP API and provides a unified structure across adapters.
type TurnResponse struct {
	SessionID     string              `json:"session_id" jsonschema_description:"The call identifier"`
	Message       string              `json:"message" jsonschema_description:"What the IVR says"`
	Options       []domain.MenuOption `json:"options" jsonschema_description:"Menu options offered next"`
	Flow          string              `json:"flow"`
	State         string              `json:"state"`
	Terminal      bool                `json:"is_terminal" jsonschema_description:"Indicates the call has ended"`
	Outcome       string              `json:"outcome,omitempty"`
	MatchedOption string              `json:"matched_option,omitempty"`
	Confidence    float64             `json:"confidence,omitempty"`
}

// SummaryResponse is returned by end_call.
type SummaryResponse struct {
	SessionID      string            `json:"session_id"`
	TotalExchanges int               `json:"total_exchanges"`
	DurationMillis int64             `json:"duration_ms"`
	FinalFlow      string            `json:"final_flow"`
	FinalState     string            `json:"final_state"`
	CollectedData  map[string]string `json:"collected_data"`
	Transcript     []string          `json:"transcript" jsonschema_description:"Speaker-prefixed lines of the call"`
}

// Server wraps the IVR Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("ivr-mcp", strings.TrimSpace(ivr.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: start_call
	s.mcpServer.AddTool(mcp.NewTool("start_call",
		mcp.WithDescription("Place a new call to the train enquiry line and hear the welcome menu."),
		mcp.WithOutputSchema[TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleStartCall))

	// TOOL: send_input
	s.mcpServer.AddTool(mcp.NewTool("send_input",
		mcp.WithDescription("Say something or press a key during a call."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Call identifier returned by start_call")),
		mcp.WithString("input", mcp.Required(), mcp.Description("Utterance or keypad key")),
		mcp.WithString("channel", mcp.Description("keypad or speech (default: keypad for a single key, else speech)"),
			mcp.Enum(string(domain.ChannelKeypad), string(domain.ChannelSpeech))),
		mcp.WithOutputSchema[TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendInput))

	// TOOL: end_call
	s.mcpServer.AddTool(mcp.NewTool("end_call",
		mcp.WithDescription("Hang up and get the call summary."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Call identifier")),
		mcp.WithOutputSchema[SummaryResponse](),
	), mcp.NewStructuredToolHandler(s.handleEndCall))

	// TOOL: list_flows
	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the menu flows of the enquiry line."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(s.engine.ListFlows())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list flows failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleStartCall(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (TurnResponse, error) {
	res, err := s.engine.CreateSession(ctx)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return toTurnResponse(res), nil
}

func (s *Server) handleSendInput(ctx context.Context, _ mcp.CallToolRequest, args InputArgs) (TurnResponse, error) {
	if args.SessionID == "" {
		return TurnResponse{}, errors.New("session_id is required")
	}
	ch, err := domain.ResolveChannel(args.Channel, args.Input)
	if err != nil {
		return TurnResponse{}, err
	}

	res, err := s.engine.Advance(ctx, args.SessionID, args.Input, ch)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return TurnResponse{}, fmt.Errorf("call %s not found; use start_call first", args.SessionID)
		}
		s.logger.Warn("MCP send_input failed", "session_id", args.SessionID, "err", err)
		return TurnResponse{}, fmt.Errorf("input failed: %w", err)
	}
	return toTurnResponse(res), nil
}

func (s *Server) handleEndCall(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (SummaryResponse, error) {
	summary, err := s.engine.EndSession(ctx, args.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return SummaryResponse{}, fmt.Errorf("call %s not found", args.SessionID)
		}
		return SummaryResponse{}, fmt.Errorf("end failed: %w", err)
	}

	resp := SummaryResponse{
		SessionID:      summary.SessionID,
		TotalExchanges: summary.TotalExchanges,
		DurationMillis: summary.Duration.Milliseconds(),
		FinalFlow:      summary.FinalFlow,
		FinalState:     summary.FinalState,
		CollectedData:  summary.CollectedData,
		Transcript:     make([]string, 0, len(summary.Transcript)),
	}
	for _, e := range summary.Transcript {
		resp.Transcript = append(resp.Transcript, fmt.Sprintf("%s: %s", e.Speaker, e.Text))
	}
	return resp, nil
}

func (s *Server) registerResources() {
	// EXPOSE: ivr://flows
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Loaded IVR flows",
		mcp.WithMIMEType("application/json"),
	), s.readFlows)
}

func (s *Server) readFlows(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.engine.ListFlows())
	if err != nil {
		return nil, fmt.Errorf("failed to encode flows: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FlowsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

func toTurnResponse(res *domain.TurnResult) TurnResponse {
	return TurnResponse{
		SessionID:     res.SessionID,
		Message:       res.Message,
		Options:       res.Options,
		Flow:          res.Flow,
		State:         res.State,
		Terminal:      res.Terminal,
		Outcome:       string(res.Outcome),
		MatchedOption: res.MatchedOption,
		Confidence:    res.Confidence,
	}
}
