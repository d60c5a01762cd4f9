package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

func newTestHandler(t *testing.T, opts ...Option) (http.Handler, *ivr.Engine) {
	t.Helper()
	n := 0
	eng, err := ivr.New("", ivr.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}))
	require.NoError(t, err)

	handler, err := NewHandler(eng, opts...)
	require.NoError(t, err)
	return handler, eng
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "Train IVR System API", doc.Info.Title)
	assert.NotNil(t, doc.Paths.Find("/api/ivr/input"))
}

func TestRootAndHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	root := decode[map[string]any](t, w)
	assert.Equal(t, "Train IVR System API", root["message"])
	assert.Contains(t, root["endpoints"], "/api/ivr/start")

	w = do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.GreaterOrEqual(t, health.UptimeSeconds, 0.0)
	assert.Zero(t, health.ActiveSessions)

	w = do(t, h, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.0.0", decode[map[string]string](t, w)["api_version"])
}

func TestSessionLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/api/ivr/start", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	start := decode[domain.TurnResult](t, w)
	assert.Equal(t, "sess-1", start.SessionID)
	assert.Equal(t, "main_menu", start.State)

	w = do(t, h, http.MethodPost, "/api/ivr/input", InputRequest{SessionID: start.SessionID, Input: "1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	turn := decode[domain.TurnResult](t, w)
	assert.Equal(t, start.SessionID, turn.SessionID)
	assert.Equal(t, "booking", turn.Flow)
	assert.Equal(t, domain.OutcomeKeypad, turn.Outcome, "a single digit is keypad input")
	assert.NotEmpty(t, turn.Message)

	w = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, 1, decode[HealthResponse](t, w).ActiveSessions)

	w = do(t, h, http.MethodPost, "/api/ivr/end", SessionRequest{SessionID: start.SessionID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	end := decode[EndResponse](t, w)
	require.NotNil(t, end.Summary)
	assert.Equal(t, start.SessionID, end.Summary.SessionID)
	assert.Equal(t, 1, end.Summary.TotalExchanges)
}

func TestStartWithoutBody(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ivr/start", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestInput_Errors(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown session", InputRequest{SessionID: "invalid", Input: "1"}, http.StatusNotFound},
		{"missing input", map[string]any{"session_id": "invalid"}, http.StatusBadRequest},
		{"bad channel", InputRequest{SessionID: "invalid", Input: "1", Channel: "fax"}, http.StatusBadRequest},
		{"wrong type", map[string]any{"session_id": 42, "input": "1"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/ivr/input", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, w)["detail"])
		})
	}

	w := do(t, h, http.MethodPost, "/api/ivr/end", SessionRequest{SessionID: "invalid"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInput_SpeechChannel(t *testing.T) {
	h, eng := newTestHandler(t)
	ctx := context.Background()

	start, err := eng.CreateSession(ctx)
	require.NoError(t, err)

	w := do(t, h, http.MethodPost, "/api/ivr/input", InputRequest{SessionID: start.SessionID, Input: "I want to check my PNR status"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	turn := decode[domain.TurnResult](t, w)
	assert.Equal(t, "pnr_status", turn.Flow)
	assert.Equal(t, domain.OutcomeMatched, turn.Outcome)
}

func TestListFlowsAndGraph(t *testing.T) {
	h, eng := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/api/flows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	flows := decode[FlowsResponse](t, w)
	assert.Contains(t, flows.AvailableFlows, "train_main")
	assert.Len(t, flows.AvailableFlows, 10)

	w = do(t, h, http.MethodGet, "/api/flows/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD\n"))
	assert.NotContains(t, w.Body.String(), "classDef current")

	start, err := eng.CreateSession(context.Background())
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/api/flows/graph?session_id="+start.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class train_main__main_menu current;")

	w = do(t, h, http.MethodGet, "/api/flows/graph?session_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenAPIAndCORS(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = do(t, h, http.MethodOptions, "/api/ivr/input", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics are only served when configured")

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ivr_turns_total 1\n"))
	})
	h, _ = newTestHandler(t, WithMetricsHandler(metrics))
	w = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ivr_turns_total")
}

func TestSubscribeEvents_Session(t *testing.T) {
	h, eng := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx := context.Background()
	start, err := eng.CreateSession(ctx)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/ivr/events?session_id=" + start.SessionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitFor := func(prefix string) string {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	waitFor("event: ping")

	_, err = eng.Advance(ctx, start.SessionID, "2", domain.ChannelKeypad)
	require.NoError(t, err)

	line := waitFor("data: {")
	var diff domain.SessionDiff
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
	require.NotNil(t, diff.Flow)
	assert.Equal(t, "status", *diff.Flow)

	_, err = eng.EndSession(ctx, start.SessionID)
	require.NoError(t, err)
	waitFor("event: end")
}

func TestSubscribeEvents_UnknownSession(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/api/ivr/events?session_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/ivr/events", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
