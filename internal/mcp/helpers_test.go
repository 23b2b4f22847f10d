package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kfreiman/careerlink/internal/backend"
	"github.com/kfreiman/careerlink/internal/config"
	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/polling"
	"github.com/kfreiman/careerlink/internal/telemetry"
)

// quickPolicy keeps failing runs short on the real clock.
var quickPolicy = orchestrate.BackoffPolicy{
	Window:       150 * time.Millisecond,
	InitialDelay: 20 * time.Millisecond,
	Multiplier:   2,
	MaxDelay:     40 * time.Millisecond,
}

var quickPolling = polling.Config{
	Interval:        10 * time.Millisecond,
	MaxAttempts:     4,
	NotStartedLimit: 2,
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticCredentials(token string) orchestrate.CredentialSource {
	return orchestrate.CredentialSourceFunc(func(ctx context.Context, opts orchestrate.CredentialOptions) (string, error) {
		return token, nil
	})
}

type testServer struct {
	*Server
	backend *httptest.Server
	reg     *prometheus.Registry
}

// newTestServer wires a Server against a fake backend serving handler.
func newTestServer(t *testing.T, handler http.Handler) *testServer {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)

	logger := discardLogger()
	client := backend.NewHTTPClient(srv.URL, 2*time.Second).WithLogger(logger)
	creds := staticCredentials("token-abc")

	acquirer := orchestrate.NewCredentialAcquirer(creds).
		WithPolicy(quickPolicy).
		WithLogger(logger).
		WithMetrics(metrics)
	linker := orchestrate.NewBackendLinker(orchestrate.LinkerConfig{
		Backend:        client,
		Credentials:    creds,
		Policy:         quickPolicy,
		AttemptTimeout: time.Second,
		Logger:         logger,
		Metrics:        metrics,
	})
	sync := orchestrate.NewSyncOrchestrator(orchestrate.SyncConfig{
		Acquirer: acquirer,
		Linker:   linker,
		Logger:   logger,
		Metrics:  metrics,
	})

	trackerConfig := polling.TrackerConfig{
		Backend:     client,
		Credentials: creds,
		Config:      quickPolling,
		Logger:      logger,
		Metrics:     metrics,
	}

	cfg := config.Config{Port: 8080, HealthPath: "/health"}
	s := NewServer(cfg, Dependencies{
		Sync:     sync,
		Ranking:  polling.NewRankingTracker(trackerConfig),
		Parsing:  polling.NewParsingTracker(trackerConfig),
		Backend:  client,
		Gatherer: reg,
	}, logger)
	t.Cleanup(s.Close)

	return &testServer{Server: s, backend: srv, reg: reg}
}

func callRequest(t *testing.T, args any) *mcp.CallToolRequest {
	t.Helper()
	if args == nil {
		return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}}
	}
	argsJSON, err := json.Marshal(args)
	require.NoError(t, err)
	return &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(argsJSON)},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func decodeResult[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &v))
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
