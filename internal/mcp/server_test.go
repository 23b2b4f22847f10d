package mcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfreiman/careerlink/internal/orchestrate"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Routes(t *testing.T) {
	var linked atomic.Int32
	s := newTestServer(t, linkedBackend(&linked))

	// record at least one outcome so the metric families are exported
	_, err := s.sync.Start(s.runCtx, orchestrate.Identity{ID: "uid-123"})
	require.NoError(t, err)
	waitPhase(t, s.sync, orchestrate.PhaseSucceeded)

	api := httptest.NewServer(s.Handler())
	defer api.Close()

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{path: "/", wantCode: http.StatusOK, contains: "CareerLink MCP Server"},
		{path: "/health/live", wantCode: http.StatusOK, contains: `"status":"healthy"`},
		{path: "/health/ready", wantCode: http.StatusServiceUnavailable, contains: `"backend":"unreachable"`},
		{path: "/metrics", wantCode: http.StatusOK, contains: "careerlink_outcomes_total"},
		{path: "/unknown", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, api.URL+tt.path)
			assert.Equal(t, tt.wantCode, code)
			if tt.contains != "" {
				assert.Contains(t, body, tt.contains)
			}
		})
	}
}

func TestServer_MCPSession(t *testing.T) {
	var linked atomic.Int32
	s := newTestServer(t, linkedBackend(&linked))

	api := httptest.NewServer(s.Handler())
	defer api.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "careerlink-test", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: api.URL + "/mcp"}, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"cancel_link", "cancel_task", "link_account", "link_status",
		"retry_link", "task_status", "track_parsing", "track_ranking",
	}, names)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "link_account",
		Arguments: map[string]any{"uid": "uid-123", "email": "jane@example.com"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	waitPhase(t, s.sync, orchestrate.PhaseSucceeded)
	assert.Equal(t, int32(1), linked.Load())
}

func TestServer_CloseCancelsRuns(t *testing.T) {
	s := newTestServer(t, blockingLink())

	_, err := s.sync.Start(s.runCtx, orchestrate.Identity{ID: "uid-123"})
	require.NoError(t, err)
	waitPhase(t, s.sync, orchestrate.PhaseSync)

	s.Close()

	assert.Equal(t, orchestrate.PhaseCancelled, s.sync.Snapshot().Phase)
	assert.ErrorIs(t, s.runCtx.Err(), context.Canceled)
}
