package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kfreiman/careerlink/internal/backend"
	"github.com/kfreiman/careerlink/internal/config"
	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/polling"
)

const (
	ServerName    = "CareerLinkServer"
	ServerVersion = "1.0.0"
	ServiceName   = "careerlink-mcp"

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout = 10 * time.Second
)

// Dependencies are the components the server exposes
type Dependencies struct {
	Sync    *orchestrate.SyncOrchestrator
	Ranking *polling.Tracker[polling.RankingResult]
	Parsing *polling.Tracker[polling.ParsedResume]
	Backend backend.Client
	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server encapsulates the MCP server with all its dependencies
type Server struct {
	mcpServer *mcp.Server
	sync      *orchestrate.SyncOrchestrator
	ranking   *polling.Tracker[polling.RankingResult]
	parsing   *polling.Tracker[polling.ParsedResume]
	backend   backend.Client
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	config    config.Config

	// runCtx outlives tool requests; runs and sessions started by tools
	// live on it until Close.
	runCtx   context.Context
	stopRuns context.CancelFunc
}

// NewServer creates a new MCP server with the given configuration
func NewServer(cfg config.Config, deps Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	runCtx, stopRuns := context.WithCancel(context.Background())

	s := &Server{
		sync:     deps.Sync,
		ranking:  deps.Ranking,
		parsing:  deps.Parsing,
		backend:  deps.Backend,
		gatherer: gatherer,
		logger:   logger,
		config:   cfg,
		runCtx:   runCtx,
		stopRuns: stopRuns,
	}

	impl := &mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}

	s.mcpServer = mcp.NewServer(impl, &mcp.ServerOptions{
		Instructions: ServerInstructions,
	})

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// registerResources registers all resource handlers
func (s *Server) registerResources() {
	stateHandler := NewStateResourceHandler(s.sync, s.ranking, s.parsing)
	for _, resource := range stateHandler.ListResources() {
		s.mcpServer.AddResource(resource, stateHandler.ReadResource)
	}
}

// registerPrompts registers all prompt handlers
func (s *Server) registerPrompts() {
	explainPrompt := NewExplainStatusPrompt()
	for _, promptDef := range PromptDefinitions {
		s.mcpServer.AddPrompt(promptDef, explainPrompt.Handle)
	}
}

// registerTools registers all tool handlers
func (s *Server) registerTools() {
	// account linking
	s.mcpServer.AddTool(ToolDefinitions["link_account"], NewLinkAccountTool(s.sync, s.runCtx).WithLogger(s.logger).Call)
	s.mcpServer.AddTool(ToolDefinitions["retry_link"], NewRetryLinkTool(s.sync, s.runCtx).WithLogger(s.logger).Call)
	s.mcpServer.AddTool(ToolDefinitions["cancel_link"], NewCancelLinkTool(s.sync).Call)
	s.mcpServer.AddTool(ToolDefinitions["link_status"], NewLinkStatusTool(s.sync).Call)

	// task tracking
	s.mcpServer.AddTool(ToolDefinitions["track_ranking"], NewTrackRankingTool(s.ranking, s.runCtx).WithLogger(s.logger).Call)
	s.mcpServer.AddTool(ToolDefinitions["track_parsing"], NewTrackParsingTool(s.parsing, s.runCtx).WithLogger(s.logger).Call)
	s.mcpServer.AddTool(ToolDefinitions["task_status"], NewTaskStatusTool(s.ranking, s.parsing).Call)
	s.mcpServer.AddTool(ToolDefinitions["cancel_task"], NewCancelTaskTool(s.ranking, s.parsing).Call)
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	httpHandler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, &mcp.StreamableHTTPOptions{
		JSONResponse: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/mcp", httpHandler)
	r.Get("/health/live", s.LivenessHandler)
	r.Get("/health/ready", s.ReadinessHandler)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/", s.indexHandler)

	return r
}

// ListenAndServe serves HTTP until ctx is cancelled, then shuts down
// gracefully and stops every live run.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.InfoContext(ctx, "starting MCP server",
		"port", s.config.Port,
		"endpoints", []string{"/mcp", "/health/live", "/health/ready", "/metrics", "/"},
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "shutting down MCP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels every live run and session.
func (s *Server) Close() {
	s.sync.Cancel()
	s.ranking.Cancel()
	s.parsing.Cancel()
	s.stopRuns()
}

// indexHandler returns the server information page
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "CareerLink MCP Server\n\n")
	fmt.Fprintf(w, "Endpoints:\n")
	fmt.Fprintf(w, "  POST /mcp          - Streamable HTTP transport (recommended)\n")
	fmt.Fprintf(w, "  GET  /health/live  - Liveness probe\n")
	fmt.Fprintf(w, "  GET  /health/ready - Readiness probe (backend reachability)\n")
	fmt.Fprintf(w, "  GET  /metrics      - Prometheus metrics\n")
	fmt.Fprintf(w, "  GET  /             - This help message\n\n")
	fmt.Fprintf(w, "Server: %s %s\n", ServerName, ServerVersion)
}
