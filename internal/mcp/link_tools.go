package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/redaction"
)

// jsonResult renders v as the tool's text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

// errorResult reports a tool-level failure the client can act on.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

// LinkAccountTool starts an account link
type LinkAccountTool struct {
	sync   *orchestrate.SyncOrchestrator
	runCtx context.Context
	logger *slog.Logger
}

// NewLinkAccountTool creates a link_account tool. Runs it starts live on
// runCtx, not on the request context.
func NewLinkAccountTool(sync *orchestrate.SyncOrchestrator, runCtx context.Context) *LinkAccountTool {
	return &LinkAccountTool{
		sync:   sync,
		runCtx: runCtx,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the tool
func (t *LinkAccountTool) WithLogger(logger *slog.Logger) *LinkAccountTool {
	t.logger = logger
	return t
}

// Call implements the MCP tool interface
func (t *LinkAccountTool) Call(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		UID         string `json:"uid" validate:"required"`
		Email       string `json:"email" validate:"omitempty,email"`
		DisplayName string `json:"display_name" validate:"max=200"`
		Restart     bool   `json:"restart"`
	}

	if err := decodeArgs(request, &args); err != nil {
		return argumentError(err)
	}

	identity := orchestrate.Identity{
		ID:          args.UID,
		Email:       args.Email,
		DisplayName: args.DisplayName,
	}

	start := t.sync.Start
	if args.Restart {
		start = t.sync.Restart
	}

	if _, err := start(t.runCtx, identity); err != nil {
		if errors.Is(err, orchestrate.ErrRunInProgress) {
			return errorResult("An account link is already in progress. Check link_status, or call link_account with restart=true."), nil
		}
		return errorResult(err.Error()), nil
	}

	t.logger.InfoContext(ctx, "account link requested",
		"uid", identity.ID,
		"email", redaction.MaskEmail(identity.Email),
		"restart", args.Restart,
	)

	return jsonResult(t.sync.Snapshot())
}

// RetryLinkTool re-runs the account link
type RetryLinkTool struct {
	sync   *orchestrate.SyncOrchestrator
	runCtx context.Context
	logger *slog.Logger
}

// NewRetryLinkTool creates a retry_link tool
func NewRetryLinkTool(sync *orchestrate.SyncOrchestrator, runCtx context.Context) *RetryLinkTool {
	return &RetryLinkTool{
		sync:   sync,
		runCtx: runCtx,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the tool
func (t *RetryLinkTool) WithLogger(logger *slog.Logger) *RetryLinkTool {
	t.logger = logger
	return t
}

// Call implements the MCP tool interface
func (t *RetryLinkTool) Call(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := t.sync.Retry(t.runCtx); err != nil {
		if errors.Is(err, orchestrate.ErrNoIdentity) {
			return errorResult("Nothing to retry yet. Call link_account first."), nil
		}
		return errorResult(err.Error()), nil
	}

	t.logger.InfoContext(ctx, "account link retry requested")
	return jsonResult(t.sync.Snapshot())
}

// CancelLinkTool abandons the account link in progress
type CancelLinkTool struct {
	sync *orchestrate.SyncOrchestrator
}

// NewCancelLinkTool creates a cancel_link tool
func NewCancelLinkTool(sync *orchestrate.SyncOrchestrator) *CancelLinkTool {
	return &CancelLinkTool{sync: sync}
}

// Call implements the MCP tool interface
func (t *CancelLinkTool) Call(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.sync.Cancel()
	return jsonResult(t.sync.Snapshot())
}

// LinkStatusTool reports the account link state
type LinkStatusTool struct {
	sync *orchestrate.SyncOrchestrator
}

// NewLinkStatusTool creates a link_status tool
func NewLinkStatusTool(sync *orchestrate.SyncOrchestrator) *LinkStatusTool {
	return &LinkStatusTool{sync: sync}
}

// Call implements the MCP tool interface
func (t *LinkStatusTool) Call(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.sync.Snapshot())
}
