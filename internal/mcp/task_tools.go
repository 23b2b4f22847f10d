package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kfreiman/careerlink/internal/polling"
)

// Task kinds accepted by task_status and cancel_task.
const (
	TaskRanking = "ranking"
	TaskParsing = "parsing"
)

// TrackRankingTool starts tracking a ranking job
type TrackRankingTool struct {
	tracker *polling.Tracker[polling.RankingResult]
	runCtx  context.Context
	logger  *slog.Logger
}

// NewTrackRankingTool creates a track_ranking tool
func NewTrackRankingTool(tracker *polling.Tracker[polling.RankingResult], runCtx context.Context) *TrackRankingTool {
	return &TrackRankingTool{
		tracker: tracker,
		runCtx:  runCtx,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the tool
func (t *TrackRankingTool) WithLogger(logger *slog.Logger) *TrackRankingTool {
	t.logger = logger
	return t
}

// Call implements the MCP tool interface
func (t *TrackRankingTool) Call(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		JobID string `json:"job_id" validate:"required"`
	}
	if err := decodeArgs(request, &args); err != nil {
		return argumentError(err)
	}

	if _, err := t.tracker.Track(t.runCtx, args.JobID); err != nil {
		return errorResult(err.Error()), nil
	}

	t.logger.InfoContext(ctx, "ranking tracking requested", "job_id", args.JobID)
	return jsonResult(t.tracker.Snapshot())
}

// TrackParsingTool starts tracking a resume parsing job
type TrackParsingTool struct {
	tracker *polling.Tracker[polling.ParsedResume]
	runCtx  context.Context
	logger  *slog.Logger
}

// NewTrackParsingTool creates a track_parsing tool
func NewTrackParsingTool(tracker *polling.Tracker[polling.ParsedResume], runCtx context.Context) *TrackParsingTool {
	return &TrackParsingTool{
		tracker: tracker,
		runCtx:  runCtx,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the tool
func (t *TrackParsingTool) WithLogger(logger *slog.Logger) *TrackParsingTool {
	t.logger = logger
	return t
}

// Call implements the MCP tool interface
func (t *TrackParsingTool) Call(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ResumeID string `json:"resume_id" validate:"required"`
	}
	if err := decodeArgs(request, &args); err != nil {
		return argumentError(err)
	}

	if _, err := t.tracker.Track(t.runCtx, args.ResumeID); err != nil {
		return errorResult(err.Error()), nil
	}

	t.logger.InfoContext(ctx, "parsing tracking requested", "resume_id", args.ResumeID)
	return jsonResult(t.tracker.Snapshot())
}

// TaskStatusTool reports or cancels tracking by task kind
type TaskStatusTool struct {
	ranking *polling.Tracker[polling.RankingResult]
	parsing *polling.Tracker[polling.ParsedResume]
	cancel  bool
}

// NewTaskStatusTool creates a task_status tool
func NewTaskStatusTool(ranking *polling.Tracker[polling.RankingResult], parsing *polling.Tracker[polling.ParsedResume]) *TaskStatusTool {
	return &TaskStatusTool{ranking: ranking, parsing: parsing}
}

// NewCancelTaskTool creates a cancel_task tool
func NewCancelTaskTool(ranking *polling.Tracker[polling.RankingResult], parsing *polling.Tracker[polling.ParsedResume]) *TaskStatusTool {
	return &TaskStatusTool{ranking: ranking, parsing: parsing, cancel: true}
}

// Call implements the MCP tool interface
func (t *TaskStatusTool) Call(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Kind string `json:"kind" validate:"required,oneof=ranking parsing"`
	}
	if err := decodeArgs(request, &args); err != nil {
		return argumentError(err)
	}

	switch args.Kind {
	case TaskRanking:
		if t.cancel {
			t.ranking.Cancel()
		}
		return jsonResult(t.ranking.Snapshot())
	case TaskParsing:
		if t.cancel {
			t.parsing.Cancel()
		}
		return jsonResult(t.parsing.Snapshot())
	default:
		return errorResult(fmt.Sprintf("unknown task kind '%s'", args.Kind)), nil
	}
}

// argumentError turns validation failures into tool errors and anything
// else into a protocol error.
func argumentError(err error) (*mcp.CallToolResult, error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return errorResult(ve.Error()), nil
	}
	return nil, err
}
