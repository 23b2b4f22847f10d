package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/polling"
)

// Resource URIs exposing live state.
const (
	LinkStatusURI     = "careerlink://link/status"
	RankingSessionURI = "careerlink://tasks/ranking"
	ParsingSessionURI = "careerlink://tasks/parsing"
)

// StateResourceHandler serves the link and task state as JSON resources
type StateResourceHandler struct {
	sync    *orchestrate.SyncOrchestrator
	ranking *polling.Tracker[polling.RankingResult]
	parsing *polling.Tracker[polling.ParsedResume]
}

// NewStateResourceHandler creates a new state resource handler
func NewStateResourceHandler(sync *orchestrate.SyncOrchestrator, ranking *polling.Tracker[polling.RankingResult], parsing *polling.Tracker[polling.ParsedResume]) *StateResourceHandler {
	return &StateResourceHandler{
		sync:    sync,
		ranking: ranking,
		parsing: parsing,
	}
}

// ReadResource returns the current state behind uri
func (h *StateResourceHandler) ReadResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI

	var state any
	switch uri {
	case LinkStatusURI:
		state = h.sync.Snapshot()
	case RankingSessionURI:
		state = h.ranking.Snapshot()
	case ParsingSessionURI:
		state = h.parsing.Snapshot()
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// ListResources lists all available resources
func (h *StateResourceHandler) ListResources() []*mcp.Resource {
	return []*mcp.Resource{
		{
			URI:         LinkStatusURI,
			Name:        "Account Link Status",
			Description: "Phase, busy flag and message of the account link",
			MIMEType:    "application/json",
		},
		{
			URI:         RankingSessionURI,
			Name:        "Ranking Tracking",
			Description: "Current candidate ranking tracking session",
			MIMEType:    "application/json",
		},
		{
			URI:         ParsingSessionURI,
			Name:        "Parsing Tracking",
			Description: "Current resume parsing tracking session",
			MIMEType:    "application/json",
		},
	}
}
