package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PromptDefinitions contains the MCP prompt definitions
var PromptDefinitions = []*mcp.Prompt{
	{
		Name:        "explain_status",
		Description: "Explain the current account link or task state to the user and suggest the next step",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "subject",
				Description: "What to explain: 'link' (default), 'ranking' or 'parsing'",
				Required:    false,
			},
		},
	},
}

// ExplainStatusPrompt handles the explain_status prompt
type ExplainStatusPrompt struct{}

// NewExplainStatusPrompt creates a new explain status prompt
func NewExplainStatusPrompt() *ExplainStatusPrompt {
	return &ExplainStatusPrompt{}
}

// Handle implements the prompt handler interface
func (p *ExplainStatusPrompt) Handle(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	subject := "link"
	if req.Params != nil && req.Params.Arguments["subject"] != "" {
		subject = strings.ToLower(req.Params.Arguments["subject"])
	}

	var uri string
	switch subject {
	case "link":
		uri = LinkStatusURI
	case TaskRanking:
		uri = RankingSessionURI
	case TaskParsing:
		uri = ParsingSessionURI
	default:
		return nil, fmt.Errorf("unknown subject '%s': must be link, ranking or parsing", subject)
	}

	return &mcp.GetPromptResult{
		Description: "Explain " + subject + " status",
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: BuildExplainStatusPrompt(subject, uri),
				},
			},
		},
	}, nil
}

// BuildExplainStatusPrompt creates the explanation prompt for subject
func BuildExplainStatusPrompt(subject, uri string) string {
	var guidance string
	switch subject {
	case "link":
		guidance = `- acquiring_token / linking_backend: the link is still running, ask the user to wait.
- failed with failed_phase acquiring_token: sign-in did not produce a session; suggest signing in again.
- failed with failed_phase linking_backend: the account is safe; offer retry_link.
- cancelled: nothing is running; offer link_account.
- succeeded: confirm the account is ready.`
	default:
		guidance = `- polling: waiting for the first answer, report the attempt count.
- not_started: the job has not been picked up yet, ask the user to wait.
- in_progress: the job is running, report the attempt count.
- completed: summarize the result.
- failed: relay the error.
- timed_out: the job may still finish; offer to track it again later.
- not_available: the job was never started; suggest triggering it again.
- cancelled: nothing is running.`
	}

	return fmt.Sprintf(`Read the MCP resource %s and explain the %s status to the user in one or two sentences.

## How to read it

%s

Do not show raw field names or JSON to the user. Answer in the user's language.`, uri, subject, guidance)
}
