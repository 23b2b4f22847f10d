package mcp

import "github.com/modelcontextprotocol/go-sdk/mcp"

// ServerInstructions contains the MCP server instructions for clients
const ServerInstructions = `CareerLink Server - account linking and task tracking

This server completes account provisioning after sign-in and tracks
server-side jobs (candidate ranking, resume parsing) until they finish.

## Transport

This server uses streamable HTTP transport only. Connect via:
- POST /mcp  - Streamable HTTP transport (recommended)

## Tools

### link_account
Start linking a signed-in identity to its backend account. The server fetches
a fresh credential, then submits the link request, retrying both within their
time budgets.
Parameters:
- uid: Identity provider user id
- email: Account email
- display_name: Optional full name copied to the profile
- restart: Optional - supersede a link already in progress

Example: {"uid": "f3a9...", "email": "jane@example.com", "display_name": "Jane Doe"}

### retry_link
Run the link again for the most recent identity.

### cancel_link
Abandon the link in progress.

### link_status
Current link state: {phase, is_busy, error_message, success_message}.
Phases: idle, acquiring_token, linking_backend, succeeded, failed, cancelled.

### track_ranking
Poll a candidate ranking job until it completes.
Parameters:
- job_id: Job whose ranking was triggered

### track_parsing
Poll a resume parsing job until it completes.
Parameters:
- resume_id: Uploaded resume id

### task_status
Current tracking state for a task kind: {status, attempts, result, error}.
Parameters:
- kind: "ranking" or "parsing"

### cancel_task
Stop tracking a task kind.
Parameters:
- kind: "ranking" or "parsing"

Running statuses: polling (no answer yet), not_started (the job does not
exist yet) and in_progress (the job is running). Final statuses: completed,
failed, timed_out, not_available and cancelled. timed_out and not_available
are soft outcomes: the job may still finish, so track it again later. idle
means nothing was tracked.

## Resources

- careerlink://link/status   - account link state (JSON)
- careerlink://tasks/ranking - ranking tracking session (JSON)
- careerlink://tasks/parsing - parsing tracking session (JSON)

## Prompts

### explain_status
Explain the link or task state to the user. Argument: subject (link, ranking, parsing).
`

var kindSchema = map[string]interface{}{
	"type":        "string",
	"description": "Task kind: 'ranking' or 'parsing'",
	"enum":        []string{TaskRanking, TaskParsing},
}

// ToolDefinitions contains the MCP tool definitions
var ToolDefinitions = map[string]*mcp.Tool{
	"link_account": {
		Name:        "link_account",
		Description: "Link a signed-in identity to its backend account. Returns the link state; poll link_status for progress.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"uid": map[string]interface{}{
					"type":        "string",
					"description": "Identity provider user id",
				},
				"email": map[string]interface{}{
					"type":        "string",
					"description": "Account email",
				},
				"display_name": map[string]interface{}{
					"type":        "string",
					"description": "Full name copied to the profile (optional)",
				},
				"restart": map[string]interface{}{
					"type":        "boolean",
					"description": "Supersede a link already in progress",
					"default":     false,
				},
			},
			"required": []string{"uid"},
		},
	},
	"retry_link": {
		Name:        "retry_link",
		Description: "Run the account link again for the most recent identity.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	},
	"cancel_link": {
		Name:        "cancel_link",
		Description: "Abandon the account link in progress.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	},
	"link_status": {
		Name:        "link_status",
		Description: "Current account link state: phase, busy flag and user-facing message.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	},
	"track_ranking": {
		Name:        "track_ranking",
		Description: "Poll a candidate ranking job until it completes, fails, or is reported as not started.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job whose ranking was triggered",
				},
			},
			"required": []string{"job_id"},
		},
	},
	"track_parsing": {
		Name:        "track_parsing",
		Description: "Poll a resume parsing job until it completes or fails.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"resume_id": map[string]interface{}{
					"type":        "string",
					"description": "Uploaded resume id",
				},
			},
			"required": []string{"resume_id"},
		},
	},
	"task_status": {
		Name:        "task_status",
		Description: "Current tracking state of a task kind: status, attempts, result and error.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"kind": kindSchema,
			},
			"required": []string{"kind"},
		},
	},
	"cancel_task": {
		Name:        "cancel_task",
		Description: "Stop tracking a task kind.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"kind": kindSchema,
			},
			"required": []string{"kind"},
		},
	},
}
