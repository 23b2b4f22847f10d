package polling

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/kfreiman/careerlink/internal/backend"
	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/telemetry"
)

// Session bounds of the two task kinds.
var (
	RankingConfig = Config{
		Interval:        2 * time.Second,
		MaxAttempts:     30,
		NotStartedLimit: 5,
		AttemptTimeout:  orchestrate.DefaultAttemptTimeout,
	}

	// A missing parse job is the awaited initial state, so there is no
	// early exit.
	ParsingConfig = Config{
		Interval:       1500 * time.Millisecond,
		MaxAttempts:    20,
		AttemptTimeout: orchestrate.DefaultAttemptTimeout,
	}
)

const (
	// DefaultRankingPath is the ranking status endpoint; {ref} is the job id.
	DefaultRankingPath = "/api/jobs/{ref}/rankings/status"

	// DefaultParsingPath is the parsing status endpoint; {ref} is the resume id.
	DefaultParsingPath = "/api/resumes/{ref}/parse/status"
)

// Ranking is one ranked candidate for a job.
type Ranking struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
}

// RankingResult is the payload of a completed ranking job.
type RankingResult struct {
	Rankings []Ranking `json:"rankings"`
}

// ParsedResume is the payload of a completed resume parse.
type ParsedResume struct {
	Fields map[string]any `json:"fields"`
}

type rankingStatus struct {
	Status   string    `json:"status"`
	Rankings []Ranking `json:"rankings"`
	Error    string    `json:"error"`
}

type parsingStatus struct {
	Status string         `json:"status"`
	Fields map[string]any `json:"fields"`
	Error  string         `json:"error"`
}

// ClassifyRanking classifies a ranking status response. Only an explicit
// "not_started" status counts as not started; any non-2xx response is
// treated as still in progress.
func ClassifyRanking(resp *backend.Response) Classification[RankingResult] {
	if !resp.OK() {
		return Classification[RankingResult]{Status: TaskInProgress}
	}

	var body rankingStatus
	if err := resp.Decode(&body); err != nil {
		return Classification[RankingResult]{Status: TaskInProgress}
	}

	switch strings.ToLower(body.Status) {
	case "completed", "done":
		return Classification[RankingResult]{
			Status: TaskCompleted,
			Result: RankingResult{Rankings: body.Rankings},
		}
	case "failed", "error":
		return Classification[RankingResult]{Status: TaskFailed, Message: body.Error}
	case "not_started":
		return Classification[RankingResult]{Status: TaskNotStarted}
	default:
		return Classification[RankingResult]{Status: TaskInProgress}
	}
}

// ClassifyParsing classifies a parsing status response. 404 means the parse
// job does not exist yet.
func ClassifyParsing(resp *backend.Response) Classification[ParsedResume] {
	if resp != nil && resp.Status == http.StatusNotFound {
		return Classification[ParsedResume]{Status: TaskNotStarted}
	}
	if !resp.OK() {
		return Classification[ParsedResume]{Status: TaskInProgress}
	}

	var body parsingStatus
	if err := resp.Decode(&body); err != nil {
		return Classification[ParsedResume]{Status: TaskInProgress}
	}

	switch strings.ToLower(body.Status) {
	case "completed", "parsed":
		return Classification[ParsedResume]{
			Status: TaskCompleted,
			Result: ParsedResume{Fields: body.Fields},
		}
	case "failed", "error":
		return Classification[ParsedResume]{Status: TaskFailed, Message: body.Error}
	default:
		return Classification[ParsedResume]{Status: TaskInProgress}
	}
}

// StatusFetcher returns a Fetcher that GETs pathTemplate with {ref}
// replaced by ref. credentials may be nil for unauthenticated backends. The
// credential lookup and the request share the fetch's ctx, so the
// controller's attempt timeout bounds both.
func StatusFetcher(client backend.Client, credentials orchestrate.CredentialSource, pathTemplate, ref string) Fetcher[*backend.Response] {
	endpoint := strings.ReplaceAll(pathTemplate, "{ref}", url.PathEscape(ref))

	return func(ctx context.Context) (*backend.Response, error) {
		var credential string
		if credentials != nil {
			c, err := credentials.Credential(ctx, orchestrate.CredentialOptions{})
			if err != nil {
				return nil, err
			}
			credential = c
		}

		return client.Send(ctx, backend.Request{
			Method:     http.MethodGet,
			Endpoint:   endpoint,
			Credential: credential,
		})
	}
}

// TrackerConfig holds configuration for a task tracker
type TrackerConfig struct {
	Backend      backend.Client
	Credentials  orchestrate.CredentialSource
	PathTemplate string
	Config       Config
	Clock        clock.Clock
	Logger       *slog.Logger
	Metrics      *telemetry.Metrics
}

// Tracker polls one kind of backend task by reference.
type Tracker[T any] struct {
	*Controller[*backend.Response, T]

	backend      backend.Client
	credentials  orchestrate.CredentialSource
	pathTemplate string
}

func newTracker[T any](component string, classify Classifier[*backend.Response, T], defaults Config, defaultPath string, config TrackerConfig) *Tracker[T] {
	bounds := config.Config
	if bounds == (Config{}) {
		bounds = defaults
	}
	path := config.PathTemplate
	if path == "" {
		path = defaultPath
	}

	controller := NewController(component, classify, bounds).WithMetrics(config.Metrics)
	if config.Clock != nil {
		controller.WithClock(config.Clock)
	}
	if config.Logger != nil {
		controller.WithLogger(config.Logger)
	}

	return &Tracker[T]{
		Controller:   controller,
		backend:      config.Backend,
		credentials:  config.Credentials,
		pathTemplate: path,
	}
}

// NewRankingTracker creates a tracker for candidate ranking jobs.
func NewRankingTracker(config TrackerConfig) *Tracker[RankingResult] {
	return newTracker[RankingResult](telemetry.ComponentRanking, ClassifyRanking, RankingConfig, DefaultRankingPath, config)
}

// NewParsingTracker creates a tracker for resume parsing jobs.
func NewParsingTracker(config TrackerConfig) *Tracker[ParsedResume] {
	return newTracker[ParsedResume](telemetry.ComponentParsing, ClassifyParsing, ParsingConfig, DefaultParsingPath, config)
}

// Track starts a background session for ref, superseding any live one.
func (t *Tracker[T]) Track(ctx context.Context, ref string) (<-chan struct{}, error) {
	return t.Start(ctx, ref, StatusFetcher(t.backend, t.credentials, t.pathTemplate, ref))
}

// Await polls ref on the calling goroutine until a terminal outcome.
func (t *Tracker[T]) Await(ctx context.Context, ref string) (Result[T], error) {
	if ref == "" {
		return Result[T]{}, ErrNoRef
	}
	logger := t.logger.With("component", t.component, "ref", ref)
	return t.poll(ctx, StatusFetcher(t.backend, t.credentials, t.pathTemplate, ref), logger, nil)
}
