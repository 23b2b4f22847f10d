// Package polling awaits server-side asynchronous tasks with bounded,
// self-rescheduling status checks.
package polling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/redaction"
	"github.com/kfreiman/careerlink/internal/telemetry"
)

// ErrNoRef is returned when a session is started without a task reference.
var ErrNoRef = errors.New("task reference is required")

// TaskStatus is the classification of one status response.
type TaskStatus int

const (
	TaskInProgress TaskStatus = iota
	TaskNotStarted
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskNotStarted:
		return "not_started"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "in_progress"
	}
}

// State is the lifecycle state of a polling session. The terminal states
// double as poll outcomes. A running session is polling until its first
// status arrives, then reports the latest one as not_started or in_progress.
type State string

const (
	StateIdle         State = "idle"
	StatePolling      State = "polling"
	StateNotStarted   State = "not_started"
	StateInProgress   State = "in_progress"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateTimedOut     State = "timed_out"
	StateNotAvailable State = "not_available"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateNotAvailable, StateCancelled:
		return true
	}
	return false
}

// Running reports whether s belongs to a live session.
func (s State) Running() bool {
	switch s {
	case StatePolling, StateNotStarted, StateInProgress:
		return true
	}
	return false
}

// Messages reported for soft outcomes.
const (
	MessageNotAvailable = "This task is not available yet. Try triggering it again."
	MessageTimedOut     = "This is taking longer than expected. Refresh to check again."
	MessageFailed       = "The task failed."
)

// Fetcher retrieves the raw status of a task.
type Fetcher[R any] func(ctx context.Context) (R, error)

// Classification is a classifier's verdict on one raw status.
type Classification[T any] struct {
	Status TaskStatus
	// Result is the payload of a completed task.
	Result T
	// Message explains a failed task.
	Message string
}

// Classifier maps a raw status to a Classification.
type Classifier[R, T any] func(raw R) Classification[T]

// Config bounds a polling session.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	// NotStartedLimit ends the session early after this many consecutive
	// not-started responses. Zero disables the early exit.
	NotStartedLimit int
	// AttemptTimeout bounds one fetch. A fetch cut off by it counts as a
	// failed attempt. Zero leaves fetches bounded only by the session.
	AttemptTimeout time.Duration
}

// Result is the terminal outcome of Poll.
type Result[T any] struct {
	Outcome  State
	Attempts int
	Value    T
	Message  string
}

// Session is the state of the controller's current session visible to the
// presentation layer.
type Session[T any] struct {
	RunID    string `json:"-"`
	Ref      string `json:"ref,omitempty"`
	Status   State  `json:"status"`
	Attempts int    `json:"attempts"`
	Result   *T     `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Controller polls a task until it completes, fails, is reported as never
// started, or runs out of attempts. It owns at most one live session;
// starting another supersedes it.
type Controller[R, T any] struct {
	component string
	config    Config
	classify  Classifier[R, T]
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	gen orchestrate.Generation

	notifyMu sync.Mutex

	mu          sync.Mutex
	session     Session[T]
	cancelRun   context.CancelFunc
	subscribers map[int]func(Session[T])
	nextSubID   int
}

// NewController creates a controller. component labels its logs and
// metrics.
func NewController[R, T any](component string, classify Classifier[R, T], config Config) *Controller[R, T] {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Controller[R, T]{
		component:   component,
		config:      config,
		classify:    classify,
		clock:       clock.RealClock{},
		logger:      slog.Default(),
		session:     Session[T]{Status: StateIdle},
		subscribers: make(map[int]func(Session[T])),
	}
}

// WithClock sets the clock used between attempts
func (c *Controller[R, T]) WithClock(clk clock.Clock) *Controller[R, T] {
	c.clock = clk
	return c
}

// WithLogger sets a custom logger for the controller
func (c *Controller[R, T]) WithLogger(logger *slog.Logger) *Controller[R, T] {
	c.logger = logger
	return c
}

// WithMetrics sets the metrics recorder
func (c *Controller[R, T]) WithMetrics(m *telemetry.Metrics) *Controller[R, T] {
	c.metrics = m
	return c
}

// Config returns the session bounds.
func (c *Controller[R, T]) Config() Config {
	return c.config
}

// Poll runs one session to completion on the calling goroutine. The first
// fetch is immediate, later ones follow Interval apart. A fetch error counts
// as an attempt and leaves the not-started streak unchanged. The error is
// non-nil only when ctx ends first.
func (c *Controller[R, T]) Poll(ctx context.Context, fetch Fetcher[R]) (Result[T], error) {
	return c.poll(ctx, fetch, c.logger, nil)
}

// observer is told about every attempt of a background session and the
// running status it reported; an empty status keeps the previous one.
// Returning false abandons the session.
type observer func(attempt int, status State) bool

func (c *Controller[R, T]) poll(ctx context.Context, fetch Fetcher[R], logger *slog.Logger, observe observer) (Result[T], error) {
	start := c.clock.Now()
	notStarted := 0

	for attempt := 1; ; attempt++ {
		raw, err := c.fetchOnce(ctx, fetch)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result[T]{Outcome: StateCancelled, Attempts: attempt}, ctxErr
		}

		var verdict Classification[T]
		if err == nil {
			verdict = c.classify(raw)
		}
		if observe != nil && !observe(attempt, progress(verdict.Status, err)) {
			return Result[T]{Outcome: StateCancelled, Attempts: attempt}, context.Canceled
		}

		if err != nil {
			c.metrics.RecordAttempt(c.component, telemetry.ResultFailure)
			logger.DebugContext(ctx, "status fetch failed",
				"attempt", attempt,
				"error", redaction.RedactString(err.Error()),
			)
		} else {
			c.metrics.RecordAttempt(c.component, telemetry.ResultSuccess)
			logger.DebugContext(ctx, "status fetched",
				"attempt", attempt,
				"status", verdict.Status,
			)

			switch verdict.Status {
			case TaskCompleted:
				return c.finish(ctx, logger, start, Result[T]{
					Outcome:  StateCompleted,
					Attempts: attempt,
					Value:    verdict.Result,
				}), nil
			case TaskFailed:
				msg := verdict.Message
				if msg == "" {
					msg = MessageFailed
				}
				return c.finish(ctx, logger, start, Result[T]{
					Outcome:  StateFailed,
					Attempts: attempt,
					Message:  msg,
				}), nil
			case TaskNotStarted:
				notStarted++
				if c.config.NotStartedLimit > 0 && notStarted >= c.config.NotStartedLimit {
					return c.finish(ctx, logger, start, Result[T]{
						Outcome:  StateNotAvailable,
						Attempts: attempt,
						Message:  MessageNotAvailable,
					}), nil
				}
			default:
				notStarted = 0
			}
		}

		if attempt >= c.config.MaxAttempts {
			return c.finish(ctx, logger, start, Result[T]{
				Outcome:  StateTimedOut,
				Attempts: attempt,
				Message:  MessageTimedOut,
			}), nil
		}

		if err := orchestrate.Sleep(ctx, c.clock, c.config.Interval); err != nil {
			return Result[T]{Outcome: StateCancelled, Attempts: attempt}, err
		}
	}
}

// fetchOnce runs one fetch bounded by the attempt timeout.
func (c *Controller[R, T]) fetchOnce(ctx context.Context, fetch Fetcher[R]) (R, error) {
	attemptCtx, cancel := orchestrate.WithAttemptTimeout(ctx, c.clock, c.config.AttemptTimeout)
	defer cancel()

	raw, err := fetch(attemptCtx)
	return raw, orchestrate.AttemptError(attemptCtx, err)
}

// progress is the session status a running session reports after one
// attempt. Terminal verdicts and fetch errors leave it unchanged.
func progress(status TaskStatus, err error) State {
	if err != nil {
		return ""
	}
	switch status {
	case TaskNotStarted:
		return StateNotStarted
	case TaskInProgress:
		return StateInProgress
	}
	return ""
}

func (c *Controller[R, T]) finish(ctx context.Context, logger *slog.Logger, start time.Time, res Result[T]) Result[T] {
	elapsed := c.clock.Since(start)
	c.metrics.RecordOutcome(c.component, string(res.Outcome), elapsed)

	level := slog.LevelInfo
	if res.Outcome != StateCompleted {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "polling finished",
		"outcome", res.Outcome,
		"attempts", res.Attempts,
		"elapsed", elapsed,
	)
	return res
}

// Start begins a session for ref on its own goroutine, superseding any live
// session. The returned channel is closed when the session's goroutine
// exits.
func (c *Controller[R, T]) Start(ctx context.Context, ref string, fetch Fetcher[R]) (<-chan struct{}, error) {
	if ref == "" {
		return nil, ErrNoRef
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelRun != nil {
		c.cancelRun()
	}
	g := c.gen.Bump()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.session = Session[T]{
		RunID:  uuid.NewString(),
		Ref:    ref,
		Status: StatePolling,
	}

	logger := c.logger.With("component", c.component, "ref", ref, "run_id", c.session.RunID)
	logger.InfoContext(ctx, "polling started",
		"interval", c.config.Interval,
		"max_attempts", c.config.MaxAttempts,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		c.runSession(runCtx, g, fetch, logger)
	}()
	return done, nil
}

func (c *Controller[R, T]) runSession(ctx context.Context, g int64, fetch Fetcher[R], logger *slog.Logger) {
	observe := func(attempt int, status State) bool {
		return c.commit(g, func(s *Session[T]) {
			s.Attempts = attempt
			if status != "" {
				s.Status = status
			}
		})
	}

	res, err := c.poll(ctx, fetch, logger, observe)
	if err != nil {
		c.abandon(g)
		return
	}

	c.commit(g, func(s *Session[T]) {
		s.Status = res.Outcome
		s.Attempts = res.Attempts
		s.Error = res.Message
		if res.Outcome == StateCompleted {
			v := res.Value
			s.Result = &v
		}
	})
}

// Cancel abandons the live session, if any, without notifying subscribers.
func (c *Controller[R, T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen.Bump()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	if c.session.Status.Running() {
		c.session.Status = StateCancelled
	}
}

// Snapshot returns the current session.
func (c *Controller[R, T]) Snapshot() Session[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Subscribe registers fn to receive session updates of live sessions. The
// returned function unsubscribes.
func (c *Controller[R, T]) Subscribe(fn func(Session[T])) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Controller[R, T]) abandon(g int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen.IsStale(g) {
		return
	}
	c.gen.Bump()
	c.cancelRun = nil
	c.session.Status = StateCancelled
}

func (c *Controller[R, T]) commit(g int64, mutate func(*Session[T])) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.gen.IsStale(g) {
		c.mu.Unlock()
		return false
	}
	mutate(&c.session)
	snap := c.session
	subs := make([]func(Session[T]), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}
