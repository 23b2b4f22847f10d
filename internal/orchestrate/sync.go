package orchestrate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/kfreiman/careerlink/internal/redaction"
	"github.com/kfreiman/careerlink/internal/telemetry"
)

// Snapshot is the state of the sync orchestrator visible to the
// presentation layer.
type Snapshot struct {
	RunID          string `json:"-"`
	Phase          Phase  `json:"phase"`
	Busy           bool   `json:"is_busy"`
	FailedPhase    Phase  `json:"failed_phase,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	SuccessMessage string `json:"success_message,omitempty"`
}

// SyncConfig holds configuration for the sync orchestrator
type SyncConfig struct {
	Acquirer *CredentialAcquirer
	Linker   *BackendLinker
	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	// OnSuccess runs once per successful live run, after subscribers.
	OnSuccess func(Snapshot)
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// SyncOrchestrator completes account provisioning after an identity
// handoff: it acquires a fresh credential, then links it to the backend
// account.
//
// At most one run is live. Every run captures a generation when it starts;
// Restart, Retry and Cancel advance the generation, after which the older
// run's results are discarded and it fires no callbacks.
type SyncOrchestrator struct {
	acquirer  *CredentialAcquirer
	linker    *BackendLinker
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	onSuccess func(Snapshot)

	gen Generation

	// notifyMu serializes commits so subscribers observe transitions in
	// order. It is never held while taking mu from the outside.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       Snapshot
	identity    *Identity
	cancelRun   context.CancelFunc
	subscribers []subscriber
	nextSubID   int
}

// NewSyncOrchestrator creates an idle orchestrator.
func NewSyncOrchestrator(config SyncConfig) *SyncOrchestrator {
	o := &SyncOrchestrator{
		acquirer:  config.Acquirer,
		linker:    config.Linker,
		clock:     config.Clock,
		logger:    config.Logger,
		metrics:   config.Metrics,
		onSuccess: config.OnSuccess,
		state:     Snapshot{Phase: PhaseIdle},
	}

	if o.clock == nil {
		o.clock = clock.RealClock{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// Start begins a run for identity. It is rejected with ErrRunInProgress
// while another run is busy. The returned channel is closed when the run's
// goroutine exits, whether it finished, failed or was superseded.
func (o *SyncOrchestrator) Start(ctx context.Context, identity Identity) (<-chan struct{}, error) {
	if identity.ID == "" {
		return nil, ErrNoIdentity
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Busy {
		return nil, ErrRunInProgress
	}
	return o.launchLocked(ctx, identity), nil
}

// Restart begins a run for identity, superseding any live run.
func (o *SyncOrchestrator) Restart(ctx context.Context, identity Identity) (<-chan struct{}, error) {
	if identity.ID == "" {
		return nil, ErrNoIdentity
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	return o.launchLocked(ctx, identity), nil
}

// Retry re-runs the sync for the most recent identity. It supersedes any
// live run, so the latest Start/Restart/Retry always wins.
func (o *SyncOrchestrator) Retry(ctx context.Context) (<-chan struct{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.identity == nil {
		return nil, ErrNoIdentity
	}
	return o.launchLocked(ctx, *o.identity), nil
}

// Cancel abandons the live run, if any. Observers are not notified; the
// snapshot reads PhaseCancelled afterwards.
func (o *SyncOrchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gen.Bump()
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	if o.state.Busy {
		o.logger.Debug("sync run cancelled", "run_id", o.state.RunID)
		o.state.Phase = PhaseCancelled
		o.state.Busy = false
	}
}

// Snapshot returns the current state.
func (o *SyncOrchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers fn to receive every state transition of live runs.
// Callbacks run on the run's goroutine and may call back into the
// orchestrator. The returned function unsubscribes.
func (o *SyncOrchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextSubID++
	id := o.nextSubID
	o.subscribers = append(o.subscribers, subscriber{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subscribers {
			if s.id == id {
				o.subscribers = append(o.subscribers[:i], o.subscribers[i+1:]...)
				return
			}
		}
	}
}

// launchLocked supersedes the live run and starts a new one. o.mu must be
// held.
func (o *SyncOrchestrator) launchLocked(ctx context.Context, identity Identity) <-chan struct{} {
	if o.cancelRun != nil {
		o.cancelRun()
	}

	g := o.gen.Bump()
	runCtx, cancel := context.WithCancel(ctx)
	o.cancelRun = cancel

	id := identity
	o.identity = &id
	o.state = Snapshot{
		RunID: uuid.NewString(),
		Phase: PhaseIdle,
		Busy:  true,
	}

	done := make(chan struct{})
	go o.run(runCtx, cancel, g, o.state.RunID, identity, done)
	return done
}

func (o *SyncOrchestrator) run(ctx context.Context, cancel context.CancelFunc, g int64, runID string, identity Identity, done chan<- struct{}) {
	defer close(done)
	defer cancel()

	start := o.clock.Now()
	logger := o.logger.With("run_id", runID, "uid", identity.ID)

	if !o.commit(g, func(s *Snapshot) { s.Phase = PhaseToken }) {
		return
	}
	logger.InfoContext(ctx, "sync started",
		"email", redaction.MaskEmail(identity.Email),
	)

	credential, err := o.acquirer.Acquire(ctx)
	if err != nil {
		o.fail(ctx, logger, g, start, PhaseToken, err)
		return
	}

	if !o.commit(g, func(s *Snapshot) { s.Phase = PhaseSync }) {
		return
	}

	if err := o.linker.Link(ctx, identity, credential); err != nil {
		o.fail(ctx, logger, g, start, PhaseSync, err)
		return
	}

	if o.commit(g, func(s *Snapshot) {
		s.Phase = PhaseSucceeded
		s.Busy = false
		s.ErrorMessage = ""
		s.SuccessMessage = MessageSucceeded
	}) {
		o.metrics.RecordOutcome(telemetry.ComponentSync, "succeeded", o.clock.Since(start))
		logger.InfoContext(ctx, "sync succeeded", "elapsed", o.clock.Since(start))
	}
}

// fail records a terminal failure for phase. Cancellation is silent.
func (o *SyncOrchestrator) fail(ctx context.Context, logger *slog.Logger, g int64, start time.Time, phase Phase, err error) {
	if ctx.Err() != nil {
		o.abandon(g)
		return
	}

	message := MessageSyncFailed
	if phase == PhaseToken {
		message = MessageTokenFailed
	}
	if be, ok := IsBudgetExhausted(err); ok {
		message = be.UserMessage()
	}

	if o.commit(g, func(s *Snapshot) {
		s.Phase = PhaseFailed
		s.Busy = false
		s.FailedPhase = phase
		s.ErrorMessage = message
		s.SuccessMessage = ""
	}) {
		o.metrics.RecordOutcome(telemetry.ComponentSync, "failed_"+string(phase), o.clock.Since(start))
		logger.ErrorContext(ctx, "sync failed",
			"failed_phase", phase,
			"error", redaction.RedactString(err.Error()),
		)
	}
}

// abandon handles a run whose context ended without Cancel, e.g. the
// caller's context was cancelled. The run becomes Cancelled silently.
func (o *SyncOrchestrator) abandon(g int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.gen.IsStale(g) {
		return
	}
	o.gen.Bump()
	o.cancelRun = nil
	o.state.Phase = PhaseCancelled
	o.state.Busy = false
}

// commit applies mutate if generation g is still live and notifies
// subscribers. It reports whether the write happened.
func (o *SyncOrchestrator) commit(g int64, mutate func(*Snapshot)) bool {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.gen.IsStale(g) {
		o.mu.Unlock()
		return false
	}
	mutate(&o.state)
	snap := o.state
	subs := make([]func(Snapshot), len(o.subscribers))
	for i, s := range o.subscribers {
		subs[i] = s.fn
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	if snap.Phase == PhaseSucceeded && o.onSuccess != nil {
		o.onSuccess(snap)
	}
	return true
}
