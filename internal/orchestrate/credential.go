package orchestrate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/kfreiman/careerlink/internal/redaction"
	"github.com/kfreiman/careerlink/internal/telemetry"
)

// DefaultCredentialAttemptTimeout bounds a single credential request.
const DefaultCredentialAttemptTimeout = 5 * time.Second

// CredentialAcquirer repeatedly asks the identity provider for a fresh
// credential until one is returned or its budget runs out.
type CredentialAcquirer struct {
	source         CredentialSource
	policy         BackoffPolicy
	attemptTimeout time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	metrics        *telemetry.Metrics
}

// NewCredentialAcquirer creates an acquirer using CredentialPolicy and the
// real clock.
func NewCredentialAcquirer(source CredentialSource) *CredentialAcquirer {
	return &CredentialAcquirer{
		source:         source,
		policy:         CredentialPolicy,
		attemptTimeout: DefaultCredentialAttemptTimeout,
		clock:          clock.RealClock{},
		logger:         slog.Default(),
	}
}

// WithPolicy overrides the retry schedule
func (a *CredentialAcquirer) WithPolicy(policy BackoffPolicy) *CredentialAcquirer {
	a.policy = policy
	return a
}

// WithAttemptTimeout bounds each provider call. A call still pending after d
// counts as a failed attempt.
func (a *CredentialAcquirer) WithAttemptTimeout(d time.Duration) *CredentialAcquirer {
	a.attemptTimeout = d
	return a
}

// WithClock sets the clock used for waits
func (a *CredentialAcquirer) WithClock(clk clock.Clock) *CredentialAcquirer {
	a.clock = clk
	return a
}

// WithLogger sets a custom logger for the acquirer
func (a *CredentialAcquirer) WithLogger(logger *slog.Logger) *CredentialAcquirer {
	a.logger = logger
	return a
}

// WithMetrics sets the metrics recorder
func (a *CredentialAcquirer) WithMetrics(m *telemetry.Metrics) *CredentialAcquirer {
	a.metrics = m
	return a
}

// Acquire returns a non-empty credential. Provider errors, empty
// credentials and calls cut off by the attempt timeout are transient and
// retried. When the budget is spent it
// returns a *BudgetExhaustedError for PhaseToken; if ctx is cancelled it
// returns the context error.
func (a *CredentialAcquirer) Acquire(ctx context.Context) (string, error) {
	start := a.clock.Now()
	budget := a.policy.Budget(start)

	var (
		delay   time.Duration
		lastErr error
	)

	for attempt := 1; ; attempt++ {
		credential, err := a.request(ctx)
		if err == nil && strings.TrimSpace(credential) == "" {
			err = ErrEmptyCredential
		}
		if err == nil {
			a.metrics.RecordAttempt(telemetry.ComponentCredential, telemetry.ResultSuccess)
			a.metrics.RecordOutcome(telemetry.ComponentCredential, "success", a.clock.Since(start))
			a.logger.DebugContext(ctx, "credential acquired",
				"attempt", attempt,
				"elapsed", a.clock.Since(start),
			)
			return credential, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		lastErr = err
		a.metrics.RecordAttempt(telemetry.ComponentCredential, telemetry.ResultFailure)

		var remaining time.Duration
		delay, remaining = budget.NextDelay(delay, a.clock.Now())
		if remaining <= 0 {
			elapsed := a.clock.Since(start)
			a.metrics.RecordOutcome(telemetry.ComponentCredential, "exhausted", elapsed)
			a.logger.ErrorContext(ctx, "credential budget exhausted",
				"attempts", attempt,
				"elapsed", elapsed,
				"error", redaction.RedactString(lastErr.Error()),
			)
			return "", &BudgetExhaustedError{
				Phase:    PhaseToken,
				Attempts: attempt,
				Elapsed:  elapsed,
				LastErr:  lastErr,
			}
		}

		a.logger.DebugContext(ctx, "credential attempt failed, retrying",
			"attempt", attempt,
			"wait", delay,
			"remaining", remaining,
			"error", redaction.RedactString(err.Error()),
		)

		if err := Sleep(ctx, a.clock, delay); err != nil {
			return "", err
		}
	}
}

// request makes one provider call bounded by the attempt timeout.
func (a *CredentialAcquirer) request(ctx context.Context) (string, error) {
	attemptCtx, cancel := WithAttemptTimeout(ctx, a.clock, a.attemptTimeout)
	defer cancel()

	credential, err := a.source.Credential(attemptCtx, CredentialOptions{ForceRefresh: true})
	return credential, AttemptError(attemptCtx, err)
}
