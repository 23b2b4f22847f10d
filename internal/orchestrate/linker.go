package orchestrate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/kfreiman/careerlink/internal/backend"
	"github.com/kfreiman/careerlink/internal/redaction"
	"github.com/kfreiman/careerlink/internal/telemetry"
)

const (
	// DefaultAttemptTimeout bounds a single link request.
	DefaultAttemptTimeout = 10 * time.Second

	// DefaultLinkEndpoint receives the identity link request.
	DefaultLinkEndpoint = "/api/auth/sync"

	// DefaultProfileEndpoint receives the best-effort profile name patch.
	DefaultProfileEndpoint = "/api/users/me"
)

// LinkerConfig holds configuration for the backend linker
type LinkerConfig struct {
	Backend         backend.Client
	Credentials     CredentialSource
	Policy          BackoffPolicy
	AttemptTimeout  time.Duration
	LinkEndpoint    string
	ProfileEndpoint string
	Clock           clock.Clock
	Logger          *slog.Logger
	Metrics         *telemetry.Metrics
}

// BackendLinker submits the identity link request until the backend
// accepts it or the budget runs out.
type BackendLinker struct {
	backend         backend.Client
	credentials     CredentialSource
	policy          BackoffPolicy
	attemptTimeout  time.Duration
	linkEndpoint    string
	profileEndpoint string
	clock           clock.Clock
	logger          *slog.Logger
	metrics         *telemetry.Metrics
}

// NewBackendLinker creates a linker from config, filling in defaults.
func NewBackendLinker(config LinkerConfig) *BackendLinker {
	l := &BackendLinker{
		backend:         config.Backend,
		credentials:     config.Credentials,
		policy:          config.Policy,
		attemptTimeout:  config.AttemptTimeout,
		linkEndpoint:    config.LinkEndpoint,
		profileEndpoint: config.ProfileEndpoint,
		clock:           config.Clock,
		logger:          config.Logger,
		metrics:         config.Metrics,
	}

	if l.policy == (BackoffPolicy{}) {
		l.policy = LinkPolicy
	}
	if l.attemptTimeout == 0 {
		l.attemptTimeout = DefaultAttemptTimeout
	}
	if l.linkEndpoint == "" {
		l.linkEndpoint = DefaultLinkEndpoint
	}
	if l.profileEndpoint == "" {
		l.profileEndpoint = DefaultProfileEndpoint
	}
	if l.clock == nil {
		l.clock = clock.RealClock{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l
}

// Link submits the link request for identity. credential is the one
// obtained by the acquirer; each attempt first tries to pick up a newer one.
// Per-attempt failures are absorbed. When the budget is spent it returns a
// *BudgetExhaustedError for PhaseSync; if ctx is cancelled it returns the
// context error.
func (l *BackendLinker) Link(ctx context.Context, identity Identity, credential string) error {
	start := l.clock.Now()
	budget := l.policy.Budget(start)
	email := redaction.MaskEmail(identity.Email)

	var (
		delay   time.Duration
		lastErr error
	)

	for attempt := 1; ; attempt++ {
		var err error
		credential, err = l.attempt(ctx, identity, credential)
		if err == nil {
			l.metrics.RecordAttempt(telemetry.ComponentLink, telemetry.ResultSuccess)
			l.metrics.RecordOutcome(telemetry.ComponentLink, "success", l.clock.Since(start))
			l.logger.InfoContext(ctx, "backend account linked",
				"uid", identity.ID,
				"email", email,
				"attempt", attempt,
				"elapsed", l.clock.Since(start),
			)
			l.updateProfile(ctx, identity, credential)
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		l.metrics.RecordAttempt(telemetry.ComponentLink, telemetry.ResultFailure)

		var remaining time.Duration
		delay, remaining = budget.NextDelay(delay, l.clock.Now())
		if remaining <= 0 {
			elapsed := l.clock.Since(start)
			l.metrics.RecordOutcome(telemetry.ComponentLink, "exhausted", elapsed)
			l.logger.ErrorContext(ctx, "backend link budget exhausted",
				"uid", identity.ID,
				"email", email,
				"attempts", attempt,
				"elapsed", elapsed,
				"error", redaction.RedactString(lastErr.Error()),
			)
			return &BudgetExhaustedError{
				Phase:    PhaseSync,
				Attempts: attempt,
				Elapsed:  elapsed,
				LastErr:  lastErr,
			}
		}

		l.logger.WarnContext(ctx, "backend link attempt failed, retrying",
			"uid", identity.ID,
			"attempt", attempt,
			"wait", delay,
			"remaining", remaining,
			"error", redaction.RedactString(err.Error()),
		)

		if err := Sleep(ctx, l.clock, delay); err != nil {
			return err
		}
	}
}

// attempt refreshes the credential and issues one link request, both bounded
// by the attempt timeout. It returns the credential it sent.
func (l *BackendLinker) attempt(ctx context.Context, identity Identity, previous string) (string, error) {
	attemptCtx, cancel := WithAttemptTimeout(ctx, l.clock, l.attemptTimeout)
	defer cancel()

	credential := l.latestCredential(attemptCtx, previous)

	resp, err := l.backend.Send(attemptCtx, backend.Request{
		Method:     http.MethodPost,
		Endpoint:   l.linkEndpoint,
		Credential: credential,
		Body: map[string]string{
			"uid":   identity.ID,
			"email": identity.Email,
		},
	})
	if err != nil {
		return credential, AttemptError(attemptCtx, err)
	}

	return credential, backend.CheckStatus(l.linkEndpoint, resp)
}

// latestCredential asks the provider for its current credential, keeping
// the previous one when the provider fails.
func (l *BackendLinker) latestCredential(ctx context.Context, previous string) string {
	if l.credentials == nil {
		return previous
	}
	credential, err := l.credentials.Credential(ctx, CredentialOptions{})
	if err != nil || strings.TrimSpace(credential) == "" {
		if err == nil {
			err = ErrEmptyCredential
		}
		l.logger.DebugContext(ctx, "could not refresh credential, reusing previous",
			"error", redaction.RedactString(err.Error()),
		)
		return previous
	}
	return credential
}

// updateProfile patches the display name. It never affects the link result.
func (l *BackendLinker) updateProfile(ctx context.Context, identity Identity, credential string) {
	name := strings.TrimSpace(identity.DisplayName)
	if name == "" {
		return
	}

	attemptCtx, cancel := WithAttemptTimeout(ctx, l.clock, l.attemptTimeout)
	defer cancel()

	resp, err := l.backend.Send(attemptCtx, backend.Request{
		Method:     http.MethodPatch,
		Endpoint:   l.profileEndpoint,
		Credential: credential,
		Body:       map[string]string{"full_name": name},
	})
	if err == nil {
		err = backend.CheckStatus(l.profileEndpoint, resp)
	}
	if err != nil {
		l.metrics.RecordAttempt(telemetry.ComponentProfile, telemetry.ResultFailure)
		l.logger.WarnContext(ctx, "profile name update failed",
			"uid", identity.ID,
			"error", redaction.RedactString(err.Error()),
		)
		return
	}

	l.metrics.RecordAttempt(telemetry.ComponentProfile, telemetry.ResultSuccess)
}
