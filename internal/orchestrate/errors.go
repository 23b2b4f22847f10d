package orchestrate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRunInProgress is returned by Start when a live run has not finished.
	ErrRunInProgress = errors.New("sync already in progress")

	// ErrNoIdentity is returned when a run is requested without an identity.
	ErrNoIdentity = errors.New("identity id is required")

	// ErrEmptyCredential marks a credential call that returned nothing.
	ErrEmptyCredential = errors.New("identity provider returned an empty credential")

	// ErrAttemptTimeout is the cancellation cause of a request that
	// outlived its per-attempt timeout.
	ErrAttemptTimeout = errors.New("attempt timed out")
)

// Phase names a stage of the sync state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseToken     Phase = "acquiring_token"
	PhaseSync      Phase = "linking_backend"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// User-facing messages for terminal outcomes.
const (
	MessageTokenFailed = "We couldn't establish a session with your sign-in provider. Please try again."
	MessageSyncFailed  = "Your account is safe, but we couldn't finish linking it. Retry now, or it will be linked the next time you sign in."
	MessageSucceeded   = "Your account is ready."
)

// BudgetExhaustedError is returned when a phase ran out of time without
// succeeding. It is the only failure the sync core surfaces to callers.
type BudgetExhaustedError struct {
	Phase    Phase
	Attempts int
	Elapsed  time.Duration
	LastErr  error
}

func (e *BudgetExhaustedError) Error() string {
	msg := fmt.Sprintf("%s budget exhausted after %d attempts (%s)", e.Phase, e.Attempts, e.Elapsed)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	return msg
}

func (e *BudgetExhaustedError) Unwrap() error {
	return e.LastErr
}

// UserMessage returns the human-readable message for the exhausted phase.
func (e *BudgetExhaustedError) UserMessage() string {
	if e.Phase == PhaseToken {
		return MessageTokenFailed
	}
	return MessageSyncFailed
}

// IsBudgetExhausted reports whether err is a BudgetExhaustedError, and
// returns it.
func IsBudgetExhausted(err error) (*BudgetExhaustedError, bool) {
	var be *BudgetExhaustedError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
