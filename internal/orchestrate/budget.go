package orchestrate

import (
	"time"
)

// BackoffPolicy describes how a phase retries: a total window and an
// exponential delay schedule.
type BackoffPolicy struct {
	Window       time.Duration
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// CredentialPolicy is the schedule used while acquiring a fresh credential.
var CredentialPolicy = BackoffPolicy{
	Window:       20 * time.Second,
	InitialDelay: 500 * time.Millisecond,
	Multiplier:   1.5,
	MaxDelay:     3 * time.Second,
}

// LinkPolicy is the schedule used while linking the backend account.
var LinkPolicy = BackoffPolicy{
	Window:       20 * time.Second,
	InitialDelay: 900 * time.Millisecond,
	Multiplier:   1.7,
	MaxDelay:     5 * time.Second,
}

// Budget starts a RetryBudget whose deadline is now + Window.
func (p BackoffPolicy) Budget(now time.Time) RetryBudget {
	return RetryBudget{
		Deadline:     now.Add(p.Window),
		InitialDelay: p.InitialDelay,
		Multiplier:   p.Multiplier,
		CapDelay:     p.MaxDelay,
	}
}

// RetryBudget is a deadline plus a backoff schedule. It is a plain value:
// every method is pure and deterministic given its inputs.
type RetryBudget struct {
	Deadline     time.Time
	InitialDelay time.Duration
	Multiplier   float64
	CapDelay     time.Duration
}

// NextDelay returns the wait that follows current in the schedule and the
// time left before the deadline. A non-positive current yields the initial
// delay. The wait is capped at CapDelay and never extends past the deadline;
// remaining <= 0 means the budget is spent.
func (b RetryBudget) NextDelay(current time.Duration, now time.Time) (wait, remaining time.Duration) {
	remaining = b.Deadline.Sub(now)
	if remaining <= 0 {
		return 0, remaining
	}

	if current <= 0 {
		wait = b.InitialDelay
	} else {
		wait = time.Duration(float64(current) * b.multiplier())
		// Guard against a multiplier that would shrink the schedule.
		if wait < current {
			wait = current
		}
	}

	if b.CapDelay > 0 && wait > b.CapDelay {
		wait = b.CapDelay
	}
	if wait > remaining {
		wait = remaining
	}

	return wait, remaining
}

// Remaining returns the time left before the deadline.
func (b RetryBudget) Remaining(now time.Time) time.Duration {
	return b.Deadline.Sub(now)
}

// Exhausted reports whether the deadline has been reached.
func (b RetryBudget) Exhausted(now time.Time) bool {
	return !now.Before(b.Deadline)
}

func (b RetryBudget) multiplier() float64 {
	if b.Multiplier < 1 {
		return 1
	}
	return b.Multiplier
}
