package orchestrate

import (
	"context"
	"errors"
	"time"

	"k8s.io/utils/clock"
)

// Identity is the user handed off by the identity provider.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// CredentialOptions tunes a credential request.
type CredentialOptions struct {
	// ForceRefresh skips any cached credential and asks the provider for a
	// new one.
	ForceRefresh bool
}

// CredentialSource is the identity-provider session that yields bearer
// credentials.
type CredentialSource interface {
	Credential(ctx context.Context, opts CredentialOptions) (string, error)
}

// CredentialSourceFunc adapts a function to CredentialSource.
type CredentialSourceFunc func(ctx context.Context, opts CredentialOptions) (string, error)

// Credential calls f(ctx, opts).
func (f CredentialSourceFunc) Credential(ctx context.Context, opts CredentialOptions) (string, error) {
	return f(ctx, opts)
}

// Sleep waits d on clk. It returns early with the context error if ctx is
// done first.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithAttemptTimeout derives a context that is cancelled with
// ErrAttemptTimeout once d elapses on clk. A non-positive d leaves the
// attempt bounded only by ctx.
func WithAttemptTimeout(ctx context.Context, clk clock.Clock, d time.Duration) (context.Context, context.CancelFunc) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	if d <= 0 {
		return attemptCtx, func() { cancel(context.Canceled) }
	}

	timer := clk.NewTimer(d)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.C():
			cancel(ErrAttemptTimeout)
		case <-attemptCtx.Done():
		}
	}()

	return attemptCtx, func() {
		timer.Stop()
		cancel(context.Canceled)
	}
}

// AttemptError tags err with ErrAttemptTimeout when attemptCtx was cut off
// by its attempt bound.
func AttemptError(attemptCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cause := context.Cause(attemptCtx); errors.Is(cause, ErrAttemptTimeout) && !errors.Is(err, ErrAttemptTimeout) {
		return errors.Join(ErrAttemptTimeout, err)
	}
	return err
}
