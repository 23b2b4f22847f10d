package orchestrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBudget_NextDelay(t *testing.T) {
	budget := CredentialPolicy.Budget(epoch)

	tests := []struct {
		name          string
		current       time.Duration
		now           time.Time
		wantWait      time.Duration
		wantRemaining time.Duration
	}{
		{
			name:          "first delay is the initial delay",
			current:       0,
			now:           epoch,
			wantWait:      500 * time.Millisecond,
			wantRemaining: 20 * time.Second,
		},
		{
			name:          "grows by multiplier",
			current:       500 * time.Millisecond,
			now:           epoch.Add(time.Second),
			wantWait:      750 * time.Millisecond,
			wantRemaining: 19 * time.Second,
		},
		{
			name:          "capped",
			current:       2500 * time.Millisecond,
			now:           epoch.Add(5 * time.Second),
			wantWait:      3 * time.Second,
			wantRemaining: 15 * time.Second,
		},
		{
			name:          "clamped to deadline",
			current:       3 * time.Second,
			now:           epoch.Add(19 * time.Second),
			wantWait:      time.Second,
			wantRemaining: time.Second,
		},
		{
			name:          "exhausted at deadline",
			current:       time.Second,
			now:           epoch.Add(20 * time.Second),
			wantWait:      0,
			wantRemaining: 0,
		},
		{
			name:          "exhausted past deadline",
			current:       time.Second,
			now:           epoch.Add(25 * time.Second),
			wantWait:      0,
			wantRemaining: -5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, remaining := budget.NextDelay(tt.current, tt.now)
			assert.Equal(t, tt.wantWait, wait)
			assert.Equal(t, tt.wantRemaining, remaining)
		})
	}
}

func TestRetryBudget_ScheduleStaysWithinBounds(t *testing.T) {
	policies := map[string]BackoffPolicy{
		"credential": CredentialPolicy,
		"link":       LinkPolicy,
		"fast growth": {
			Window:       7 * time.Second,
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   4,
			MaxDelay:     2 * time.Second,
		},
	}

	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			budget := policy.Budget(epoch)
			now := epoch
			var delay, prev time.Duration

			for i := 0; i < 1000; i++ {
				var remaining time.Duration
				delay, remaining = budget.NextDelay(delay, now)
				if remaining <= 0 {
					break
				}
				assert.LessOrEqual(t, delay, policy.MaxDelay, "delay exceeds cap")
				assert.LessOrEqual(t, delay, remaining, "delay sleeps past deadline")
				if delay < remaining {
					assert.GreaterOrEqual(t, delay, prev, "delay shrank before cap")
				}
				prev = delay
				now = now.Add(delay)
			}

			assert.False(t, now.After(budget.Deadline), "total wait exceeded deadline")
			assert.True(t, budget.Exhausted(now))
		})
	}
}

func TestRetryBudget_MultiplierBelowOne(t *testing.T) {
	budget := RetryBudget{
		Deadline:     epoch.Add(time.Minute),
		InitialDelay: time.Second,
		Multiplier:   0.5,
		CapDelay:     10 * time.Second,
	}

	wait, _ := budget.NextDelay(2*time.Second, epoch)
	assert.Equal(t, 2*time.Second, wait)
}

func TestBackoffPolicy_Budget(t *testing.T) {
	budget := LinkPolicy.Budget(epoch)

	assert.Equal(t, epoch.Add(20*time.Second), budget.Deadline)
	assert.Equal(t, 900*time.Millisecond, budget.InitialDelay)
	assert.Equal(t, 1.7, budget.Multiplier)
	assert.Equal(t, 5*time.Second, budget.CapDelay)
	assert.Equal(t, 20*time.Second, budget.Remaining(epoch))
}
