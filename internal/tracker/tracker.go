package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mixelka/massmailer/pkg/models"
)

// Policy bounds the polling loop: a fixed number of attempts at a fixed
// interval, no backoff. The production default costs up to 25s of wall clock
// per message, inline with dispatch.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPolicy returns the production 5x5s budget
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Interval: 5 * time.Second}
}

// CheckFunc queries the provider once. An empty state means the message has
// not settled on a terminal label yet.
type CheckFunc func(ctx context.Context) (models.DeliveryState, error)

// Tracker resolves the terminal delivery state of a sent message by polling
// the provider's message store
type Tracker struct {
	policy Policy
	logger *slog.Logger
}

// New creates a tracker with the given policy
func New(policy Policy, logger *slog.Logger) *Tracker {
	return &Tracker{
		policy: policy,
		logger: logger.With("component", "tracker"),
	}
}

// Poll runs up to MaxAttempts checks and returns the first positive
// classification. A check error is swallowed and consumes an attempt; the
// loop never fails, it degrades to UNKNOWN when the attempts are exhausted.
func (t *Tracker) Poll(ctx context.Context, check CheckFunc) models.DeliveryState {
	for attempt := 1; attempt <= t.policy.MaxAttempts; attempt++ {
		state, err := check(ctx)
		if err != nil {
			t.logger.Debug("status check failed", "attempt", attempt, "error", err)
		} else if state != "" {
			return state
		}

		select {
		case <-time.After(t.policy.Interval):
		case <-ctx.Done():
			return models.StateUnknown
		}
	}
	return models.StateUnknown
}
