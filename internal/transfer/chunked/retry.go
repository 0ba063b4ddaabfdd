package chunked

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts is the per-chunk attempt budget.
	DefaultMaxAttempts = 5

	// DefaultRetryWait is the fixed delay between attempts of one chunk.
	DefaultRetryWait = time.Second
)

// errAborted is returned by a retry wait interrupted because another chunk failed.
var errAborted = errors.New("transfer aborted")

// RetryPolicy is the fixed-delay retry budget applied to every chunk.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per chunk. Values below 1 mean one attempt.
	MaxAttempts int

	// Wait is the fixed delay slept between attempts. It does not grow.
	Wait time.Duration
}

// DefaultRetryPolicy returns five attempts one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Wait: DefaultRetryWait}
}

func (p RetryPolicy) newState() *retryState {
	return &retryState{
		maxAttempts: max(p.MaxAttempts, 1),
		wait:        max(p.Wait, 0),
	}
}

// retryState tracks the attempts of one chunk.
type retryState struct {
	attempts    int
	maxAttempts int
	wait        time.Duration
}

func (s *retryState) exhausted() bool {
	return s.attempts >= s.maxAttempts
}

// sleep blocks for the fixed wait. It returns ctx.Err() if ctx ends first and
// errAborted if abort closes first. A nil abort channel never fires.
func (s *retryState) sleep(ctx context.Context, abort <-chan struct{}) error {
	if s.wait == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-abort:
			return errAborted
		default:
			return nil
		}
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-abort:
		return errAborted
	}
}
