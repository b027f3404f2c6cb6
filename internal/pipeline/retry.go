package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed
var ErrRetriesExhausted = errors.New("remote write retries exhausted")

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy bounds remote writes. MaxRetries is the total number of
// attempts; after each failed attempt the policy waits
// min(BaseDelay*2^attempt, MaxDelay).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration // per attempt, 0 disables
	Sleep      Sleeper
}

// DefaultPolicy returns 3 attempts with 1s/2s/4s waits and a 15s attempt timeout
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: constants.DefaultMaxRetries,
		BaseDelay:  constants.DefaultRetryBaseDelay,
		MaxDelay:   constants.DefaultRetryMaxDelay,
		Timeout:    constants.DefaultRemoteTimeout,
		Sleep:      Sleep,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Delays returns the wait scheduled after each of the policy's attempts
func (p RetryPolicy) Delays() []time.Duration {
	b := p.backOff()
	delays := make([]time.Duration, 0, p.MaxRetries)
	for i := 0; i < p.MaxRetries; i++ {
		delays = append(delays, b.NextBackOff())
	}
	return delays
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports errors that retrying cannot fix
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm) || ledger.IsPermanent(err)
}

// Attempt is called once per try; attempt is zero based
type Attempt func(ctx context.Context, attempt int) error

// Retry runs op until it succeeds, fails permanently, or MaxRetries attempts
// have failed. notify, when non-nil, sees every failed attempt with the wait
// that follows it. It returns the number of attempts made.
func (p RetryPolicy) Retry(ctx context.Context, op Attempt, notify func(attempt int, err error, wait time.Duration)) (int, error) {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}

	b := p.backOff()
	var lastErr error
	for attempt := 0; attempt < p.MaxRetries; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := op(attemptCtx, attempt)
		cancel()

		if err == nil {
			return attempt + 1, nil
		}
		if IsPermanent(err) {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				err = perm.Err
			}
			return attempt + 1, err
		}

		lastErr = err
		wait := b.NextBackOff()
		if notify != nil {
			notify(attempt, err, wait)
		}
		if sleepErr := p.Sleep(ctx, wait); sleepErr != nil {
			return attempt + 1, fmt.Errorf("retry abandoned: %w", sleepErr)
		}
	}

	return p.MaxRetries, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.MaxRetries, lastErr)
}
