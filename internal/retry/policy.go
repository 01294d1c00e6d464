// Package retry decides whether and when a failed operation runs again.
package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/deploybuilder/internal/config"
	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
)

const (
	defaultBase = time.Second
	defaultCap  = 30 * time.Second
)

// Policy is a value; copies are independent.
type Policy struct {
	Backoff config.RetryBackoffMode
	// Base is the first delay; later delays grow from it according to Backoff.
	Base time.Duration
	// Cap bounds every delay.
	Cap time.Duration
	// Retries counts attempts after the first one.
	Retries int
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Default is linear backoff from 1s, capped at 30s, with two retries.
func Default() Policy {
	return Policy{
		Backoff: config.RetryBackoffLinear,
		Base:    defaultBase,
		Cap:     defaultCap,
		Retries: config.DefaultCloneRetries,
	}
}

// New fills unset or invalid fields from Default. A negative retry count
// keeps the default; zero disables retries.
func New(backoff config.RetryBackoffMode, base, limit time.Duration, retries int) Policy {
	p := Default()
	switch backoff {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Backoff = backoff
	}
	if base > 0 {
		p.Base = base
	}
	if limit > 0 {
		p.Cap = limit
	}
	if retries >= 0 {
		p.Retries = retries
	}
	p.Base = min(p.Base, p.Cap)
	return p
}

// ForClone derives the repository clone policy from the serve settings.
func ForClone(cfg config.ServerConfig) Policy {
	return New(cfg.RetryBackoff, 0, 0, cfg.CloneRetries)
}

// Delay is the wait before retry n (the first retry is 1). It is zero for n < 1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	var d time.Duration
	switch p.Backoff {
	case config.RetryBackoffFixed:
		d = p.Base
	case config.RetryBackoffExponential:
		// Larger shifts overflow; the cap applies long before.
		if n > 31 {
			return p.Cap
		}
		d = p.Base << (n - 1)
	default:
		d = p.Base * time.Duration(n)
	}
	if d <= 0 || d > p.Cap {
		return p.Cap
	}
	return d
}

// Do calls op until it succeeds, returns an error that is not retryable
// (see errors.IsRetryable), or the retries run out. It reports how many
// retries were made and the last error. A nil sleep uses Sleep.
func (p Policy) Do(ctx context.Context, sleep SleepFunc, op func(attempt int) error) (int, error) {
	if sleep == nil {
		sleep = Sleep
	}
	for attempt := 0; ; attempt++ {
		err := op(attempt)
		if err == nil || !derrors.IsRetryable(err) || attempt >= p.Retries {
			return attempt, err
		}
		if serr := sleep(ctx, p.Delay(attempt+1)); serr != nil {
			return attempt, serr
		}
	}
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in that case.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
