package rate

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRateLimited means the address exhausted its attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable means the attempt store backend failed.
	ErrUnavailable = errors.New("attempt store unavailable")
)

// AttemptStore records login attempts per client address.
type AttemptStore interface {
	// Admit prunes the address history to the trailing window and, when the
	// remaining count is below ceiling, appends the attempt and reports
	// true. Prune, count, and append form one atomic step per address.
	Admit(ctx context.Context, addr, identifier string, window time.Duration, ceiling int) (bool, error)

	// Sweep drops addresses whose entire history has aged out of the
	// window. Long-running processes call it periodically; backends with
	// native expiry may make it a no-op.
	Sweep(ctx context.Context, window time.Duration) error
}

// Config tunes the limiter window.
type Config struct {
	Window      time.Duration
	MaxAttempts int
}

// Limiter gates login attempts before credential verification.
type Limiter struct {
	store  AttemptStore
	config Config
}

// New returns a Limiter over the given store.
func New(store AttemptStore, cfg Config) *Limiter {
	return &Limiter{store: store, config: cfg}
}

// Check admits or rejects an attempt from addr for identifier. On success
// the attempt is recorded; on ErrRateLimited it is not.
func (l *Limiter) Check(ctx context.Context, addr, identifier string) error {
	if addr == "" {
		// No usable client address; skip limiting rather than pool every
		// anonymous caller under one key.
		return nil
	}

	admitted, err := l.store.Admit(ctx, addr, identifier, l.config.Window, l.config.MaxAttempts)
	if err != nil {
		return err
	}
	if !admitted {
		return ErrRateLimited
	}
	return nil
}

// Sweep garbage-collects stale address histories.
func (l *Limiter) Sweep(ctx context.Context) error {
	return l.store.Sweep(ctx, l.config.Window)
}
