package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

var errNotReady = errors.New("settlement sessions not resumed yet")

// pinger reports whether the settlement store answers.
type pinger interface {
	Ping(ctx context.Context) error
}

type readiness struct {
	store pinger
	ready atomic.Bool
}

func newReadiness(store pinger) *readiness {
	return &readiness{store: store}
}

func (r *readiness) markReady() {
	r.ready.Store(true)
}

func (r *readiness) check(ctx context.Context) error {
	if !r.ready.Load() {
		return errNotReady
	}
	if r.store == nil {
		return nil
	}
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("settlement store: %w", err)
	}
	return nil
}
