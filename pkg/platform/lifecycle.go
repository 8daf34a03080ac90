package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var errAlreadyStarted = errors.New("lifecycle already started")

// Hook pairs a named start step with the step that undoes it.
// Either function may be nil.
type Hook struct {
	Name    string
	OnStart func(context.Context) error
	OnStop  func(context.Context) error
}

// Lifecycle runs hooks in order on Start and unwinds them in reverse on Stop.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []Hook
	started int // number of hooks whose OnStart succeeded
	running bool
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Append registers a hook. Hooks appended after Start run on the next Start.
func (l *Lifecycle) Append(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// OnStart registers a start step with no matching stop step.
func (l *Lifecycle) OnStart(fn func(context.Context) error) {
	l.Append(Hook{OnStart: fn})
}

// OnStop registers a stop step with no matching start step.
func (l *Lifecycle) OnStop(fn func(context.Context) error) {
	l.Append(Hook{OnStop: fn})
}

// Start runs every OnStart in registration order. If one fails, the
// hooks that already started are stopped in reverse and the error is returned.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return errAlreadyStarted
	}

	for i, h := range l.hooks {
		if h.OnStart != nil {
			if err := h.OnStart(ctx); err != nil {
				l.unwind(ctx, i)
				return fmt.Errorf("starting %s: %w", hookName(h, i), err)
			}
		}
		l.started = i + 1
	}

	l.running = true
	return nil
}

// Stop runs OnStop for every started hook in reverse order and joins the errors.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	l.running = false

	var errs []error
	for i := l.started - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.OnStop == nil {
			continue
		}
		if err := h.OnStop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", hookName(h, i), err))
		}
	}
	l.started = 0
	return errors.Join(errs...)
}

// IsStarted reports whether Start has succeeded without a later Stop.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// unwind stops hooks [0, n) in reverse, logging failures.
func (l *Lifecycle) unwind(ctx context.Context, n int) {
	for i := n - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.OnStop == nil {
			continue
		}
		if err := h.OnStop(ctx); err != nil {
			slog.Warn("lifecycle rollback failed", "hook", hookName(h, i), "error", err)
		}
	}
	l.started = 0
}

func hookName(h Hook, i int) string {
	if h.Name != "" {
		return h.Name
	}
	return fmt.Sprintf("hook %d", i)
}
