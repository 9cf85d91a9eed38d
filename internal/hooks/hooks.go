// Package hooks provides optional extension points fired on auth events.
// Callbacks are registered at wiring time; firing with no registration is
// a no-op.
package hooks

import (
	"context"
	"sync"

	"github.com/dropDatabas3/reentry/internal/observability/logger"
)

// LoggedInFunc runs after a customer session is established.
type LoggedInFunc func(ctx context.Context, providerID, subjectID string)

type Registry struct {
	mu       sync.RWMutex
	loggedIn []LoggedInFunc
}

func New() *Registry {
	return &Registry{}
}

// OnCustomerLoggedIn registers a callback for the logged-in event.
func (r *Registry) OnCustomerLoggedIn(fn LoggedInFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggedIn = append(r.loggedIn, fn)
}

// HasCustomerLoggedIn reports whether any callback is registered.
func (r *Registry) HasCustomerLoggedIn() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loggedIn) > 0
}

// FireCustomerLoggedIn runs the registered callbacks in order. A panicking
// hook is logged and must never fail the login that triggered it.
func (r *Registry) FireCustomerLoggedIn(ctx context.Context, providerID, subjectID string) {
	r.mu.RLock()
	fns := append([]LoggedInFunc(nil), r.loggedIn...)
	r.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(ctx).Error("loggedIn hook panicked",
						logger.Component("hooks"),
						logger.Any("panic", rec),
					)
				}
			}()
			fn(ctx, providerID, subjectID)
		}()
	}
}
