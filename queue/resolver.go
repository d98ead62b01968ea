package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"counter-pipeline/domain"
)

// Resolver resolves the queue address once per process and caches it. The
// cache is never invalidated; a deleted or renamed queue needs a restart.
type Resolver struct {
	locator Locator
	name    string

	mu      sync.Mutex
	address atomic.Pointer[string]
}

func NewResolver(locator Locator, name string) *Resolver {
	if locator == nil {
		panic("queue.NewResolver: locator is nil")
	}
	return &Resolver{locator: locator, name: name}
}

// Name returns the queue name being resolved.
func (r *Resolver) Name() string { return r.name }

// Resolve returns the cached address or runs the lookup-or-create sequence.
// Concurrent callers on an empty cache wait for a single sequence.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if addr := r.address.Load(); addr != nil {
		return *addr, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if addr := r.address.Load(); addr != nil {
		return *addr, nil
	}
	addr, err := r.lookupOrCreate(ctx)
	if err != nil {
		return "", &domain.ResolutionError{Queue: r.name, Err: err}
	}
	r.address.Store(&addr)
	log.WithFields(log.Fields{"queue": r.name, "address": addr}).Info("queue resolved")
	return addr, nil
}

func (r *Resolver) lookupOrCreate(ctx context.Context) (string, error) {
	addr, err := r.locator.Lookup(ctx, r.name)
	if err == nil {
		return addr, nil
	}
	if !errors.Is(err, ErrQueueNotFound) {
		return "", fmt.Errorf("lookup: %w", err)
	}
	log.WithField("queue", r.name).Info("queue not found, creating")
	if err := r.locator.Create(ctx, r.name); err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	addr, err = r.locator.Lookup(ctx, r.name)
	if err != nil {
		return "", fmt.Errorf("lookup after create: %w", err)
	}
	return addr, nil
}
