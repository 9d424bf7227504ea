package entity

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/knx-gateway/internal/infrastructure/logging"
)

// LiveHandle is the opaque handle a lifecycle manager returns for a
// registered live entity.
type LiveHandle interface {
	// EntityID returns the runtime identifier, e.g. "switch.knx_es_...".
	EntityID() string
}

// LifecycleManager is how the reconciler reaches the platform's live
// runtime. Register may fail after the record is already committed;
// such failures surface as ErrInstantiation.
type LifecycleManager interface {
	Register(ctx context.Context, rec Record) (LiveHandle, error)
	Unregister(ctx context.Context, handle LiveHandle) error
}

type liveEntry struct {
	handle LiveHandle
	record Record
}

// Reconciler mirrors committed store mutations into the live runtime.
// It tracks one live entry per unique id so teardown and replacement
// know what is currently running.
type Reconciler struct {
	manager LifecycleManager
	logger  *logging.Logger

	mu   sync.Mutex
	live map[string]liveEntry
}

// NewReconciler creates a reconciler over the given lifecycle manager.
func NewReconciler(manager LifecycleManager, logger *logging.Logger) *Reconciler {
	return &Reconciler{
		manager: manager,
		logger:  logger,
		live:    make(map[string]liveEntry),
	}
}

// Instantiate builds and registers the live entity for a committed
// record. Failures are wrapped as ErrInstantiation to distinguish them
// from validation errors, which can no longer occur at this point.
func (r *Reconciler) Instantiate(ctx context.Context, rec Record) (LiveHandle, error) {
	handle, err := r.manager.Register(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstantiation, rec.EntityID(), err)
	}

	r.mu.Lock()
	r.live[rec.UniqueID] = liveEntry{handle: handle, record: rec}
	r.mu.Unlock()

	return handle, nil
}

// Teardown unregisters and destroys the live entity for a unique id.
// Safe to call when no live entity was ever created; that case is a
// no-op, not a fault.
func (r *Reconciler) Teardown(ctx context.Context, uniqueID string) error {
	r.mu.Lock()
	entry, ok := r.live[uniqueID]
	if ok {
		delete(r.live, uniqueID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	if err := r.manager.Unregister(ctx, entry.handle); err != nil {
		return fmt.Errorf("unregistering %s: %w", entry.record.EntityID(), err)
	}
	return nil
}

// Replace tears down the current live entity and instantiates the new
// record in its place. If the new instantiation fails, the previous
// configuration is restored so the entity keeps running with its old
// config (restore-on-failure).
func (r *Reconciler) Replace(ctx context.Context, rec Record) (LiveHandle, error) {
	r.mu.Lock()
	prev, hadPrev := r.live[rec.UniqueID]
	r.mu.Unlock()

	if err := r.Teardown(ctx, rec.UniqueID); err != nil {
		// The old instance could not be cleanly unregistered; proceed,
		// since the replacement registration supersedes it.
		r.logger.Warn("teardown before replace failed",
			"unique_id", rec.UniqueID,
			"error", err,
		)
	}

	handle, err := r.Instantiate(ctx, rec)
	if err == nil {
		return handle, nil
	}

	if hadPrev {
		if _, rerr := r.Instantiate(ctx, prev.record); rerr != nil {
			r.logger.Error("restoring previous entity after failed replace",
				"unique_id", rec.UniqueID,
				"error", rerr,
			)
		}
	}
	return nil, err
}

// Current returns the record the reconciler believes is live for a
// unique id, if any.
func (r *Reconciler) Current(uniqueID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.live[uniqueID]
	return entry.record, ok
}

// LiveCount returns the number of registered live entities.
func (r *Reconciler) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
