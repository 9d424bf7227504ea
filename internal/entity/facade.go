package entity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/knx-gateway/internal/infrastructure/logging"
)

// Telemetry records operation outcomes. Satisfied by the influxdb
// client; implementations must tolerate being called from concurrent
// operations.
type Telemetry interface {
	WriteReconcileOp(operation, platform string, success bool, duration time.Duration)
}

// ConfigStore orchestrates Validator → Store → Reconciler as one
// logical transaction per operation. It is the only public entry point
// external callers use for entity configuration.
type ConfigStore struct {
	store      Store
	reconciler *Reconciler
	logger     *logging.Logger
	telemetry  Telemetry

	locks keyedLocks
}

// NewConfigStore wires the facade. telemetry may be nil.
func NewConfigStore(store Store, reconciler *Reconciler, logger *logging.Logger, telemetry Telemetry) *ConfigStore {
	return &ConfigStore{
		store:      store,
		reconciler: reconciler,
		logger:     logger,
		telemetry:  telemetry,
	}
}

// CreateEntity validates, persists and instantiates a new entity.
// On success it returns the generated unique id. If instantiation
// fails after the record was committed, the record is removed again
// before the error surfaces; a failed create never leaves an orphan
// record behind.
func (cs *ConfigStore) CreateEntity(ctx context.Context, platform Platform, raw map[string]any) (string, error) {
	start := time.Now()

	cfg, err := ValidateCreate(platform, raw)
	if err != nil {
		cs.record("create", platform, false, start)
		return "", err
	}

	var uniqueID string
	err = cs.commitThenReconcile(
		func() error {
			id, addErr := cs.store.Add(ctx, platform, cfg)
			if addErr != nil {
				return addErr
			}
			uniqueID = id
			// Hold the per-id lock through reconciliation; the id is
			// unknown to callers until create returns, but a reload
			// could race us.
			cs.locks.lock(uniqueID)
			return nil
		},
		func() error {
			rec, getErr := cs.store.Get(ctx, uniqueID)
			if getErr != nil {
				return getErr
			}
			_, instErr := cs.reconciler.Instantiate(ctx, *rec)
			return instErr
		},
		func() error {
			return cs.store.Remove(ctx, uniqueID)
		},
	)
	if uniqueID != "" {
		cs.locks.unlock(uniqueID)
	}
	if err != nil {
		cs.record("create", platform, false, start)
		return "", err
	}

	cs.logger.Info("entity created", "unique_id", uniqueID, "platform", platform)
	cs.record("create", platform, true, start)
	return uniqueID, nil
}

// UpdateEntity validates and applies a new configuration to an
// existing entity. The platform cannot change. If the replacement
// instantiation fails, the previous configuration is written back so
// the store keeps reflecting what actually runs.
func (cs *ConfigStore) UpdateEntity(ctx context.Context, platform Platform, uniqueID string, raw map[string]any) (*Record, error) {
	start := time.Now()

	cfg, err := ValidateUpdate(platform, uniqueID, raw)
	if err != nil {
		cs.record("update", platform, false, start)
		return nil, err
	}

	cs.locks.lock(uniqueID)
	defer cs.locks.unlock(uniqueID)

	prev, err := cs.store.Get(ctx, uniqueID)
	if err != nil {
		cs.record("update", platform, false, start)
		return nil, err
	}
	if prev.Platform != platform {
		cs.record("update", platform, false, start)
		return nil, fmt.Errorf("%w: entity %s is %q, not %q",
			ErrPlatformMismatch, uniqueID, prev.Platform, platform)
	}

	var updated *Record
	err = cs.commitThenReconcile(
		func() error {
			rec, upErr := cs.store.Update(ctx, uniqueID, cfg)
			if upErr != nil {
				return upErr
			}
			updated = rec
			return nil
		},
		func() error {
			_, repErr := cs.reconciler.Replace(ctx, *updated)
			return repErr
		},
		func() error {
			_, restoreErr := cs.store.Update(ctx, uniqueID, prev.Config)
			return restoreErr
		},
	)
	if err != nil {
		cs.record("update", platform, false, start)
		return nil, err
	}

	cs.logger.Info("entity updated", "unique_id", uniqueID, "platform", platform)
	cs.record("update", platform, true, start)
	return updated, nil
}

// DeleteEntity tears down the live entity and removes its record.
//
// The live teardown happens first and is best-effort: a teardown error
// is logged, not fatal. If the record removal then fails, the entity
// stays persisted but torn down, which the next startup reload
// repairs. This ordering is deliberate; the reverse failure mode, a
// running entity with no record, is not recoverable.
func (cs *ConfigStore) DeleteEntity(ctx context.Context, uniqueID string) error {
	start := time.Now()

	cs.locks.lock(uniqueID)
	defer cs.locks.unlock(uniqueID)

	rec, err := cs.store.Get(ctx, uniqueID)
	if err != nil {
		cs.record("delete", "", false, start)
		return err
	}

	if err := cs.reconciler.Teardown(ctx, uniqueID); err != nil {
		cs.logger.Warn("teardown before delete failed",
			"unique_id", uniqueID,
			"error", err,
		)
	}

	if err := cs.store.Remove(ctx, uniqueID); err != nil {
		cs.record("delete", rec.Platform, false, start)
		return err
	}

	cs.logger.Info("entity deleted", "unique_id", uniqueID, "platform", rec.Platform)
	cs.record("delete", rec.Platform, true, start)
	return nil
}

// GetEntityConfig returns the stored record for a unique id.
func (cs *ConfigStore) GetEntityConfig(ctx context.Context, uniqueID string) (*Record, error) {
	return cs.store.Get(ctx, uniqueID)
}

// ListEntities returns all stored records in insertion order.
func (cs *ConfigStore) ListEntities(ctx context.Context) ([]Record, error) {
	return cs.store.List(ctx)
}

// LoadAll instantiates every stored record at process start.
// Individual instantiation failures are logged and skipped so one bad
// record cannot block the gateway; the record stays persisted for
// later repair. Returns the number of entities brought live.
func (cs *ConfigStore) LoadAll(ctx context.Context) (int, error) {
	records, err := cs.store.List(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, rec := range records {
		if _, err := cs.reconciler.Instantiate(ctx, rec); err != nil {
			cs.logger.Error("skipping entity on reload",
				"unique_id", rec.UniqueID,
				"platform", rec.Platform,
				"error", err,
			)
			continue
		}
		loaded++
	}

	cs.logger.Info("entities reloaded", "loaded", loaded, "total", len(records))
	return loaded, nil
}

// commitThenReconcile is the two-phase commit helper: phase 1 persists,
// phase 2 reconciles the live runtime, and the registered inverse runs
// when phase 2 fails. A failing inverse is logged; the original
// reconcile error is what surfaces.
func (cs *ConfigStore) commitThenReconcile(commit, reconcile, inverse func() error) error {
	if err := commit(); err != nil {
		return err
	}
	if err := reconcile(); err != nil {
		if ierr := inverse(); ierr != nil {
			cs.logger.Error("compensating rollback failed", "error", ierr)
		}
		return err
	}
	return nil
}

func (cs *ConfigStore) record(op string, platform Platform, ok bool, start time.Time) {
	if cs.telemetry == nil {
		return
	}
	cs.telemetry.WriteReconcileOp(op, string(platform), ok, time.Since(start))
}

// keyedLocks serializes mutating operations per unique id.
// Lock entries are created on demand and dropped once unused.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (kl *keyedLocks) lock(key string) {
	kl.mu.Lock()
	if kl.locks == nil {
		kl.locks = make(map[string]*lockEntry)
	}
	entry, ok := kl.locks[key]
	if !ok {
		entry = &lockEntry{}
		kl.locks[key] = entry
	}
	entry.refs++
	kl.mu.Unlock()

	entry.mu.Lock()
}

func (kl *keyedLocks) unlock(key string) {
	kl.mu.Lock()
	entry := kl.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()

	entry.mu.Unlock()
}
