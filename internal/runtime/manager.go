package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/knx-gateway/internal/bridges/knx"
	"github.com/nerrad567/knx-gateway/internal/entity"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/logging"
)

// Bus is the slice of the KNX bus client the runtime needs.
// Satisfied by *knx.Bus.
type Bus interface {
	Listen(fn func(knx.Telegram)) func()
	GroupWrite(ctx context.Context, address string, value any) error
	GroupRead(ctx context.Context, address string) error
	GroupResponse(ctx context.Context, address string, value any) error
}

// DeviceResolver checks parent-device references. Satisfied by the
// device registry.
type DeviceResolver interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Broadcaster pushes entity state changes to connected clients.
// Satisfied by the WebSocket hub. May be nil.
type Broadcaster interface {
	BroadcastEntityState(entityID string, state map[string]any)
}

// StateRecorder writes entity state transitions to telemetry storage.
// Satisfied by the influxdb client. May be nil.
type StateRecorder interface {
	WriteEntityState(entityID, platform string, value float64)
}

// liveEntity is what every platform implementation provides to the
// manager: identity plus a stop hook.
type liveEntity interface {
	entity.LiveHandle
	stop()
}

// Manager builds and tracks live entities. It implements
// entity.LifecycleManager.
type Manager struct {
	bus       Bus
	devices   DeviceResolver
	broadcast Broadcaster
	recorder  StateRecorder
	logger    *logging.Logger

	mu   sync.Mutex
	live map[string]liveEntity
}

// NewManager wires the runtime. broadcast and recorder may be nil.
func NewManager(bus Bus, devices DeviceResolver, broadcast Broadcaster, recorder StateRecorder, logger *logging.Logger) *Manager {
	return &Manager{
		bus:       bus,
		devices:   devices,
		broadcast: broadcast,
		recorder:  recorder,
		logger:    logger,
		live:      make(map[string]liveEntity),
	}
}

// Register builds the live entity for a record and starts it.
// A dangling parent-device reference is a registration error; the
// record is already schema-valid at this point, so the caller treats
// this as an instantiation failure, not a validation one.
func (m *Manager) Register(ctx context.Context, rec entity.Record) (entity.LiveHandle, error) {
	if deviceID := recordDeviceID(rec); deviceID != "" {
		ok, err := m.devices.Exists(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("resolving device %s: %w", deviceID, err)
		}
		if !ok {
			return nil, fmt.Errorf("referenced device %s does not exist", deviceID)
		}
	}

	var le liveEntity
	switch cfg := rec.Config.(type) {
	case entity.SwitchConfig:
		le = newLiveSwitch(rec, cfg, m)
	case entity.LightConfig:
		le = newLiveLight(rec, cfg, m)
	default:
		return nil, fmt.Errorf("unsupported platform %q", rec.Platform)
	}

	m.mu.Lock()
	m.live[le.EntityID()] = le
	m.mu.Unlock()

	m.logger.Info("entity registered", "entity_id", le.EntityID())
	return le, nil
}

// Unregister stops a live entity and forgets it.
func (m *Manager) Unregister(_ context.Context, handle entity.LiveHandle) error {
	m.mu.Lock()
	le, ok := m.live[handle.EntityID()]
	if ok {
		delete(m.live, handle.EntityID())
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	le.stop()
	m.logger.Info("entity unregistered", "entity_id", handle.EntityID())
	return nil
}

// Get returns a live entity by its runtime id.
func (m *Manager) Get(entityID string) (entity.LiveHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	le, ok := m.live[entityID]
	return le, ok
}

// Count returns the number of running live entities.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Close stops every live entity, used during gateway shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	entities := make([]liveEntity, 0, len(m.live))
	for _, le := range m.live {
		entities = append(entities, le)
	}
	m.live = make(map[string]liveEntity)
	m.mu.Unlock()

	for _, le := range entities {
		le.stop()
	}
}

// stateChanged fans a new entity state out to clients and telemetry.
func (m *Manager) stateChanged(entityID, platform string, state map[string]any, metric float64) {
	if m.broadcast != nil {
		m.broadcast.BroadcastEntityState(entityID, state)
	}
	if m.recorder != nil {
		m.recorder.WriteEntityState(entityID, platform, metric)
	}
}

func recordDeviceID(rec entity.Record) string {
	switch cfg := rec.Config.(type) {
	case entity.SwitchConfig:
		return cfg.DeviceID
	case entity.LightConfig:
		return cfg.DeviceID
	default:
		return ""
	}
}
