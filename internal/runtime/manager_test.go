package runtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/nerrad567/knx-gateway/internal/bridges/knx"
	"github.com/nerrad567/knx-gateway/internal/entity"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/logging"
)

// fakeBus records group requests and lets tests push telegrams to
// listeners synchronously.
type fakeBus struct {
	mu        sync.Mutex
	listeners map[int]func(knx.Telegram)
	next      int
	writes    []knx.GroupRequest
	reads     []string
	responses []knx.GroupRequest
}

func newFakeBus() *fakeBus {
	return &fakeBus{listeners: make(map[int]func(knx.Telegram))}
}

func (b *fakeBus) Listen(fn func(knx.Telegram)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *fakeBus) GroupWrite(_ context.Context, address string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, knx.GroupRequest{Address: address, Value: value})
	return nil
}

func (b *fakeBus) GroupRead(_ context.Context, address string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = append(b.reads, address)
	return nil
}

func (b *fakeBus) GroupResponse(_ context.Context, address string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses = append(b.responses, knx.GroupRequest{Address: address, Value: value})
	return nil
}

func (b *fakeBus) push(tg knx.Telegram) {
	b.mu.Lock()
	fns := make([]func(knx.Telegram), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(tg)
	}
}

type fakeResolver struct {
	known map[string]bool
}

func (r *fakeResolver) Exists(_ context.Context, id string) (bool, error) {
	return r.known[id], nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	states []map[string]any
}

func (f *fakeBroadcaster) BroadcastEntityState(_ string, state map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeBroadcaster) last() (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return nil, false
	}
	return f.states[len(f.states)-1], true
}

func newTestManager(t *testing.T) (*Manager, *fakeBus, *fakeBroadcaster) {
	t.Helper()
	bus := newFakeBus()
	broadcast := &fakeBroadcaster{}
	resolver := &fakeResolver{known: map[string]bool{"knx_vdev_known": true}}
	m := NewManager(bus, resolver, broadcast, nil, logging.Default())
	return m, bus, broadcast
}

func switchRecord(cfg entity.SwitchConfig) entity.Record {
	return entity.Record{
		UniqueID: "knx_es_test1",
		Platform: entity.PlatformSwitch,
		Config:   cfg,
	}
}

func writeTelegram(address string, value bool) knx.Telegram {
	payload, _ := json.Marshal(value)
	return knx.Telegram{
		Destination: address,
		Type:        knx.TelegramWrite,
		Payload:     payload,
		Direction:   knx.DirectionIncoming,
	}
}

func TestManager_RegisterUnregister(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	rec := switchRecord(entity.SwitchConfig{
		Name:      "Kitchen",
		SyncState: entity.SyncStateNone,
		Address:   []string{"1/1/1"},
	})

	handle, err := m.Register(ctx, rec)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if handle.EntityID() != "switch.knx_es_test1" {
		t.Errorf("EntityID() = %q", handle.EntityID())
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d", m.Count())
	}

	if err := m.Unregister(ctx, handle); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count() after unregister = %d", m.Count())
	}
}

func TestManager_RegisterUnknownDevice(t *testing.T) {
	m, _, _ := newTestManager(t)

	rec := switchRecord(entity.SwitchConfig{
		Name:      "Kitchen",
		DeviceID:  "knx_vdev_missing",
		SyncState: entity.SyncStateNone,
		Address:   []string{"1/1/1"},
	})

	if _, err := m.Register(context.Background(), rec); err == nil {
		t.Fatal("Register() with dangling device reference succeeded")
	}
	if m.Count() != 0 {
		t.Error("failed registration left a live entity")
	}
}

func TestManager_RegisterKnownDevice(t *testing.T) {
	m, _, _ := newTestManager(t)

	rec := switchRecord(entity.SwitchConfig{
		Name:      "Kitchen",
		DeviceID:  "knx_vdev_known",
		SyncState: entity.SyncStateNone,
		Address:   []string{"1/1/1"},
	})

	if _, err := m.Register(context.Background(), rec); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}

func TestSwitch_StateFromBus(t *testing.T) {
	m, bus, broadcast := newTestManager(t)

	rec := switchRecord(entity.SwitchConfig{
		Name:         "Kitchen",
		SyncState:    entity.SyncStateNone,
		Address:      []string{"1/1/1"},
		StateAddress: []string{"1/1/2"},
	})
	handle, err := m.Register(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	sw := handle.(*liveSwitch)

	bus.push(writeTelegram("1/1/2", true))

	on, known := sw.State()
	if !known || !on {
		t.Errorf("State() = %v, %v, want on and known", on, known)
	}
	state, ok := broadcast.last()
	if !ok || state["on"] != true {
		t.Errorf("broadcast state = %v", state)
	}

	// Telegrams for other addresses are ignored.
	bus.push(writeTelegram("9/9/9", false))
	if on, _ := sw.State(); !on {
		t.Error("unrelated telegram changed state")
	}
}

func TestSwitch_Invert(t *testing.T) {
	m, bus, _ := newTestManager(t)

	rec := switchRecord(entity.SwitchConfig{
		Name:         "Kitchen",
		SyncState:    entity.SyncStateNone,
		Invert:       true,
		Address:      []string{"1/1/1"},
		StateAddress: []string{"1/1/2"},
	})
	handle, err := m.Register(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	sw := handle.(*liveSwitch)

	// Raw false on the bus means logically on for an inverted switch.
	bus.push(writeTelegram("1/1/2", false))
	if on, _ := sw.State(); !on {
		t.Error("inverted state not applied")
	}

	// Writing logical on sends raw false.
	if err := sw.SetState(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if len(bus.writes) != 1 || bus.writes[0].Value != false {
		t.Errorf("writes = %+v, want raw false on 1/1/1", bus.writes)
	}
}

func TestSwitch_RespondToRead(t *testing.T) {
	m, bus, _ := newTestManager(t)

	rec := switchRecord(entity.SwitchConfig{
		Name:          "Kitchen",
		SyncState:     entity.SyncStateNone,
		Address:       []string{"1/1/1"},
		StateAddress:  []string{"1/1/2"},
		RespondToRead: true,
	})
	if _, err := m.Register(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	// Unknown state: no answer.
	bus.push(knx.Telegram{Destination: "1/1/2", Type: knx.TelegramRead})
	if len(bus.responses) != 0 {
		t.Fatal("responded to read with unknown state")
	}

	bus.push(writeTelegram("1/1/2", true))
	bus.push(knx.Telegram{Destination: "1/1/2", Type: knx.TelegramRead})

	if len(bus.responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(bus.responses))
	}
	if bus.responses[0].Address != "1/1/2" || bus.responses[0].Value != true {
		t.Errorf("response = %+v", bus.responses[0])
	}
}

func TestSwitch_SyncStateInitReadsOnStart(t *testing.T) {
	m, bus, _ := newTestManager(t)

	rec := switchRecord(entity.SwitchConfig{
		Name:         "Kitchen",
		SyncState:    entity.SyncStateInit,
		Address:      []string{"1/1/1"},
		StateAddress: []string{"1/1/2"},
	})
	if _, err := m.Register(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if len(bus.reads) != 1 || bus.reads[0] != "1/1/2" {
		t.Errorf("reads = %v, want [1/1/2]", bus.reads)
	}
}

func TestSwitch_OptimisticWithoutStateAddress(t *testing.T) {
	m, _, _ := newTestManager(t)

	rec := switchRecord(entity.SwitchConfig{
		Name:      "Kitchen",
		SyncState: entity.SyncStateNone,
		Address:   []string{"1/1/1"},
	})
	handle, err := m.Register(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	sw := handle.(*liveSwitch)

	if err := sw.SetState(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if on, known := sw.State(); !known || !on {
		t.Error("optimistic state not assumed after write")
	}
}

func TestLight_BrightnessFromBus(t *testing.T) {
	m, bus, _ := newTestManager(t)

	rec := entity.Record{
		UniqueID: "knx_es_light1",
		Platform: entity.PlatformLight,
		Config: entity.LightConfig{
			Name:                   "Living Room",
			SyncState:              entity.SyncStateNone,
			Address:                []string{"3/0/1"},
			BrightnessAddress:      []string{"3/0/3"},
			BrightnessStateAddress: []string{"3/0/4"},
		},
	}
	handle, err := m.Register(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	lt := handle.(*liveLight)

	payload, _ := json.Marshal(128)
	bus.push(knx.Telegram{
		Destination: "3/0/4",
		Type:        knx.TelegramResponse,
		Payload:     payload,
	})

	on, brightness, known := lt.State()
	if !known || !on || brightness != 128 {
		t.Errorf("State() = %v, %d, %v", on, brightness, known)
	}

	if err := lt.SetBrightness(context.Background(), 300); err != nil {
		t.Fatal(err)
	}
	if got := bus.writes[len(bus.writes)-1]; got.Address != "3/0/3" || got.Value != 255 {
		t.Errorf("brightness write = %+v, want clamped 255 on 3/0/3", got)
	}
}
