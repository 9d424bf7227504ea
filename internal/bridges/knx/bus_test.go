package knx

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/knx-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/mqtt"
)

// fakeLink captures publishes and lets tests inject telegrams.
type fakeLink struct {
	connected bool
	handlers  map[string]mqtt.MessageHandler
	published map[string][][]byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
		published: make(map[string][][]byte),
	}
}

func (f *fakeLink) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.handlers[topic] = handler
	return nil
}

func (f *fakeLink) Unsubscribe(topic string) error {
	delete(f.handlers, topic)
	return nil
}

func (f *fakeLink) PublishJSON(topic string, payload []byte) error {
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeLink) IsConnected() bool { return f.connected }

func (f *fakeLink) inject(t *testing.T, topic string, payload []byte) {
	t.Helper()
	handler, ok := f.handlers[topic]
	if !ok {
		t.Fatalf("no handler subscribed on %s", topic)
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func newTestBus(t *testing.T, link *fakeLink, recentCap int) *Bus {
	t.Helper()
	bus := NewBus(link, "knx", recentCap, logging.Default())
	if err := bus.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return bus
}

func TestBus_TelegramFanout(t *testing.T) {
	link := newFakeLink()
	bus := newTestBus(t, link, 10)

	var got []Telegram
	remove := bus.Listen(func(tg Telegram) { got = append(got, tg) })

	link.inject(t, "knxgw/telegram/knx",
		[]byte(`{"destination":"1/1/1","type":"GroupValueWrite","payload":true}`))

	if len(got) != 1 {
		t.Fatalf("listener received %d telegrams, want 1", len(got))
	}
	if got[0].Destination != "1/1/1" {
		t.Errorf("Destination = %q", got[0].Destination)
	}

	remove()
	link.inject(t, "knxgw/telegram/knx",
		[]byte(`{"destination":"1/1/2","type":"GroupValueWrite","payload":false}`))
	if len(got) != 1 {
		t.Errorf("removed listener still received telegrams, got %d", len(got))
	}
}

func TestBus_MalformedTelegramDropped(t *testing.T) {
	link := newFakeLink()
	bus := newTestBus(t, link, 10)

	called := false
	bus.Listen(func(Telegram) { called = true })

	link.inject(t, "knxgw/telegram/knx", []byte(`not json`))

	if called {
		t.Error("listener called for malformed telegram")
	}
	if len(bus.Recent()) != 0 {
		t.Error("malformed telegram recorded")
	}
}

func TestBus_RecentIsBounded(t *testing.T) {
	link := newFakeLink()
	bus := newTestBus(t, link, 3)

	for i := range 5 {
		payload, _ := json.Marshal(map[string]any{
			"destination": "1/1/1",
			"type":        "GroupValueWrite",
			"payload":     i%2 == 0,
		})
		link.inject(t, "knxgw/telegram/knx", payload)
	}

	recent := bus.Recent()
	if len(recent) != 3 {
		t.Fatalf("Recent() returned %d telegrams, want 3", len(recent))
	}
}

func TestBus_GroupWrite(t *testing.T) {
	link := newFakeLink()
	bus := newTestBus(t, link, 10)
	ctx := context.Background()

	if err := bus.GroupWrite(ctx, "2/3/4", true); err != nil {
		t.Fatalf("GroupWrite() error = %v", err)
	}

	msgs := link.published["knxgw/command/knx/group_write"]
	if len(msgs) != 1 {
		t.Fatalf("published %d write requests, want 1", len(msgs))
	}
	var req GroupRequest
	if err := json.Unmarshal(msgs[0], &req); err != nil {
		t.Fatalf("request not valid JSON: %v", err)
	}
	if req.Address != "2/3/4" {
		t.Errorf("Address = %q", req.Address)
	}
	if req.Value != true {
		t.Errorf("Value = %v", req.Value)
	}

	// Outgoing traffic shows up in the monitor ring.
	recent := bus.Recent()
	if len(recent) != 1 || recent[0].Direction != DirectionOutgoing {
		t.Errorf("outgoing telegram not recorded: %+v", recent)
	}
}

func TestBus_GroupRead(t *testing.T) {
	link := newFakeLink()
	bus := newTestBus(t, link, 10)

	if err := bus.GroupRead(context.Background(), "1/0/7"); err != nil {
		t.Fatalf("GroupRead() error = %v", err)
	}
	if len(link.published["knxgw/command/knx/group_read"]) != 1 {
		t.Error("read request not published")
	}
}

func TestBus_SendErrors(t *testing.T) {
	link := newFakeLink()
	bus := newTestBus(t, link, 10)
	ctx := context.Background()

	if err := bus.GroupWrite(ctx, "not-an-address", true); !errors.Is(err, ErrInvalidGroupAddress) {
		t.Errorf("bad address: got %v, want ErrInvalidGroupAddress", err)
	}

	link.connected = false
	if err := bus.GroupWrite(ctx, "1/1/1", true); !errors.Is(err, ErrBusUnavailable) {
		t.Errorf("disconnected: got %v, want ErrBusUnavailable", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := bus.GroupWrite(cancelled, "1/1/1", true); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx: got %v, want context.Canceled", err)
	}
}
