package knx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/knx-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/knx-gateway/internal/infrastructure/mqtt"
)

// telegramQoS is the QoS level for telegram and command topics.
// At-least-once: a duplicated state update is harmless, a lost one is not.
const telegramQoS = 1

// Link is the MQTT surface the bus needs. Satisfied by *mqtt.Client.
type Link interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishJSON(topic string, payload []byte) error
	IsConnected() bool
}

// Bus connects the gateway to the external KNX bus bridge.
//
// Incoming telegrams are fanned out to registered listeners and kept
// in a bounded ring for the group monitor. Outgoing group requests are
// published to the bridge's command topics and recorded in the same
// ring so monitors see both directions.
type Bus struct {
	link     Link
	bridgeID string
	logger   *logging.Logger
	topics   mqtt.Topics

	mu           sync.RWMutex
	listeners    map[int]func(Telegram)
	nextListener int
	recent       []Telegram
	recentCap    int
}

// NewBus creates a Bus for the given bridge instance.
// recentCap bounds the group monitor history; values below 1 keep one entry.
func NewBus(link Link, bridgeID string, recentCap int, logger *logging.Logger) *Bus {
	if recentCap < 1 {
		recentCap = 1
	}
	return &Bus{
		link:      link,
		bridgeID:  bridgeID,
		logger:    logger,
		listeners: make(map[int]func(Telegram)),
		recentCap: recentCap,
	}
}

// Start subscribes to the bridge's telegram topic.
func (b *Bus) Start() error {
	topic := b.topics.Telegram(b.bridgeID)
	if err := b.link.Subscribe(topic, telegramQoS, b.handleTelegram); err != nil {
		return fmt.Errorf("subscribing to telegrams: %w", err)
	}
	return nil
}

// Close unsubscribes from the telegram topic. Listeners stay
// registered but receive nothing further.
func (b *Bus) Close() error {
	if err := b.link.Unsubscribe(b.topics.Telegram(b.bridgeID)); err != nil {
		return fmt.Errorf("unsubscribing from telegrams: %w", err)
	}
	return nil
}

func (b *Bus) handleTelegram(_ string, payload []byte) error {
	t, err := ParseTelegram(payload)
	if err != nil {
		b.logger.Warn("dropping malformed telegram", "error", err)
		return nil
	}

	b.record(t)
	b.broadcast(t)
	return nil
}

func (b *Bus) record(t Telegram) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, t)
	if len(b.recent) > b.recentCap {
		b.recent = b.recent[len(b.recent)-b.recentCap:]
	}
}

func (b *Bus) broadcast(t Telegram) {
	b.mu.RLock()
	listeners := make([]func(Telegram), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	// Called without the lock so a listener may register or remove
	// other listeners.
	for _, fn := range listeners {
		fn(t)
	}
}

// Listen registers a callback for every telegram seen on the bus.
// The returned function removes the listener.
func (b *Bus) Listen(fn func(Telegram)) func() {
	b.mu.Lock()
	id := b.nextListener
	b.nextListener++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Recent returns the buffered telegram history, oldest first.
func (b *Bus) Recent() []Telegram {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Telegram, len(b.recent))
	copy(out, b.recent)
	return out
}

// GroupWrite asks the bridge to write a value to a group address.
func (b *Bus) GroupWrite(ctx context.Context, address string, value any) error {
	return b.send(ctx, b.topics.GroupWrite(b.bridgeID), TelegramWrite, address, value)
}

// GroupRead asks the bridge to issue a read request on a group address.
// The answer arrives later as a GroupValueResponse telegram.
func (b *Bus) GroupRead(ctx context.Context, address string) error {
	return b.send(ctx, b.topics.GroupRead(b.bridgeID), TelegramRead, address, nil)
}

// GroupResponse answers a bus read on behalf of an entity.
func (b *Bus) GroupResponse(ctx context.Context, address string, value any) error {
	return b.send(ctx, b.topics.GroupResponse(b.bridgeID), TelegramResponse, address, value)
}

func (b *Bus) send(ctx context.Context, topic string, tt TelegramType, address string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidGroupAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidGroupAddress, address)
	}
	if !b.link.IsConnected() {
		return ErrBusUnavailable
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(GroupRequest{
		Address:   address,
		Value:     value,
		Timestamp: now,
	})
	if err != nil {
		return fmt.Errorf("encoding group request: %w", err)
	}

	if err := b.link.PublishJSON(topic, payload); err != nil {
		return fmt.Errorf("publishing group request: %w", err)
	}

	var raw json.RawMessage
	if value != nil {
		raw, _ = json.Marshal(value) //nolint:errcheck // already marshalled above
	}
	b.record(Telegram{
		Destination: address,
		Type:        tt,
		Payload:     raw,
		Direction:   DirectionOutgoing,
		Timestamp:   now,
	})

	return nil
}
