package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/knx-gateway/internal/bridges/knx"
	"github.com/nerrad567/knx-gateway/internal/entity"
)

// liveSwitch is the running form of a switch entity.
//
// The first command address is written on SetState; state telegrams on
// any configured address update the tracked state. With invert set,
// the bus-level bit is the inverse of the logical state.
type liveSwitch struct {
	rec entity.Record
	cfg entity.SwitchConfig
	m   *Manager

	mu    sync.Mutex
	on    bool
	known bool

	unlisten func()
	stopSync chan struct{}
}

func newLiveSwitch(rec entity.Record, cfg entity.SwitchConfig, m *Manager) *liveSwitch {
	s := &liveSwitch{rec: rec, cfg: cfg, m: m}
	s.unlisten = m.bus.Listen(s.onTelegram)
	s.startSync()
	return s
}

// EntityID implements entity.LiveHandle.
func (s *liveSwitch) EntityID() string { return s.rec.EntityID() }

func (s *liveSwitch) startSync() {
	readOnStart, interval := syncSchedule(s.cfg.SyncState)
	if !readOnStart {
		return
	}

	s.readState()

	if interval <= 0 {
		return
	}
	s.stopSync = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.readState()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// readState asks the bus for the current value of every state address.
func (s *liveSwitch) readState() {
	for _, addr := range s.cfg.StateAddress {
		if err := s.m.bus.GroupRead(context.Background(), addr); err != nil {
			s.m.logger.Warn("state read failed",
				"entity_id", s.EntityID(),
				"address", addr,
				"error", err,
			)
		}
	}
}

func (s *liveSwitch) onTelegram(t knx.Telegram) {
	if !s.listensTo(t.Destination) {
		return
	}

	switch t.Type {
	case knx.TelegramWrite, knx.TelegramResponse:
		raw, err := t.BoolPayload()
		if err != nil {
			return
		}
		s.setState(raw != s.cfg.Invert)

	case knx.TelegramRead:
		s.answerRead(t.Destination)
	}
}

func (s *liveSwitch) listensTo(address string) bool {
	for _, addr := range s.cfg.StateAddress {
		if addr == address {
			return true
		}
	}
	for _, addr := range s.cfg.Address {
		if addr == address {
			return true
		}
	}
	return false
}

// answerRead responds to a bus read on a state address when the entity
// is configured to do so and actually knows its state.
func (s *liveSwitch) answerRead(address string) {
	if !s.cfg.RespondToRead {
		return
	}
	isState := false
	for _, addr := range s.cfg.StateAddress {
		if addr == address {
			isState = true
			break
		}
	}
	if !isState {
		return
	}

	s.mu.Lock()
	on, known := s.on, s.known
	s.mu.Unlock()
	if !known {
		return
	}

	if err := s.m.bus.GroupResponse(context.Background(), address, on != s.cfg.Invert); err != nil {
		s.m.logger.Warn("read response failed",
			"entity_id", s.EntityID(),
			"address", address,
			"error", err,
		)
	}
}

func (s *liveSwitch) setState(on bool) {
	s.mu.Lock()
	changed := !s.known || s.on != on
	s.on = on
	s.known = true
	s.mu.Unlock()

	if !changed {
		return
	}

	metric := 0.0
	if on {
		metric = 1.0
	}
	s.m.stateChanged(s.EntityID(), string(s.rec.Platform), map[string]any{"on": on}, metric)
}

// SetState writes the desired state to the bus. Without a state
// address the entity is optimistic and assumes the write took effect.
func (s *liveSwitch) SetState(ctx context.Context, on bool) error {
	if err := s.m.bus.GroupWrite(ctx, s.cfg.Address[0], on != s.cfg.Invert); err != nil {
		return err
	}
	if len(s.cfg.StateAddress) == 0 {
		s.setState(on)
	}
	return nil
}

// State returns the tracked state and whether it is known yet.
func (s *liveSwitch) State() (on, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on, s.known
}

func (s *liveSwitch) stop() {
	if s.stopSync != nil {
		close(s.stopSync)
	}
	s.unlisten()
}
