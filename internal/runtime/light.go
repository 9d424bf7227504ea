package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/knx-gateway/internal/bridges/knx"
	"github.com/nerrad567/knx-gateway/internal/entity"
)

// maxBrightness is the 8-bit ceiling used on the bus.
const maxBrightness = 255

// liveLight is the running form of a light entity. Switching and
// brightness each have their own command and state addresses; either
// group may be absent, validation guarantees at least one command
// address exists.
type liveLight struct {
	rec entity.Record
	cfg entity.LightConfig
	m   *Manager

	mu         sync.Mutex
	on         bool
	brightness int
	known      bool

	unlisten func()
	stopSync chan struct{}
}

func newLiveLight(rec entity.Record, cfg entity.LightConfig, m *Manager) *liveLight {
	l := &liveLight{rec: rec, cfg: cfg, m: m}
	l.unlisten = m.bus.Listen(l.onTelegram)
	l.startSync()
	return l
}

// EntityID implements entity.LiveHandle.
func (l *liveLight) EntityID() string { return l.rec.EntityID() }

func (l *liveLight) startSync() {
	readOnStart, interval := syncSchedule(l.cfg.SyncState)
	if !readOnStart {
		return
	}

	l.readState()

	if interval <= 0 {
		return
	}
	l.stopSync = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.readState()
			case <-l.stopSync:
				return
			}
		}
	}()
}

func (l *liveLight) readState() {
	addrs := make([]string, 0, len(l.cfg.StateAddress)+len(l.cfg.BrightnessStateAddress))
	addrs = append(addrs, l.cfg.StateAddress...)
	addrs = append(addrs, l.cfg.BrightnessStateAddress...)
	for _, addr := range addrs {
		if err := l.m.bus.GroupRead(context.Background(), addr); err != nil {
			l.m.logger.Warn("state read failed",
				"entity_id", l.EntityID(),
				"address", addr,
				"error", err,
			)
		}
	}
}

func (l *liveLight) onTelegram(t knx.Telegram) {
	if t.Type != knx.TelegramWrite && t.Type != knx.TelegramResponse {
		return
	}

	if contains(l.cfg.StateAddress, t.Destination) || contains(l.cfg.Address, t.Destination) {
		on, err := t.BoolPayload()
		if err != nil {
			return
		}
		l.apply(func() { l.on = on })
		return
	}

	if contains(l.cfg.BrightnessStateAddress, t.Destination) || contains(l.cfg.BrightnessAddress, t.Destination) {
		v, err := t.FloatPayload()
		if err != nil {
			return
		}
		b := int(v)
		if b < 0 {
			b = 0
		}
		if b > maxBrightness {
			b = maxBrightness
		}
		l.apply(func() {
			l.brightness = b
			l.on = b > 0
		})
	}
}

// apply runs a state mutation under the lock and broadcasts the result.
func (l *liveLight) apply(mutate func()) {
	l.mu.Lock()
	prevOn, prevBrightness, prevKnown := l.on, l.brightness, l.known
	mutate()
	l.known = true
	changed := !prevKnown || prevOn != l.on || prevBrightness != l.brightness
	on, brightness := l.on, l.brightness
	l.mu.Unlock()

	if !changed {
		return
	}

	metric := 0.0
	if on {
		metric = float64(brightness)
		if metric == 0 {
			metric = maxBrightness
		}
	}
	l.m.stateChanged(l.EntityID(), string(l.rec.Platform),
		map[string]any{"on": on, "brightness": brightness}, metric)
}

// SetState switches the light on or off. Falls back to a zero
// brightness write when only a brightness address is configured.
func (l *liveLight) SetState(ctx context.Context, on bool) error {
	if len(l.cfg.Address) > 0 {
		if err := l.m.bus.GroupWrite(ctx, l.cfg.Address[0], on); err != nil {
			return err
		}
	} else {
		target := 0
		if on {
			target = maxBrightness
		}
		if err := l.m.bus.GroupWrite(ctx, l.cfg.BrightnessAddress[0], target); err != nil {
			return err
		}
	}

	if len(l.cfg.StateAddress) == 0 && len(l.cfg.BrightnessStateAddress) == 0 {
		l.apply(func() { l.on = on })
	}
	return nil
}

// SetBrightness writes a brightness level (0-255).
func (l *liveLight) SetBrightness(ctx context.Context, level int) error {
	if len(l.cfg.BrightnessAddress) == 0 {
		return fmt.Errorf("light %s has no brightness address", l.EntityID())
	}
	if level < 0 {
		level = 0
	}
	if level > maxBrightness {
		level = maxBrightness
	}

	if err := l.m.bus.GroupWrite(ctx, l.cfg.BrightnessAddress[0], level); err != nil {
		return err
	}

	if len(l.cfg.BrightnessStateAddress) == 0 {
		l.apply(func() {
			l.brightness = level
			l.on = level > 0
		})
	}
	return nil
}

// State returns the tracked state and whether it is known yet.
func (l *liveLight) State() (on bool, brightness int, known bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on, l.brightness, l.known
}

func (l *liveLight) stop() {
	if l.stopSync != nil {
		close(l.stopSync)
	}
	l.unlisten()
}

func contains(addrs []string, addr string) bool {
	for _, a := range addrs {
		if a == addr {
			return true
		}
	}
	return false
}
