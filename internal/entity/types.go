package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Platform selects the schema variant of an entity definition.
type Platform string

// Supported entity platforms.
const (
	PlatformSwitch Platform = "switch"
	PlatformLight  Platform = "light"
)

// KnownPlatform reports whether p has a registered schema.
func KnownPlatform(p Platform) bool {
	switch p {
	case PlatformSwitch, PlatformLight:
		return true
	default:
		return false
	}
}

// Entity category values. An empty category means the entity is a
// primary one, shown in the main UI.
const (
	CategoryConfig     = "config"
	CategoryDiagnostic = "diagnostic"
)

// Sync-state policies, canonical form. "none" disables state syncing,
// "init" reads once at start, "expire" and "every" re-read
// periodically and may carry a minute count ("expire 30").
const (
	SyncStateNone = "none"
	SyncStateInit = "init"
)

// Device classes for the switch platform.
const (
	DeviceClassSwitch = "switch"
	DeviceClassOutlet = "outlet"
)

// Config is the normalized, platform-specific payload of an entity
// definition. Implementations are plain structs; the tagged union is
// closed over the supported platforms.
type Config interface {
	// ConfigPlatform returns the platform tag the config belongs to.
	ConfigPlatform() Platform
}

// SwitchConfig is the normalized definition of a switch entity.
//
// Address fields are canonicalized to lists; the first element is the
// primary group address, the rest are passive listeners.
type SwitchConfig struct {
	Name           string   `json:"name"`
	DeviceID       string   `json:"device_id,omitempty"`
	EntityCategory string   `json:"entity_category,omitempty"`
	SyncState      string   `json:"sync_state"`
	DeviceClass    string   `json:"device_class,omitempty"`
	Invert         bool     `json:"invert"`
	Address        []string `json:"switch_address"`
	StateAddress   []string `json:"switch_state_address,omitempty"`
	RespondToRead  bool     `json:"respond_to_read"`
}

// ConfigPlatform implements Config.
func (SwitchConfig) ConfigPlatform() Platform { return PlatformSwitch }

// LightConfig is the normalized definition of a light entity.
// At least one of Address or BrightnessAddress must be set, otherwise
// the light cannot be controlled.
type LightConfig struct {
	Name                   string   `json:"name"`
	DeviceID               string   `json:"device_id,omitempty"`
	EntityCategory         string   `json:"entity_category,omitempty"`
	SyncState              string   `json:"sync_state"`
	Address                []string `json:"address,omitempty"`
	StateAddress           []string `json:"state_address,omitempty"`
	BrightnessAddress      []string `json:"brightness_address,omitempty"`
	BrightnessStateAddress []string `json:"brightness_state_address,omitempty"`
}

// ConfigPlatform implements Config.
func (LightConfig) ConfigPlatform() Platform { return PlatformLight }

// DecodeConfig unmarshals a stored JSON document into the typed config
// for its platform.
func DecodeConfig(platform Platform, data []byte) (Config, error) {
	switch platform {
	case PlatformSwitch:
		var cfg SwitchConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decoding switch config: %w", err)
		}
		return cfg, nil
	case PlatformLight:
		var cfg LightConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decoding light config: %w", err)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
}

// Record is the persisted form of an entity definition.
// UniqueID and Platform are immutable after creation; only Config
// changes on update.
type Record struct {
	UniqueID  string    `json:"unique_id"`
	Platform  Platform  `json:"platform"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID derives the deterministic runtime identifier for a record,
// e.g. "switch.knx_es_0f7a...".
func (r Record) EntityID() string {
	return string(r.Platform) + "." + r.UniqueID
}
