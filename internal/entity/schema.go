package entity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nerrad567/knx-gateway/internal/bridges/knx"
)

// Schema validation for entity definition documents.
//
// Definitions arrive as loosely-typed JSON objects. Each platform has
// an explicit validator that checks structure, coerces equivalent
// representations into one canonical shape, fills defaults, and
// returns the typed config. Validators are pure: they never touch the
// store or the runtime.

// syncStatePattern matches the canonical sync-state policies:
// "init", "expire", "every", the latter two with an optional minute
// count such as "expire 30".
var syncStatePattern = regexp.MustCompile(`^(init|expire|every)( \d+)?$`)

// ValidateCreate validates a definition document for entity creation.
// A document that already carries a unique_id is rejected, since ids
// are generated server-side.
func ValidateCreate(platform Platform, raw map[string]any) (Config, error) {
	if !KnownPlatform(platform) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}

	if _, ok := raw["unique_id"]; ok {
		ve := &ValidationError{Platform: platform}
		ve.add("unique_id", "must not be set on create")
		return nil, ve
	}

	return validateConfig(platform, raw)
}

// ValidateUpdate validates a definition document for an update to the
// entity identified by uniqueID. The document may repeat the id; if it
// does, it must match.
func ValidateUpdate(platform Platform, uniqueID string, raw map[string]any) (Config, error) {
	if !KnownPlatform(platform) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}

	ve := &ValidationError{Platform: platform}
	if uniqueID == "" {
		ve.add("unique_id", "required for update")
		return nil, ve
	}
	if docID, ok := raw["unique_id"]; ok {
		s, isString := docID.(string)
		if !isString || s != uniqueID {
			ve.add("unique_id", "does not match the entity being updated")
			return nil, ve
		}
	}

	return validateConfig(platform, raw)
}

func validateConfig(platform Platform, raw map[string]any) (Config, error) {
	switch platform {
	case PlatformSwitch:
		return validateSwitch(raw)
	case PlatformLight:
		return validateLight(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
}

var switchKeys = []string{
	"unique_id", "name", "device_id", "entity_category", "sync_state",
	"device_class", "invert", "switch_address", "switch_state_address",
	"respond_to_read",
}

func validateSwitch(raw map[string]any) (Config, error) {
	ve := &ValidationError{Platform: PlatformSwitch}
	rejectUnknownKeys(raw, switchKeys, ve)

	cfg := SwitchConfig{
		Name:           stringField(raw, "name", true, ve),
		DeviceID:       stringField(raw, "device_id", false, ve),
		EntityCategory: enumField(raw, "entity_category", []string{CategoryConfig, CategoryDiagnostic}, ve),
		SyncState:      syncStateField(raw, ve),
		DeviceClass:    enumField(raw, "device_class", []string{DeviceClassSwitch, DeviceClassOutlet}, ve),
		Invert:         boolField(raw, "invert", false, ve),
		Address:        addressList(raw, "switch_address", true, ve),
		StateAddress:   addressList(raw, "switch_state_address", false, ve),
		RespondToRead:  boolField(raw, "respond_to_read", false, ve),
	}

	// Responding to bus reads needs a state address to answer on.
	if cfg.RespondToRead && len(cfg.StateAddress) == 0 {
		ve.add("respond_to_read", "requires switch_state_address")
	}

	if !ve.ok() {
		return nil, ve
	}
	return cfg, nil
}

var lightKeys = []string{
	"unique_id", "name", "device_id", "entity_category", "sync_state",
	"address", "state_address", "brightness_address", "brightness_state_address",
}

func validateLight(raw map[string]any) (Config, error) {
	ve := &ValidationError{Platform: PlatformLight}
	rejectUnknownKeys(raw, lightKeys, ve)

	cfg := LightConfig{
		Name:                   stringField(raw, "name", true, ve),
		DeviceID:               stringField(raw, "device_id", false, ve),
		EntityCategory:         enumField(raw, "entity_category", []string{CategoryConfig, CategoryDiagnostic}, ve),
		SyncState:              syncStateField(raw, ve),
		Address:                addressList(raw, "address", false, ve),
		StateAddress:           addressList(raw, "state_address", false, ve),
		BrightnessAddress:      addressList(raw, "brightness_address", false, ve),
		BrightnessStateAddress: addressList(raw, "brightness_state_address", false, ve),
	}

	// A light with no writable address cannot be controlled.
	if len(cfg.Address) == 0 && len(cfg.BrightnessAddress) == 0 {
		ve.add("address", "at least one of address or brightness_address is required")
	}

	if !ve.ok() {
		return nil, ve
	}
	return cfg, nil
}

func rejectUnknownKeys(raw map[string]any, allowed []string, ve *ValidationError) {
	for key := range raw {
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			ve.add(key, "unknown field")
		}
	}
}

func stringField(raw map[string]any, key string, required bool, ve *ValidationError) string {
	v, ok := raw[key]
	if !ok || v == nil {
		if required {
			ve.add(key, "required")
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		ve.add(key, "must be a string")
		return ""
	}
	if required && strings.TrimSpace(s) == "" {
		ve.add(key, "must not be empty")
	}
	return s
}

func boolField(raw map[string]any, key string, def bool, ve *ValidationError) bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		ve.add(key, "must be a bool")
		return def
	}
	return b
}

// enumField reads an optional string restricted to a closed value set.
func enumField(raw map[string]any, key string, allowed []string, ve *ValidationError) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		ve.add(key, "must be a string")
		return ""
	}
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	ve.add(key, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
	return ""
}

// syncStateField coerces the sync_state value to canonical string
// form. Booleans are accepted for compatibility: true means "init",
// false means "none". Missing defaults to "init".
func syncStateField(raw map[string]any, ve *ValidationError) string {
	v, ok := raw["sync_state"]
	if !ok || v == nil {
		return SyncStateInit
	}

	switch s := v.(type) {
	case bool:
		if s {
			return SyncStateInit
		}
		return SyncStateNone
	case string:
		if s == SyncStateNone {
			return SyncStateNone
		}
		if syncStatePattern.MatchString(s) {
			return s
		}
		ve.add("sync_state", fmt.Sprintf("invalid policy %q", s))
		return SyncStateInit
	default:
		ve.add("sync_state", "must be a bool or a string")
		return SyncStateInit
	}
}

// addressList coerces a group-address field into canonical list form.
// A bare string becomes a single-element list. Every element must be a
// valid 3-level group address.
func addressList(raw map[string]any, key string, required bool, ve *ValidationError) []string {
	v, ok := raw[key]
	if !ok || v == nil {
		if required {
			ve.add(key, "required")
		}
		return nil
	}

	var items []any
	switch t := v.(type) {
	case string:
		items = []any{t}
	case []any:
		items = t
	case []string:
		items = make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
	default:
		ve.add(key, "must be a group address or a list of group addresses")
		return nil
	}

	if required && len(items) == 0 {
		ve.add(key, "must not be empty")
		return nil
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			ve.add(fmt.Sprintf("%s[%d]", key, i), "must be a string")
			continue
		}
		if !knx.ValidGroupAddress(s) {
			ve.add(fmt.Sprintf("%s[%d]", key, i), fmt.Sprintf("invalid group address %q", s))
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
