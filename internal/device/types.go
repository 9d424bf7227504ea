package device

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// idPrefix namespaces generated virtual device identifiers.
const idPrefix = "knx_vdev_"

// Device is a user-created virtual KNX device.
type Device struct {
	// ID is the generated identifier, e.g. "knx_vdev_3f9c...".
	ID string `json:"id"`

	// Name is the user-facing device name.
	Name string `json:"name"`

	// AreaID optionally places the device in an area of the building.
	AreaID string `json:"area_id,omitempty"`

	// CreatedAt is when the device was registered.
	CreatedAt time.Time `json:"created_at"`
}

// NewID generates a namespaced random device identifier.
func NewID() string {
	return idPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}
