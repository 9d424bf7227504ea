package knx

import "errors"

// Domain errors for the KNX bus package.
var (
	// ErrInvalidGroupAddress is returned when a group address string
	// cannot be parsed.
	ErrInvalidGroupAddress = errors.New("knx: invalid group address")

	// ErrInvalidTelegram is returned when a received telegram payload
	// is malformed.
	ErrInvalidTelegram = errors.New("knx: invalid telegram")

	// ErrBusUnavailable is returned when the bridge link is down and a
	// group request cannot be sent.
	ErrBusUnavailable = errors.New("knx: bus bridge unavailable")
)
