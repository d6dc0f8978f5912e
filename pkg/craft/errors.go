package craft

import "errors"

// Sentinel errors, wrapped with context via fmt.Errorf("...: %w").
var (
	// Stack errors
	ErrEmptyStack      = errors.New("pktcraft: empty layer stack")
	ErrUnknownProtocol = errors.New("pktcraft: unknown protocol")

	// Layer content errors
	ErrInvalidOptions = errors.New("pktcraft: invalid header options")
	ErrBadValue       = errors.New("pktcraft: bad field value")
	ErrUnknownField   = errors.New("pktcraft: unknown field")
	ErrPacketTooLarge = errors.New("pktcraft: packet too large for length field")

	// Transmission errors
	ErrBackend = errors.New("pktcraft: backend rejected packet")
)
