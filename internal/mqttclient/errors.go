package mqttclient

import "errors"

// Error taxonomy per spec §4.D.
var (
	// ErrConnection covers broker-side or transport connection failures.
	ErrConnection = errors.New("mqttclient: connection error")
	// ErrExplicitDisconnect is returned when the inbound stream ends cleanly.
	ErrExplicitDisconnect = errors.New("mqttclient: explicit disconnect")
	// ErrSerialization is returned when a received payload fails to decode.
	ErrSerialization = errors.New("mqttclient: serialization error")
)
