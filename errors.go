package adam6000

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by device accessors. Every failure is wrapped with
// enough context (channel kind, index, cause) to diagnose it; no accessor
// retries or falls back to a stale value.
var (
	// ErrUnknownModel means the model identifier has no registered profile.
	ErrUnknownModel = errors.New("unknown module model")
	// ErrIndexOutOfRange means the channel index is outside the model's declared count.
	ErrIndexOutOfRange = errors.New("channel index out of range")
	// ErrValueOutOfRange means a write value lies outside the channel's documented span.
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrUnsupportedOperation means the model's profile has no table for the operation.
	ErrUnsupportedOperation = errors.New("operation not supported by this model")
	// ErrNotConnected means the handle has no open transport.
	ErrNotConnected = errors.New("not connected")
	// ErrTransport marks a connection or timeout failure from the transport.
	ErrTransport = errors.New("transport failure")
	// ErrProtocol marks a Modbus exception reported by the module itself.
	ErrProtocol = errors.New("module exception")
)

func indexError(kind ChannelKind, index, count int) error {
	return fmt.Errorf("adam6000: %s %d: %w [0,%d)", kind, index, ErrIndexOutOfRange, count)
}

func unsupportedError(model, op string) error {
	return fmt.Errorf("adam6000: %s: %s: %w", model, op, ErrUnsupportedOperation)
}
