package domain

import "errors"

// Sentinel errors used with errors.Is across the routing and transport
// layers. These are the exact error-kind vocabulary the wire protocol's
// "error" message can report.
var (
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrUnknownRole       = errors.New("unknown role")
	ErrCapacityExceeded  = errors.New("streamer subscriber capacity exceeded")
	ErrNoActiveStreamer  = errors.New("no active streamer")
	ErrTargetUnknown     = errors.New("target connection unknown")
	ErrQueueFull         = errors.New("outbound queue full")
	ErrSocketClosed      = errors.New("connection closed")
	ErrIdleTimeout       = errors.New("connection idle timeout")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyRegistered = errors.New("connection already registered")
)
