package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Role identifies which of the three signalling roles a connection
// authenticated as. A connection keeps exactly one role for its lifetime.
type Role int

const (
	RolePlayer Role = iota
	RoleStreamer
	RoleSFU
)

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleStreamer:
		return "streamer"
	case RoleSFU:
		return "sfu"
	default:
		return "unknown"
	}
}

// ConnectionID is the internal, transport-level identity of a connection.
// It is 128 bits of randomness, never derived from client input.
type ConnectionID string

// NewConnectionID mints a random 128-bit connection ID, hex-encoded.
func NewConnectionID() ConnectionID {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform RNG is broken; there is
		// no safe fallback for an identity that must never collide.
		panic(fmt.Sprintf("domain: crypto/rand unavailable: %v", err))
	}
	return ConnectionID(hex.EncodeToString(b[:]))
}

// StreamerAutoID returns the auto-assigned public ID a streamer gets when
// it never supplies one of its own: "streamer_" followed by the first 8
// hex characters of its internal connection ID.
func StreamerAutoID(id ConnectionID) string {
	s := string(id)
	if len(s) > 8 {
		s = s[:8]
	}
	return "streamer_" + s
}

// ConnState is a position in a role's state machine (§4.E).
type ConnState int

const (
	StateConnected ConnState = iota
	StateIdentified
	StateSubscribed
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	case StateSubscribed:
		return "subscribed"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Connection is the registry's view of one live transport session. The
// Sender field is a port back out to the transport primitive; the registry
// never imports the transport package.
type Connection struct {
	ID           ConnectionID
	Role         Role
	PublicID     string // streamer/player public identity on the wire
	ConnectedAt  time.Time
	LastActivity time.Time
	Sender       Sender
}

// Sender is the registry/subscription-graph's view of a live transport
// connection: enough to push a frame or tear it down, nothing more.
type Sender interface {
	Send(Frame) error
	Close(code int, reason string) error
	ID() ConnectionID
}

// ConnectionStats mirrors the original implementation's point-in-time
// snapshot of registry occupancy.
type ConnectionStats struct {
	PlayerConnections   int `json:"playerConnections"`
	StreamerConnections int `json:"streamerConnections"`
	SFUConnections      int `json:"sfuConnections"`
	TotalSubscriptions  int `json:"totalSubscriptions"`
}
