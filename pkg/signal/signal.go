// Package signal holds the realtime session state for meeting rooms: a
// registry of connected participants, a relay for WebRTC handshake envelopes,
// and an append-only recorder accumulating the room's audio.
package signal

import "encoding/json"

// Envelope types.
const (
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeICECandidate     = "ice-candidate"
	TypeAllUsers         = "all-users"
	TypeUserConnected    = "user-connected"
	TypeUserDisconnected = "user-disconnected"
)

// Envelope is a signaling message relayed between participants. Payload is
// opaque to the relay.
type Envelope struct {
	Type    string          `json:"type"`
	Target  string          `json:"target,omitempty"`
	From    string          `json:"from,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Conn delivers envelopes to one connected participant. Delivery is
// best-effort; a failed send disconnects nobody but the target.
type Conn interface {
	Send(env Envelope) error
}
