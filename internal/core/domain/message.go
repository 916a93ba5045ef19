package domain

import (
	"encoding/json"
	"fmt"
)

// Frame is the signalling wire message: a flat JSON object carrying a
// "type" discriminator plus whatever fields that type needs, sitting
// directly at the top level rather than nested under a "data" key. The
// codec implements only this flat shape — a legacy nested-"data" envelope
// is rejected as a malformed frame rather than accepted alongside it.
type Frame map[string]interface{}

// Message type discriminators (§6 of the wire protocol).
const (
	TypeConfig            = "config"
	TypePing              = "ping"
	TypePong              = "pong"
	TypePlayerCount       = "playerCount"
	TypeError             = "error"
	TypeStreamerList      = "streamerList"
	TypePlayerConnected   = "playerConnected"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeIceCandidate      = "iceCandidate"
	TypeStreamerIDChanged = "streamerIdChanged"
	TypeDisconnectPlayer  = "playerDisconnected"
	TypeIdentify          = "identify"
	TypeDisconnect        = "disconnect"
)

// ForwardableTypes are the WebRTC control-message types that the player
// and streamer state machines forward verbatim rather than handle
// themselves (§4.E).
var ForwardableTypes = map[string]bool{
	TypeOffer:              true,
	TypeAnswer:             true,
	TypeIceCandidate:       true,
	"iceCandidateError":    true,
	"dataChannelRequest":   true,
}

// DecodeFrame parses a raw transport message into a Frame. It rejects
// anything that isn't a flat JSON object with a non-empty string "type",
// and explicitly rejects the legacy nested {"type","id","data":{...}}
// envelope so callers never have to handle two shapes.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if _, nested := f["data"]; nested {
		return nil, fmt.Errorf("%w: nested data envelope is not supported", ErrMalformedFrame)
	}
	typ, ok := f["type"].(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("%w: missing or empty type", ErrMalformedFrame)
	}
	return f, nil
}

// Type returns the frame's discriminator.
func (f Frame) Type() string {
	t, _ := f["type"].(string)
	return t
}

// String returns a named string field, or "" if absent/wrong type.
func (f Frame) String(field string) string {
	s, _ := f[field].(string)
	return s
}

// Encode serializes the frame back to wire bytes.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// Clone makes a shallow copy so a forwarded frame can be mutated (e.g.
// stamping "id") without aliasing the sender's in-flight frame.
func (f Frame) Clone() Frame {
	out := make(Frame, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// WithID returns a clone with the routing "id" field set, unless one is
// already present — the player state machine only stamps its own
// internal ID onto a forwarded frame when the peer didn't supply one.
func (f Frame) WithID(id string) Frame {
	if _, present := f["id"]; present {
		return f
	}
	out := f.Clone()
	out["id"] = id
	return out
}

// ICEServerConfig describes one entry of the "config" message's ICE
// server list, passed through to clients verbatim.
type ICEServerConfig struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ConfigMessage is sent once, immediately after a connection identifies,
// carrying the ICE server list it should use. With no ICE servers
// configured, peerConnectionOptions is emitted as an empty object rather
// than {"iceServers":[]}, matching the literal §8 scenario 1 fixture.
func ConfigMessage(iceServers []ICEServerConfig) Frame {
	options := map[string]interface{}{}
	if len(iceServers) > 0 {
		options["iceServers"] = iceServers
	}
	return Frame{
		"type":                  TypeConfig,
		"peerConnectionOptions": options,
	}
}

// PingMessage is the server-initiated keepalive probe.
func PingMessage() Frame {
	return Frame{"type": TypePing}
}

// PongMessage answers a ping.
func PongMessage() Frame {
	return Frame{"type": TypePong}
}

// PlayerCountMessage reports a streamer's current subscriber count.
func PlayerCountMessage(n int) Frame {
	return Frame{"type": TypePlayerCount, "count": n}
}

// ErrorMessage carries a human-readable failure description back to the
// connection that caused it. Errors are only ever sent to the connection
// that triggered them (I5), never broadcast.
func ErrorMessage(msg string) Frame {
	return Frame{"type": TypeError, "message": msg}
}

// StreamerListMessage enumerates currently registered streamer public IDs.
func StreamerListMessage(ids []string) Frame {
	if ids == nil {
		ids = []string{}
	}
	return Frame{"type": TypeStreamerList, "ids": ids}
}

// PlayerConnectedMessage tells a streamer a player has subscribed to it.
func PlayerConnectedMessage(playerID string, dataChannel, sfu, sendOffer bool) Frame {
	return Frame{
		"type":        TypePlayerConnected,
		"playerId":    playerID,
		"dataChannel": dataChannel,
		"sfu":         sfu,
		"sendOffer":   sendOffer,
	}
}

// OfferMessage relays an opaque SDP offer.
func OfferMessage(sdp string) Frame {
	return Frame{"type": TypeOffer, "sdp": sdp}
}

// AnswerMessage relays an opaque SDP answer.
func AnswerMessage(sdp string) Frame {
	return Frame{"type": TypeAnswer, "sdp": sdp}
}

// IceCandidateMessage relays an opaque ICE candidate payload verbatim.
func IceCandidateMessage(candidate interface{}) Frame {
	return Frame{"type": TypeIceCandidate, "candidate": candidate}
}

// StreamerIDChangedMessage notifies a streamer's current subscribers that
// its public ID changed mid-session.
func StreamerIDChangedMessage(newID string) Frame {
	return Frame{"type": TypeStreamerIDChanged, "newID": newID}
}

// PlayerDisconnectedMessage tells a streamer one of its players left.
func PlayerDisconnectedMessage(playerID string) Frame {
	return Frame{"type": TypeDisconnectPlayer, "playerId": playerID}
}
