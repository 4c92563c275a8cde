package ipc

import "encoding/json"

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types (UI -> companion).
const (
	MsgUserAction      = "user_action"
	MsgContextSnapshot = "context_snapshot"
	MsgSetEnabled      = "set_enabled"
	MsgPing            = "ping"
)

// Outbound message types (companion -> UI).
const (
	MsgRender = "render"
	MsgPong   = "pong"
)

// userActionData carries the user's response to a visible bubble.
type userActionData struct {
	Action string `json:"action"`
}

// setEnabledData toggles the kill switch.
type setEnabledData struct {
	Enabled bool `json:"enabled"`
}
