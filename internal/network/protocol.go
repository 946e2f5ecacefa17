package network

import "encoding/json"

// Message types - Host → Service
const (
	MsgTypePlayerConnected    = "player_connected"
	MsgTypePlayerDisconnected = "player_disconnected"
	MsgTypeDamage             = "damage"
	MsgTypeStatus             = "status"
	MsgTypePing               = "ping"
)

// Message types - Service → Host
const (
	MsgTypeDamageResult = "damage_result"
	MsgTypeStatusResult = "status_result"
	MsgTypeNotify       = "notify"
	MsgTypeError        = "error"
	MsgTypePong         = "pong"
)

// ClientMessage represents any message from a game host
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage represents any message to a game host
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// --- Host Message Payloads ---

// PlayerConnectedPayload is sent after the host finishes a player login
type PlayerConnectedPayload struct {
	PlayerID uint64 `json:"player_id"`
	TribeID  int    `json:"tribe_id"`
	Name     string `json:"name,omitempty"`
}

// PlayerDisconnectedPayload is sent before the host finishes a player logout
type PlayerDisconnectedPayload struct {
	PlayerID uint64 `json:"player_id"`
	TribeID  int    `json:"tribe_id"`
}

// TargetPayload describes a damageable actor.
// Category may be omitted; it is then derived from Kind and Name.
type TargetPayload struct {
	TribeID  int    `json:"tribe_id"`
	Kind     string `json:"kind,omitempty"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

// AttackerPayload identifies the player controller behind a hit
type AttackerPayload struct {
	PlayerID uint64 `json:"player_id"`
	TribeID  int    `json:"tribe_id"`
}

// DamagePayload asks for the scaled damage of one hit
type DamagePayload struct {
	RequestID string           `json:"request_id"`
	Damage    float64          `json:"damage"`
	Victim    *TargetPayload   `json:"victim"`
	Attacker  *AttackerPayload `json:"attacker,omitempty"`
}

// StatusPayload asks for the hover status of a target
type StatusPayload struct {
	RequestID string         `json:"request_id"`
	Target    *TargetPayload `json:"target"`
}

// --- Service Message Payloads ---

// DamageResultPayload carries the damage the host should apply
type DamageResultPayload struct {
	RequestID string  `json:"request_id"`
	Damage    float64 `json:"damage"`
}

// StatusResultPayload carries the rendered status text
type StatusResultPayload struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

// NotifyPayload asks the host to show a message to one player
type NotifyPayload struct {
	PlayerID uint64 `json:"player_id"`
	Message  string `json:"message"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
