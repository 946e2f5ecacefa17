package models

import "time"

// Player represents a player reported online by a game host
type Player struct {
	ID      uint64 `json:"id"`       // host-stable unique id
	Tribe   int    `json:"tribe_id"` // 0 when the player has no tribe
	Name    string `json:"name,omitempty"`
	HostID  string `json:"host_id"` // bridge connection that reported the player
	Session string `json:"session"`

	ConnectedAt time.Time `json:"connected_at"`
}

// PlayerID returns the player's unique id
func (p *Player) PlayerID() uint64 {
	if p == nil {
		return 0
	}
	return p.ID
}

// TribeID returns the player's current tribe
func (p *Player) TribeID() int {
	if p == nil {
		return 0
	}
	return p.Tribe
}
