package server

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gravitas-games/orp/internal/network"
	"github.com/gravitas-games/orp/internal/protection"
	"github.com/gravitas-games/orp/pkg/models"
)

// Session tracks which host connection reported each online player. It is
// the engine's notification sink.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Player management
	players     map[uint64]*models.Player // playerID -> Player
	connections map[uint64]*Connection    // playerID -> reporting host
	mu          sync.RWMutex

	log zerolog.Logger
}

var _ protection.Notifier = (*Session)(nil)

// SessionStatus represents the current state of the session
type SessionStatus struct {
	PlayerCount int   `json:"player_count"`
	HostCount   int   `json:"host_count"`
	Uptime      int64 `json:"uptime"` // seconds
}

// NewSession creates a new session
func NewSession(id string, log zerolog.Logger) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		players:     make(map[uint64]*models.Player),
		connections: make(map[uint64]*Connection),
		log:         log.With().Str("component", "session").Str("session_id", id).Logger(),
	}
}

// AddPlayer records that conn reports player online. A player reported by
// a second host moves to that host.
func (s *Session) AddPlayer(player *models.Player, conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player.Session = s.ID
	s.players[player.ID] = player
	s.connections[player.ID] = conn
}

// RemovePlayer forgets an online player and returns its last record
func (s *Session) RemovePlayer(playerID uint64) (*models.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, exists := s.players[playerID]
	if exists {
		delete(s.players, playerID)
		delete(s.connections, playerID)
	}
	return player, exists
}

// GetPlayer retrieves an online player by ID
func (s *Session) GetPlayer(playerID uint64) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[playerID]
	return player, exists
}

// GetPlayers returns a copy of every online player, ordered by ID
func (s *Session) GetPlayers() []models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]models.Player, 0, len(s.players))
	for _, player := range s.players {
		players = append(players, *player)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// ReleaseConnection forgets every player reported by conn and returns them.
// Once it returns, Notify can no longer reach conn.
func (s *Session) ReleaseConnection(conn *Connection) []*models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []*models.Player
	for id, c := range s.connections {
		if c != conn {
			continue
		}
		released = append(released, s.players[id])
		delete(s.players, id)
		delete(s.connections, id)
	}
	return released
}

// Notify routes a player-facing message to the host that reported the
// player. Messages for players no host reports are dropped.
func (s *Session) Notify(playerID uint64, message string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connections[playerID]
	if !ok {
		s.log.Debug().Uint64("player_id", playerID).Msg("notification for unknown player dropped")
		return
	}

	conn.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeNotify,
		Payload: network.NotifyPayload{
			PlayerID: playerID,
			Message:  message,
		},
	})
}

// GetStatus returns the current session status
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hosts := make(map[*Connection]struct{})
	for _, c := range s.connections {
		hosts[c] = struct{}{}
	}

	return SessionStatus{
		PlayerCount: len(s.players),
		HostCount:   len(hosts),
		Uptime:      int64(time.Since(s.CreatedAt).Seconds()),
	}
}
