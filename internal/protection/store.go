package protection

import (
	"sync"
	"time"
)

// TribeState is the online/offline record of one tribe.
type TribeState struct {
	// Online is true while the host reports a member connected.
	Online bool
	// OfflineSince is only meaningful while Online is false.
	OfflineSince time.Time
}

// PlayerState is the account-age record of one player.
type PlayerState struct {
	FirstSeen time.Time
}

// Store holds tribe and player state behind a single lock. It trusts the
// host's connect/disconnect reports verbatim and counts no members.
type Store struct {
	mu      sync.RWMutex
	tribes  map[int]TribeState
	players map[uint64]PlayerState
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		tribes:  make(map[int]TribeState),
		players: make(map[uint64]PlayerState),
	}
}

// RecordConnect marks the tribe online and records the player's first
// sighting. It reports whether this was the first sighting.
func (s *Store) RecordConnect(tribeID int, playerID uint64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, seen := s.players[playerID]
	if !seen {
		s.players[playerID] = PlayerState{FirstSeen: now}
	}

	if tribeID != NoTribe {
		t := s.tribes[tribeID]
		t.Online = true
		s.tribes[tribeID] = t
	}

	return !seen
}

// RecordDisconnect marks the tribe offline as of now. Every call restarts
// the offline timer, even if the tribe was already offline.
func (s *Store) RecordDisconnect(tribeID int, now time.Time) {
	if tribeID == NoTribe {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tribes[tribeID] = TribeState{Online: false, OfflineSince: now}
}

// Tribe returns a copy of the tribe's state
func (s *Store) Tribe(tribeID int) (TribeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tribes[tribeID]
	return t, ok
}

// Player returns a copy of the player's state
func (s *Store) Player(playerID uint64) (PlayerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	return p, ok
}

// snapshot is a consistent read of one tribe and one player.
type snapshot struct {
	tribe       TribeState
	tribeKnown  bool
	player      PlayerState
	playerKnown bool
}

func (s *Store) snapshot(tribeID int, playerID uint64, withPlayer bool) snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap snapshot
	snap.tribe, snap.tribeKnown = s.tribes[tribeID]
	if withPlayer {
		snap.player, snap.playerKnown = s.players[playerID]
	}
	return snap
}

// Size returns the number of tracked tribes and players
func (s *Store) Size() (tribes, players int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tribes), len(s.players)
}
