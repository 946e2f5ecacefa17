package protection

import (
	"strings"
	"time"
)

// NoTribe is the tribe id of targets and players that belong to no tribe.
const NoTribe = 0

// Category is the damage-scaling class of a damageable target.
type Category int

const (
	// CategoryNone is anything the multipliers do not cover.
	CategoryNone Category = iota
	// CategoryStructure is a generic placed structure.
	CategoryStructure
	// CategoryTurret is a defensive structure. It takes precedence over
	// CategoryStructure.
	CategoryTurret
	// CategoryDino is a tamed creature.
	CategoryDino
)

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategoryStructure:
		return "structure"
	case CategoryTurret:
		return "turret"
	case CategoryDino:
		return "dino"
	default:
		return "none"
	}
}

// ParseCategory maps a wire name back to a Category. Unknown names map to
// CategoryNone with ok == false.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "structure":
		return CategoryStructure, true
	case "turret":
		return CategoryTurret, true
	case "dino", "creature":
		return CategoryDino, true
	case "none":
		return CategoryNone, true
	default:
		return CategoryNone, false
	}
}

// Player is a connected player as resolved by the host.
type Player interface {
	PlayerID() uint64
	TribeID() int
}

// Target is anything that can take damage, as resolved by the host.
type Target interface {
	TribeID() int
	Category() Category
}

// Notifier delivers a short message to one connected player.
type Notifier interface {
	Notify(playerID uint64, message string)
}

// Clock yields the current time. A time.Time from time.Now carries both a
// monotonic reading, used for offline durations, and a wall reading, used
// for account age.
type Clock interface {
	Now() time.Time
}

// SystemClock is the process clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Hooks are the synchronous entry points the host's event dispatch calls.
type Hooks interface {
	OnPlayerConnected(player Player)
	OnPlayerDisconnected(player Player)
	ApplyOutgoingDamage(damage float64, victim Target, attacker Player) float64
	ApplyIncomingDamage(damage float64, victim Target) float64
	BuildStatusText(target Target) string
}

// Metrics receives engine events.
type Metrics interface {
	PlayerConnected(firstSeen bool)
	PlayerDisconnected()
	DamageScaled(pass, reason string)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

// PlayerConnected does nothing.
func (NoopMetrics) PlayerConnected(bool) {}

// PlayerDisconnected does nothing.
func (NoopMetrics) PlayerDisconnected() {}

// DamageScaled does nothing.
func (NoopMetrics) DamageScaled(string, string) {}

// Damage pass and reason labels reported to Metrics.
const (
	PassOutgoing = "outgoing"
	PassIncoming = "incoming"

	ReasonOrp    = "orp"
	ReasonNewbie = "newbie"
)
