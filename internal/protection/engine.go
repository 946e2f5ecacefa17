package protection

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gravitas-games/orp/internal/config"
)

// ConnectNotice is sent to a connecting player when announcements are on.
const ConnectNotice = "[ORP] Tribe protection disabled: a member is online."

// Engine applies the offline raid protection policy over a Store.
// It is safe for concurrent use by every host worker.
type Engine struct {
	cfg      atomic.Pointer[config.Protection]
	store    *Store
	clock    Clock
	notifier Notifier
	metrics  Metrics
	log      zerolog.Logger
}

var _ Hooks = (*Engine)(nil)

// NewEngine creates an engine with an empty store. A nil notifier disables
// connect announcements; nil clock and metrics fall back to the system clock
// and a no-op collector.
func NewEngine(
	cfg *config.Protection,
	clock Clock,
	notifier Notifier,
	metrics Metrics,
	log zerolog.Logger,
) *Engine {
	if cfg == nil {
		cfg = config.DefaultProtection()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	e := &Engine{
		store:    NewStore(),
		clock:    clock,
		notifier: notifier,
		metrics:  metrics,
		log:      log.With().Str("component", "protection").Logger(),
	}
	e.cfg.Store(cfg.Clone())
	return e
}

// Config returns the configuration in effect. Callers must not modify it.
func (e *Engine) Config() *config.Protection {
	return e.cfg.Load()
}

// SetConfig replaces the configuration in one step. Concurrent calls see
// either the old or the new configuration, never a mix.
func (e *Engine) SetConfig(cfg *config.Protection) {
	if cfg == nil {
		return
	}
	e.cfg.Store(cfg.Clone())
	e.log.Info().
		Int("activation_delay_s", cfg.ActivationDelaySeconds).
		Int("newbie_days", cfg.NewbieProtectionDays).
		Msg("protection config replaced")
}

// Stats returns the number of tribes and players observed so far.
func (e *Engine) Stats() (tribes, players int) {
	return e.store.Size()
}

// OnPlayerConnected records the connection and, if enabled, tells the player
// that their tribe is no longer protected.
func (e *Engine) OnPlayerConnected(player Player) {
	if player == nil {
		return
	}

	tribeID, playerID := player.TribeID(), player.PlayerID()
	firstSeen := e.store.RecordConnect(tribeID, playerID, e.clock.Now())

	e.metrics.PlayerConnected(firstSeen)
	e.log.Debug().
		Uint64("player_id", playerID).
		Int("tribe_id", tribeID).
		Bool("first_seen", firstSeen).
		Msg("player connected")

	if e.cfg.Load().AnnounceStateChanges && e.notifier != nil {
		e.notifier.Notify(playerID, ConnectNotice)
	}
}

// OnPlayerDisconnected starts (or restarts) the tribe's offline timer.
func (e *Engine) OnPlayerDisconnected(player Player) {
	if player == nil {
		return
	}

	tribeID := player.TribeID()
	e.store.RecordDisconnect(tribeID, e.clock.Now())

	e.metrics.PlayerDisconnected()
	e.log.Debug().
		Uint64("player_id", player.PlayerID()).
		Int("tribe_id", tribeID).
		Msg("player disconnected")
}

// IsTribeOrpActive reports whether the tribe has been offline for at least
// the activation delay as of now.
func (e *Engine) IsTribeOrpActive(tribeID int, now time.Time) bool {
	t, ok := e.store.Tribe(tribeID)
	return orpActive(t, ok, e.cfg.Load().ActivationDelay(), now)
}

// TimeToActivation returns how long until the tribe's protection activates,
// or 0 if it is unknown, online or already protected.
func (e *Engine) TimeToActivation(tribeID int, now time.Time) time.Duration {
	t, ok := e.store.Tribe(tribeID)
	return timeToActivation(t, ok, e.cfg.Load().ActivationDelay(), now)
}

// IsNewbieProtected reports whether the player's account age, in elapsed
// 24-hour periods, is under the configured threshold.
func (e *Engine) IsNewbieProtected(playerID uint64, now time.Time) bool {
	p, ok := e.store.Player(playerID)
	return newbieProtected(p, ok, e.cfg.Load().NewbieProtectionDays, now)
}

func orpActive(t TribeState, known bool, delay time.Duration, now time.Time) bool {
	if !known || t.Online {
		return false
	}
	return now.Sub(t.OfflineSince) >= delay
}

func timeToActivation(t TribeState, known bool, delay time.Duration, now time.Time) time.Duration {
	if !known || t.Online {
		return 0
	}
	elapsed := now.Sub(t.OfflineSince)
	if elapsed >= delay {
		return 0
	}
	return delay - elapsed
}

// Age is counted in whole hours divided by 24, not calendar days.
func newbieProtected(p PlayerState, known bool, days int, now time.Time) bool {
	if !known {
		return false
	}
	hours := int64(now.Sub(p.FirstSeen) / time.Hour)
	return hours/24 < int64(days)
}
