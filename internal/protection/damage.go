package protection

import (
	"github.com/gravitas-games/orp/internal/config"
)

// ApplyOutgoingDamage scales damage dealt to victim. If the victim's tribe is
// protected the attack multiplier for the victim's category applies;
// otherwise a newbie attacker deals no damage at all.
func (e *Engine) ApplyOutgoingDamage(damage float64, victim Target, attacker Player) float64 {
	if victim == nil {
		return damage
	}
	tribeID := victim.TribeID()
	if tribeID == NoTribe {
		return damage
	}

	var playerID uint64
	if attacker != nil {
		playerID = attacker.PlayerID()
	}

	cfg := e.cfg.Load()
	now := e.clock.Now()
	snap := e.store.snapshot(tribeID, playerID, attacker != nil)

	if orpActive(snap.tribe, snap.tribeKnown, cfg.ActivationDelay(), now) {
		if m, ok := attackMultiplier(cfg, victim.Category()); ok {
			e.metrics.DamageScaled(PassOutgoing, ReasonOrp)
			return damage * m
		}
	}

	if attacker != nil && newbieProtected(snap.player, snap.playerKnown, cfg.NewbieProtectionDays, now) {
		e.metrics.DamageScaled(PassOutgoing, ReasonNewbie)
		return 0
	}

	return damage
}

// ApplyIncomingDamage scales damage received by a victim whose own tribe is
// protected. Hosts apply it after ApplyOutgoingDamage on the same hit.
func (e *Engine) ApplyIncomingDamage(damage float64, victim Target) float64 {
	if victim == nil {
		return damage
	}
	tribeID := victim.TribeID()
	if tribeID == NoTribe {
		return damage
	}

	cfg := e.cfg.Load()
	snap := e.store.snapshot(tribeID, 0, false)
	if !orpActive(snap.tribe, snap.tribeKnown, cfg.ActivationDelay(), e.clock.Now()) {
		return damage
	}

	m, ok := defenseMultiplier(cfg, victim.Category())
	if !ok {
		return damage
	}
	e.metrics.DamageScaled(PassIncoming, ReasonOrp)
	return damage * m
}

func attackMultiplier(cfg *config.Protection, c Category) (float64, bool) {
	switch c {
	case CategoryTurret:
		return cfg.DamageMultiplierTurrets, true
	case CategoryStructure:
		return cfg.DamageMultiplierStructures, true
	case CategoryDino:
		return cfg.DamageMultiplierDinos, true
	default:
		return 1, false
	}
}

func defenseMultiplier(cfg *config.Protection, c Category) (float64, bool) {
	switch c {
	case CategoryTurret:
		return cfg.DefenseMultiplierTurrets, true
	case CategoryStructure:
		return cfg.DefenseMultiplierStructures, true
	case CategoryDino:
		return cfg.DefenseMultiplierDinos, true
	default:
		return 1, false
	}
}
