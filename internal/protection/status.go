package protection

import (
	"fmt"
	"time"
)

// Status lines shown on hover.
const (
	StatusOn        = "[ORP] OFFLINE PROTECTION: ON"
	StatusOff       = "[ORP] OFFLINE PROTECTION: OFF"
	statusCountdown = "[ORP] OFFLINE PROTECTION IN: %ds"
)

// BuildStatusText renders the protection state of the target's tribe, or ""
// when the target has no tribe.
func (e *Engine) BuildStatusText(target Target) string {
	if target == nil {
		return ""
	}
	tribeID := target.TribeID()
	if tribeID == NoTribe {
		return ""
	}

	delay := e.cfg.Load().ActivationDelay()
	now := e.clock.Now()
	snap := e.store.snapshot(tribeID, 0, false)

	if orpActive(snap.tribe, snap.tribeKnown, delay, now) {
		return StatusOn
	}

	if left := timeToActivation(snap.tribe, snap.tribeKnown, delay, now); left > 0 {
		return fmt.Sprintf(statusCountdown, wholeSecondsCeil(left))
	}

	return StatusOff
}

// wholeSecondsCeil rounds d up to whole seconds.
func wholeSecondsCeil(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
