package models

import (
	"strings"

	"github.com/gravitas-games/orp/internal/protection"
)

// Actor kinds a host may report for a damageable target
const (
	KindStructure = "structure"
	KindDino      = "dino"
)

// Target is a damageable actor as described by a game host
type Target struct {
	Tribe int                 `json:"tribe_id"`
	Kind  string              `json:"kind,omitempty"`
	Name  string              `json:"name,omitempty"`
	Class protection.Category `json:"category"`
}

// NewTarget resolves the target's category. An explicit category wins;
// otherwise it is derived from kind and name, where any structure whose
// name contains "Turret" is a turret.
func NewTarget(tribeID int, kind, name, category string) *Target {
	t := &Target{Tribe: tribeID, Kind: kind, Name: name}

	if c, ok := protection.ParseCategory(category); ok {
		t.Class = c
		return t
	}

	switch strings.ToLower(kind) {
	case KindStructure:
		if strings.Contains(name, "Turret") {
			t.Class = protection.CategoryTurret
		} else {
			t.Class = protection.CategoryStructure
		}
	case KindDino, "creature":
		t.Class = protection.CategoryDino
	default:
		t.Class = protection.CategoryNone
	}
	return t
}

// TribeID returns the owning tribe, 0 if none
func (t *Target) TribeID() int {
	if t == nil {
		return protection.NoTribe
	}
	return t.Tribe
}

// Category returns the resolved damage-scaling class
func (t *Target) Category() protection.Category {
	if t == nil {
		return protection.CategoryNone
	}
	return t.Class
}
