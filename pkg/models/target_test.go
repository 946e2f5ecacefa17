package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gravitas-games/orp/internal/protection"
)

func TestNewTargetClassification(t *testing.T) {
	cases := []struct {
		name     string
		kind     string
		actor    string
		category string
		want     protection.Category
	}{
		{"turret by name", KindStructure, "StructureTurretBaseBP_Heavy_C", "", protection.CategoryTurret},
		{"plain structure", KindStructure, "Wall_Metal_C", "", protection.CategoryStructure},
		{"dino", KindDino, "Rex_Character_BP_C", "", protection.CategoryDino},
		{"creature alias", "creature", "Raptor", "", protection.CategoryDino},
		{"unknown kind", "player", "PlayerPawn", "", protection.CategoryNone},
		{"explicit category wins", KindStructure, "Wall_Metal_C", "turret", protection.CategoryTurret},
		{"unparsable category falls back", KindDino, "Rex", "boat", protection.CategoryDino},
		{"turret name on dino", KindDino, "TurretDino", "", protection.CategoryDino},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := NewTarget(4, tc.kind, tc.actor, tc.category)
			assert.Equal(t, tc.want, target.Category())
			assert.Equal(t, 4, target.TribeID())
		})
	}
}

func TestNilHandles(t *testing.T) {
	var target *Target
	assert.Equal(t, protection.NoTribe, target.TribeID())
	assert.Equal(t, protection.CategoryNone, target.Category())

	var player *Player
	assert.Zero(t, player.PlayerID())
	assert.Zero(t, player.TribeID())
}
