package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Protection holds the offline raid protection tunables.
// Field names on disk match the keys game admins already know.
type Protection struct {
	ActivationDelaySeconds int `yaml:"orp_activation_delay_seconds"`
	NewbieProtectionDays   int `yaml:"newbie_protection_days"`

	// Applied to damage dealt to targets of an ORP-active tribe.
	DamageMultiplierStructures float64 `yaml:"tribe_damage_multiplier_to_structures"`
	DamageMultiplierTurrets    float64 `yaml:"tribe_damage_multiplier_to_turrets"`
	DamageMultiplierDinos      float64 `yaml:"tribe_damage_multiplier_to_dinos"`

	// Applied to damage received by targets of an ORP-active tribe.
	DefenseMultiplierStructures float64 `yaml:"tribe_defense_multiplier_structures"`
	DefenseMultiplierTurrets    float64 `yaml:"tribe_defense_multiplier_turrets"`
	DefenseMultiplierDinos      float64 `yaml:"tribe_defense_multiplier_dinos"`

	AnnounceStateChanges bool `yaml:"announce_state_changes"`
}

// maxActivationDelaySeconds is the longest delay a time.Duration can hold.
const maxActivationDelaySeconds = math.MaxInt64 / int64(time.Second)

// DefaultProtection returns the stock tunables
func DefaultProtection() *Protection {
	return &Protection{
		ActivationDelaySeconds:      900,
		NewbieProtectionDays:        3,
		DamageMultiplierStructures:  0.1,
		DamageMultiplierTurrets:     0.1,
		DamageMultiplierDinos:       0.25,
		DefenseMultiplierStructures: 0.25,
		DefenseMultiplierTurrets:    0.25,
		DefenseMultiplierDinos:      0.5,
		AnnounceStateChanges:        true,
	}
}

// ActivationDelay returns the grace period as a duration. Values past the
// range of time.Duration saturate instead of wrapping.
func (p *Protection) ActivationDelay() time.Duration {
	if int64(p.ActivationDelaySeconds) > maxActivationDelaySeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(p.ActivationDelaySeconds) * time.Second
}

// Clone returns an independent copy
func (p *Protection) Clone() *Protection {
	c := *p
	return &c
}

// ReadProtection decodes the tunables file. Keys absent from the file keep
// their defaults. JSON files decode as well since YAML is a superset.
func ReadProtection(path string) (*Protection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protection config: %w", err)
	}

	cfg := DefaultProtection()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse protection config: %w", err)
	}

	return cfg, nil
}

// LoadProtection never fails. A missing or malformed file falls back to the
// defaults, which are written back so the next load succeeds. Invalid
// values are reset field by field.
func LoadProtection(path string, log zerolog.Logger) *Protection {
	log = log.With().Str("component", "config").Str("path", path).Logger()

	cfg, err := ReadProtection(path)
	if err != nil {
		log.Error().Err(err).Msg("failed to load protection config, using defaults")

		cfg = DefaultProtection()
		if err := SaveProtection(path, cfg); err != nil {
			log.Error().Err(err).Msg("failed to persist default protection config")
		}
		return cfg
	}

	if err := cfg.Sanitize(); err != nil {
		log.Warn().Err(err).Msg("invalid protection config values reset to defaults")
	}

	log.Info().
		Int("activation_delay_s", cfg.ActivationDelaySeconds).
		Int("newbie_days", cfg.NewbieProtectionDays).
		Bool("announce", cfg.AnnounceStateChanges).
		Msg("protection config loaded")
	return cfg
}

// SaveProtection writes the tunables to path, creating parent directories.
func SaveProtection(path string, cfg *Protection) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode protection config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write protection config: %w", err)
	}
	return nil
}

// Sanitize resets every out-of-range field to its default and reports all of
// them at once.
func (p *Protection) Sanitize() error {
	def := DefaultProtection()
	var result *multierror.Error

	if p.ActivationDelaySeconds < 0 || int64(p.ActivationDelaySeconds) > maxActivationDelaySeconds {
		result = multierror.Append(result, fmt.Errorf("orp_activation_delay_seconds must be between 0 and %d, got %d", maxActivationDelaySeconds, p.ActivationDelaySeconds))
		p.ActivationDelaySeconds = def.ActivationDelaySeconds
	}
	if p.NewbieProtectionDays < 0 {
		result = multierror.Append(result, fmt.Errorf("newbie_protection_days must not be negative, got %d", p.NewbieProtectionDays))
		p.NewbieProtectionDays = def.NewbieProtectionDays
	}

	multipliers := []struct {
		name  string
		value *float64
		def   float64
	}{
		{"tribe_damage_multiplier_to_structures", &p.DamageMultiplierStructures, def.DamageMultiplierStructures},
		{"tribe_damage_multiplier_to_turrets", &p.DamageMultiplierTurrets, def.DamageMultiplierTurrets},
		{"tribe_damage_multiplier_to_dinos", &p.DamageMultiplierDinos, def.DamageMultiplierDinos},
		{"tribe_defense_multiplier_structures", &p.DefenseMultiplierStructures, def.DefenseMultiplierStructures},
		{"tribe_defense_multiplier_turrets", &p.DefenseMultiplierTurrets, def.DefenseMultiplierTurrets},
		{"tribe_defense_multiplier_dinos", &p.DefenseMultiplierDinos, def.DefenseMultiplierDinos},
	}
	for _, m := range multipliers {
		v := *m.value
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			result = multierror.Append(result, fmt.Errorf("%s must be a finite non-negative number, got %v", m.name, v))
			*m.value = m.def
		}
	}

	return result.ErrorOrNil()
}
