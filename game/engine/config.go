package engine

import (
	"fmt"
	"io"
	"log"
	"time"
)

// Config holds everything one race needs besides its track and entrants.
// Nothing in it is shared between races.
type Config struct {
	Laps               int           `json:"laps"` // 0 uses the track's lap count
	MaxHitpoints       int           `json:"max_hitpoints"`
	BaseTimeout        time.Duration `json:"base_timeout"`
	Leeway             time.Duration `json:"leeway"`
	Seed               uint64        `json:"seed"`
	CollisionChance    float64       `json:"collision_chance"`
	EngineDamageChance float64       `json:"engine_damage_chance"`
	MaxTurns           int           `json:"max_turns"` // 0 means no limit

	Logger   *log.Logger `json:"-"`
	Clock    Clock       `json:"-"`
	Notifier Notifier    `json:"-"`
}

// DefaultConfig returns the standard rules with a wall clock and no output
func DefaultConfig() Config {
	return Config{
		MaxHitpoints:       DefaultMaxHitpoints,
		BaseTimeout:        DefaultBaseTimeout,
		Leeway:             DefaultLeeway,
		CollisionChance:    DefaultCollisionChance,
		EngineDamageChance: DefaultEngineDamageChance,
		MaxTurns:           DefaultMaxTurns,
	}
}

// ValidateConfig checks the numeric race settings
func ValidateConfig(cfg Config) error {
	if cfg.Laps < 0 {
		return fmt.Errorf("config validation: laps must not be negative, got %d", cfg.Laps)
	}
	if cfg.MaxHitpoints < 1 {
		return fmt.Errorf("config validation: max_hitpoints must be at least 1, got %d", cfg.MaxHitpoints)
	}
	if cfg.BaseTimeout <= 0 {
		return fmt.Errorf("config validation: base_timeout must be positive, got %s", cfg.BaseTimeout)
	}
	if cfg.Leeway < 0 {
		return fmt.Errorf("config validation: leeway must not be negative, got %s", cfg.Leeway)
	}
	if cfg.CollisionChance < 0 || cfg.CollisionChance > 1 {
		return fmt.Errorf("config validation: collision_chance must be between 0 and 1, got %.2f", cfg.CollisionChance)
	}
	if cfg.EngineDamageChance < 0 || cfg.EngineDamageChance > 1 {
		return fmt.Errorf("config validation: engine_damage_chance must be between 0 and 1, got %.2f", cfg.EngineDamageChance)
	}
	if cfg.MaxTurns < 0 {
		return fmt.Errorf("config validation: max_turns must not be negative, got %d", cfg.MaxTurns)
	}
	return nil
}

// withDefaults fills the collaborators left nil
func (cfg Config) withDefaults() Config {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	return cfg
}
