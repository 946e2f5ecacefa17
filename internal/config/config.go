package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	JWT        JWTConfig        `yaml:"jwt"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Protection ProtectionConfig `yaml:"protection"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// JWTConfig holds host authentication settings.
// An empty PublicKeyURL disables authentication of game hosts.
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	PublicKeyURL        string `yaml:"public_key_url"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
}

// RedisConfig holds Redis connection settings.
// An empty Address disables the revoked-host blacklist.
type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig holds prometheus exposition settings
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// ProtectionConfig points at the ORP tunables file
type ProtectionConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}
	if cfg.Redis.BlacklistPrefix == "" {
		cfg.Redis.BlacklistPrefix = "orp:blacklist:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Protection.Path == "" {
		cfg.Protection.Path = "./configs/orp.yaml"
	}
}
