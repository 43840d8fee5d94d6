package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// PeerConfig controls cross-device sync.
type PeerConfig struct {
	// Listen is the address the peer server binds to. Empty disables it.
	Listen         string        `yaml:"listen" env:"NEXTUP_PEER_LISTEN"`
	Secret         string        `yaml:"secret,omitempty" env:"NEXTUP_PEER_SECRET"`
	URLs           []string      `yaml:"urls,omitempty" env:"NEXTUP_PEER_URLS" env-separator:","`
	AllowedOrigins []string      `yaml:"allowed_origins,omitempty" env:"NEXTUP_PEER_ORIGINS" env-separator:","`
	Timeout        time.Duration `yaml:"timeout" env:"NEXTUP_PEER_TIMEOUT" env-default:"10s"`
}

// Enabled reports whether any sync is configured.
func (p PeerConfig) Enabled() bool {
	return p.Listen != "" || len(p.URLs) > 0
}

// Config is the per-device process configuration. User tuning knobs live
// in the database settings instead.
type Config struct {
	DeviceID string     `yaml:"device_id" env:"NEXTUP_DEVICE_ID"`
	UserID   string     `yaml:"user_id" env:"NEXTUP_USER_ID" env-default:"local"`
	Debug    bool       `yaml:"debug" env:"NEXTUP_DEBUG"`
	Timezone string     `yaml:"timezone,omitempty" env:"NEXTUP_TIMEZONE"`
	Peer     PeerConfig `yaml:"peer"`
}

// Load reads the YAML file at path and overlays NEXTUP_* environment
// variables. A missing file falls back to the environment alone.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("cannot read config %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
	}

	if cfg.DeviceID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "device-" + uuid.NewString()[:8]
		}
		cfg.DeviceID = host
	}
	return cfg, cfg.Validate()
}

// Validate checks field combinations cleanenv cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.UserID == "" {
		errs = append(errs, errors.New("user_id must not be empty"))
	}
	if c.Timezone != "" && c.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
		}
	}
	if c.Peer.Timeout < 0 {
		errs = append(errs, errors.New("peer.timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Default returns a fresh configuration with a generated device id.
func Default() Config {
	return Config{
		DeviceID: uuid.NewString(),
		UserID:   "local",
		Peer:     PeerConfig{Timeout: 10 * time.Second},
	}
}

// Save writes cfg as YAML, creating parent directories. The file may hold
// the peer secret so it is only readable by the owner.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
