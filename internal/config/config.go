package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// APIURLEnv overrides the base URL clients use to reach the server.
const APIURLEnv = "AGENCY_API_URL"

const DefaultAPIURL = "http://localhost:8000"

type Config struct {
	Server ServerConfig `toml:"server"`
	Engine EngineConfig `toml:"engine"`
	Video  VideoConfig  `toml:"video"`
	Path   string       `toml:"-"`
}

type ServerConfig struct {
	Addr       string `toml:"addr"`
	DBPath     string `toml:"db_path"`
	OutputsDir string `toml:"outputs_dir"`
}

type EngineConfig struct {
	MaxRounds   int `toml:"max_rounds"`
	TurnDelayMS int `toml:"turn_delay_ms"`
}

type VideoConfig struct {
	Endpoint  string `toml:"endpoint"`
	AuthToken string `toml:"auth_token"`
	TimeoutMS int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8000",
			DBPath:     "agency.db",
			OutputsDir: filepath.Join("outputs", "videos"),
		},
		Engine: EngineConfig{
			MaxRounds:   3,
			TurnDelayMS: 800,
		},
	}
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file at the default location is not an error; defaults
// apply.
func Load(path string) (Config, error) {
	resolved := path
	explicit := resolved != ""
	if resolved == "" {
		resolved = defaultConfigPath()
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	cfg := Default()
	bytes, err := os.ReadFile(resolved)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	cfg.Path = resolved
	return cfg, nil
}

func (c EngineConfig) TurnDelay() time.Duration {
	if c.TurnDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.TurnDelayMS) * time.Millisecond
}

func (c VideoConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// APIURL returns the server base URL for client programs, preferring the
// environment override.
func APIURL() string {
	if v := strings.TrimSpace(os.Getenv(APIURLEnv)); v != "" {
		return strings.TrimRight(v, "/")
	}
	return DefaultAPIURL
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".agency", "config.toml")
	}
	return filepath.Join(home, ".agency", "config.toml")
}
