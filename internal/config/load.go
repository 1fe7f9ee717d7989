package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Resolved is the effective configuration after all layers are applied,
// with durations parsed and paths expanded.
type Resolved struct {
	ConfigPath string

	ClientSecretFile string
	TokenPath        string

	BaseURL  string
	Volume   string
	MeshName string

	Workers           int
	BatchSize         int
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	SegmentChunkSize  int

	Timeout   time.Duration
	UserAgent string

	LogLevel string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// Config path: CLI > env > default.
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	applyOverride(&cfg.API.DefaultVolume, env.Volume, cli.Volume)
	applyOverride(&cfg.Auth.ClientSecretFile, env.ClientSecretFile, cli.ClientSecretFile)
	applyOverride(&cfg.Auth.TokenPath, env.TokenPath, "")

	// Overrides can introduce a bad volume; the file alone was checked by Load.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved(cfg, cfgPath), nil
}

// applyOverride sets *dst to the CLI value, else the env value, else leaves
// the file/default value in place.
func applyOverride(dst *string, envValue, cliValue string) {
	if envValue != "" {
		*dst = envValue
	}

	if cliValue != "" {
		*dst = cliValue
	}
}

// resolved flattens a validated Config. Durations were checked by Validate,
// so parse errors cannot occur here.
func resolved(cfg *Config, cfgPath string) *Resolved {
	backoff, _ := time.ParseDuration(cfg.Fetch.RetryBackoff)
	timeout, _ := time.ParseDuration(cfg.Network.Timeout)

	tokenPath := cfg.Auth.TokenPath
	if tokenPath == "" {
		tokenPath = DefaultTokenPath()
	}

	return &Resolved{
		ConfigPath:        cfgPath,
		ClientSecretFile:  expandTilde(cfg.Auth.ClientSecretFile),
		TokenPath:         expandTilde(tokenPath),
		BaseURL:           cfg.API.BaseURL,
		Volume:            cfg.API.DefaultVolume,
		MeshName:          cfg.API.MeshName,
		Workers:           cfg.Fetch.Workers,
		BatchSize:         cfg.Fetch.BatchSize,
		MaxRetries:        cfg.Fetch.MaxRetries,
		RetryBackoff:      backoff,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		SegmentChunkSize:  cfg.Fetch.SegmentChunkSize,
		Timeout:           timeout,
		UserAgent:         cfg.Network.UserAgent,
		LogLevel:          cfg.Logging.LogLevel,
	}
}
