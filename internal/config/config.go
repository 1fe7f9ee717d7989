// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for brainmaps-go. Values are layered as
// defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	API     APIConfig     `toml:"api"`
	Fetch   FetchConfig   `toml:"fetch"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
}

// AuthConfig locates the OAuth2 client identity and the stored token.
type AuthConfig struct {
	ClientSecretFile string `toml:"client_secret_file"`
	TokenPath        string `toml:"token_path"`
}

// APIConfig selects the Brainmaps endpoint and the defaults applied to calls
// that do not name a volume or mesh collection.
type APIConfig struct {
	BaseURL       string `toml:"base_url"`
	DefaultVolume string `toml:"default_volume"`
	MeshName      string `toml:"mesh_name"`
}

// FetchConfig tunes the concurrent mesh and segment fetchers.
type FetchConfig struct {
	Workers           int     `toml:"workers"`
	BatchSize         int     `toml:"batch_size"`
	MaxRetries        int     `toml:"max_retries"`
	RetryBackoff      string  `toml:"retry_backoff"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	SegmentChunkSize  int     `toml:"segment_chunk_size"`
}

// NetworkConfig controls the HTTP client.
type NetworkConfig struct {
	Timeout   string `toml:"timeout"`
	UserAgent string `toml:"user_agent"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}
