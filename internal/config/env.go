package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "BRAINMAPS_CONFIG"
	EnvVolume       = "BRAINMAPS_VOLUME"
	EnvClientSecret = "BRAINMAPS_CLIENT_SECRET"
	EnvTokenPath    = "BRAINMAPS_TOKEN_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath       string // BRAINMAPS_CONFIG: override config file path
	Volume           string // BRAINMAPS_VOLUME: default volume
	ClientSecretFile string // BRAINMAPS_CLIENT_SECRET: client secret JSON file
	TokenPath        string // BRAINMAPS_TOKEN_PATH: token file location
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:       os.Getenv(EnvConfig),
		Volume:           os.Getenv(EnvVolume),
		ClientSecretFile: os.Getenv(EnvClientSecret),
		TokenPath:        os.Getenv(EnvTokenPath),
	}
}

// CLIOverrides holds values from command-line flags. Empty strings mean the
// flag was not given.
type CLIOverrides struct {
	ConfigPath       string
	Volume           string
	ClientSecretFile string
}
