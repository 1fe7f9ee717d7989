package config

// Default values for configuration options. These are chosen to be safe
// against the Brainmaps quota and to work without a config file.
const (
	defaultBaseURL           = "https://brainmaps.googleapis.com"
	defaultMeshName          = "mcws_quad1e6"
	defaultWorkers           = 8
	defaultBatchSize         = 100
	defaultMaxRetries        = 3
	defaultRetryBackoff      = "500ms"
	defaultSegmentChunkSize  = 10000
	defaultTimeout           = "60s"
	defaultLogLevel          = "info"
	defaultRequestsPerSecond = 0
)

// DefaultConfig returns a Config populated with all default values.
// Paths that depend on the platform (token path) are left empty and resolved
// by Resolve.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  defaultBaseURL,
			MeshName: defaultMeshName,
		},
		Fetch: FetchConfig{
			Workers:           defaultWorkers,
			BatchSize:         defaultBatchSize,
			MaxRetries:        defaultMaxRetries,
			RetryBackoff:      defaultRetryBackoff,
			RequestsPerSecond: defaultRequestsPerSecond,
			SegmentChunkSize:  defaultSegmentChunkSize,
		},
		Network: NetworkConfig{
			Timeout: defaultTimeout,
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
	}
}
