package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
)

// Validation bounds.
const (
	minWorkers      = 1
	maxWorkers      = 64
	minBatchSize    = 1
	maxBatchSize    = 100
	maxMaxRetries   = 10
	minSegmentChunk = 1
	maxSegmentChunk = 100000
	minTimeout      = time.Second
	minRetryBackoff = time.Millisecond
	maxRetryBackoff = time.Minute
)

// Validate checks all config values and returns every error found, joined.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAPI(&cfg.API)...)
	errs = append(errs, validateFetch(&cfg.Fetch)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogLevel(cfg.Logging.LogLevel)...)

	return errors.Join(errs...)
}

func validateAPI(a *APIConfig) []error {
	var errs []error

	u, err := url.Parse(a.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url: must be an absolute URL, got %q", a.BaseURL))
	}

	if a.DefaultVolume != "" {
		if _, err := volumeid.Parse(a.DefaultVolume); err != nil {
			errs = append(errs, fmt.Errorf("default_volume: %w", err))
		}
	}

	if a.MeshName == "" {
		errs = append(errs, errors.New("mesh_name: must not be empty"))
	}

	return errs
}

func validateFetch(f *FetchConfig) []error {
	var errs []error

	errs = append(errs, validateIntRange("workers", f.Workers, minWorkers, maxWorkers)...)
	errs = append(errs, validateIntRange("batch_size", f.BatchSize, minBatchSize, maxBatchSize)...)
	errs = append(errs, validateIntRange("max_retries", f.MaxRetries, 0, maxMaxRetries)...)
	errs = append(errs, validateIntRange("segment_chunk_size", f.SegmentChunkSize, minSegmentChunk, maxSegmentChunk)...)
	errs = append(errs, validateDurationRange("retry_backoff", f.RetryBackoff, minRetryBackoff, maxRetryBackoff)...)

	if f.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second: must be >= 0, got %g", f.RequestsPerSecond))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		return []error{fmt.Errorf("timeout: invalid duration %q: %w", n.Timeout, err)}
	}

	if d < minTimeout {
		return []error{fmt.Errorf("timeout: must be >= %s, got %s", minTimeout, d)}
	}

	return nil
}

func validateIntRange(field string, value, lo, hi int) []error {
	if value < lo || value > hi {
		return []error{fmt.Errorf("%s: must be between %d and %d, got %d", field, lo, hi, value)}
	}

	return nil
}

func validateDurationRange(field, value string, lo, hi time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < lo || d > hi {
		return []error{fmt.Errorf("%s: must be between %s and %s, got %s", field, lo, hi, d)}
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}
