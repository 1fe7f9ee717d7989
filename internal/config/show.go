package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated TOML-like
// summary to w. This powers the "config show" command.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)

	ew.printf("[auth]\n")
	if r.ClientSecretFile != "" {
		ew.printf("  client_secret_file  = %q\n", r.ClientSecretFile)
	}

	ew.printf("  token_path          = %q\n\n", r.TokenPath)

	ew.printf("[api]\n")
	ew.printf("  base_url            = %q\n", r.BaseURL)
	if r.Volume != "" {
		ew.printf("  default_volume      = %q\n", r.Volume)
	}

	ew.printf("  mesh_name           = %q\n\n", r.MeshName)

	ew.printf("[fetch]\n")
	ew.printf("  workers             = %d\n", r.Workers)
	ew.printf("  batch_size          = %d\n", r.BatchSize)
	ew.printf("  max_retries         = %d\n", r.MaxRetries)
	ew.printf("  retry_backoff       = %q\n", r.RetryBackoff.String())
	ew.printf("  requests_per_second = %g\n", r.RequestsPerSecond)
	ew.printf("  segment_chunk_size  = %d\n\n", r.SegmentChunkSize)

	ew.printf("[network]\n")
	ew.printf("  timeout             = %q\n", r.Timeout.String())
	if r.UserAgent != "" {
		ew.printf("  user_agent          = %q\n", r.UserAgent)
	}

	ew.printf("\n[logging]\n")
	ew.printf("  log_level           = %q\n", r.LogLevel)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
