package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/brainmappy/brainmaps-go/internal/config"
	"github.com/brainmappy/brainmaps-go/pkg/brainmaps"
)

// maxBackoffFactor caps retry backoff at this multiple of the configured base.
const maxBackoffFactor = 10

// sessionOptions maps the resolved configuration onto session options.
func sessionOptions(cfg *config.Resolved, logger *slog.Logger) brainmaps.Options {
	return brainmaps.Options{
		SecretFile: cfg.ClientSecretFile,
		TokenPath:  cfg.TokenPath,
		Prompt:     promptForCode,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Logger:     logger,
		BaseURL:    cfg.BaseURL,
		UserAgent:  cfg.UserAgent,
		Retry: &brainmaps.RetryPolicy{
			MaxRetries:  cfg.MaxRetries,
			BaseBackoff: cfg.RetryBackoff,
			MaxBackoff:  cfg.RetryBackoff * maxBackoffFactor,
		},
		Workers:           cfg.Workers,
		BatchSize:         cfg.BatchSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		SegmentChunkSize:  cfg.SegmentChunkSize,
	}
}

// openSession returns a session from the stored token, running the
// interactive flow only if a client secret is configured and no token is
// stored.
func openSession(ctx context.Context, logger *slog.Logger) (*brainmaps.Session, error) {
	return brainmaps.AcquireCredentials(ctx, sessionOptions(resolvedCfg, logger))
}

// callOptions returns the options every API call shares: the session and the
// configured volume, if any.
func callOptions(s *brainmaps.Session, extra ...brainmaps.CallOption) []brainmaps.CallOption {
	opts := []brainmaps.CallOption{brainmaps.WithSession(s)}
	if resolvedCfg.Volume != "" {
		opts = append(opts, brainmaps.WithVolume(resolvedCfg.Volume))
	}

	return append(opts, extra...)
}

// promptForCode asks the user to complete authorization in a browser and
// paste back the code or the redirect URL.
func promptForCode(authURL string) (string, error) {
	// Always shown, even with --quiet: login cannot proceed without it.
	fmt.Fprintf(stderr, "Open this URL in a browser and authorize access:\n\n  %s\n\n", authURL)
	fmt.Fprint(stderr, "Paste the authorization code or the full redirect URL: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading authorization code: %w", err)
	}

	return strings.TrimSpace(line), nil
}
