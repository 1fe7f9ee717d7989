package brainmaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/brainmappy/brainmaps-go/internal/brainmaps"
	"github.com/brainmappy/brainmaps-go/internal/config"
)

// Options controls AcquireCredentials and NewSession. The zero value reads
// the stored token at the default path and stores newly acquired ones there.
type Options struct {
	// SecretFile is a client secret JSON file from the Google Cloud console.
	// ClientID and ClientSecret are an alternative to it. Either one
	// overrides the client identity recorded in the token file.
	SecretFile   string
	ClientID     string
	ClientSecret string

	// IgnoreStored skips the token file and always runs the interactive flow.
	IgnoreStored bool

	// NoStore keeps a newly acquired token in memory only.
	NoStore bool

	// MakeGlobal installs the session as the process-wide default.
	MakeGlobal bool

	// TokenPath overrides the token file location.
	TokenPath string

	// OpenURL launches a browser for the authorization URL. Nil prints the
	// URL to stderr.
	OpenURL func(url string) error

	// Prompt asks the user to paste the authorization code when no loopback
	// callback server can be started. Nil disables the fallback.
	Prompt func(authURL string) (string, error)

	HTTPClient *http.Client
	Logger     *slog.Logger
	BaseURL    string
	UserAgent  string

	// Retry overrides the HTTP retry policy. Nil uses DefaultRetryPolicy.
	Retry *RetryPolicy

	// Workers and BatchSize are the defaults for GetMeshesBatch.
	Workers   int
	BatchSize int

	// RequestsPerSecond paces mesh batch requests. Zero disables pacing.
	RequestsPerSecond float64

	// SegmentChunkSize is the default chunk size for SegmentsAt.
	SegmentChunkSize int
}

// DefaultRetryPolicy is the HTTP retry policy used when Options.Retry is nil.
var DefaultRetryPolicy = brainmaps.DefaultRetryPolicy

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}

	return o.Logger
}

func (o *Options) tokenPath() string {
	if o.TokenPath != "" {
		return o.TokenPath
	}

	return config.DefaultTokenPath()
}

// oauthConfig returns the client identity given explicitly, or nil when
// neither a secret file nor a client ID/secret pair was provided.
func (o *Options) oauthConfig() (*oauth2.Config, error) {
	switch {
	case o.SecretFile != "":
		return brainmaps.OAuthConfigFromSecretFile(o.SecretFile)
	case o.ClientID != "" && o.ClientSecret != "":
		return brainmaps.OAuthConfigFromClient(o.ClientID, o.ClientSecret), nil
	case o.ClientID != "" || o.ClientSecret != "":
		return nil, fmt.Errorf("%w: client ID and client secret must be given together", ErrConfiguration)
	default:
		return nil, nil //nolint:nilnil // no explicit identity is not an error
	}
}

// Session is an authenticated Brainmaps client. It is safe for concurrent use.
type Session struct {
	client  *brainmaps.Client
	logger  *slog.Logger
	limiter *rate.Limiter

	workers          int
	batchSize        int
	segmentChunkSize int
}

// NewSession builds a session around an existing token source, for example
// one from golang.org/x/oauth2/google's application default credentials
// adapted with FromOAuth2.
func NewSession(ts TokenSource, opts Options) *Session {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = brainmaps.DefaultBaseURL
	}

	logger := opts.logger()
	client := brainmaps.NewClient(baseURL, opts.HTTPClient, ts, logger, opts.UserAgent)

	if opts.Retry != nil {
		client.SetRetryPolicy(*opts.Retry)
	}

	s := &Session{
		client:           client,
		logger:           logger,
		workers:          opts.Workers,
		batchSize:        opts.BatchSize,
		segmentChunkSize: opts.SegmentChunkSize,
	}

	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, int(opts.RequestsPerSecond)))
	}

	return s
}

// FromOAuth2 adapts any oauth2.TokenSource to TokenSource.
func FromOAuth2(src oauth2.TokenSource, logger *slog.Logger) TokenSource {
	return brainmaps.FromOAuth2(src, logger)
}

// AcquireCredentials returns an authenticated session. A stored token is
// used when present (unless IgnoreStored); otherwise the interactive
// authorization flow runs with the client identity from SecretFile or
// ClientID/ClientSecret, and the new token is stored unless NoStore.
// Without a stored token or a client identity it fails with
// ErrAuthentication.
//
// Token refreshes made later by the session use ctx, so ctx must outlive
// the session.
func AcquireCredentials(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.logger()
	tokenPath := opts.tokenPath()

	override, err := opts.oauthConfig()
	if err != nil {
		return nil, err
	}

	var ts TokenSource

	if !opts.IgnoreStored {
		ts, err = brainmaps.TokenSourceFromPath(ctx, tokenPath, override, logger)
		if err != nil && !errors.Is(err, ErrNotLoggedIn) {
			return nil, err
		}
	}

	if ts == nil {
		if override == nil {
			return nil, fmt.Errorf("%w: no stored token at %s and no client secret given", ErrAuthentication, tokenPath)
		}

		ts, err = login(ctx, override, tokenPath, &opts, logger)
		if err != nil {
			return nil, err
		}
	}

	s := NewSession(ts, opts)

	if opts.MakeGlobal {
		SetDefaultSession(s)
	}

	return s, nil
}

func login(ctx context.Context, cfg *oauth2.Config, tokenPath string, opts *Options, logger *slog.Logger) (TokenSource, error) {
	savePath := tokenPath
	if opts.NoStore {
		savePath = ""
	}

	ts, err := brainmaps.Login(ctx, cfg, savePath, opts.OpenURL, logger)
	if errors.Is(err, brainmaps.ErrLoopbackUnavailable) && opts.Prompt != nil {
		logger.Warn("loopback callback unavailable, falling back to pasted code",
			slog.String("error", err.Error()),
		)

		return brainmaps.LoginManual(ctx, cfg, savePath, opts.Prompt, logger)
	}

	return ts, err
}

// Logout removes the stored token. An empty tokenPath means the default
// location. Removing a token that does not exist is not an error.
func Logout(tokenPath string, logger *slog.Logger) error {
	if tokenPath == "" {
		tokenPath = config.DefaultTokenPath()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return brainmaps.Logout(tokenPath, logger)
}
