package brainmaps

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/brainmappy/brainmaps-go/internal/tokenfile"
)

// Scope is the OAuth2 scope required by every Brainmaps endpoint.
const Scope = "https://www.googleapis.com/auth/brainmaps"

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the HTTP path the OAuth2 redirect hits on the local server.
const callbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// manualRedirectURL is registered for the paste-the-code flow. Nothing
// listens there; the user copies the code from the browser's address bar.
const manualRedirectURL = "http://127.0.0.1:1/"

// ErrLoopbackUnavailable is returned by Login when no local callback server
// can be bound. Callers may fall back to LoginManual.
var ErrLoopbackUnavailable = errors.New("brainmaps: loopback callback unavailable")

// OAuthConfigFromSecretFile reads a client secret file downloaded from the
// Google Cloud console ("installed" or "web" application).
func OAuthConfigFromSecretFile(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading client secret file: %w", ErrAuthentication, err)
	}

	cfg, err := google.ConfigFromJSON(data, Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing client secret file %s: %w", ErrAuthentication, path, err)
	}

	return cfg, nil
}

// OAuthConfigFromClient builds a config from a bare client ID/secret pair
// using Google's endpoints.
func OAuthConfigFromClient(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{Scope},
		Endpoint:     google.Endpoint,
	}
}

// oauthConfigFromStored rebuilds the config recorded in a credential file.
func oauthConfigFromStored(c tokenfile.Client) *oauth2.Config {
	endpoint := google.Endpoint
	endpoint.TokenURL = c.TokenURI

	if c.AuthURI != "" {
		endpoint.AuthURL = c.AuthURI
	}

	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       []string{Scope},
		Endpoint:     endpoint,
	}
}

func storedClient(cfg *oauth2.Config) tokenfile.Client {
	return tokenfile.Client{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AuthURI:      cfg.Endpoint.AuthURL,
		TokenURI:     cfg.Endpoint.TokenURL,
	}
}

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// Login performs the authorization code + PKCE flow against cfg:
//  1. Binds a loopback HTTP server on a random port
//  2. Calls openURL with Google's authorization URL
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for tokens
//  5. Saves the credential file at tokenPath when tokenPath is non-empty
//
// If openURL returns an error the URL is printed to stderr so the user can
// open it manually. The returned TokenSource binds ctx; ctx must outlive it.
func Login(
	ctx context.Context,
	cfg *oauth2.Config,
	tokenPath string,
	openURL func(string) error,
	logger *slog.Logger,
) (TokenSource, error) {
	logger.Info("starting browser auth flow (authorization code + PKCE)",
		slog.String("path", tokenPath),
	)

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	// Work on a copy so the caller's config keeps its redirect URL.
	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("brainmaps: generating state token: %w", err)
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := flowCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	launchBrowser(authURL, openURL, logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	return exchangeAndSave(ctx, &flowCfg, tokenPath, code, verifier, logger)
}

// startCallbackServer binds to 127.0.0.1:0 and serves mux. Returns the
// server and the bound port.
func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrLoopbackUnavailable, err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, fmt.Errorf("brainmaps: listener address is not TCP")
	}

	port := tcpAddr.Port
	logger.Info("callback server listening", slog.Int("port", port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("brainmaps: callback server error: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, port, nil
}

// registerCallbackHandler adds the callback route to the mux.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	var once sync.Once

	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		res := handleOAuthCallback(w, r, state)

		// Browsers retry and prefetch; only the first result counts.
		once.Do(func() { resultCh <- res })
	})
}

// handleOAuthCallback validates the state, extracts the code, and writes the
// browser-facing response.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string) callbackResult {
	q := r.URL.Query()

	if q.Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return callbackResult{err: fmt.Errorf("%w: OAuth2 state mismatch (possible CSRF)", ErrAuthentication)}
	}

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		return callbackResult{err: fmt.Errorf("%w: authorization failed: %s: %s",
			ErrAuthentication, errParam, q.Get("error_description"))}
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return callbackResult{err: fmt.Errorf("%w: callback missing authorization code", ErrAuthentication)}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Brainmaps authentication successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")

	return callbackResult{code: code}
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL, falling back to printing it.
func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if openURL == nil {
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
		return
	}

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("brainmaps: browser auth canceled: %w", ctx.Err())
	}
}

// LoginManual runs the authorization code + PKCE flow without a callback
// server. prompt receives the authorization URL and returns what the user
// pasted: either the bare code or the full URL the browser was redirected
// to, in which case the state is verified too.
func LoginManual(
	ctx context.Context,
	cfg *oauth2.Config,
	tokenPath string,
	prompt func(authURL string) (string, error),
	logger *slog.Logger,
) (TokenSource, error) {
	logger.Info("starting manual auth flow (authorization code + PKCE)",
		slog.String("path", tokenPath),
	)

	flowCfg := *cfg
	flowCfg.RedirectURL = manualRedirectURL

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("brainmaps: generating state token: %w", err)
	}

	authURL := flowCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	answer, err := prompt(authURL)
	if err != nil {
		return nil, fmt.Errorf("%w: reading authorization code: %w", ErrAuthentication, err)
	}

	code, err := codeFromAnswer(answer, state)
	if err != nil {
		return nil, err
	}

	return exchangeAndSave(ctx, &flowCfg, tokenPath, code, verifier, logger)
}

// codeFromAnswer extracts the authorization code from a pasted answer.
func codeFromAnswer(answer, state string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty authorization code", ErrAuthentication)
	}

	if !strings.Contains(answer, "://") {
		return answer, nil
	}

	u, err := url.Parse(answer)
	if err != nil {
		return "", fmt.Errorf("%w: parsing redirect URL: %w", ErrAuthentication, err)
	}

	q := u.Query()

	if q.Get("state") != state {
		return "", fmt.Errorf("%w: OAuth2 state mismatch (possible CSRF)", ErrAuthentication)
	}

	if errParam := q.Get("error"); errParam != "" {
		return "", fmt.Errorf("%w: authorization failed: %s", ErrAuthentication, errParam)
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: redirect URL carries no authorization code", ErrAuthentication)
	}

	return code, nil
}

// exchangeAndSave exchanges the auth code for a token and, when tokenPath is
// set, persists it alongside the client identity.
func exchangeAndSave(
	ctx context.Context,
	cfg *oauth2.Config,
	tokenPath, code, verifier string,
	logger *slog.Logger,
) (TokenSource, error) {
	logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange failed: %w", ErrAuthentication, err)
	}

	logger.Info("token exchange successful", slog.Time("expiry", tok.Expiry))

	src := cfg.TokenSource(ctx, tok)

	if tokenPath == "" {
		return FromOAuth2(src, logger), nil
	}

	if saveErr := tokenfile.Save(tokenPath, &tokenfile.File{Client: storedClient(cfg), Token: tok}); saveErr != nil {
		return nil, fmt.Errorf("brainmaps: saving token: %w", saveErr)
	}

	logger.Info("login successful",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return FromOAuth2(newPersistingSource(src, tokenPath, tok, logger), logger), nil
}

// generateState produces a cryptographically random hex string for the OAuth2
// state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// TokenSourceFromPath loads the credential file at tokenPath and returns a
// TokenSource that refreshes automatically and writes refreshed tokens back
// to the file. override, when non-nil, replaces the stored client identity
// (the stored token is still used). Returns ErrNotLoggedIn if no credential
// file exists.
//
// The returned TokenSource binds ctx; ctx must outlive it.
func TokenSourceFromPath(ctx context.Context, tokenPath string, override *oauth2.Config, logger *slog.Logger) (TokenSource, error) {
	f, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	if f == nil {
		return nil, ErrNotLoggedIn
	}

	expired := !f.Token.Expiry.IsZero() && f.Token.Expiry.Before(time.Now())
	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", f.Token.Expiry),
		slog.Bool("expired", expired),
	)

	cfg := override
	if cfg == nil {
		cfg = oauthConfigFromStored(f.Client)
	}

	src := cfg.TokenSource(ctx, f.Token)

	return FromOAuth2(newPersistingSource(src, tokenPath, f.Token, logger), logger), nil
}

// Logout removes the credential file at tokenPath. Returns nil if the file
// does not exist.
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove (already logged out)",
			slog.String("path", tokenPath),
		)

		return nil
	}

	if err != nil {
		return fmt.Errorf("brainmaps: removing token file: %w", err)
	}

	logger.Info("logout: removed token file", slog.String("path", tokenPath))

	return nil
}

// persistingSource writes every newly refreshed token back to the credential
// file.
type persistingSource struct {
	src    oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string // access token most recently written or loaded
}

func newPersistingSource(src oauth2.TokenSource, path string, initial *oauth2.Token, logger *slog.Logger) *persistingSource {
	return &persistingSource{
		src:    src,
		path:   path,
		logger: logger,
		last:   initial.AccessToken,
	}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	t, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t.AccessToken == p.last {
		return t, nil
	}

	p.last = t.AccessToken

	p.logger.Info("token refreshed by oauth2 library",
		slog.String("path", p.path),
		slog.Time("new_expiry", t.Expiry),
	)

	if err := tokenfile.UpdateToken(p.path, t); err != nil {
		p.logger.Warn("failed to persist refreshed token",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)
	}

	return t, nil
}

// FromOAuth2 adapts any oauth2.TokenSource (including service-account and
// application-default credentials) to TokenSource.
func FromOAuth2(src oauth2.TokenSource, logger *slog.Logger) TokenSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &tokenBridge{src: src, logger: logger}
}

// tokenBridge adapts oauth2.TokenSource to TokenSource.
type tokenBridge struct {
	src    oauth2.TokenSource
	logger *slog.Logger
}

func (b *tokenBridge) Token() (string, error) {
	t, err := b.src.Token()
	if err != nil {
		b.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: obtaining token: %w", ErrAuthentication, err)
	}

	b.logger.Debug("token acquired",
		slog.Time("expiry", t.Expiry),
		slog.Bool("valid", t.Valid()),
	)

	return t.AccessToken, nil
}
