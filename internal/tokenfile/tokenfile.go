// Package tokenfile reads and writes the persisted credential file. The file
// holds the OAuth2 token together with the OAuth client identity that issued
// it, so a stored token can be refreshed on later runs without the client
// secret file.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// Client is the OAuth2 client identity a token was issued to.
type Client struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri,omitempty"`
	TokenURI     string `json:"token_uri"`
}

// File is the on-disk format.
type File struct {
	Client Client        `json:"client"`
	Token  *oauth2.Token `json:"token"`
}

// Load reads a credential file. Returns (nil, nil) if the file does not exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if f.Token == nil {
		return nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	if f.Token.AccessToken == "" && f.Token.RefreshToken == "" {
		return nil, fmt.Errorf("tokenfile: %s has empty credentials (re-login required)", path)
	}

	if f.Client.ClientID == "" || f.Client.TokenURI == "" {
		return nil, fmt.Errorf("tokenfile: %s missing client identity (re-login required)", path)
	}

	return &f, nil
}

// Save writes f to path atomically (write-to-temp + rename) with 0600
// permissions. Never logs token values.
func Save(path string, f *File) error {
	if f == nil || f.Token == nil {
		return fmt.Errorf("tokenfile: refusing to save nil token")
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeSynced(tmp, data); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	committed = true

	return nil
}

// writeSynced sets permissions, writes, fsyncs, and closes tmp.
func writeSynced(tmp *os.File, data []byte) error {
	if err := tmp.Chmod(FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// A power loss between close and rename must not leave a partial file.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	return nil
}

// UpdateToken replaces the token in an existing file, keeping its client
// identity. Used to persist silently refreshed tokens.
func UpdateToken(path string, tok *oauth2.Token) error {
	f, err := Load(path)
	if err != nil {
		return fmt.Errorf("tokenfile: reading for token update: %w", err)
	}

	if f == nil {
		return fmt.Errorf("tokenfile: no credential file at %s", path)
	}

	f.Token = tok

	return Save(path, f)
}
