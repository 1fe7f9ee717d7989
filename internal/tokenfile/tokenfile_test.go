package tokenfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testClient() Client {
	return Client{
		ClientID:     "client-123.apps.googleusercontent.com",
		ClientSecret: "shh",
		AuthURI:      "https://accounts.google.com/o/oauth2/auth",
		TokenURI:     "https://oauth2.googleapis.com/token",
	}
}

func testFile(expiry time.Time) *File {
	return &File{
		Client: testClient(),
		Token: &oauth2.Token{
			AccessToken:  "access-123",
			RefreshToken: "refresh-456",
			TokenType:    "Bearer",
			Expiry:       expiry,
		},
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	f, err := Load("/nonexistent/path/token.json")
	assert.Nil(t, f)
	assert.NoError(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	expiry := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, Save(path, testFile(expiry)))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "access-123", f.Token.AccessToken)
	assert.Equal(t, "refresh-456", f.Token.RefreshToken)
	assert.Equal(t, "Bearer", f.Token.TokenType)
	assert.True(t, f.Token.Expiry.Equal(expiry))
	assert.Equal(t, testClient(), f.Client)
}

func TestLoad_MissingTokenField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	// The Python-era layout stored a bare "installed" client block.
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"installed":{"client_id":"x","refresh_token":"old"}}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token field")
}

func TestLoad_MissingClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	require.NoError(t, os.WriteFile(path,
		[]byte(`{"token":{"access_token":"a","refresh_token":"r"}}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing client identity")
}

func TestLoad_EmptyCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	require.NoError(t, os.WriteFile(path,
		[]byte(`{"client":{"client_id":"c","token_uri":"u"},"token":{"token_type":"Bearer"}}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty credentials")
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	require.NoError(t, os.WriteFile(path, []byte(`{not json}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestSave_CreatesDirectoryWithPerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "token.json")

	require.NoError(t, Save(path, testFile(time.Now().Add(time.Hour))))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirPerms), dirInfo.Mode().Perm())
}

func TestSave_NilToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	err := Save(path, &File{Client: testClient()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to save nil token")

	err = Save(path, nil)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, testFile(time.Now())))
	require.NoError(t, Save(path, testFile(time.Now().Add(time.Hour))))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "token.json", entries[0].Name())
}

func TestUpdateToken_KeepsClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testFile(time.Now())))

	refreshed := &oauth2.Token{
		AccessToken:  "access-new",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, UpdateToken(path, refreshed))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "access-new", f.Token.AccessToken)
	assert.Equal(t, testClient(), f.Client)
}

func TestUpdateToken_FileNotFound(t *testing.T) {
	err := UpdateToken(filepath.Join(t.TempDir(), "missing.json"), &oauth2.Token{AccessToken: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credential file")
}
