package brainmaps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/brainmappy/brainmaps-go/internal/tokenfile"
	"github.com/brainmappy/brainmaps-go/pkg/ngmesh"
)

const (
	volA = "p:d:a"
	volB = "p:d:b"
)

// fakeAPI serves listfragments and meshes:batch for any volume. Each object
// has two fragments; the volume's last letter is recorded in the vertices so
// tests can tell which volume answered.
type fakeAPI struct {
	failBatches bool
	batchCalls  atomic.Int32
	lastAuth    atomic.Value

	// keysOnly answers listfragments without the supervoxelId array.
	keysOnly bool

	mu        sync.Mutex
	objectIDs []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lastAuth.Store(r.Header.Get("Authorization"))

	switch {
	case strings.HasSuffix(r.URL.Path, ":listfragments"):
		vol := strings.TrimPrefix(r.URL.Path, "/v1/objects/")
		vol = vol[:strings.Index(vol, "/")]

		if r.URL.Query().Get("objectId") == "0" {
			_, _ = w.Write([]byte(`{}`))
			return
		}

		resp := map[string]any{"fragmentKey": []string{vol + "/f1", vol + "/f2"}}
		if !f.keysOnly {
			resp["supervoxelId"] = []string{"11", "12"}
		}

		_ = json.NewEncoder(w).Encode(resp)
	case r.URL.Path == "/v1/objects/meshes:batch":
		f.batchCalls.Add(1)

		if f.failBatches {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req struct {
			Batches []struct {
				ObjectID     string   `json:"objectId"`
				FragmentKeys []string `json:"fragmentKeys"`
			} `json:"batches"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var frags []ngmesh.Fragment

		for _, b := range req.Batches {
			f.mu.Lock()
			f.objectIDs = append(f.objectIDs, b.ObjectID)
			f.mu.Unlock()

			id, _ := strconv.ParseUint(b.ObjectID, 10, 64)
			for _, key := range b.FragmentKeys {
				marker := float32(key[strings.Index(key, "/")-1])
				frags = append(frags, ngmesh.Fragment{
					ObjectID: id,
					Key:      key,
					Vertices: []ngmesh.Vertex{{marker, 0, 0}, {marker, 1, 0}, {marker, 0, 1}},
					Faces:    []ngmesh.Face{{0, 1, 2}},
				})
			}
		}

		_, _ = w.Write(ngmesh.Encode(frags))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeSession(t *testing.T, api *fakeAPI, token string) *Session {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	ts := FromOAuth2(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}), nil)

	return NewSession(ts, Options{
		BaseURL: srv.URL,
		Retry:   &RetryPolicy{MaxRetries: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
}

func TestSetGlobalVolume_Empty(t *testing.T) {
	t.Cleanup(resetDefaults)

	err := SetGlobalVolume("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Empty(t, GlobalVolume())

	require.NoError(t, SetGlobalVolume("anything"))
	assert.Equal(t, "anything", GlobalVolume())

	require.NoError(t, SetGlobalVolume(volA))
	assert.Equal(t, volA, GlobalVolume())
}

func TestGetFragments_NothingResolvable(t *testing.T) {
	t.Cleanup(resetDefaults)

	_, err := GetFragments(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	s := newFakeSession(t, &fakeAPI{}, "tok")

	_, err = GetFragments(context.Background(), 1, WithSession(s))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "no volume")
}

func TestGetFragments_InvalidGlobalVolume(t *testing.T) {
	t.Cleanup(resetDefaults)

	require.NoError(t, SetGlobalVolume("only:two"))

	s := newFakeSession(t, &fakeAPI{}, "tok")

	_, err := GetFragments(context.Background(), 1, WithSession(s))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestGetFragments_GlobalsUsedWhenOmitted(t *testing.T) {
	t.Cleanup(resetDefaults)

	api := &fakeAPI{}
	SetDefaultSession(newFakeSession(t, api, "global-token"))
	require.NoError(t, SetGlobalVolume(volA))

	frags, err := GetFragments(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []Fragment{{SupervoxelID: 11, Key: volA + "/f1"}, {SupervoxelID: 12, Key: volA + "/f2"}}, frags)
	assert.Equal(t, "Bearer global-token", api.lastAuth.Load())
}

func TestGetFragments_ExplicitOverridesGlobal(t *testing.T) {
	t.Cleanup(resetDefaults)

	globalAPI := &fakeAPI{}
	explicitAPI := &fakeAPI{}

	SetDefaultSession(newFakeSession(t, globalAPI, "global-token"))
	require.NoError(t, SetGlobalVolume(volA))

	frags, err := GetFragments(context.Background(), 5,
		WithSession(newFakeSession(t, explicitAPI, "explicit-token")),
		WithVolume(volB),
	)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, volB+"/f1", frags[0].Key)

	assert.Equal(t, "Bearer explicit-token", explicitAPI.lastAuth.Load())
	assert.Nil(t, globalAPI.lastAuth.Load())
}

func TestGetMeshesBatch(t *testing.T) {
	t.Cleanup(resetDefaults)

	api := &fakeAPI{}
	s := newFakeSession(t, api, "tok")

	var lastDone, lastTotal int

	mesh, err := GetMeshesBatch(context.Background(), 5,
		WithSession(s),
		WithVolume(volA),
		WithBatchSize(1),
		WithWorkers(2),
		WithProgress(func(done, total int) { lastDone, lastTotal = done, total }),
	)
	require.NoError(t, err)

	require.Len(t, mesh.Vertices, 6)
	assert.Equal(t, []ngmesh.Face{{0, 1, 2}, {3, 4, 5}}, mesh.Faces)
	assert.Equal(t, float32('a'), mesh.Vertices[0][0])
	assert.Equal(t, int32(2), api.batchCalls.Load())
	assert.Equal(t, 2, lastDone)
	assert.Equal(t, 2, lastTotal)
}

func TestGetMeshesBatch_FragmentsWithoutSupervoxelIDs(t *testing.T) {
	api := &fakeAPI{keysOnly: true}
	s := newFakeSession(t, api, "tok")

	mesh, err := GetMeshesBatch(context.Background(), 42, WithSession(s), WithVolume(volA))
	require.NoError(t, err)
	assert.Len(t, mesh.Vertices, 6)

	api.mu.Lock()
	defer api.mu.Unlock()

	assert.Equal(t, []string{"42", "42"}, api.objectIDs)
}

func TestGetMeshesBatch_NoFragments(t *testing.T) {
	api := &fakeAPI{}
	s := newFakeSession(t, api, "tok")

	mesh, err := GetMeshesBatch(context.Background(), 0, WithSession(s), WithVolume(volA))
	require.NoError(t, err)
	require.NotNil(t, mesh)
	assert.Empty(t, mesh.Vertices)
	assert.Empty(t, mesh.Faces)
	assert.Equal(t, int32(0), api.batchCalls.Load())
}

func TestGetMeshesBatch_NoPartialMesh(t *testing.T) {
	api := &fakeAPI{failBatches: true}
	s := newFakeSession(t, api, "tok")

	mesh, err := GetMeshesBatch(context.Background(), 5, WithSession(s), WithVolume(volA))
	require.Error(t, err)
	assert.Nil(t, mesh)
	assert.ErrorIs(t, err, ErrRemote)
	assert.ErrorIs(t, err, ErrServerError)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestAcquireCredentials_NoCredentials(t *testing.T) {
	_, err := AcquireCredentials(context.Background(), Options{
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestAcquireCredentials_HalfClientPair(t *testing.T) {
	_, err := AcquireCredentials(context.Background(), Options{
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
		ClientID:  "id-only",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAcquireCredentials_StoredToken(t *testing.T) {
	t.Cleanup(resetDefaults)

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenfile.Save(tokenPath, &tokenfile.File{
		Client: tokenfile.Client{
			ClientID:     "id",
			ClientSecret: "secret",
			TokenURI:     "http://127.0.0.1:1/token",
		},
		Token: &oauth2.Token{
			AccessToken:  "stored-token",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(time.Hour),
		},
	}))

	s, err := AcquireCredentials(context.Background(), Options{
		TokenPath:  tokenPath,
		BaseURL:    srv.URL,
		MakeGlobal: true,
	})
	require.NoError(t, err)
	assert.Same(t, s, DefaultSession())

	require.NoError(t, SetGlobalVolume(volA))

	_, err = GetFragments(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Bearer stored-token", api.lastAuth.Load())
}

func TestAcquireCredentials_NotGlobalByDefault(t *testing.T) {
	t.Cleanup(resetDefaults)

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenfile.Save(tokenPath, &tokenfile.File{
		Client: tokenfile.Client{ClientID: "id", ClientSecret: "secret", TokenURI: "http://127.0.0.1:1/token"},
		Token:  &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)},
	}))

	s, err := AcquireCredentials(context.Background(), Options{TokenPath: tokenPath})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Nil(t, DefaultSession())
}

func TestLogout_MissingFile(t *testing.T) {
	require.NoError(t, Logout(filepath.Join(t.TempDir(), "token.json"), nil))
}

func TestVoxelCoords_Facade(t *testing.T) {
	got, err := VoxelCoords([][3]float64{{8, 16, 40}}, PixelSize{X: 8, Y: 8, Z: 40})
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 2, 1}}, got)
}
