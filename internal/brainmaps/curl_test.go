package brainmaps

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
)

// Copied from the browser's network tab; the bearer token is a placeholder.
const copiedCurls = `curl 'https://brainmaps.googleapis.com/v1/objects/772153499790:h01:goog14r0s5c3/meshes/mcws_quad1e6:listfragments?objectId=7' \
  -H 'authorization: Bearer ya29.stale' \
  --compressed
curl 'https://brainmaps.googleapis.com/v1/objects/meshes:batch' \
  -H 'authorization: Bearer ya29.stale' \
  -H 'content-type: application/json' \
  --data-raw '{"volumeId":"772153499790:h01:goog14r0s5c3","meshName":"mcws_quad1e6","batches":[{"objectId":"101","fragmentKeys":["a","b"]},{"objectId":"102","fragmentKeys":["c"]}]}' \
  --compressed ;

curl "https://brainmaps.googleapis.com/v1/objects/meshes:batch" -X POST --data-binary '{"volumeId":"772153499790:h01:goog14r0s5c3","meshName":"mcws_quad1e6","header":{"changeStackId":"cs"},"batches":[{"objectId":"101","fragmentKeys":["d"]}]}'
`

func TestParseCurl(t *testing.T) {
	got, err := ParseCurl(strings.NewReader(copiedCurls))
	require.NoError(t, err)

	want := []ReplayBatch{
		{
			Volume:   testVolume,
			MeshName: "mcws_quad1e6",
			Fragments: []Fragment{
				{SupervoxelID: 101, Key: "a"},
				{SupervoxelID: 101, Key: "b"},
				{SupervoxelID: 102, Key: "c"},
			},
		},
		{
			Volume:      testVolume,
			MeshName:    "mcws_quad1e6",
			ChangeStack: "cs",
			Fragments:   []Fragment{{SupervoxelID: 101, Key: "d"}},
		},
	}

	assert.Empty(t, cmp.Diff(want, got, cmp.Comparer(func(a, b volumeid.ID) bool { return a == b })))
}

func TestParseCurl_NoMeshRequests(t *testing.T) {
	_, err := ParseCurl(strings.NewReader("curl 'https://example.com/v1/volumes'\n\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseCurl_BadBody(t *testing.T) {
	input := "\ncurl 'https://x/v1/objects/meshes:batch' --data-raw '{\"volumeId\":'\n"

	_, err := ParseCurl(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseCurl_BadObjectID(t *testing.T) {
	input := `curl 'https://x/v1/objects/meshes:batch' -d '{"volumeId":"p:d:v","batches":[{"objectId":"x","fragmentKeys":["k"]}]}'`

	_, err := ParseCurl(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid objectId "x"`)
}

func TestParseCurl_UnterminatedQuote(t *testing.T) {
	_, err := ParseCurl(strings.NewReader(`curl 'https://x/v1/objects/meshes:batch -d '{}'`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestReplayMeshes_MergesPerObject(t *testing.T) {
	ms, srv := newMeshServer(t)
	client := newTestClient(t, srv.URL)

	reqs := []ReplayBatch{
		{Volume: testVolume, MeshName: "m", Fragments: []Fragment{
			{SupervoxelID: 101, Key: "a"},
			{SupervoxelID: 102, Key: "c"},
			{SupervoxelID: 101, Key: "b"},
		}},
		{Volume: testVolume, MeshName: "m", Fragments: []Fragment{
			{SupervoxelID: 101, Key: "a"},
			{SupervoxelID: 101, Key: "d"},
		}},
	}

	var lastDone, lastTotal int

	opts := fastOpts()
	opts.Progress = func(done, total int) { lastDone, lastTotal = done, total }

	got, err := client.ReplayMeshes(context.Background(), reqs, opts)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, uint64(101), got[0].ObjectID)
	assert.Empty(t, cmp.Diff(expectedMesh(t, []Fragment{
		{SupervoxelID: 101, Key: "a"},
		{SupervoxelID: 101, Key: "b"},
		{SupervoxelID: 101, Key: "d"},
	}), got[0].Mesh))

	assert.Equal(t, uint64(102), got[1].ObjectID)
	assert.Empty(t, cmp.Diff(expectedMesh(t, []Fragment{{SupervoxelID: 102, Key: "c"}}), got[1].Mesh))

	// Both requests share volume and mesh, so the duplicate "a" is dropped
	// and the rest fit one batch.
	assert.Equal(t, int32(1), ms.calls.Load())
	assert.Equal(t, "m", ms.requests[0].MeshName)
	assert.Equal(t, 4, lastDone)
	assert.Equal(t, 4, lastTotal)
}

func TestReplayMeshes_ChangeStackSplitsRequests(t *testing.T) {
	ms, srv := newMeshServer(t)
	client := newTestClient(t, srv.URL)

	reqs := []ReplayBatch{
		{Volume: testVolume, Fragments: []Fragment{{SupervoxelID: 1, Key: "a"}}},
		{Volume: testVolume, ChangeStack: "cs", Fragments: []Fragment{{SupervoxelID: 1, Key: "b"}}},
	}

	got, err := client.ReplayMeshes(context.Background(), reqs, fastOpts())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, cmp.Diff(expectedMesh(t, []Fragment{{SupervoxelID: 1, Key: "a"}, {SupervoxelID: 1, Key: "b"}}), got[0].Mesh))

	require.Len(t, ms.requests, 2)
	assert.Equal(t, DefaultMeshName, ms.requests[0].MeshName)
	assert.Nil(t, ms.requests[0].Header)
	require.NotNil(t, ms.requests[1].Header)
	assert.Equal(t, "cs", ms.requests[1].Header.ChangeStackID)
}

func TestReplayMeshes_FailureReturnsNothing(t *testing.T) {
	ms, srv := newMeshServer(t)
	ms.hook = func(_ int32, _ meshBatchRequest, w http.ResponseWriter) bool {
		w.WriteHeader(http.StatusNotFound)
		return true
	}

	got, err := newTestClient(t, srv.URL).ReplayMeshes(context.Background(),
		[]ReplayBatch{{Volume: testVolume, Fragments: []Fragment{{SupervoxelID: 1, Key: "a"}}}}, fastOpts())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrNotFound)
}
