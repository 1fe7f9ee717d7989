package brainmaps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
)

// routeServer serves fixed JSON bodies by request URI.
func routeServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.RequestURI()]
		if !ok {
			t.Errorf("unexpected request %s", r.URL.RequestURI())
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestVolumes(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/v1/volumes": `{"volumeId":["p:d:v1","p:d:v2"]}`,
	})

	vols, err := newTestClient(t, srv.URL).Volumes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []volumeid.ID{volumeid.MustParse("p:d:v1"), volumeid.MustParse("p:d:v2")}, vols)
}

func TestVolumes_MalformedID(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/v1/volumes": `{"volumeId":["not-a-volume"]}`,
	})

	_, err := newTestClient(t, srv.URL).Volumes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
}

func TestVolumeInfo(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/v1/volumes/p:d:v": `{"geometry":[{
			"volumeSize":{"x":"1024","y":"2048","z":512},
			"channelCount":1,
			"channelType":"UINT64",
			"pixelSize":{"x":8,"y":8,"z":33.5},
			"boundingBox":[{"corner":{},"size":{"x":"10","y":"20","z":"30"}}]
		}]}`,
	})

	geo, err := newTestClient(t, srv.URL).VolumeInfo(context.Background(), volumeid.MustParse("p:d:v"))
	require.NoError(t, err)
	require.Len(t, geo, 1)

	assert.Equal(t, Size3{X: 1024, Y: 2048, Z: 512}, geo[0].VolumeSize)
	assert.Equal(t, "UINT64", geo[0].ChannelType)
	assert.Equal(t, PixelSize{X: 8, Y: 8, Z: 33.5}, geo[0].PixelSize)
	require.Len(t, geo[0].BoundingBox, 1)
	assert.Equal(t, Size3{}, geo[0].BoundingBox[0].Corner)
	assert.Equal(t, Size3{X: 10, Y: 20, Z: 30}, geo[0].BoundingBox[0].Size)
}

func TestVolumeInfo_NoGeometry(t *testing.T) {
	srv := routeServer(t, map[string]string{"/v1/volumes/p:d:v": `{}`})

	_, err := newTestClient(t, srv.URL).VolumeInfo(context.Background(), volumeid.MustParse("p:d:v"))
	assert.ErrorIs(t, err, ErrRemote)
}

func TestMeshList(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/v1/objects/p:d:v/meshes":  `{"meshes":[{"name":"mcws_quad1e6","type":"TRIANGLES"}]}`,
		"/v1/objects/p:d:v2/meshes": `{}`,
	})

	client := newTestClient(t, srv.URL)

	meshes, err := client.MeshList(context.Background(), volumeid.MustParse("p:d:v"))
	require.NoError(t, err)
	assert.Equal(t, []MeshInfo{{Name: "mcws_quad1e6", Type: "TRIANGLES"}}, meshes)

	none, err := client.MeshList(context.Background(), volumeid.MustParse("p:d:v2"))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestObjectResources(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/v1/volumes/p:d:v/objects/42/resources": `{"skeleton":{"a":1},"mesh":[1,2]}`,
	})

	res, err := newTestClient(t, srv.URL).ObjectResources(context.Background(), volumeid.MustParse("p:d:v"), 42)
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.JSONEq(t, `{"a":1}`, string(res["skeleton"]))
}

func TestProjectsAndDatasets(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/v1/projects":                `{"project":[{"id":"772153499790","name":"h01"}]}`,
		"/v1/datasets?project_id=772": `{"datasetIds":["h01","fafb"]}`,
	})

	client := newTestClient(t, srv.URL)

	projects, err := client.Projects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Project{{ID: "772153499790", Name: "h01"}}, projects)

	datasets, err := client.Datasets(context.Background(), "772")
	require.NoError(t, err)
	assert.Equal(t, []string{"h01", "fafb"}, datasets)

	_, err = client.Datasets(context.Background(), "")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestChangeStacks(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/v1/changes/p:d:v/change_stacks":  `{"changeStackId":["cs1","cs2"]}`,
		"/v1/changes/p:d:v2/change_stacks": `{}`,
	})

	client := newTestClient(t, srv.URL)

	stacks, err := client.ChangeStacks(context.Background(), volumeid.MustParse("p:d:v"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cs1", "cs2"}, stacks)

	none, err := client.ChangeStacks(context.Background(), volumeid.MustParse("p:d:v2"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSchemas(t *testing.T) {
	srv := routeServer(t, map[string]string{
		"/$discovery/rest": `{"kind":"discovery#restDescription","schemas":{
			"Volume":{"id":"Volume","type":"object","description":"A volume."},
			"Anon":{"type":"object","properties":{"x":{"type":"string"}}}}}`,
	})

	schemas, err := newTestClient(t, srv.URL).Schemas(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	assert.Equal(t, "Anon", schemas[0].ID)
	assert.JSONEq(t, `{"x":{"type":"string"}}`, string(schemas[0].Properties))
	assert.Equal(t, Schema{ID: "Volume", Type: "object", Description: "A volume."}, schemas[1])
}

func TestSchemas_NoSchemas(t *testing.T) {
	srv := routeServer(t, map[string]string{"/$discovery/rest": `{}`})

	schemas, err := newTestClient(t, srv.URL).Schemas(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, schemas)
	assert.Empty(t, schemas)
}
