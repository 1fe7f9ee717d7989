package brainmaps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
)

// DefaultMeshName is the mesh collection most Brainmaps volumes publish.
const DefaultMeshName = "mcws_quad1e6"

// Fragment names one mesh chunk: the supervoxel it belongs to and its key.
type Fragment struct {
	SupervoxelID uint64
	Key          string
}

// uint64String decodes a uint64 that Google APIs encode as a JSON string,
// also accepting a bare number.
type uint64String uint64

func (u *uint64String) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)

	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parsing uint64 %q: %w", data, err)
	}

	*u = uint64String(n)

	return nil
}

// listFragmentsResponse mirrors the :listfragments JSON response. Both
// arrays are parallel; either may be absent for objects without meshes.
type listFragmentsResponse struct {
	FragmentKey  []string       `json:"fragmentKey"`
	SupervoxelID []uint64String `json:"supervoxelId"`
}

// ListFragments returns the mesh fragments of objectID in the named mesh
// collection, in server order. changeStack selects an alternative
// agglomeration and may be empty. An object without meshes yields an empty
// slice.
func (c *Client) ListFragments(
	ctx context.Context, vol volumeid.ID, meshName string, objectID uint64, changeStack string,
) ([]Fragment, error) {
	if meshName == "" {
		meshName = DefaultMeshName
	}

	c.logger.Info("listing fragments",
		slog.String("volume", vol.String()),
		slog.String("mesh", meshName),
		slog.Uint64("object_id", objectID),
	)

	q := url.Values{}
	q.Set("objectId", strconv.FormatUint(objectID, 10))
	q.Set("returnSupervoxelIds", "true")

	if changeStack != "" {
		q.Set("header.changeStackId", changeStack)
	}

	path := fmt.Sprintf("/v1/objects/%s/meshes/%s:listfragments?%s",
		url.PathEscape(vol.String()), url.PathEscape(meshName), q.Encode())

	var lr listFragmentsResponse
	if err := c.getJSON(ctx, path, &lr); err != nil {
		return nil, err
	}

	frags, err := lr.toFragments(objectID)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("listed fragments",
		slog.Uint64("object_id", objectID),
		slog.Int("count", len(frags)),
	)

	return frags, nil
}

// toFragments zips the parallel arrays. Without supervoxel IDs (older
// servers) every fragment belongs to objectID itself, which is then the ID
// meshes:batch expects.
func (lr *listFragmentsResponse) toFragments(objectID uint64) ([]Fragment, error) {
	if len(lr.SupervoxelID) != 0 && len(lr.SupervoxelID) != len(lr.FragmentKey) {
		return nil, remoteErrorf("listfragments returned %d keys but %d supervoxel IDs",
			len(lr.FragmentKey), len(lr.SupervoxelID))
	}

	frags := make([]Fragment, len(lr.FragmentKey))
	for i, key := range lr.FragmentKey {
		frags[i].Key = key
		frags[i].SupervoxelID = objectID

		if len(lr.SupervoxelID) != 0 {
			frags[i].SupervoxelID = uint64(lr.SupervoxelID[i])
		}
	}

	return frags, nil
}

var _ json.Unmarshaler = (*uint64String)(nil)
