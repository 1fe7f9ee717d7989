package brainmaps

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
)

// int64String decodes an int64 that Google APIs may encode as a JSON string.
type int64String int64

func (n *int64String) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parsing int64 %q: %w", data, err)
	}

	*n = int64String(v)

	return nil
}

// Size3 is an integer extent or corner in voxels.
type Size3 struct {
	X int64
	Y int64
	Z int64
}

func (s *Size3) UnmarshalJSON(data []byte) error {
	var raw struct {
		X int64String `json:"x"`
		Y int64String `json:"y"`
		Z int64String `json:"z"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Size3{X: int64(raw.X), Y: int64(raw.Y), Z: int64(raw.Z)}

	return nil
}

// PixelSize is the physical size of one voxel, usually in nanometers.
type PixelSize struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BoundingBox is an axis-aligned box in voxel coordinates.
type BoundingBox struct {
	Corner Size3 `json:"corner"`
	Size   Size3 `json:"size"`
}

// Geometry describes one scale of a volume.
type Geometry struct {
	VolumeSize   Size3         `json:"volumeSize"`
	ChannelCount int           `json:"channelCount"`
	ChannelType  string        `json:"channelType"`
	PixelSize    PixelSize     `json:"pixelSize"`
	BoundingBox  []BoundingBox `json:"boundingBox"`
}

// MeshInfo names a mesh collection of a volume.
type MeshInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Project is a Brainmaps project the caller can access.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Volumes lists the volume IDs visible to the caller.
func (c *Client) Volumes(ctx context.Context) ([]volumeid.ID, error) {
	var resp struct {
		VolumeID []string `json:"volumeId"`
	}

	if err := c.getJSON(ctx, "/v1/volumes", &resp); err != nil {
		return nil, err
	}

	ids := make([]volumeid.ID, 0, len(resp.VolumeID))
	for _, raw := range resp.VolumeID {
		id, err := volumeid.Parse(raw)
		if err != nil {
			return nil, remoteErrorf("listing volumes: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// VolumeInfo returns the geometry of vol, one entry per scale, finest first.
func (c *Client) VolumeInfo(ctx context.Context, vol volumeid.ID) ([]Geometry, error) {
	var resp struct {
		Geometry []Geometry `json:"geometry"`
	}

	if err := c.getJSON(ctx, "/v1/volumes/"+url.PathEscape(vol.String()), &resp); err != nil {
		return nil, err
	}

	if len(resp.Geometry) == 0 {
		return nil, remoteErrorf("volume %s has no geometry", vol)
	}

	return resp.Geometry, nil
}

// MeshList returns the mesh collections of vol. A volume without meshes
// yields an empty slice.
func (c *Client) MeshList(ctx context.Context, vol volumeid.ID) ([]MeshInfo, error) {
	var resp struct {
		Meshes []MeshInfo `json:"meshes"`
	}

	if err := c.getJSON(ctx, fmt.Sprintf("/v1/objects/%s/meshes", url.PathEscape(vol.String())), &resp); err != nil {
		return nil, err
	}

	if resp.Meshes == nil {
		return []MeshInfo{}, nil
	}

	return resp.Meshes, nil
}

// ObjectResources returns the raw resource listing of objectID. The shape
// varies per volume, so fields are left undecoded.
func (c *Client) ObjectResources(
	ctx context.Context, vol volumeid.ID, objectID uint64,
) (map[string]json.RawMessage, error) {
	path := fmt.Sprintf("/v1/volumes/%s/objects/%d/resources", url.PathEscape(vol.String()), objectID)

	resp := map[string]json.RawMessage{}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// Projects lists the projects visible to the caller.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp struct {
		Project []Project `json:"project"`
	}

	if err := c.getJSON(ctx, "/v1/projects", &resp); err != nil {
		return nil, err
	}

	if resp.Project == nil {
		return []Project{}, nil
	}

	return resp.Project, nil
}

// Datasets lists the dataset IDs of project.
func (c *Client) Datasets(ctx context.Context, project string) ([]string, error) {
	if project == "" {
		return nil, fmt.Errorf("%w: empty project ID", ErrConfiguration)
	}

	q := url.Values{}
	q.Set("project_id", project)

	var resp struct {
		DatasetIDs []string `json:"datasetIds"`
	}

	if err := c.getJSON(ctx, "/v1/datasets?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	if resp.DatasetIDs == nil {
		return []string{}, nil
	}

	return resp.DatasetIDs, nil
}

// ChangeStacks lists the change stack IDs of vol.
func (c *Client) ChangeStacks(ctx context.Context, vol volumeid.ID) ([]string, error) {
	var resp struct {
		ChangeStackID []string `json:"changeStackId"`
	}

	path := fmt.Sprintf("/v1/changes/%s/change_stacks", url.PathEscape(vol.String()))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	if resp.ChangeStackID == nil {
		return []string{}, nil
	}

	return resp.ChangeStackID, nil
}

// Schema is one type definition from the API discovery document.
type Schema struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	Properties  json.RawMessage `json:"properties,omitempty"`
}

// Schemas returns the type definitions of the API's discovery document,
// sorted by ID.
func (c *Client) Schemas(ctx context.Context) ([]Schema, error) {
	var resp struct {
		Schemas map[string]Schema `json:"schemas"`
	}

	if err := c.getJSON(ctx, "/$discovery/rest", &resp); err != nil {
		return nil, err
	}

	out := make([]Schema, 0, len(resp.Schemas))
	for name, sch := range resp.Schemas {
		if sch.ID == "" {
			sch.ID = name
		}

		out = append(out, sch)
	}

	slices.SortFunc(out, func(a, b Schema) int { return cmp.Compare(a.ID, b.ID) })

	return out, nil
}
