package brainmaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/brainmappy/brainmaps-go/internal/brainmaps"
	"github.com/brainmappy/brainmaps-go/internal/volumeid"
)

// CallOption customizes a single call.
type CallOption func(*callConfig)

type callConfig struct {
	session     *Session
	volume      string
	meshName    string
	changeStack string
	progress    func(done, total int)
	workers     int
	batchSize   int
}

// WithSession uses s instead of the default session.
func WithSession(s *Session) CallOption {
	return func(c *callConfig) { c.session = s }
}

// WithVolume uses the given "project:dataset:volume" ID instead of the
// global volume.
func WithVolume(volume string) CallOption {
	return func(c *callConfig) { c.volume = volume }
}

// WithMeshName selects a mesh collection other than DefaultMeshName.
func WithMeshName(name string) CallOption {
	return func(c *callConfig) { c.meshName = name }
}

// WithChangeStack reads the object as agglomerated by the given change stack.
func WithChangeStack(id string) CallOption {
	return func(c *callConfig) { c.changeStack = id }
}

// WithProgress reports fetched fragments as they complete. fn is never
// called concurrently.
func WithProgress(fn func(done, total int)) CallOption {
	return func(c *callConfig) { c.progress = fn }
}

// WithWorkers bounds concurrent mesh requests for this call.
func WithWorkers(n int) CallOption {
	return func(c *callConfig) { c.workers = n }
}

// WithBatchSize sets fragments per mesh request for this call, 1 to 100.
func WithBatchSize(n int) CallOption {
	return func(c *callConfig) { c.batchSize = n }
}

func newCallConfig(opts []CallOption) *callConfig {
	c := &callConfig{}
	for _, o := range opts {
		o(c)
	}

	return c
}

func (c *callConfig) resolveSession() (*Session, error) {
	if c.session != nil {
		return c.session, nil
	}

	if s := DefaultSession(); s != nil {
		return s, nil
	}

	return nil, fmt.Errorf("%w: no session given and no default session set", ErrConfiguration)
}

func (c *callConfig) resolveVolume() (volumeid.ID, error) {
	raw := c.volume
	if raw == "" {
		raw = GlobalVolume()
	}

	if raw == "" {
		return volumeid.ID{}, fmt.Errorf("%w: no volume given and no global volume set", ErrConfiguration)
	}

	id, err := volumeid.Parse(raw)
	if err != nil {
		return volumeid.ID{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return id, nil
}

func (c *callConfig) resolve() (*Session, volumeid.ID, error) {
	s, err := c.resolveSession()
	if err != nil {
		return nil, volumeid.ID{}, err
	}

	vol, err := c.resolveVolume()
	if err != nil {
		return nil, volumeid.ID{}, err
	}

	return s, vol, nil
}

// GetFragments lists the mesh fragments of objectID. An object without
// meshes yields an empty slice.
func GetFragments(ctx context.Context, objectID uint64, opts ...CallOption) ([]Fragment, error) {
	c := newCallConfig(opts)

	s, vol, err := c.resolve()
	if err != nil {
		return nil, err
	}

	return s.client.ListFragments(ctx, vol, c.meshName, objectID, c.changeStack)
}

// GetMeshesBatch fetches every fragment of objectID and merges them into one
// mesh, in the order GetFragments returns them. Any fragment that cannot be
// fetched after retries fails the whole call with ErrRemote. An object
// without meshes yields an empty mesh.
func GetMeshesBatch(ctx context.Context, objectID uint64, opts ...CallOption) (*Mesh, error) {
	c := newCallConfig(opts)

	s, vol, err := c.resolve()
	if err != nil {
		return nil, err
	}

	frags, err := s.client.ListFragments(ctx, vol, c.meshName, objectID, c.changeStack)
	if err != nil {
		return nil, err
	}

	return s.client.GetMeshes(ctx, vol, frags, s.batchOptions(c))
}

// ParseCurl extracts the meshes:batch requests from cURL commands copied out
// of neuroglancer's network traffic.
func ParseCurl(r io.Reader) ([]ReplayBatch, error) {
	return brainmaps.ParseCurl(r)
}

// ReplayMeshes fetches the fragments of reqs with the session's credentials
// and returns one merged mesh per object. Each request names its own volume;
// WithMeshName only fills in a missing mesh name.
func ReplayMeshes(ctx context.Context, reqs []ReplayBatch, opts ...CallOption) ([]ObjectMesh, error) {
	c := newCallConfig(opts)

	s, err := c.resolveSession()
	if err != nil {
		return nil, err
	}

	return s.client.ReplayMeshes(ctx, reqs, s.batchOptions(c))
}

func (s *Session) batchOptions(c *callConfig) brainmaps.BatchOptions {
	opts := brainmaps.BatchOptions{
		MeshName:    c.meshName,
		ChangeStack: c.changeStack,
		Workers:     s.workers,
		BatchSize:   s.batchSize,
		Limiter:     s.limiter,
		Progress:    c.progress,
	}

	if c.workers > 0 {
		opts.Workers = c.workers
	}

	if c.batchSize > 0 {
		opts.BatchSize = c.batchSize
	}

	return opts
}

// Volumes lists the volume IDs visible to the session.
func Volumes(ctx context.Context, opts ...CallOption) ([]string, error) {
	s, err := newCallConfig(opts).resolveSession()
	if err != nil {
		return nil, err
	}

	ids, err := s.client.Volumes(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out, nil
}

// VolumeInfo returns the geometry of the volume, one entry per scale.
func VolumeInfo(ctx context.Context, opts ...CallOption) ([]Geometry, error) {
	s, vol, err := newCallConfig(opts).resolve()
	if err != nil {
		return nil, err
	}

	return s.client.VolumeInfo(ctx, vol)
}

// MeshList returns the mesh collections of the volume.
func MeshList(ctx context.Context, opts ...CallOption) ([]MeshInfo, error) {
	s, vol, err := newCallConfig(opts).resolve()
	if err != nil {
		return nil, err
	}

	return s.client.MeshList(ctx, vol)
}

// ObjectResources returns the raw resource listing of objectID.
func ObjectResources(ctx context.Context, objectID uint64, opts ...CallOption) (map[string]json.RawMessage, error) {
	s, vol, err := newCallConfig(opts).resolve()
	if err != nil {
		return nil, err
	}

	return s.client.ObjectResources(ctx, vol, objectID)
}

// Projects lists the projects visible to the session.
func Projects(ctx context.Context, opts ...CallOption) ([]Project, error) {
	s, err := newCallConfig(opts).resolveSession()
	if err != nil {
		return nil, err
	}

	return s.client.Projects(ctx)
}

// Schemas lists the type definitions published in the API's discovery
// document.
func Schemas(ctx context.Context, opts ...CallOption) ([]Schema, error) {
	s, err := newCallConfig(opts).resolveSession()
	if err != nil {
		return nil, err
	}

	return s.client.Schemas(ctx)
}

// Datasets lists the datasets of project.
func Datasets(ctx context.Context, project string, opts ...CallOption) ([]string, error) {
	s, err := newCallConfig(opts).resolveSession()
	if err != nil {
		return nil, err
	}

	return s.client.Datasets(ctx, project)
}

// ChangeStacks lists the change stacks of the volume.
func ChangeStacks(ctx context.Context, opts ...CallOption) ([]string, error) {
	s, vol, err := newCallConfig(opts).resolve()
	if err != nil {
		return nil, err
	}

	return s.client.ChangeStacks(ctx, vol)
}

// SegmentsAt returns the segment ID at each voxel location, in input order.
// Zero means unmapped. Use VoxelCoords to convert physical coordinates.
func SegmentsAt(ctx context.Context, locations [][3]int64, opts ...CallOption) ([]uint64, error) {
	c := newCallConfig(opts)

	s, vol, err := c.resolve()
	if err != nil {
		return nil, err
	}

	workers := s.workers
	if c.workers > 0 {
		workers = c.workers
	}

	return s.client.SegmentsAt(ctx, vol, locations, brainmaps.SegmentOptions{
		ChangeStack: c.changeStack,
		ChunkSize:   s.segmentChunkSize,
		Workers:     workers,
	})
}

// VoxelCoords converts physical coordinates to voxel coordinates using the
// volume's pixel size (see VolumeInfo).
func VoxelCoords(points [][3]float64, px PixelSize) ([][3]int64, error) {
	return brainmaps.VoxelCoords(points, px)
}
