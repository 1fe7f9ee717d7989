package brainmaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
	"github.com/brainmappy/brainmaps-go/pkg/ngmesh"
)

// MaxBatchSize is the server's cap on fragments per meshes:batch request.
const MaxBatchSize = 100

// Defaults for BatchOptions zero values.
const (
	defaultWorkers        = 8
	defaultRefetchBackoff = 250 * time.Millisecond
)

// BatchOptions controls GetMeshes.
type BatchOptions struct {
	MeshName    string // defaults to DefaultMeshName
	ChangeStack string

	// Workers bounds the number of requests in flight. Default 8.
	Workers int

	// BatchSize is the number of fragments per request, 1..MaxBatchSize.
	// Default MaxBatchSize; 1 issues one request per fragment.
	BatchSize int

	// Limiter paces request dispatch. Nil means unpaced.
	Limiter *rate.Limiter

	// RefetchRetries bounds how often a batch whose body is truncated or
	// undecodable is fetched again. HTTP-level failures are retried by the
	// client's RetryPolicy instead. Negative disables refetching.
	RefetchRetries int
	RefetchBackoff time.Duration

	// Progress, if set, is called after each batch completes with the number
	// of fragments done so far. Calls are serialized.
	Progress func(done, total int)
}

func (o *BatchOptions) normalize(retries int) {
	if o.MeshName == "" {
		o.MeshName = DefaultMeshName
	}

	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}

	if o.BatchSize <= 0 || o.BatchSize > MaxBatchSize {
		o.BatchSize = MaxBatchSize
	}

	if o.RefetchRetries == 0 {
		o.RefetchRetries = retries
	}

	if o.RefetchRetries < 0 {
		o.RefetchRetries = 0
	}

	if o.RefetchBackoff <= 0 {
		o.RefetchBackoff = defaultRefetchBackoff
	}
}

// meshBatchRequest mirrors the meshes:batch request body.
type meshBatchRequest struct {
	VolumeID string           `json:"volumeId"`
	MeshName string           `json:"meshName"`
	Batches  []meshBatchEntry `json:"batches"`
	Header   *requestHeader   `json:"header,omitempty"`
}

type meshBatchEntry struct {
	ObjectID     string   `json:"objectId"`
	FragmentKeys []string `json:"fragmentKeys"`
}

type requestHeader struct {
	ChangeStackID string `json:"changeStackId,omitempty"`
}

// errBodyRead tags a response body that broke off mid-read. Status and
// connection failures never carry it since Client.Do already retried them.
var errBodyRead = errors.New("reading response body")

// fragmentSlot identifies a fragment by its position in the caller's list.
type fragmentSlot struct {
	index int
	frag  Fragment
}

// GetMeshes fetches and decodes frags concurrently, then merges them in the
// order of frags. Any batch failing after retries aborts the call with an
// error matching ErrRemote; no partial mesh is returned. An empty frags
// yields an empty mesh without any request.
func (c *Client) GetMeshes(
	ctx context.Context, vol volumeid.ID, frags []Fragment, opts BatchOptions,
) (*ngmesh.Mesh, error) {
	opts.normalize(c.retry.MaxRetries)

	if len(frags) == 0 {
		return ngmesh.Merge(nil)
	}

	decoded, err := c.fetchFragments(ctx, vol, frags, &opts, newProgress(opts.Progress, len(frags)))
	if err != nil {
		return nil, err
	}

	mesh, err := ngmesh.Merge(decoded)
	if err != nil {
		return nil, fmt.Errorf("brainmaps: merging fragments: %w", err)
	}

	c.logger.Info("fetched mesh",
		slog.Int("fragments", len(frags)),
		slog.Int("vertices", len(mesh.Vertices)),
		slog.Int("faces", len(mesh.Faces)),
	)

	return mesh, nil
}

// fetchFragments runs the batch worker pool and returns the decoded
// fragments in the order of frags. opts must be normalized.
func (c *Client) fetchFragments(
	ctx context.Context, vol volumeid.ID, frags []Fragment, opts *BatchOptions, progress *progress,
) ([]ngmesh.Fragment, error) {
	batches := splitBatches(frags, opts.BatchSize)

	c.logger.Info("fetching mesh fragments",
		slog.String("volume", vol.String()),
		slog.String("mesh", opts.MeshName),
		slog.Int("fragments", len(frags)),
		slog.Int("batches", len(batches)),
		slog.Int("workers", opts.Workers),
	)

	// Each worker writes only the slots of its own batch.
	decoded := make([]ngmesh.Fragment, len(frags))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, batch := range batches {
		g.Go(func() error {
			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(gctx); err != nil {
					return fmt.Errorf("brainmaps: waiting for rate limiter: %w", err)
				}
			}

			got, err := c.fetchBatch(gctx, vol, batch, opts)
			if err != nil {
				return err
			}

			for i, slot := range batch {
				decoded[slot.index] = got[i]
			}

			progress.add(len(batch))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Error("mesh batch failed",
			slog.String("volume", vol.String()),
			slog.String("error", err.Error()),
		)

		return nil, err
	}

	return decoded, nil
}

// splitBatches chunks frags into groups of at most size, remembering each
// fragment's original position.
func splitBatches(frags []Fragment, size int) [][]fragmentSlot {
	batches := make([][]fragmentSlot, 0, (len(frags)+size-1)/size)

	for start := 0; start < len(frags); start += size {
		end := min(start+size, len(frags))

		batch := make([]fragmentSlot, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, fragmentSlot{index: i, frag: frags[i]})
		}

		batches = append(batches, batch)
	}

	return batches
}

// fetchBatch issues one meshes:batch request and returns the decoded
// fragments aligned with batch. Truncated or undecodable bodies are fetched
// again up to opts.RefetchRetries times.
func (c *Client) fetchBatch(
	ctx context.Context, vol volumeid.ID, batch []fragmentSlot, opts *BatchOptions,
) ([]ngmesh.Fragment, error) {
	body, err := json.Marshal(newMeshBatchRequest(vol, batch, opts))
	if err != nil {
		return nil, fmt.Errorf("brainmaps: encoding mesh batch request: %w", err)
	}

	backoff := retry.WithMaxRetries(uint64(opts.RefetchRetries), retry.NewConstant(opts.RefetchBackoff))

	var out []ngmesh.Fragment

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		data, err := c.postRaw(ctx, "/v1/objects/meshes:batch", body)
		if err != nil {
			if errors.Is(err, errBodyRead) && ctx.Err() == nil {
				return retry.RetryableError(err)
			}

			return err
		}

		decoded, err := ngmesh.Decode(data)
		if err != nil {
			c.logger.Warn("undecodable mesh payload",
				slog.Int("fragments", len(batch)),
				slog.Int("bytes", len(data)),
				slog.String("error", err.Error()),
			)

			return retry.RetryableError(fmt.Errorf("%w: decoding mesh batch: %w", ErrRemote, err))
		}

		aligned, err := alignFragments(batch, decoded)
		if err != nil {
			return err
		}

		out = aligned

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func newMeshBatchRequest(vol volumeid.ID, batch []fragmentSlot, opts *BatchOptions) *meshBatchRequest {
	req := &meshBatchRequest{
		VolumeID: vol.String(),
		MeshName: opts.MeshName,
		Batches:  make([]meshBatchEntry, 0, len(batch)),
	}

	for _, slot := range batch {
		req.Batches = append(req.Batches, meshBatchEntry{
			ObjectID:     strconv.FormatUint(slot.frag.SupervoxelID, 10),
			FragmentKeys: []string{slot.frag.Key},
		})
	}

	if opts.ChangeStack != "" {
		req.Header = &requestHeader{ChangeStackID: opts.ChangeStack}
	}

	return req
}

// postRaw POSTs a JSON body and returns the full response body.
func (c *Client) postRaw(ctx context.Context, path string, body []byte) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w for %s: %w", ErrRemote, errBodyRead, path, err)
	}

	return data, nil
}

// fragmentID keys decoded records back to requested fragments.
type fragmentID struct {
	object uint64
	key    string
}

// alignFragments orders decoded records to match batch. The server may
// answer in any order; a requested fragment missing from the response is an
// error.
func alignFragments(batch []fragmentSlot, decoded []ngmesh.Fragment) ([]ngmesh.Fragment, error) {
	pending := make(map[fragmentID][]int, len(decoded))
	for i := range decoded {
		id := fragmentID{object: decoded[i].ObjectID, key: decoded[i].Key}
		pending[id] = append(pending[id], i)
	}

	out := make([]ngmesh.Fragment, len(batch))

	for i, slot := range batch {
		id := fragmentID{object: slot.frag.SupervoxelID, key: slot.frag.Key}

		idx := pending[id]
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: mesh batch response missing fragment %q of supervoxel %d",
				ErrRemote, slot.frag.Key, slot.frag.SupervoxelID)
		}

		out[i] = decoded[idx[0]]
		pending[id] = idx[1:]
	}

	return out, nil
}

// progress serializes Progress callbacks from concurrent workers.
type progress struct {
	fn    func(done, total int)
	total int

	mu   sync.Mutex
	done int
}

func newProgress(fn func(done, total int), total int) *progress {
	return &progress{fn: fn, total: total}
}

func (p *progress) add(n int) {
	if p.fn == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += n
	p.fn(p.done, p.total)
}
