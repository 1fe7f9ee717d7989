package brainmaps

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
)

// DefaultSegmentChunkSize is the number of locations per values request.
const DefaultSegmentChunkSize = 10000

// SegmentOptions controls SegmentsAt.
type SegmentOptions struct {
	ChangeStack string

	// ChunkSize is the number of locations per request. Default 10000.
	ChunkSize int

	// Workers bounds concurrent chunk requests. Default 8.
	Workers int
}

type valuesRequest struct {
	Locations []string       `json:"locations"`
	Header    *requestHeader `json:"header,omitempty"`
}

type valuesResponse struct {
	Uint64StrList *struct {
		Values []uint64String `json:"values"`
	} `json:"uint64StrList"`
}

// SegmentsAt returns the segment ID at each voxel location, in input order.
// Zero means the location is unmapped. Locations are split into chunks of
// opts.ChunkSize, at most opts.Workers of them in flight. Each chunk gets
// only the client's HTTP retries; the first failing chunk cancels the rest.
func (c *Client) SegmentsAt(
	ctx context.Context, vol volumeid.ID, locations [][3]int64, opts SegmentOptions,
) ([]uint64, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultSegmentChunkSize
	}

	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	ids := make([]uint64, len(locations))
	if len(locations) == 0 {
		return ids, nil
	}

	path := fmt.Sprintf("/v1/volumes/%s/values", url.PathEscape(vol.String()))

	c.logger.Info("fetching segment IDs",
		slog.String("volume", vol.String()),
		slog.Int("locations", len(locations)),
		slog.Int("chunk_size", opts.ChunkSize),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for start := 0; start < len(locations); start += opts.ChunkSize {
		end := min(start+opts.ChunkSize, len(locations))

		g.Go(func() error {
			got, err := c.fetchValues(gctx, path, locations[start:end], &opts)
			if err != nil {
				return fmt.Errorf("locations %d-%d: %w", start, end-1, err)
			}

			copy(ids[start:end], got)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (c *Client) fetchValues(
	ctx context.Context, path string, chunk [][3]int64, opts *SegmentOptions,
) ([]uint64, error) {
	req := valuesRequest{Locations: make([]string, len(chunk))}
	for i, loc := range chunk {
		req.Locations[i] = formatLocation(loc)
	}

	if opts.ChangeStack != "" {
		req.Header = &requestHeader{ChangeStackID: opts.ChangeStack}
	}

	var resp valuesResponse
	if err := c.postJSON(ctx, path, &req, &resp); err != nil {
		return nil, err
	}

	if resp.Uint64StrList == nil {
		return nil, remoteErrorf("values response has no uint64StrList")
	}

	if len(resp.Uint64StrList.Values) != len(chunk) {
		return nil, remoteErrorf("values response has %d IDs for %d locations",
			len(resp.Uint64StrList.Values), len(chunk))
	}

	out := make([]uint64, len(chunk))
	for i, v := range resp.Uint64StrList.Values {
		out[i] = uint64(v)
	}

	return out, nil
}

func formatLocation(loc [3]int64) string {
	return strconv.FormatInt(loc[0], 10) + "," +
		strconv.FormatInt(loc[1], 10) + "," +
		strconv.FormatInt(loc[2], 10)
}

// VoxelCoords converts physical coordinates to voxel coordinates by dividing
// by the pixel size and truncating toward zero.
func VoxelCoords(points [][3]float64, px PixelSize) ([][3]int64, error) {
	if px.X <= 0 || px.Y <= 0 || px.Z <= 0 {
		return nil, fmt.Errorf("%w: pixel size must be positive, got %gx%gx%g",
			ErrConfiguration, px.X, px.Y, px.Z)
	}

	out := make([][3]int64, len(points))
	for i, p := range points {
		out[i] = [3]int64{
			int64(p[0] / px.X),
			int64(p[1] / px.Y),
			int64(p[2] / px.Z),
		}
	}

	return out, nil
}
