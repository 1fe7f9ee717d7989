package brainmaps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/brainmappy/brainmaps-go/internal/volumeid"
	"github.com/brainmappy/brainmaps-go/pkg/ngmesh"
)

// ReplayBatch is one meshes:batch request recovered from a cURL command
// copied out of a browser running neuroglancer.
type ReplayBatch struct {
	Volume      volumeid.ID
	MeshName    string
	ChangeStack string
	Fragments   []Fragment
}

// ObjectMesh is the merged mesh of one object ID.
type ObjectMesh struct {
	ObjectID uint64
	Mesh     *ngmesh.Mesh
}

// curl options that consume the following argument.
var curlValueFlags = map[string]bool{
	"-H": true, "--header": true,
	"-X": true, "--request": true,
	"-b": true, "--cookie": true,
	"-A": true, "--user-agent": true,
	"-e": true, "--referer": true,
	"-u": true, "--user": true,
}

var curlDataFlags = map[string]bool{
	"-d": true, "--data": true, "--data-raw": true, "--data-binary": true, "--data-ascii": true,
}

// ParseCurl reads cURL commands, one per line with optional backslash
// continuations, and returns the meshes:batch requests among them in input
// order. Other commands are skipped. Headers are ignored: replays use the
// session's own credentials.
func ParseCurl(r io.Reader) ([]ReplayBatch, error) {
	cmds, err := splitCurlCommands(r)
	if err != nil {
		return nil, err
	}

	var out []ReplayBatch

	for _, cmd := range cmds {
		rb, ok, err := parseCurlCommand(cmd.text)
		if err != nil {
			return nil, fmt.Errorf("%w: curl command on line %d: %w", ErrConfiguration, cmd.line, err)
		}

		if ok {
			out = append(out, rb)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no meshes:batch requests found", ErrConfiguration)
	}

	return out, nil
}

type curlCommand struct {
	line int
	text string
}

// splitCurlCommands joins continuation lines and keeps only lines that
// start a curl invocation.
func splitCurlCommands(r io.Reader) ([]curlCommand, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		cmds    []curlCommand
		pending strings.Builder
		start   int
		lineNo  int
	)

	flush := func() {
		text := strings.TrimSpace(pending.String())
		pending.Reset()

		text = strings.TrimSpace(strings.TrimRight(text, ";"))
		if strings.HasPrefix(text, "curl ") {
			cmds = append(cmds, curlCommand{line: start, text: text})
		}
	}

	for sc.Scan() {
		lineNo++

		line := strings.TrimRight(sc.Text(), " \t\r")
		if pending.Len() == 0 {
			start = lineNo
		}

		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending.WriteString(cont)
			pending.WriteByte(' ')

			continue
		}

		pending.WriteString(line)
		flush()
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading curl commands: %w", err)
	}

	if pending.Len() > 0 {
		flush()
	}

	return cmds, nil
}

// parseCurlCommand reports ok=false for commands that are not mesh batch
// requests.
func parseCurlCommand(text string) (ReplayBatch, bool, error) {
	args, err := shellwords.Parse(text)
	if err != nil {
		return ReplayBatch{}, false, fmt.Errorf("splitting arguments: %w", err)
	}

	var rawURL, data string

	for i := 1; i < len(args); i++ {
		arg := args[i]

		switch {
		case curlDataFlags[arg]:
			if i+1 == len(args) {
				return ReplayBatch{}, false, fmt.Errorf("%s without a value", arg)
			}

			i++
			data = args[i]
		case curlValueFlags[arg]:
			i++
		case strings.HasPrefix(arg, "-"):
			// Bare switches such as --compressed.
		default:
			rawURL = arg
		}
	}

	if !strings.Contains(rawURL, "meshes:batch") || data == "" {
		return ReplayBatch{}, false, nil
	}

	var req meshBatchRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return ReplayBatch{}, false, fmt.Errorf("decoding request body: %w", err)
	}

	vol, err := volumeid.Parse(req.VolumeID)
	if err != nil {
		return ReplayBatch{}, false, err
	}

	rb := ReplayBatch{Volume: vol, MeshName: req.MeshName}
	if req.Header != nil {
		rb.ChangeStack = req.Header.ChangeStackID
	}

	for _, b := range req.Batches {
		id, err := strconv.ParseUint(b.ObjectID, 10, 64)
		if err != nil {
			return ReplayBatch{}, false, fmt.Errorf("invalid objectId %q: %w", b.ObjectID, err)
		}

		for _, key := range b.FragmentKeys {
			rb.Fragments = append(rb.Fragments, Fragment{SupervoxelID: id, Key: key})
		}
	}

	return rb, true, nil
}

// replayGroup collects fragments that can share meshes:batch requests.
type replayGroup struct {
	vol         volumeid.ID
	meshName    string
	changeStack string
	frags       []Fragment
	seen        map[Fragment]bool
}

// ReplayMeshes fetches the fragments named by reqs and merges them per
// object ID, in order of first appearance. Fragments are rebatched with
// opts.BatchSize; one requested twice is fetched once. Each request's mesh
// name and change stack replace those in opts, and opts.MeshName only fills
// in a missing mesh name.
func (c *Client) ReplayMeshes(ctx context.Context, reqs []ReplayBatch, opts BatchOptions) ([]ObjectMesh, error) {
	opts.normalize(c.retry.MaxRetries)

	var (
		groups []*replayGroup
		byKey  = map[string]*replayGroup{}
		total  int
	)

	for _, rb := range reqs {
		meshName := rb.MeshName
		if meshName == "" {
			meshName = opts.MeshName
		}

		key := rb.Volume.String() + "\x00" + meshName + "\x00" + rb.ChangeStack

		g, ok := byKey[key]
		if !ok {
			g = &replayGroup{vol: rb.Volume, meshName: meshName, changeStack: rb.ChangeStack, seen: map[Fragment]bool{}}
			byKey[key] = g
			groups = append(groups, g)
		}

		for _, f := range rb.Fragments {
			if g.seen[f] {
				continue
			}

			g.seen[f] = true
			g.frags = append(g.frags, f)
			total++
		}
	}

	c.logger.Info("replaying mesh requests",
		slog.Int("requests", len(reqs)),
		slog.Int("groups", len(groups)),
		slog.Int("fragments", total),
	)

	progress := newProgress(opts.Progress, total)

	var (
		order   []uint64
		objects = map[uint64][]ngmesh.Fragment{}
	)

	for _, g := range groups {
		gopts := opts
		gopts.MeshName = g.meshName
		gopts.ChangeStack = g.changeStack

		decoded, err := c.fetchFragments(ctx, g.vol, g.frags, &gopts, progress)
		if err != nil {
			return nil, err
		}

		for _, d := range decoded {
			if _, ok := objects[d.ObjectID]; !ok {
				order = append(order, d.ObjectID)
			}

			objects[d.ObjectID] = append(objects[d.ObjectID], d)
		}
	}

	out := make([]ObjectMesh, 0, len(order))

	for _, id := range order {
		mesh, err := ngmesh.Merge(objects[id])
		if err != nil {
			return nil, fmt.Errorf("brainmaps: merging object %d: %w", id, err)
		}

		out = append(out, ObjectMesh{ObjectID: id, Mesh: mesh})
	}

	return out, nil
}
