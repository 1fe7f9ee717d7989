package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/brainmappy/brainmaps-go/pkg/brainmaps"
	"github.com/brainmappy/brainmaps-go/pkg/ngmesh"
)

// Mesh output formats.
const (
	formatOBJ  = "obj"
	formatJSON = "json"
)

// objectFlags are shared by the fragments and mesh commands.
type objectFlags struct {
	meshName    string
	changeStack string
}

func (f *objectFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.meshName, "mesh-name", "", "mesh collection (default from config api.mesh_name)")
	cmd.Flags().StringVar(&f.changeStack, "change-stack", "", "read the object as agglomerated by this change stack")
}

func (f *objectFlags) options() []brainmaps.CallOption {
	name := f.meshName
	if name == "" {
		name = resolvedCfg.MeshName
	}

	opts := []brainmaps.CallOption{brainmaps.WithMeshName(name)}
	if f.changeStack != "" {
		opts = append(opts, brainmaps.WithChangeStack(f.changeStack))
	}

	return opts
}

func newFragmentsCmd() *cobra.Command {
	var of objectFlags

	cmd := &cobra.Command{
		Use:   "fragments <object-id>",
		Short: "List the mesh fragments of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := parseObjectID(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			frags, err := brainmaps.GetFragments(cmd.Context(), objectID, callOptions(s, of.options()...)...)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(fragmentsJSON(frags))
			}

			rows := make([][]string, len(frags))
			for i, f := range frags {
				rows[i] = []string{strconv.FormatUint(f.SupervoxelID, 10), f.Key}
			}

			printTable(stdout, []string{"SUPERVOXEL", "KEY"}, rows)
			statusf("%s fragments\n", formatCount(len(frags)))

			return nil
		},
	}

	of.bind(cmd)

	return cmd
}

type fragmentOutput struct {
	SupervoxelID string `json:"supervoxelId"`
	Key          string `json:"fragmentKey"`
}

// fragmentsJSON renders IDs as strings, as the Brainmaps API does, so that
// 64-bit IDs survive JSON consumers that use float64.
func fragmentsJSON(frags []brainmaps.Fragment) []fragmentOutput {
	out := make([]fragmentOutput, len(frags))
	for i, f := range frags {
		out[i] = fragmentOutput{SupervoxelID: strconv.FormatUint(f.SupervoxelID, 10), Key: f.Key}
	}

	return out
}

func newMeshCmd() *cobra.Command {
	var (
		of        objectFlags
		output    string
		format    string
		workers   int
		batchSize int
		fromCurl  string
	)

	cmd := &cobra.Command{
		Use:   "mesh <object-id> | mesh --from-curl FILE",
		Short: "Download and merge the mesh of an object",
		Long: `Fetches every fragment of the object concurrently and writes the merged
mesh as Wavefront OBJ (default) or JSON. Any fragment that cannot be fetched
fails the command; no partial mesh is written.

With --from-curl, the fragments are taken from meshes:batch requests copied
as cURL from neuroglancer's network traffic ("-" reads stdin). The requests
are replayed with your stored credentials and one mesh is written per object
into the directory given by -o, named <object-id>.obj or .json. Stdout is
allowed when the requests cover a single object.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if fromCurl != "" {
				return cobra.NoArgs(cmd, args)
			}

			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatOBJ && format != formatJSON {
				return fmt.Errorf("invalid --format %q: must be %s or %s", format, formatOBJ, formatJSON)
			}

			var objectID uint64

			if fromCurl == "" {
				id, err := parseObjectID(args[0])
				if err != nil {
					return err
				}

				objectID = id
			}

			logger := buildLogger()

			s, err := openSession(cmd.Context(), logger)
			if err != nil {
				return err
			}

			opts := callOptions(s, of.options()...)
			opts = append(opts, brainmaps.WithProgress(progressLine(stderr, "fetching fragments")))

			if workers > 0 {
				opts = append(opts, brainmaps.WithWorkers(workers))
			}

			if batchSize > 0 {
				opts = append(opts, brainmaps.WithBatchSize(batchSize))
			}

			if fromCurl != "" {
				return replayCurl(cmd.Context(), fromCurl, output, format, opts)
			}

			mesh, err := brainmaps.GetMeshesBatch(cmd.Context(), objectID, opts...)
			if err != nil {
				return err
			}

			if err := writeMesh(output, format, mesh); err != nil {
				return err
			}

			statusf("Object %d: %s vertices, %s faces\n",
				objectID, formatCount(len(mesh.Vertices)), formatCount(len(mesh.Faces)))

			return nil
		},
	}

	of.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "-", `output file, or directory with --from-curl ("-" for stdout)`)
	cmd.Flags().StringVar(&format, "format", formatOBJ, "output format: obj or json")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent requests (default from config fetch.workers)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "fragments per request, 1 to 100 (default from config fetch.batch_size)")
	cmd.Flags().StringVar(&fromCurl, "from-curl", "", `replay meshes:batch cURL commands from FILE ("-" for stdin)`)

	return cmd
}

// replayCurl fetches the meshes named by copied cURL commands and writes one
// file per object.
func replayCurl(ctx context.Context, src, outDir, format string, opts []brainmaps.CallOption) error {
	var in io.Reader = os.Stdin

	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("opening curl file: %w", err)
		}
		defer f.Close()

		in = f
	}

	reqs, err := brainmaps.ParseCurl(in)
	if err != nil {
		return err
	}

	meshes, err := brainmaps.ReplayMeshes(ctx, reqs, opts...)
	if err != nil {
		return err
	}

	if outDir == "-" {
		if len(meshes) != 1 {
			return fmt.Errorf("requests cover %d objects: use -o DIR to write one file each", len(meshes))
		}

		return encodeMesh(stdout, format, meshes[0].Mesh)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, om := range meshes {
		path := filepath.Join(outDir, strconv.FormatUint(om.ObjectID, 10)+"."+format)
		if err := writeMesh(path, format, om.Mesh); err != nil {
			return err
		}

		statusf("Object %d: %s vertices, %s faces -> %s\n",
			om.ObjectID, formatCount(len(om.Mesh.Vertices)), formatCount(len(om.Mesh.Faces)), path)
	}

	return nil
}

type meshOutput struct {
	Vertices []ngmesh.Vertex `json:"vertices"`
	Faces    []ngmesh.Face   `json:"faces"`
}

// writeMesh writes mesh to path, or stdout for "-". A file is written to a
// temporary name first so a failed write never leaves a truncated mesh.
func writeMesh(path, format string, mesh *brainmaps.Mesh) (err error) {
	if path == "-" {
		return encodeMesh(stdout, format, mesh)
	}

	tmp := path + ".partial"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := encodeMesh(f, format, mesh); err != nil {
		return errors.Join(err, f.Close())
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming output: %w", err)
	}

	return nil
}

func encodeMesh(w io.Writer, format string, mesh *brainmaps.Mesh) error {
	if format == formatJSON {
		vertices := mesh.Vertices
		if vertices == nil {
			vertices = []ngmesh.Vertex{}
		}

		faces := mesh.Faces
		if faces == nil {
			faces = []ngmesh.Face{}
		}

		return json.NewEncoder(w).Encode(meshOutput{Vertices: vertices, Faces: faces})
	}

	return ngmesh.WriteOBJ(w, mesh)
}
