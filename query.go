package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/brainmappy/brainmaps-go/pkg/brainmaps"
)

func newVolumesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "volumes",
		Short: "List volumes visible to the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			vols, err := brainmaps.Volumes(cmd.Context(), brainmaps.WithSession(s))
			if err != nil {
				return err
			}

			return printStrings(vols)
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the geometry of the volume at each scale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			geoms, err := brainmaps.VolumeInfo(cmd.Context(), callOptions(s)...)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(geoms)
			}

			rows := make([][]string, len(geoms))
			for i, g := range geoms {
				rows[i] = []string{
					strconv.Itoa(i),
					fmt.Sprintf("%dx%dx%d", g.VolumeSize.X, g.VolumeSize.Y, g.VolumeSize.Z),
					fmt.Sprintf("%gx%gx%g", g.PixelSize.X, g.PixelSize.Y, g.PixelSize.Z),
					strconv.Itoa(g.ChannelCount),
					g.ChannelType,
				}
			}

			printTable(stdout, []string{"SCALE", "SIZE", "PIXEL SIZE", "CHANNELS", "TYPE"}, rows)

			return nil
		},
	}
}

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects visible to the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			projects, err := brainmaps.Projects(cmd.Context(), brainmaps.WithSession(s))
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(projects)
			}

			rows := make([][]string, len(projects))
			for i, p := range projects {
				rows[i] = []string{p.ID, p.Name}
			}

			printTable(stdout, []string{"ID", "NAME"}, rows)

			return nil
		},
	}
}

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the API's schema definitions",
		Long: `List the type definitions from the Brainmaps discovery document.
With --json each schema is printed with its properties.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			schemas, err := brainmaps.Schemas(cmd.Context(), brainmaps.WithSession(s))
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(schemas)
			}

			rows := make([][]string, len(schemas))
			for i, sch := range schemas {
				rows[i] = []string{sch.ID, sch.Type, sch.Description}
			}

			printTable(stdout, []string{"ID", "TYPE", "DESCRIPTION"}, rows)

			return nil
		},
	}
}

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets <project>",
		Short: "List datasets of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			ids, err := brainmaps.Datasets(cmd.Context(), args[0], brainmaps.WithSession(s))
			if err != nil {
				return err
			}

			return printStrings(ids)
		},
	}
}

func newMeshesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meshes",
		Short: "List the mesh collections of the volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			meshes, err := brainmaps.MeshList(cmd.Context(), callOptions(s)...)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(meshes)
			}

			rows := make([][]string, len(meshes))
			for i, m := range meshes {
				rows[i] = []string{m.Name, m.Type}
			}

			printTable(stdout, []string{"NAME", "TYPE"}, rows)

			return nil
		},
	}
}

func newChangeStacksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "changestacks",
		Short: "List the change stacks of the volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			ids, err := brainmaps.ChangeStacks(cmd.Context(), callOptions(s)...)
			if err != nil {
				return err
			}

			return printStrings(ids)
		},
	}
}

func newResourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources <object-id>",
		Short: "Show the raw resource listing of an object",
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

			res, err := brainmaps.ObjectResources(cmd.Context(), objectID, callOptions(s)...)
			if err != nil {
				return err
			}

			return printJSON(res)
		},
	}
}

// printStrings prints one value per line, or a JSON array with --json.
func printStrings(values []string) error {
	if flagJSON {
		return printJSON(values)
	}

	for _, v := range values {
		fmt.Fprintln(stdout, v)
	}

	return nil
}

func parseObjectID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid object ID %q: must be an unsigned integer", arg)
	}

	return id, nil
}
