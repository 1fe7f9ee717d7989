package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brainmappy/brainmaps-go/pkg/brainmaps"
)

func newSegCmd() *cobra.Command {
	var (
		physical    bool
		changeStack string
	)

	cmd := &cobra.Command{
		Use:   "seg <x,y,z>...",
		Short: "Look up the segment ID at voxel locations",
		Long: `Prints the segment ID at each location, in argument order. Zero means the
location is unlabeled. With --physical the coordinates are in the volume's
physical units and are converted using the pixel size of scale 0.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}

			var extra []brainmaps.CallOption
			if changeStack != "" {
				extra = append(extra, brainmaps.WithChangeStack(changeStack))
			}

			opts := callOptions(s, extra...)

			locations, err := seedLocations(cmd, args, physical, opts)
			if err != nil {
				return err
			}

			ids, err := brainmaps.SegmentsAt(cmd.Context(), locations, opts...)
			if err != nil {
				return err
			}

			return printSegments(locations, ids)
		},
	}

	cmd.Flags().BoolVar(&physical, "physical", false, "coordinates are physical, not voxel")
	cmd.Flags().StringVar(&changeStack, "change-stack", "", "read segments as agglomerated by this change stack")

	return cmd
}

// seedLocations parses the arguments into voxel coordinates, converting
// physical ones with the volume's pixel size.
func seedLocations(cmd *cobra.Command, args []string, physical bool, opts []brainmaps.CallOption) ([][3]int64, error) {
	points := make([][3]float64, len(args))

	for i, arg := range args {
		p, err := parsePoint(arg)
		if err != nil {
			return nil, err
		}

		points[i] = p
	}

	if !physical {
		out := make([][3]int64, len(points))
		for i, p := range points {
			out[i] = [3]int64{int64(p[0]), int64(p[1]), int64(p[2])}
		}

		return out, nil
	}

	geoms, err := brainmaps.VolumeInfo(cmd.Context(), opts...)
	if err != nil {
		return nil, err
	}

	return brainmaps.VoxelCoords(points, geoms[0].PixelSize)
}

// parsePoint parses "x,y,z".
func parsePoint(arg string) ([3]float64, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 3 {
		return [3]float64{}, fmt.Errorf("invalid location %q: want x,y,z", arg)
	}

	var p [3]float64

	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return [3]float64{}, fmt.Errorf("invalid location %q: %w", arg, err)
		}

		p[i] = v
	}

	return p, nil
}

type segmentOutput struct {
	Location [3]int64 `json:"location"`
	Segment  string   `json:"segment"`
}

func printSegments(locations [][3]int64, ids []uint64) error {
	if flagJSON {
		out := make([]segmentOutput, len(ids))
		for i, id := range ids {
			out[i] = segmentOutput{Location: locations[i], Segment: strconv.FormatUint(id, 10)}
		}

		return printJSON(out)
	}

	rows := make([][]string, len(ids))
	for i, id := range ids {
		loc := locations[i]
		rows[i] = []string{fmt.Sprintf("%d,%d,%d", loc[0], loc[1], loc[2]), strconv.FormatUint(id, 10)}
	}

	printTable(stdout, []string{"LOCATION", "SEGMENT"}, rows)

	return nil
}
