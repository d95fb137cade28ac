package main

import (
	"fmt"

	"github.com/nao1215/gerbenv/internal/config"
	"github.com/nao1215/gerbenv/internal/gerber"
	"github.com/spf13/cobra"
)

// NewFillCmd creates the fill command.
func NewFillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill <input.gbr> <output.gbr>",
		Short: "Convert an outline Gerber layer into filled G36/G37 regions",
		Long: `Fill converts an outline layer drawn as open line and arc strokes into
a filled G36/G37 region file.

Stroke endpoints are snapped and merged into closed loops, arcs are
linearized within the chord tolerances, loops are oriented clockwise,
and the coordinate format and aperture table of the input are
preserved. Glue outline layers exported by KiCad are the typical
input; the filled result rasterizes as a solid dispensing area.

Examples:
  # Fill a glue outline layer with default tolerances
  gerbenv fill demo-F_Adhesive.gbr demo-F_Adhesive.fill.gbr

  # Loosen the endpoint snap for a sloppy export
  gerbenv fill --snap-tol 0.05 in.gbr out.gbr`,
		Args: cobra.ExactArgs(2),
		RunE: runFillCmd,
	}

	cmd.Flags().Float64("snap-tol", config.DefaultSnapTol,
		"Endpoint snap/merge tolerance in millimeters")
	cmd.Flags().Float64("max-seg", config.DefaultMaxSegLen,
		"Maximum chord length in millimeters when linearizing arcs")
	cmd.Flags().Float64("max-angle", config.DefaultMaxAngleDeg,
		"Maximum arc sweep per chord in degrees")

	return cmd
}

// runFillCmd executes the fill command.
func runFillCmd(cmd *cobra.Command, args []string) error {
	opts := gerber.DefaultFillOptions()

	var err error
	opts.SnapTol, err = cmd.Flags().GetFloat64("snap-tol")
	if err != nil {
		return err
	}
	opts.MaxSegLen, err = cmd.Flags().GetFloat64("max-seg")
	if err != nil {
		return err
	}
	opts.MaxAngleDeg, err = cmd.Flags().GetFloat64("max-angle")
	if err != nil {
		return err
	}

	if opts.SnapTol < 0 {
		return fmt.Errorf("snap tolerance must not be negative: %g", opts.SnapTol)
	}
	if opts.MaxSegLen <= 0 || opts.MaxAngleDeg <= 0 {
		return fmt.Errorf("arc tolerances must be positive: max-seg=%g max-angle=%g", opts.MaxSegLen, opts.MaxAngleDeg)
	}

	summary, err := gerber.FillOutlineFile(args[0], args[1], opts)
	if err != nil {
		return fmt.Errorf("failed to fill outline: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Filled %s -> %s\n", args[0], args[1])
	fmt.Fprintf(cmd.OutOrStdout(), "  input paths:    %d\n", summary.InputPaths)
	fmt.Fprintf(cmd.OutOrStdout(), "  closed regions: %d\n", summary.ClosedPolygons)

	return nil
}
