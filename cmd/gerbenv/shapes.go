package main

import (
	"fmt"

	"github.com/nao1215/gerbenv/internal/svgx"
	"github.com/spf13/cobra"
)

// NewShapesCmd creates the shapes command group.
func NewShapesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shapes",
		Short: "Flatten, rebuild, and prune shape records from rendered SVGs",
		Long: `Shapes works with the primitive shape records extracted from rendered
board SVGs: rotated rectangles, circles, and ellipses in viewport
pixel space.

Subcommands:
  flatten  Reduce a rendered SVG to shape records serialized as JSON
  rebuild  Reconstruct a review SVG from shape records
  cascade  Keep only the dominant connected shape cluster of an SVG
  export   Rewrite an SVG as flattened paths for game-engine import`,
	}

	cmd.AddCommand(newShapesFlattenCmd())
	cmd.AddCommand(newShapesRebuildCmd())
	cmd.AddCommand(newShapesCascadeCmd())
	cmd.AddCommand(newShapesExportCmd())

	return cmd
}

// newShapesFlattenCmd creates the shapes flatten subcommand.
func newShapesFlattenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flatten <input.svg> <output.json>",
		Short: "Flatten a rendered SVG into primitive shape records",
		Long: `Flatten parses a rendered board SVG, resolves transforms and use
references, and reduces every drawable to a primitive shape record in
viewport pixel space. Records are sorted into a stable order and
written as JSON.

Examples:
  gerbenv shapes flatten out/top.svg out/top_shapes.json`,
		Args: cobra.ExactArgs(2),
		RunE: runShapesFlattenCmd,
	}

	cmd.Flags().Float64("min-rect-len", svgx.DefaultFlattenOptions().MinRectLen,
		"Drop stroke segments shorter than this many pixels")
	cmd.Flags().Float64("min-circle-r", svgx.DefaultFlattenOptions().MinCircleR,
		"Drop circles smaller than this radius in pixels")

	return cmd
}

// runShapesFlattenCmd executes the shapes flatten subcommand.
func runShapesFlattenCmd(cmd *cobra.Command, args []string) error {
	opts := svgx.DefaultFlattenOptions()

	var err error
	opts.MinRectLen, err = cmd.Flags().GetFloat64("min-rect-len")
	if err != nil {
		return err
	}
	opts.MinCircleR, err = cmd.Flags().GetFloat64("min-circle-r")
	if err != nil {
		return err
	}

	doc, err := svgx.FlattenFile(args[0], opts)
	if err != nil {
		return fmt.Errorf("failed to flatten %s: %w", args[0], err)
	}
	svgx.SortObjects(doc)

	if err := doc.Save(args[1]); err != nil {
		return fmt.Errorf("failed to write shape records: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Flattened %s -> %s (%d shapes)\n", args[0], args[1], len(doc.Objects))
	return nil
}

// newShapesRebuildCmd creates the shapes rebuild subcommand.
func newShapesRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild <input.json> <output.svg>",
		Short: "Reconstruct a review SVG from shape records",
		Long: `Rebuild renders flattened shape records back into a standalone SVG
with diagnostic fills per shape type. Small circles are routed into
their own group so hole markers can be styled or stripped
independently.

Examples:
  gerbenv shapes rebuild out/top_shapes.json review.svg`,
		Args: cobra.ExactArgs(2),
		RunE: runShapesRebuildCmd,
	}

	cmd.Flags().Float64("min-circle-r", svgx.DefaultRebuildOptions().SmallCircleR,
		"Route circles at or below this radius into the small-circle group")
	cmd.Flags().Int("round", svgx.DefaultRebuildOptions().Digits,
		"Coordinate precision in digits of the emitted markup")

	return cmd
}

// runShapesRebuildCmd executes the shapes rebuild subcommand.
func runShapesRebuildCmd(cmd *cobra.Command, args []string) error {
	opts := svgx.DefaultRebuildOptions()

	var err error
	opts.SmallCircleR, err = cmd.Flags().GetFloat64("min-circle-r")
	if err != nil {
		return err
	}
	opts.Digits, err = cmd.Flags().GetInt("round")
	if err != nil {
		return err
	}

	doc, err := svgx.LoadDoc(args[0])
	if err != nil {
		return fmt.Errorf("failed to load shape records: %w", err)
	}

	if err := svgx.RebuildFile(doc, args[1], opts); err != nil {
		return fmt.Errorf("failed to rebuild SVG: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %s -> %s (%d shapes)\n", args[0], args[1], len(doc.Objects))
	return nil
}

// newShapesCascadeCmd creates the shapes cascade subcommand.
func newShapesCascadeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cascade <input.svg> <output.svg>",
		Short: "Keep only the dominant connected shape cluster of an SVG",
		Long: `Cascade reduces an SVG to its dominant shape cascade. Starting from
the k-th farthest drawable from the viewport center it floods across
touching or near-touching bounding boxes and keeps that cluster,
dropping unconnected geometry. Circles bypass the flood: small ones
are stripped as drill artifacts, larger ones always survive as pads.

The typical input is a board outline render where the frame cascade
should be isolated from stray legend fragments.

Examples:
  gerbenv shapes cascade out/top.svg outline.svg

  # Seed from the second-farthest shape and widen the join gap
  gerbenv shapes cascade --start-rank 1 --gap 3.5 out/top.svg outline.svg`,
		Args: cobra.ExactArgs(2),
		RunE: runShapesCascadeCmd,
	}

	cmd.Flags().Float64("gap", svgx.DefaultCascadeOptions().GapThresh,
		"Join shapes whose bounding boxes sit within this many pixels")
	cmd.Flags().Int("start-rank", svgx.DefaultCascadeOptions().StartRank,
		"Seed the flood from the k-th farthest shape (0 is farthest)")
	cmd.Flags().String("debug-svg", "",
		"Write an overlay SVG marking the cascade bounding boxes")

	return cmd
}

// newShapesExportCmd creates the shapes export subcommand.
func newShapesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <input.svg> <output.svg>",
		Short: "Rewrite an SVG as flattened paths for game-engine import",
		Long: `Export converts every drawable of an SVG into plain path elements with
all transforms baked into the coordinates. By default the subpaths
merge into a single fill-rule="evenodd" path so board cut-outs survive
as holes when the file is imported into a game engine.

Examples:
  gerbenv shapes export outline.svg unity_board.svg

  # One path element per shape, no added outline stroke
  gerbenv shapes export --separate --no-stroke outline.svg board.svg`,
		Args: cobra.ExactArgs(2),
		RunE: runShapesExportCmd,
	}

	cmd.Flags().Bool("separate", false,
		"Emit one path element per shape instead of one merged even-odd path")
	cmd.Flags().Bool("no-stroke", false,
		"Do not add an outline stroke to paths that have none")

	return cmd
}

// runShapesExportCmd executes the shapes export subcommand.
func runShapesExportCmd(cmd *cobra.Command, args []string) error {
	opts := svgx.DefaultExportOptions()

	separate, err := cmd.Flags().GetBool("separate")
	if err != nil {
		return err
	}
	opts.EvenOdd = !separate

	noStroke, err := cmd.Flags().GetBool("no-stroke")
	if err != nil {
		return err
	}
	opts.AddStroke = !noStroke

	summary, err := svgx.ExportFile(args[0], args[1], opts)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", args[0], err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s -> %s (%d paths)\n", args[0], args[1], summary.Paths)
	return nil
}

// runShapesCascadeCmd executes the shapes cascade subcommand.
func runShapesCascadeCmd(cmd *cobra.Command, args []string) error {
	opts := svgx.DefaultCascadeOptions()

	var err error
	opts.GapThresh, err = cmd.Flags().GetFloat64("gap")
	if err != nil {
		return err
	}
	opts.StartRank, err = cmd.Flags().GetInt("start-rank")
	if err != nil {
		return err
	}
	opts.DebugPath, err = cmd.Flags().GetString("debug-svg")
	if err != nil {
		return err
	}

	result, err := svgx.KeepCascadeFile(args[0], args[1], opts)
	if err != nil {
		return fmt.Errorf("failed to isolate cascade: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cascade %s -> %s\n", args[0], args[1])
	fmt.Fprintf(cmd.OutOrStdout(), "  kept:    %d\n", result.Kept)
	fmt.Fprintf(cmd.OutOrStdout(), "  removed: %d\n", result.Removed)

	return nil
}
