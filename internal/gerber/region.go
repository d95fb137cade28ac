package gerber

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nao1215/gerbenv/internal/geom"
)

// ErrNoOutline is returned when an outline layer contains no usable paths.
var ErrNoOutline = errors.New("no outline paths found in input")

// FillOptions tunes outline-to-region conversion.
type FillOptions struct {
	// SnapTol is the endpoint snap/merge tolerance in millimeters.
	// Real glue layers often have sub-0.05mm gaps between strokes that
	// were meant to form one loop.
	SnapTol float64

	// MaxSegLen is the maximum chord length when linearizing arcs.
	MaxSegLen float64

	// MaxAngleDeg is the maximum sweep per chord in degrees.
	MaxAngleDeg float64
}

// DefaultFillOptions returns the tolerances that work for KiCad glue
// layers exported at 4.6 coordinate precision.
func DefaultFillOptions() FillOptions {
	return FillOptions{SnapTol: 0.02, MaxSegLen: 0.2, MaxAngleDeg: 5.0}
}

// FillSummary describes what a FillOutline run did.
type FillSummary struct {
	// InputPaths is the number of stroke paths parsed from the input.
	InputPaths int `json:"input_paths"`

	// ClosedPolygons is the number of closed loops written as regions.
	ClosedPolygons int `json:"closed_polygons"`

	// Format is the coordinate format carried over to the output.
	Format Format `json:"-"`

	// UnitMM is the file unit carried over to the output.
	UnitMM bool `json:"unit_mm"`
}

// FillOutline converts an outline layer (open line/arc strokes) into a
// filled G36/G37 region file. Endpoints are snapped and merged into
// closed loops, loops are oriented clockwise, and the FS/MO headers and
// aperture table of the input are preserved.
func FillOutline(r io.Reader, w io.Writer, opts FillOptions) (*FillSummary, error) {
	doc, err := ParseWithOptions(r, ParseOptions{MaxSegLen: opts.MaxSegLen, MaxAngleDeg: opts.MaxAngleDeg})
	if err != nil {
		return nil, err
	}

	paths := doc.Paths()
	if len(paths) == 0 {
		return nil, ErrNoOutline
	}

	closed := snapClose(paths, opts.SnapTol)

	// Orient every loop clockwise. Region fill does not care about
	// winding but deterministic output makes diffs and tests stable.
	polys := make([]geom.Polyline, 0, len(closed))
	for _, p := range closed {
		if len(p.Points) < 3 {
			continue
		}
		if geom.SignedArea(p.Points) > 0 {
			p.Reverse()
		}
		polys = append(polys, p)
	}

	if err := writeRegions(w, doc, polys); err != nil {
		return nil, err
	}

	return &FillSummary{
		InputPaths:     len(paths),
		ClosedPolygons: len(polys),
		Format:         doc.Format,
		UnitMM:         doc.UnitMM,
	}, nil
}

// FillOutlineFile is the file-path convenience wrapper around FillOutline.
// Parent directories of out are created as needed.
func FillOutlineFile(in, out string, opts FillOptions) (*FillSummary, error) {
	src, err := os.Open(in) //nolint:gosec // user-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open gerber input: %w", err)
	}
	defer src.Close()

	if dir := filepath.Dir(out); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	dst, err := os.Create(out) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create gerber output: %w", err)
	}

	summary, err := FillOutline(src, dst, opts)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return summary, err
}

// snapClose merges open paths into closed loops.
//
// Three passes, mirroring how hand-drawn outline layers actually fail to
// close: snap each path's own endpoints within tol, then greedily merge
// the nearest endpoint pair across paths (reversing as needed) within
// 1.5*tol, then force-close whatever remains with an explicit segment.
func snapClose(paths []geom.Polyline, tol float64) []geom.Polyline {
	for i := range paths {
		pts := paths[i].Points
		if len(pts) >= 2 && pts[0].Dist(pts[len(pts)-1]) <= tol {
			pts[len(pts)-1] = pts[0]
		}
	}

	var closed, open []geom.Polyline
	for _, p := range paths {
		switch {
		case len(p.Points) < 2:
			// Isolated point, nothing to close.
		case p.Closed():
			closed = append(closed, p)
		default:
			open = append(open, p)
		}
	}

	for len(open) > 1 {
		bi, bj := -1, -1
		bri, brj := false, false
		best := tol * 1.5
		for i := range open {
			si := open[i].Points[0]
			ei := open[i].Points[len(open[i].Points)-1]
			for j := i + 1; j < len(open); j++ {
				sj := open[j].Points[0]
				ej := open[j].Points[len(open[j].Points)-1]
				cands := []struct {
					ri, rj bool
					d     float64
				}{
					{false, false, ei.Dist(sj)},
					{false, true, ei.Dist(ej)},
					{true, false, si.Dist(sj)},
					{true, true, si.Dist(ej)},
				}
				for _, c := range cands {
					if c.d <= best {
						best = c.d
						bi, bj = i, j
						bri, brj = c.ri, c.rj
					}
				}
			}
		}
		if bi < 0 {
			break
		}

		pi, pj := open[bi], open[bj]
		if bri {
			pi.Reverse()
		}
		if brj {
			pj.Reverse()
		}
		merged := pi.Points
		if pi.Points[len(pi.Points)-1].Dist(pj.Points[0]) <= tol {
			merged = append(merged, pj.Points[1:]...)
		} else {
			merged = append(merged, pj.Points...)
		}

		next := make([]geom.Polyline, 0, len(open)-1)
		for k := range open {
			if k != bi && k != bj {
				next = append(next, open[k])
			}
		}
		open = append(next, geom.Polyline{Points: merged})
	}

	for _, p := range open {
		if len(p.Points) < 2 {
			continue
		}
		s := p.Points[0]
		e := p.Points[len(p.Points)-1]
		if s.Dist(e) <= tol*1.5 {
			p.Points[len(p.Points)-1] = s
		} else {
			p.Points = append(p.Points, s)
		}
		closed = append(closed, p)
	}
	return closed
}

var apertureCodeRe = regexp.MustCompile(`D(\d+)\*`)

// writeRegions emits the region output file: preserved headers, an
// aperture selection (regions ignore aperture width but the syntax still
// requires an active D-code), then one G36/G37 block with all loops.
func writeRegions(w io.Writer, doc *Document, polys []geom.Polyline) error {
	bw := bufio.NewWriter(w)

	writeln := func(s string) {
		bw.WriteString(s) //nolint:errcheck // flush error checked once below
		bw.WriteByte('\n')
	}

	if doc.FSLine != "" {
		writeln(doc.FSLine)
	} else {
		writeln("%FSLAX35Y35*%")
	}
	if doc.MOLine != "" {
		writeln(doc.MOLine)
	} else {
		writeln("%MOMM*%")
	}

	selected := ""
	for _, line := range doc.ApertureLines {
		writeln(line)
		if selected == "" {
			if m := apertureCodeRe.FindStringSubmatch(line); m != nil {
				selected = "D" + m[1] + "*"
			}
		}
	}
	if selected == "" {
		writeln("%ADD10C,0.100*%")
		selected = "D10*"
	}
	writeln(selected)

	f := doc.Format
	coord := func(p geom.Point) (string, string) {
		x := f.FormatCoord(p.X, f.XTotal(), f.XDec, doc.UnitMM)
		y := f.FormatCoord(p.Y, f.YTotal(), f.YDec, doc.UnitMM)
		return x, y
	}

	writeln("G36*")
	for _, poly := range polys {
		pts := poly.Points
		if len(pts) < 3 {
			continue
		}
		if pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		x, y := coord(pts[0])
		writeln(fmt.Sprintf("X%sY%sD02*", x, y))
		for _, p := range pts[1:] {
			x, y := coord(p)
			writeln(fmt.Sprintf("X%sY%sD01*", x, y))
		}
	}
	writeln("G37*")
	writeln("M02*")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write region output: %w", err)
	}
	return nil
}
