package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/gerbenv/internal/geom"
	"github.com/nao1215/gerbenv/internal/gerber"
)

// WriteSVG renders layers bottom-to-top into an SVG document with
// millimeter units. Gerber's Y axis points up, so Y coordinates are
// flipped against the bounding box.
func WriteSVG(w io.Writer, layers []Layer) error {
	bb := Bounds(layers)
	if bb.Empty() {
		return fmt.Errorf("nothing to render: all layers are empty")
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%.4fmm" height="%.4fmm" viewBox="0 0 %.4f %.4f">`+"\n",
		bb.Width(), bb.Height(), bb.Width(), bb.Height())

	tx := func(p geom.Point) (float64, float64) {
		return p.X - bb.MinX, bb.MaxY - p.Y
	}

	for _, l := range layers {
		fmt.Fprintf(bw, `<g fill="%s" stroke="%s">`+"\n", l.Color, l.Color)
		for _, reg := range l.Doc.Regions {
			writeRegionPath(bw, reg, tx, l.Color)
		}
		for _, s := range l.Doc.Strokes {
			writeStroke(bw, s, tx, l.Color)
		}
		for _, f := range l.Doc.Flashes {
			writeFlash(bw, f, tx, l.Color)
		}
		fmt.Fprintln(bw, "</g>")
	}

	fmt.Fprintln(bw, "</svg>")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write svg: %w", err)
	}
	return nil
}

// WriteSVGFile is the file-path convenience wrapper around WriteSVG.
func WriteSVGFile(path string, layers []Layer) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create svg output: %w", err)
	}
	err = WriteSVG(f, layers)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeRegionPath(w io.Writer, reg gerber.Region, tx func(geom.Point) (float64, float64), color string) {
	fmt.Fprintf(w, `<path fill-rule="evenodd" stroke="none" fill="%s" d="`, color)
	for _, c := range reg.Contours {
		for i, p := range c.Points {
			x, y := tx(p)
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(w, "%s%.4f %.4f ", cmd, x, y)
		}
		fmt.Fprint(w, "Z ")
	}
	fmt.Fprintln(w, `"/>`)
}

func writeStroke(w io.Writer, s gerber.Stroke, tx func(geom.Point) (float64, float64), color string) {
	width := s.Aperture.Diameter()
	if width <= 0 {
		width = 0.1
	}
	fmt.Fprintf(w, `<polyline fill="none" stroke="%s" stroke-width="%.4f" stroke-linecap="round" stroke-linejoin="round" points="`, color, width)
	for _, p := range s.Points {
		x, y := tx(p)
		fmt.Fprintf(w, "%.4f,%.4f ", x, y)
	}
	fmt.Fprintln(w, `"/>`)
}

func writeFlash(w io.Writer, f gerber.Flash, tx func(geom.Point) (float64, float64), color string) {
	x, y := tx(f.At)
	switch f.Aperture.Shape {
	case gerber.ShapeRectangle:
		wd, ht := flashSize(f.Aperture)
		fmt.Fprintf(w, `<rect x="%.4f" y="%.4f" width="%.4f" height="%.4f" stroke="none" fill="%s"/>`+"\n",
			x-wd/2, y-ht/2, wd, ht, color)
	case gerber.ShapeObround:
		wd, ht := flashSize(f.Aperture)
		r := min(wd, ht) / 2
		fmt.Fprintf(w, `<rect x="%.4f" y="%.4f" width="%.4f" height="%.4f" rx="%.4f" stroke="none" fill="%s"/>`+"\n",
			x-wd/2, y-ht/2, wd, ht, r, color)
	default:
		fmt.Fprintf(w, `<circle cx="%.4f" cy="%.4f" r="%.4f" stroke="none" fill="%s"/>`+"\n",
			x, y, f.Aperture.Diameter()/2, color)
	}
}

// flashSize returns the width and height of a rectangular or obround
// aperture, falling back to the diameter for short parameter lists.
func flashSize(ap gerber.Aperture) (float64, float64) {
	if len(ap.Params) >= 2 {
		return ap.Params[0], ap.Params[1]
	}
	d := ap.Diameter()
	return d, d
}
