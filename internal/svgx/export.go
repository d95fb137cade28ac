package svgx

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// ExportOptions tunes the flattened path export.
type ExportOptions struct {
	// EvenOdd merges every subpath into a single path element with
	// fill-rule="evenodd" so cut-outs survive as holes.
	EvenOdd bool

	// AddStroke adds a thin black outline to paths that carry no
	// stroke of their own.
	AddStroke bool
}

// DefaultExportOptions returns the settings tuned for game-engine
// import: one merged even-odd path with a hairline outline.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{EvenOdd: true, AddStroke: true}
}

// ExportSummary describes what an Export run produced.
type ExportSummary struct {
	// Paths is the number of drawables converted, counted before any
	// even-odd merge.
	Paths int `json:"paths"`
}

// Export rewrites an SVG as a minimal document of plain path elements.
// Every drawable is converted to a path with all transforms baked into
// its coordinates; groups, shape elements, and presentation shortcuts
// disappear. Curves stay curves: cubic and quadratic control points map
// through the transform exactly, arcs become cubic spans. The root
// viewBox, width, and height carry over unchanged.
func Export(r io.Reader, w io.Writer, opts ExportOptions) (*ExportSummary, error) {
	root, err := parseXML(r)
	if err != nil {
		return nil, err
	}
	if root.name != "svg" {
		return nil, fmt.Errorf("failed to export svg: root element is %q, want svg", root.name)
	}

	size := sizeInfo(root)
	ex := &exporter{
		widthRef:  refOr(size.WidthPx, 1000),
		heightRef: refOr(size.HeightPx, 1000),
	}
	ex.walk(root, Identity(), nil)

	if err := writeExport(w, root, ex.paths, opts); err != nil {
		return nil, err
	}
	return &ExportSummary{Paths: len(ex.paths)}, nil
}

// ExportFile is the file-path convenience wrapper around Export.
func ExportFile(in, out string, opts ExportOptions) (*ExportSummary, error) {
	src, err := os.Open(in) //nolint:gosec // user-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open svg: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	dst, err := os.Create(out) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create svg output: %w", err)
	}

	summary, err := Export(src, dst, opts)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return summary, err
}

// exportPath is one converted drawable: its baked path data and the
// presentation properties it inherited.
type exportPath struct {
	d     string
	style map[string]string
}

type exporter struct {
	widthRef  float64
	heightRef float64
	paths     []exportPath
}

// exportStyleKeys are the presentation properties the export carries
// onto the emitted path elements.
var exportStyleKeys = []string{
	"fill", "fill-opacity", "stroke", "stroke-width",
	"opacity", "stroke-linecap", "stroke-linejoin",
}

func exportStyle(n *node, inherited map[string]string) map[string]string {
	st := make(map[string]string, len(inherited)+len(exportStyleKeys))
	for k, v := range inherited {
		st[k] = v
	}
	inline := parseStyleAttr(n.attr("style"))
	for _, k := range exportStyleKeys {
		if v, ok := inline[k]; ok {
			st[k] = v
		}
	}
	for _, k := range exportStyleKeys {
		if v := n.attr(k); v != "" {
			st[k] = v
		}
	}
	return st
}

func (ex *exporter) walk(n *node, parent Matrix, inherited map[string]string) {
	switch n.name {
	case "defs", "symbol", "clipPath", "mask", "filter":
		return
	}

	m := parent
	if tr := n.attr("transform"); tr != "" {
		m = m.Mul(OpsMatrix(ParseTransform(tr)))
	}
	st := exportStyle(n, inherited)

	switch n.name {
	case "svg", "g":
		for _, c := range n.children {
			ex.walk(c, m, st)
		}
	case "path":
		ex.emit(parsePathSegments(n.attr("d")), m, st)
	case "rect":
		x := percentOrFloat(n.attr("x"), ex.widthRef)
		y := percentOrFloat(n.attr("y"), ex.heightRef)
		w := percentOrFloat(n.attr("width"), ex.widthRef)
		h := percentOrFloat(n.attr("height"), ex.heightRef)
		if w > 0 && h > 0 {
			ex.emit([]segment{
				lineSeg{x, y, x + w, y},
				lineSeg{x + w, y, x + w, y + h},
				lineSeg{x + w, y + h, x, y + h},
				lineSeg{x, y + h, x, y},
			}, m, st)
		}
	case "circle":
		cx := percentOrFloat(n.attr("cx"), ex.widthRef)
		cy := percentOrFloat(n.attr("cy"), ex.heightRef)
		r := percentOrFloat(n.attr("r"), math.Min(ex.widthRef, ex.heightRef))
		if r > 0 {
			ex.emit(ellipseSegments(cx, cy, r, r), m, st)
		}
	case "ellipse":
		cx := percentOrFloat(n.attr("cx"), ex.widthRef)
		cy := percentOrFloat(n.attr("cy"), ex.heightRef)
		rx := percentOrFloat(n.attr("rx"), ex.widthRef)
		ry := percentOrFloat(n.attr("ry"), ex.heightRef)
		if rx > 0 && ry > 0 {
			ex.emit(ellipseSegments(cx, cy, rx, ry), m, st)
		}
	case "line":
		x1 := percentOrFloat(n.attr("x1"), ex.widthRef)
		y1 := percentOrFloat(n.attr("y1"), ex.heightRef)
		x2 := percentOrFloat(n.attr("x2"), ex.widthRef)
		y2 := percentOrFloat(n.attr("y2"), ex.heightRef)
		ex.emit([]segment{lineSeg{x1, y1, x2, y2}}, m, st)
	case "polyline", "polygon":
		pts := readPoints(n.attr("points"))
		var segs []segment
		for i := 0; i+1 < len(pts); i++ {
			segs = append(segs, lineSeg{pts[i][0], pts[i][1], pts[i+1][0], pts[i+1][1]})
		}
		if n.name == "polygon" && len(pts) >= 2 {
			last := len(pts) - 1
			segs = append(segs, lineSeg{pts[last][0], pts[last][1], pts[0][0], pts[0][1]})
		}
		ex.emit(segs, m, st)
	}
}

// ellipseSegments builds an ellipse as four quarter-arc cubic spans.
func ellipseSegments(cx, cy, rx, ry float64) []segment {
	segs := make([]segment, 0, 4)
	for q := 0; q < 4; q++ {
		theta := float64(q) * math.Pi / 2
		segs = append(segs, arcSeg{
			cx: cx, cy: cy, rx: rx, ry: ry,
			theta1: theta, dTheta: math.Pi / 2,
		})
	}
	return segs
}

// emit converts segments to a path d string with the matrix baked into
// every coordinate. A move command opens each subpath; subpath breaks
// are recovered wherever one segment does not start where the previous
// one ended.
func (ex *exporter) emit(segs []segment, m Matrix, st map[string]string) {
	if len(segs) == 0 {
		return
	}

	var b strings.Builder
	const eps = 1e-9
	havePos := false
	var px, py float64

	for _, seg := range segs {
		sx, sy := seg.point(0)
		if !havePos || math.Abs(sx-px) > eps || math.Abs(sy-py) > eps {
			tx, ty := m.Apply(sx, sy)
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "M %s %s", fnum(tx, roundDigits), fnum(ty, roundDigits))
		}
		switch s := seg.(type) {
		case lineSeg:
			tx, ty := m.Apply(s.x2, s.y2)
			fmt.Fprintf(&b, " L %s %s", fnum(tx, roundDigits), fnum(ty, roundDigits))
		case cubicSeg:
			c1x, c1y := m.Apply(s.x1, s.y1)
			c2x, c2y := m.Apply(s.x2, s.y2)
			tx, ty := m.Apply(s.x3, s.y3)
			fmt.Fprintf(&b, " C %s %s %s %s %s %s",
				fnum(c1x, roundDigits), fnum(c1y, roundDigits),
				fnum(c2x, roundDigits), fnum(c2y, roundDigits),
				fnum(tx, roundDigits), fnum(ty, roundDigits))
		case quadSeg:
			c1x, c1y := m.Apply(s.x1, s.y1)
			tx, ty := m.Apply(s.x2, s.y2)
			fmt.Fprintf(&b, " Q %s %s %s %s",
				fnum(c1x, roundDigits), fnum(c1y, roundDigits),
				fnum(tx, roundDigits), fnum(ty, roundDigits))
		case arcSeg:
			writeArcCubics(&b, s, m)
		}
		px, py = seg.point(1)
		havePos = true
	}

	ex.paths = append(ex.paths, exportPath{d: b.String(), style: st})
}

// writeArcCubics appends a center-form arc as cubic spans of at most a
// quarter sweep each, transformed through m.
func writeArcCubics(b *strings.Builder, s arcSeg, m Matrix) {
	n := int(math.Ceil(math.Abs(s.dTheta) / (math.Pi / 2)))
	if n < 1 {
		n = 1
	}
	step := s.dTheta / float64(n)
	// Control distance for a cubic spanning step radians of arc.
	k := 4.0 / 3.0 * math.Tan(step/4)

	cosP, sinP := math.Cos(s.phi), math.Sin(s.phi)
	point := func(theta float64) (float64, float64) {
		cosT, sinT := math.Cos(theta), math.Sin(theta)
		return s.cx + s.rx*cosT*cosP - s.ry*sinT*sinP,
			s.cy + s.rx*cosT*sinP + s.ry*sinT*cosP
	}
	deriv := func(theta float64) (float64, float64) {
		cosT, sinT := math.Cos(theta), math.Sin(theta)
		return -s.rx*sinT*cosP - s.ry*cosT*sinP,
			-s.rx*sinT*sinP + s.ry*cosT*cosP
	}

	for i := 0; i < n; i++ {
		t0 := s.theta1 + step*float64(i)
		t1 := t0 + step
		x0, y0 := point(t0)
		x1, y1 := point(t1)
		d0x, d0y := deriv(t0)
		d1x, d1y := deriv(t1)

		c1x, c1y := m.Apply(x0+k*d0x, y0+k*d0y)
		c2x, c2y := m.Apply(x1-k*d1x, y1-k*d1y)
		ex, ey := m.Apply(x1, y1)
		fmt.Fprintf(b, " C %s %s %s %s %s %s",
			fnum(c1x, roundDigits), fnum(c1y, roundDigits),
			fnum(c2x, roundDigits), fnum(c2y, roundDigits),
			fnum(ex, roundDigits), fnum(ey, roundDigits))
	}
}

func writeExport(w io.Writer, root *node, paths []exportPath, opts ExportOptions) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<svg xmlns="` + svgNS + `" version="1.1"`)

	viewBox := root.attr("viewBox")
	if viewBox == "" {
		viewBox = "0 0 100 100"
	}
	fmt.Fprintf(&b, ` viewBox="%s"`, xmlEscape(viewBox))
	if v := root.attr("width"); v != "" {
		fmt.Fprintf(&b, ` width="%s"`, xmlEscape(v))
	}
	if v := root.attr("height"); v != "" {
		fmt.Fprintf(&b, ` height="%s"`, xmlEscape(v))
	}
	b.WriteString(">\n")

	if opts.EvenOdd {
		writeMergedPath(&b, paths, opts)
	} else {
		for _, p := range paths {
			writeSeparatePath(&b, p, opts)
		}
	}

	b.WriteString("</svg>\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write svg: %w", err)
	}
	return nil
}

// writeMergedPath joins every subpath into one even-odd path so an
// inner contour cuts a hole out of the one enclosing it. The fill of
// the first filled drawable wins.
func writeMergedPath(b *strings.Builder, paths []exportPath, opts ExportOptions) {
	if len(paths) == 0 {
		return
	}
	parts := make([]string, 0, len(paths))
	fill := ""
	for _, p := range paths {
		parts = append(parts, p.d)
		if fill == "" {
			fill = p.style["fill"]
		}
	}
	if fill == "" {
		fill = "#FFFFFF"
	}
	fmt.Fprintf(b, `  <path d="%s" fill-rule="evenodd" fill="%s"`,
		xmlEscape(strings.Join(parts, " ")), xmlEscape(fill))
	if opts.AddStroke {
		b.WriteString(` stroke="#000000" stroke-width="0.5"`)
	}
	b.WriteString("/>\n")
}

func writeSeparatePath(b *strings.Builder, p exportPath, opts ExportOptions) {
	fill := p.style["fill"]
	if fill == "" {
		fill = "#FFFFFF"
	}
	fmt.Fprintf(b, `  <path d="%s" fill="%s"`, xmlEscape(p.d), xmlEscape(fill))
	if s := p.style["stroke"]; s != "" {
		fmt.Fprintf(b, ` stroke="%s"`, xmlEscape(s))
	} else if opts.AddStroke {
		b.WriteString(` stroke="#000000"`)
		if p.style["stroke-width"] == "" {
			b.WriteString(` stroke-width="0.5"`)
		}
	}
	for _, k := range []string{"fill-opacity", "stroke-width", "opacity", "stroke-linecap", "stroke-linejoin"} {
		if v := p.style[k]; v != "" {
			fmt.Fprintf(b, ` %s="%s"`, k, xmlEscape(v))
		}
	}
	b.WriteString("/>\n")
}
