package svgx

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// RebuildOptions tunes record-to-SVG reconstruction.
type RebuildOptions struct {
	// SmallCircleR routes circles at or below this radius into their
	// own group so they can be styled and stripped independently.
	SmallCircleR float64

	// Digits is the coordinate precision of the emitted markup.
	Digits int
}

// DefaultRebuildOptions matches the reconstruction used for outline
// inspection: 1px hole markers, 4 digit coordinates.
func DefaultRebuildOptions() RebuildOptions {
	return RebuildOptions{SmallCircleR: 1.0, Digits: 4}
}

// Rebuild renders flattened shape records back into a standalone SVG
// with diagnostic fills per shape type.
func Rebuild(doc *Doc, opts RebuildOptions) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	w := doc.Size.WidthPx
	h := doc.Size.HeightPx
	vb := doc.Size.ViewBox
	if vb == nil && w > 0 && h > 0 {
		vb = &[4]float64{0, 0, w, h}
	}

	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg"`)
	if w > 0 {
		fmt.Fprintf(&b, ` width="%s"`, fnum(w, opts.Digits))
	}
	if h > 0 {
		fmt.Fprintf(&b, ` height="%s"`, fnum(h, opts.Digits))
	}
	if vb != nil {
		fmt.Fprintf(&b, ` viewBox="%s %s %s %s"`,
			fnum(vb[0], opts.Digits), fnum(vb[1], opts.Digits),
			fnum(vb[2], opts.Digits), fnum(vb[3], opts.Digits))
	}
	b.WriteString(">\n")

	var all, small []string
	for _, rec := range doc.Objects {
		elem, isSmall := rebuildElement(rec, opts)
		if elem == "" {
			continue
		}
		if isSmall {
			small = append(small, elem)
		} else {
			all = append(all, elem)
		}
	}

	b.WriteString(`  <g id="all">` + "\n")
	for _, e := range all {
		b.WriteString("    " + e + "\n")
	}
	b.WriteString("  </g>\n")
	b.WriteString(`  <g id="small_circles">` + "\n")
	for _, e := range small {
		b.WriteString("    " + e + "\n")
	}
	b.WriteString("  </g>\n")
	b.WriteString("</svg>\n")
	return b.String()
}

// RebuildFile writes the rebuilt SVG next to other converter outputs.
func RebuildFile(doc *Doc, path string, opts RebuildOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Rebuild(doc, opts)), 0600); err != nil {
		return fmt.Errorf("failed to write svg: %w", err)
	}
	return nil
}

func rebuildElement(rec Record, opts RebuildOptions) (string, bool) {
	d := opts.Digits
	switch rec.Type {
	case TypeRect:
		elem := fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s"`,
			fnum(rec.Attrs["x"], d), fnum(rec.Attrs["y"], d),
			fnum(rec.Attrs["width"], d), fnum(rec.Attrs["height"], d))
		if tr := serializeOps(rec.TransformOps, d); tr != "" {
			elem += fmt.Sprintf(` transform="%s"`, tr)
		}
		return elem + ` fill="#ff0000" fill-opacity="0.5"/>`, false
	case TypeCircle:
		r := rec.Attrs["r"]
		fill := "#0066cc"
		isSmall := r <= opts.SmallCircleR
		if isSmall {
			fill = "#00aa00"
		}
		return fmt.Sprintf(`<circle cx="%s" cy="%s" r="%s" fill="%s" fill-opacity="0.4"/>`,
			fnum(rec.Attrs["cx"], d), fnum(rec.Attrs["cy"], d), fnum(r, d), fill), isSmall
	case TypeEllipse:
		return fmt.Sprintf(`<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="#cc6600" fill-opacity="0.4"/>`,
			fnum(rec.Attrs["cx"], d), fnum(rec.Attrs["cy"], d),
			fnum(rec.Attrs["rx"], d), fnum(rec.Attrs["ry"], d)), false
	case TypeText:
		text := rec.Text
		if text == "" {
			return "", false
		}
		return fmt.Sprintf(`<text x="%s" y="%s" fill="#000000" font-size="8">%s</text>`,
			fnum(rec.Attrs["x"], d), fnum(rec.Attrs["y"], d), xmlEscape(text)), false
	default:
		return "", false
	}
}

func serializeOps(ops []TransformOp, digits int) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op.Type {
		case OpMatrix:
			parts = append(parts, fmt.Sprintf("matrix(%s %s %s %s %s %s)",
				fnum(op.A, digits), fnum(op.B, digits), fnum(op.C, digits),
				fnum(op.D, digits), fnum(op.E, digits), fnum(op.F, digits)))
		case OpTranslate:
			parts = append(parts, fmt.Sprintf("translate(%s %s)", fnum(op.Tx, digits), fnum(op.Ty, digits)))
		case OpScale:
			parts = append(parts, fmt.Sprintf("scale(%s %s)", fnum(op.Sx, digits), fnum(op.Sy, digits)))
		case OpRotate:
			if op.Centered {
				parts = append(parts, fmt.Sprintf("rotate(%s %s %s)",
					fnum(op.AngleDeg, digits), fnum(op.Cx, digits), fnum(op.Cy, digits)))
			} else {
				parts = append(parts, fmt.Sprintf("rotate(%s)", fnum(op.AngleDeg, digits)))
			}
		case OpSkewX:
			parts = append(parts, fmt.Sprintf("skewX(%s)", fnum(op.AngleDeg, digits)))
		case OpSkewY:
			parts = append(parts, fmt.Sprintf("skewY(%s)", fnum(op.AngleDeg, digits)))
		}
	}
	return strings.Join(parts, " ")
}

// fnum formats a coordinate with trailing zeros trimmed and negative
// zero normalized.
func fnum(v float64, digits int) string {
	s := strconv.FormatFloat(roundTo(v, digits), 'f', -1, 64)
	if s == "-0" {
		s = "0"
	}
	return s
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// SortObjects orders records for stable output: rects, then circles by
// descending radius, then ellipses and text.
func SortObjects(doc *Doc) {
	rank := map[string]int{TypeRect: 0, TypeCircle: 1, TypeEllipse: 2, TypeText: 3}
	sort.SliceStable(doc.Objects, func(i, j int) bool {
		a, b := doc.Objects[i], doc.Objects[j]
		if rank[a.Type] != rank[b.Type] {
			return rank[a.Type] < rank[b.Type]
		}
		if a.Type == TypeCircle {
			return a.Attrs["r"] > b.Attrs["r"]
		}
		return false
	})
}
