package svgx

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// dpi is the CSS reference resolution used to convert physical length
// units to pixels.
const dpi = 96.0

const defaultStrokePx = 1.0

// FlattenOptions tunes SVG flattening.
type FlattenOptions struct {
	// ExpandUse resolves use elements through their href targets.
	ExpandUse bool

	// MinRectLen drops stroke segments shorter than this many pixels.
	MinRectLen float64

	// MinCircleR drops circles smaller than this radius in pixels.
	MinCircleR float64
}

// DefaultFlattenOptions returns the thresholds tuned for rendered
// board SVGs: sub-pixel stroke fragments and sub-0.1px artifacts drop.
func DefaultFlattenOptions() FlattenOptions {
	return FlattenOptions{ExpandUse: true, MinRectLen: 1.0, MinCircleR: 0.1}
}

// roundDigits is the wire precision of record coordinates.
const roundDigits = 4

// Flatten reduces an SVG document to primitive shape records in
// viewport pixel space.
func Flatten(r io.Reader, opts FlattenOptions) (*Doc, error) {
	root, err := parseXML(r)
	if err != nil {
		return nil, err
	}

	size := sizeInfo(root)
	f := &flattener{
		opts:       opts,
		vp:         viewportMatrix(size),
		widthRef:   refOr(size.WidthPx, 1000),
		heightRef:  refOr(size.HeightPx, 1000),
		ids:        map[string]*node{},
		seenRect:   map[[8]float64]bool{},
		seenCircle: map[[3]float64]bool{},
	}
	root.byID(f.ids)
	f.walk(root, f.vp, nil)

	return &Doc{Size: size, Objects: f.objects}, nil
}

// FlattenFile is the file-path convenience wrapper around Flatten.
func FlattenFile(path string, opts FlattenOptions) (*Doc, error) {
	fh, err := os.Open(path) //nolint:gosec // user-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open svg: %w", err)
	}
	defer fh.Close()
	return Flatten(fh, opts)
}

type flattener struct {
	opts       FlattenOptions
	vp         Matrix
	widthRef   float64
	heightRef  float64
	ids        map[string]*node
	objects    []Record
	seenRect   map[[8]float64]bool
	seenCircle map[[3]float64]bool
}

func refOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func (f *flattener) walk(n *node, parent Matrix, inherited map[string]string) {
	switch n.name {
	case "defs", "symbol":
		return
	}

	m := parent
	if tr := n.attr("transform"); tr != "" {
		m = m.Mul(OpsMatrix(ParseTransform(tr)))
	}
	eff := effectiveStyle(n, inherited)

	visible := n.attr("display") != "none" && n.attr("visibility") != "hidden"

	if visible {
		switch n.name {
		case "use":
			if f.opts.ExpandUse {
				f.expandUse(n)
				return
			}
		case "line", "polyline", "polygon", "path":
			f.emitSegments(n, m, eff)
		case "circle":
			f.emitCircle(n, m, eff)
		case "rect":
			f.emitRect(n, m)
		case "ellipse":
			f.emitEllipse(n, m)
		case "text":
			f.emitText(n, m)
		}
	}

	for _, c := range n.children {
		f.walk(c, m, eff)
	}
}

// expandUse clones the href target and processes it in a fresh context:
// the use element's x/y translate and transform apply, the target's own
// transform follows, and no ancestor style leaks in.
func (f *flattener) expandUse(n *node) {
	href := n.attr("href")
	if !strings.HasPrefix(href, "#") {
		return
	}
	target, ok := f.ids[href[1:]]
	if !ok {
		return
	}
	clone := target.clone()

	var ops []TransformOp
	tx := percentOrFloat(n.attr("x"), f.widthRef)
	ty := percentOrFloat(n.attr("y"), f.heightRef)
	if tx != 0 || ty != 0 {
		ops = append(ops, TransformOp{Type: OpTranslate, Tx: tx, Ty: ty})
	}
	ops = append(ops, ParseTransform(n.attr("transform"))...)
	ops = append(ops, ParseTransform(clone.attr("transform"))...)

	m := f.vp.Mul(OpsMatrix(ops))
	eff := effectiveStyle(clone, nil)

	// Walk the clone's children under the composed transform; the
	// clone's own transform is already folded in.
	switch clone.name {
	case "line", "polyline", "polygon", "path":
		f.emitSegments(clone, m, eff)
	case "circle":
		f.emitCircle(clone, m, eff)
	case "rect":
		f.emitRect(clone, m)
	case "ellipse":
		f.emitEllipse(clone, m)
	case "text":
		f.emitText(clone, m)
	}
	for _, c := range clone.children {
		f.walk(c, m, eff)
	}
}

// strokeForRect returns the effective stroke width in output pixels, or
// false when the element draws no stroke.
func strokeForRect(eff map[string]string, m Matrix) (float64, bool) {
	sw, ok := strokeWidthPx(eff)
	if !ok {
		return 0, false
	}
	if eff["vector-effect"] == "non-scaling-stroke" {
		return sw, true
	}
	if uni, isUni := m.UniformScale(); isUni {
		return sw * uni, true
	}
	return sw, true
}

func (f *flattener) emitSegments(n *node, m Matrix, eff map[string]string) {
	stroke, ok := strokeForRect(eff, m)
	if !ok {
		return
	}

	var segs [][4]float64
	switch n.name {
	case "line":
		x1 := percentOrFloat(n.attr("x1"), f.widthRef)
		y1 := percentOrFloat(n.attr("y1"), f.heightRef)
		x2 := percentOrFloat(n.attr("x2"), f.widthRef)
		y2 := percentOrFloat(n.attr("y2"), f.heightRef)
		ax, ay := m.Apply(x1, y1)
		bx, by := m.Apply(x2, y2)
		segs = append(segs, [4]float64{ax, ay, bx, by})
	case "polyline", "polygon":
		pts := readPoints(n.attr("points"))
		for i := 0; i+1 < len(pts); i++ {
			ax, ay := m.Apply(pts[i][0], pts[i][1])
			bx, by := m.Apply(pts[i+1][0], pts[i+1][1])
			segs = append(segs, [4]float64{ax, ay, bx, by})
		}
		if n.name == "polygon" && len(pts) >= 2 {
			last := len(pts) - 1
			ax, ay := m.Apply(pts[last][0], pts[last][1])
			bx, by := m.Apply(pts[0][0], pts[0][1])
			segs = append(segs, [4]float64{ax, ay, bx, by})
		}
	case "path":
		segs = flattenPath(n.attr("d"), m)
	}

	id := n.attr("id")
	for _, s := range segs {
		f.emitSegmentRect(s, stroke, id)
	}
}

// emitSegmentRect converts one stroked line segment to a rotated rect
// record of the stroke width, deduplicating identical output.
func (f *flattener) emitSegmentRect(s [4]float64, stroke float64, id string) {
	dx := s[2] - s[0]
	dy := s[3] - s[1]
	length := math.Hypot(dx, dy)
	if length < f.opts.MinRectLen {
		return
	}
	cx := (s[0] + s[2]) / 2
	cy := (s[1] + s[3]) / 2
	angle := math.Atan2(dy, dx) * 180 / math.Pi

	attrs := map[string]float64{
		"x":      roundTo(cx-length/2, roundDigits),
		"y":      roundTo(cy-stroke/2, roundDigits),
		"width":  roundTo(length, roundDigits),
		"height": roundTo(stroke, roundDigits),
	}
	rot := TransformOp{
		Type:     OpRotate,
		AngleDeg: roundTo(angle, roundDigits),
		Cx:       roundTo(cx, roundDigits),
		Cy:       roundTo(cy, roundDigits),
		Centered: true,
	}

	key := [8]float64{attrs["x"], attrs["y"], attrs["width"], attrs["height"], rot.AngleDeg, rot.Cx, rot.Cy, 0}
	if f.seenRect[key] {
		return
	}
	f.seenRect[key] = true

	f.objects = append(f.objects, Record{
		Kind:         KindBaseShape,
		Type:         TypeRect,
		SourceID:     id,
		Attrs:        attrs,
		TransformOps: []TransformOp{rot},
	})
}

func (f *flattener) emitCircle(n *node, m Matrix, eff map[string]string) {
	cx := percentOrFloat(n.attr("cx"), f.widthRef)
	cy := percentOrFloat(n.attr("cy"), f.heightRef)
	r := percentOrFloat(n.attr("r"), math.Min(f.widthRef, f.heightRef))

	tcx, tcy := m.Apply(cx, cy)
	tr := r
	if eff["vector-effect"] != "non-scaling-stroke" {
		if uni, ok := m.UniformScale(); ok {
			tr = r * uni
		}
	}
	if tr < f.opts.MinCircleR {
		return
	}

	key := [3]float64{roundTo(tcx, roundDigits), roundTo(tcy, roundDigits), roundTo(tr, roundDigits)}
	if f.seenCircle[key] {
		return
	}
	f.seenCircle[key] = true

	f.objects = append(f.objects, Record{
		Kind:     KindBaseShape,
		Type:     TypeCircle,
		SourceID: n.attr("id"),
		Attrs: map[string]float64{
			"cx": key[0],
			"cy": key[1],
			"r":  key[2],
		},
		TransformOps: []TransformOp{},
	})
}

// emitRect maps the rect's corners through the matrix and records the
// axis-aligned bounding box of the result.
func (f *flattener) emitRect(n *node, m Matrix) {
	x := percentOrFloat(n.attr("x"), f.widthRef)
	y := percentOrFloat(n.attr("y"), f.heightRef)
	w := percentOrFloat(n.attr("width"), f.widthRef)
	h := percentOrFloat(n.attr("height"), f.heightRef)

	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [][2]float64{{x, y}, {x + w, y}, {x, y + h}, {x + w, y + h}} {
		px, py := m.Apply(c[0], c[1])
		xs = append(xs, px)
		ys = append(ys, py)
	}
	minX, maxX := minMax(xs)
	minY, maxY := minMax(ys)

	f.objects = append(f.objects, Record{
		Kind:     KindBaseShape,
		Type:     TypeRect,
		SourceID: n.attr("id"),
		Attrs: map[string]float64{
			"x":      roundTo(minX, roundDigits),
			"y":      roundTo(minY, roundDigits),
			"width":  roundTo(maxX-minX, roundDigits),
			"height": roundTo(maxY-minY, roundDigits),
		},
		TransformOps: []TransformOp{},
	})
}

func (f *flattener) emitEllipse(n *node, m Matrix) {
	cx := percentOrFloat(n.attr("cx"), f.widthRef)
	cy := percentOrFloat(n.attr("cy"), f.heightRef)
	rx := percentOrFloat(n.attr("rx"), f.widthRef)
	ry := percentOrFloat(n.attr("ry"), f.heightRef)

	tcx, tcy := m.Apply(cx, cy)
	sx, sy := m.ScaleXY()

	f.objects = append(f.objects, Record{
		Kind:     KindBaseShape,
		Type:     TypeEllipse,
		SourceID: n.attr("id"),
		Attrs: map[string]float64{
			"cx": roundTo(tcx, roundDigits),
			"cy": roundTo(tcy, roundDigits),
			"rx": roundTo(rx*sx, roundDigits),
			"ry": roundTo(ry*sy, roundDigits),
		},
		TransformOps: []TransformOp{},
	})
}

func (f *flattener) emitText(n *node, m Matrix) {
	x := percentOrFloat(n.attr("x"), f.widthRef)
	y := percentOrFloat(n.attr("y"), f.heightRef)
	tx, ty := m.Apply(x, y)

	rec := Record{
		Kind:     KindBaseShape,
		Type:     TypeText,
		SourceID: n.attr("id"),
		Attrs: map[string]float64{
			"x": roundTo(tx, roundDigits),
			"y": roundTo(ty, roundDigits),
		},
		TransformOps: []TransformOp{},
	}
	if t := strings.TrimSpace(n.text); t != "" {
		rec.Text = t
	}
	f.objects = append(f.objects, rec)
}

// styleKeys are the inherited presentation properties flattening cares
// about.
var styleKeys = []string{"stroke-width", "vector-effect", "stroke"}

func effectiveStyle(n *node, inherited map[string]string) map[string]string {
	eff := make(map[string]string, len(inherited)+len(styleKeys))
	for k, v := range inherited {
		eff[k] = v
	}
	inline := parseStyleAttr(n.attr("style"))
	for _, k := range styleKeys {
		if v, ok := inline[k]; ok {
			eff[k] = v
		}
	}
	for _, k := range styleKeys {
		if v := n.attr(k); v != "" {
			eff[k] = v
		}
	}
	return eff
}

func parseStyleAttr(s string) map[string]string {
	out := map[string]string{}
	for _, kv := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(kv, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// strokeWidthPx resolves the effective stroke width: an explicit
// stroke-width wins, otherwise a present stroke paint implies the SVG
// default of 1px.
func strokeWidthPx(eff map[string]string) (float64, bool) {
	if v, ok := eff["stroke-width"]; ok {
		if px, ok := lengthPx(v); ok {
			return px, true
		}
	}
	if paint, ok := eff["stroke"]; ok && !strings.EqualFold(paint, "none") {
		return defaultStrokePx, true
	}
	return 0, false
}

// lengthPx converts an SVG length to pixels at 96 dpi. Percentages and
// unknown units report false.
func lengthPx(val string) (float64, bool) {
	s := strings.TrimSpace(val)
	if s == "" || strings.HasSuffix(s, "%") {
		return 0, false
	}
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c >= '0' && c <= '9') || c == '.' || c == '+' || c == '-' {
			break
		}
		i--
	}
	num, unit := s[:i], strings.ToLower(strings.TrimSpace(s[i:]))
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch unit {
	case "", "px":
		return v, true
	case "in":
		return v * dpi, true
	case "cm":
		return v * dpi / 2.54, true
	case "mm":
		return v * dpi / 25.4, true
	case "pt":
		return v * dpi / 72, true
	case "pc":
		return v * dpi / 6, true
	default:
		return 0, false
	}
}

// percentOrFloat resolves a coordinate that may be a percentage of ref.
// Unparseable values resolve to 0.
func percentOrFloat(val string, ref float64) float64 {
	s := strings.TrimSpace(val)
	if s == "" {
		return 0
	}
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0
		}
		return v / 100 * ref
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func readPoints(s string) [][2]float64 {
	vals := splitFloats(s)
	pts := make([][2]float64, 0, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		pts = append(pts, [2]float64{vals[i], vals[i+1]})
	}
	return pts
}

func minMax(vs []float64) (float64, float64) {
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// sizeInfo reads the viewport size, falling back to the viewBox when
// width or height is missing or unitless-invalid.
func sizeInfo(root *node) Size {
	size := Size{
		WidthRaw:  root.attr("width"),
		HeightRaw: root.attr("height"),
	}
	if vb := parseViewBox(root.attr("viewBox")); vb != nil {
		size.ViewBox = vb
	}
	if w, ok := lengthPx(size.WidthRaw); ok {
		size.WidthPx = w
	} else if size.ViewBox != nil {
		size.WidthPx = size.ViewBox[2]
	}
	if h, ok := lengthPx(size.HeightRaw); ok {
		size.HeightPx = h
	} else if size.ViewBox != nil {
		size.HeightPx = size.ViewBox[3]
	}
	return size
}

func parseViewBox(s string) *[4]float64 {
	vals := splitFloats(s)
	if len(vals) != 4 {
		return nil
	}
	return &[4]float64{vals[0], vals[1], vals[2], vals[3]}
}

// viewportMatrix maps viewBox coordinates onto the pixel viewport.
func viewportMatrix(size Size) Matrix {
	vb := size.ViewBox
	if vb == nil || size.WidthPx <= 0 || size.HeightPx <= 0 {
		return Identity()
	}
	sx, sy := 1.0, 1.0
	if vb[2] != 0 {
		sx = size.WidthPx / vb[2]
	}
	if vb[3] != 0 {
		sy = size.HeightPx / vb[3]
	}
	return Matrix{sx, 0, 0, sy, -vb[0] * sx, -vb[1] * sy}
}
