package svgx

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/nao1215/gerbenv/internal/geom"
)

// CascadeOptions tunes outline cascade isolation.
type CascadeOptions struct {
	// StartRank picks the k-th farthest shape from the viewport center
	// as the flood seed. Rank 0 is the farthest.
	StartRank int

	// GapThresh joins shapes into the cascade when their bounding boxes
	// overlap or sit within this many pixels.
	GapThresh float64

	// SmallCircleR strips circles at or below this radius regardless of
	// position. Larger circles always survive as pads or holes.
	SmallCircleR float64

	// EllipseTol treats an ellipse as a circle when its radii differ by
	// at most this fraction of the larger one.
	EllipseTol float64

	// DebugPath, when set, writes an overlay SVG marking the cascade
	// bounding boxes.
	DebugPath string
}

// DefaultCascadeOptions returns the thresholds tuned for rendered board
// outlines.
func DefaultCascadeOptions() CascadeOptions {
	return CascadeOptions{
		StartRank:    0,
		GapThresh:    2.0,
		SmallCircleR: 1.0,
		EllipseTol:   0.05,
	}
}

// CascadeResult summarizes one cascade isolation pass.
type CascadeResult struct {
	Kept         int     `json:"kept"`
	Removed      int     `json:"removed"`
	StartRank    int     `json:"start_rank"`
	SmallCircleR float64 `json:"small_circle_r"`
}

// cascadeItem is one drawable with its viewport-space bounds.
type cascadeItem struct {
	n        *node
	bb       geom.BBox
	isCircle bool
	radius   float64 // local units, untransformed
}

// KeepCascade reduces an SVG to its dominant shape cascade: starting
// from the k-th farthest drawable from the viewport center it floods
// across touching or near-touching bounding boxes and keeps that
// cluster, dropping unconnected geometry. Circles bypass the flood:
// small ones are stripped as drill artifacts, larger ones always
// survive.
func KeepCascade(r io.Reader, opts CascadeOptions) (string, *CascadeResult, error) {
	root, err := parseXML(r)
	if err != nil {
		return "", nil, err
	}

	vb := documentViewBox(root)
	cx := vb[0] + vb[2]/2
	cy := vb[1] + vb[3]/2

	var items []*cascadeItem
	collectCascadeItems(root, Identity(), opts, &items)

	result := &CascadeResult{StartRank: opts.StartRank, SmallCircleR: opts.SmallCircleR}
	if len(items) == 0 {
		var b strings.Builder
		if err := root.write(&b); err != nil {
			return "", nil, err
		}
		return b.String(), result, nil
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distSq(items[order[a]].bb, cx, cy) > distSq(items[order[b]].bb, cx, cy)
	})
	start := opts.StartRank
	if start >= len(order) {
		start = len(order) - 1
	}
	if start < 0 {
		start = 0
	}
	result.StartRank = start

	visited := floodCascade(items, order[start], opts.GapThresh)

	if opts.DebugPath != "" {
		if err := writeCascadeDebug(opts.DebugPath, root, items, visited); err != nil {
			return "", nil, err
		}
	}

	for i, it := range items {
		keep := visited[i]
		if it.isCircle {
			keep = it.radius > opts.SmallCircleR
		}
		if keep {
			result.Kept++
			continue
		}
		result.Removed++
		if it.n.parent != nil {
			it.n.parent.removeChild(it.n)
		}
	}
	pruneEmptyGroups(root)

	var b strings.Builder
	if err := root.write(&b); err != nil {
		return "", nil, err
	}
	return b.String(), result, nil
}

// KeepCascadeFile rewrites src into dst with only the cascade kept.
func KeepCascadeFile(src, dst string, opts CascadeOptions) (*CascadeResult, error) {
	fh, err := os.Open(src) //nolint:gosec // user-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open svg: %w", err)
	}
	defer fh.Close()

	out, result, err := KeepCascade(fh, opts)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dst, []byte(out), 0600); err != nil {
		return nil, fmt.Errorf("failed to write svg: %w", err)
	}
	return result, nil
}

// floodCascade grows the kept set from the seed over any item whose
// bounds overlap or sit within thresh of an already clustered one.
func floodCascade(items []*cascadeItem, start int, thresh float64) []bool {
	in := make([]bool, len(items))
	in[start] = true
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i, it := range items {
			if in[i] {
				continue
			}
			if items[cur].bb.Gap(it.bb) <= thresh {
				in[i] = true
				queue = append(queue, i)
			}
		}
	}
	return in
}

func distSq(bb geom.BBox, cx, cy float64) float64 {
	c := bb.Center()
	dx := c.X - cx
	dy := c.Y - cy
	return dx*dx + dy*dy
}

// collectCascadeItems walks the tree gathering drawable bounds under
// the cumulative transform.
func collectCascadeItems(n *node, parent Matrix, opts CascadeOptions, out *[]*cascadeItem) {
	switch n.name {
	case "defs", "symbol":
		return
	}
	m := parent
	if tr := n.attr("transform"); tr != "" {
		m = m.Mul(OpsMatrix(ParseTransform(tr)))
	}

	if it := drawableBounds(n, m, opts); it != nil {
		*out = append(*out, it)
	}
	for _, c := range n.children {
		collectCascadeItems(c, m, opts, out)
	}
}

func drawableBounds(n *node, m Matrix, opts CascadeOptions) *cascadeItem {
	num := func(name string) float64 { return percentOrFloat(n.attr(name), 0) }

	switch n.name {
	case "rect":
		x, y := num("x"), num("y")
		w, h := num("width"), num("height")
		return cornerItem(n, m, [][2]float64{{x, y}, {x + w, y}, {x, y + h}, {x + w, y + h}})
	case "line":
		return cornerItem(n, m, [][2]float64{{num("x1"), num("y1")}, {num("x2"), num("y2")}})
	case "polyline", "polygon":
		pts := readPoints(n.attr("points"))
		if len(pts) == 0 {
			return nil
		}
		return cornerItem(n, m, pts)
	case "path":
		segs := flattenPath(n.attr("d"), m)
		if len(segs) == 0 {
			return nil
		}
		bb := geom.NewBBox()
		for _, s := range segs {
			bb.Extend(geom.Point{X: s[0], Y: s[1]})
			bb.Extend(geom.Point{X: s[2], Y: s[3]})
		}
		return &cascadeItem{n: n, bb: bb}
	case "circle":
		cx, cy := num("cx"), num("cy")
		r := num("r")
		it := cornerItem(n, m, [][2]float64{{cx - r, cy - r}, {cx + r, cy + r}})
		it.isCircle = true
		it.radius = r
		return it
	case "ellipse":
		cx, cy := num("cx"), num("cy")
		rx, ry := num("rx"), num("ry")
		it := cornerItem(n, m, [][2]float64{{cx - rx, cy - ry}, {cx + rx, cy + ry}})
		maxR := math.Max(rx, ry)
		if maxR > 0 && math.Abs(rx-ry) <= opts.EllipseTol*maxR {
			it.isCircle = true
			it.radius = math.Min(rx, ry)
		}
		return it
	default:
		return nil
	}
}

func cornerItem(n *node, m Matrix, pts [][2]float64) *cascadeItem {
	bb := geom.NewBBox()
	for _, p := range pts {
		x, y := m.Apply(p[0], p[1])
		bb.Extend(geom.Point{X: x, Y: y})
	}
	return &cascadeItem{n: n, bb: bb}
}

// documentViewBox resolves the viewport bounds from the root viewBox,
// the root width/height, or a nested svg element, in that order.
func documentViewBox(root *node) [4]float64 {
	if vb := parseViewBox(root.attr("viewBox")); vb != nil {
		return *vb
	}
	w, wok := lengthPx(root.attr("width"))
	h, hok := lengthPx(root.attr("height"))
	if wok && hok && w > 0 && h > 0 {
		return [4]float64{0, 0, w, h}
	}
	for _, c := range root.children {
		if c.name == "svg" {
			if vb := parseViewBox(c.attr("viewBox")); vb != nil {
				return *vb
			}
		}
	}
	return [4]float64{0, 0, 1000, 1000}
}

func pruneEmptyGroups(n *node) {
	for _, c := range n.children {
		pruneEmptyGroups(c)
	}
	kept := n.children[:0]
	for _, c := range n.children {
		if c.name == "g" && len(c.children) == 0 && strings.TrimSpace(c.text) == "" {
			continue
		}
		kept = append(kept, c)
	}
	n.children = kept
}

// writeCascadeDebug writes a copy of the document with the cascade
// bounding boxes overlaid in red.
func writeCascadeDebug(path string, root *node, items []*cascadeItem, visited []bool) error {
	copyRoot := root.clone()
	overlay := &node{
		name: "g",
		attrs: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: "debug_overlay"},
			{Name: xml.Name{Local: "style"}, Value: "fill:none;stroke:#ff0000;stroke-width:0.6;stroke-opacity:1"},
		},
		parent: copyRoot,
	}
	for i, it := range items {
		if !visited[i] {
			continue
		}
		box := &node{name: "rect", parent: overlay}
		box.setAttr("x", fnum(it.bb.MinX, 4))
		box.setAttr("y", fnum(it.bb.MinY, 4))
		box.setAttr("width", fnum(it.bb.Width(), 4))
		box.setAttr("height", fnum(it.bb.Height(), 4))
		overlay.children = append(overlay.children, box)
	}
	copyRoot.children = append(copyRoot.children, overlay)

	var b strings.Builder
	if err := copyRoot.write(&b); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write debug svg: %w", err)
	}
	return nil
}
