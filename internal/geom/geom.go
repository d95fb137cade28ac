// Package geom provides the small set of planar geometry primitives shared
// by the Gerber parser, the renderer, and the SVG flattener.
//
// All coordinates are float64 millimeters unless a caller says otherwise;
// the package itself is unit-agnostic.
package geom

import "math"

// Point is a 2D point.
type Point struct {
	X float64
	Y float64
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Polyline is an open or closed sequence of points.
type Polyline struct {
	Points []Point
}

// Add appends pt unless it duplicates the current last point.
// Collapsing consecutive duplicates keeps arc linearization from
// producing zero-length segments at join points.
func (pl *Polyline) Add(pt Point) {
	n := len(pl.Points)
	if n > 0 && pl.Points[n-1] == pt {
		return
	}
	pl.Points = append(pl.Points, pt)
}

// Closed reports whether the polyline's first and last points coincide.
// A polyline with fewer than two points is not closed.
func (pl *Polyline) Closed() bool {
	n := len(pl.Points)
	return n >= 2 && pl.Points[0] == pl.Points[n-1]
}

// Reverse reverses the point order in place.
func (pl *Polyline) Reverse() {
	for i, j := 0, len(pl.Points)-1; i < j; i, j = i+1, j-1 {
		pl.Points[i], pl.Points[j] = pl.Points[j], pl.Points[i]
	}
}

// SignedArea returns the signed area of the polygon described by pts.
// Positive area means counter-clockwise winding in a Y-up coordinate
// system. A closing duplicate of the first point may be present or
// absent; both forms yield the same result.
func SignedArea(pts []Point) float64 {
	n := len(pts)
	if n >= 2 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
		n--
	}
	if n < 3 {
		return 0
	}
	var a float64
	for i := 0; i < n; i++ {
		p := pts[i]
		q := pts[(i+1)%n]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// ArcPoints linearizes a circular arc from start to end around center.
// The arc sweeps clockwise when cw is true, otherwise counter-clockwise,
// always taking the full way around rather than the short way when the
// endpoints coincide. The subdivision count is chosen so that no segment
// exceeds maxSegLen (chord length) and no step exceeds maxAngleDeg.
// The returned slice excludes the start point and includes the end point.
//
// When start and end lie at slightly different radii (common in real
// Gerber output), the mean radius is used.
func ArcPoints(start, end, center Point, cw bool, maxSegLen, maxAngleDeg float64) []Point {
	r0 := start.Dist(center)
	r1 := end.Dist(center)
	r := (r0 + r1) / 2

	a0 := math.Atan2(start.Y-center.Y, start.X-center.X)
	a1 := math.Atan2(end.Y-center.Y, end.X-center.X)
	sweep := a1 - a0
	if cw {
		for sweep >= 0 {
			sweep -= 2 * math.Pi
		}
	} else {
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
	}

	maxAngle := maxAngleDeg * math.Pi / 180
	nByAngle := max(1, int(math.Abs(sweep)/maxAngle+0.5))
	nByLen := max(1, int(math.Abs(sweep)*r/maxSegLen+0.5))
	n := max(nByAngle, nByLen)

	pts := make([]Point, 0, n)
	for k := 1; k <= n; k++ {
		t := a0 + sweep*float64(k)/float64(n)
		pts = append(pts, Point{
			X: center.X + r*math.Cos(t),
			Y: center.Y + r*math.Sin(t),
		})
	}
	return pts
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// NewBBox returns an empty bounding box ready to be extended.
func NewBBox() BBox {
	return BBox{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// Extend grows the box to include pt.
func (b *BBox) Extend(pt Point) {
	b.MinX = math.Min(b.MinX, pt.X)
	b.MinY = math.Min(b.MinY, pt.Y)
	b.MaxX = math.Max(b.MaxX, pt.X)
	b.MaxY = math.Max(b.MaxY, pt.Y)
}

// ExtendBy grows the box outward by margin on every side.
func (b *BBox) ExtendBy(margin float64) {
	b.MinX -= margin
	b.MinY -= margin
	b.MaxX += margin
	b.MaxY += margin
}

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Empty reports whether the box has never been extended.
func (b BBox) Empty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Width returns the horizontal extent, or 0 for an empty box.
func (b BBox) Width() float64 {
	if b.Empty() {
		return 0
	}
	return b.MaxX - b.MinX
}

// Height returns the vertical extent, or 0 for an empty box.
func (b BBox) Height() float64 {
	if b.Empty() {
		return 0
	}
	return b.MaxY - b.MinY
}

// Center returns the box center.
func (b BBox) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Overlaps reports whether b and o intersect.
func (b BBox) Overlaps(o BBox) bool {
	return !(b.MaxX < o.MinX || o.MaxX < b.MinX || b.MaxY < o.MinY || o.MaxY < b.MinY)
}

// Gap returns the shortest distance between b and o, or 0 when they overlap.
func (b BBox) Gap(o BBox) float64 {
	var gx, gy float64
	switch {
	case b.MaxX < o.MinX:
		gx = o.MinX - b.MaxX
	case o.MaxX < b.MinX:
		gx = b.MinX - o.MaxX
	}
	switch {
	case b.MaxY < o.MinY:
		gy = o.MinY - b.MaxY
	case o.MaxY < b.MinY:
		gy = b.MinY - o.MaxY
	}
	return math.Hypot(gx, gy)
}

// SegmentDist returns the distance from pt to the segment ab.
func SegmentDist(pt, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return pt.Dist(a)
	}
	t := ((pt.X-a.X)*dx + (pt.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return pt.Dist(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}
