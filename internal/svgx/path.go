package svgx

import (
	"math"
	"regexp"
	"strconv"
)

// Flattening limits: curves subdivide until the chord deviates less
// than flattenMaxErrPx from the curve, or the recursion depth runs out.
const (
	flattenMaxErrPx = 0.25
	flattenMaxDepth = 10
)

// segment is a parametric path piece over t in [0,1].
type segment interface {
	point(t float64) (float64, float64)
	straight() bool
}

type lineSeg struct{ x1, y1, x2, y2 float64 }

func (s lineSeg) point(t float64) (float64, float64) {
	return s.x1 + (s.x2-s.x1)*t, s.y1 + (s.y2-s.y1)*t
}
func (s lineSeg) straight() bool { return true }

type cubicSeg struct{ x0, y0, x1, y1, x2, y2, x3, y3 float64 }

func (s cubicSeg) point(t float64) (float64, float64) {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	return a*s.x0 + b*s.x1 + c*s.x2 + d*s.x3,
		a*s.y0 + b*s.y1 + c*s.y2 + d*s.y3
}
func (s cubicSeg) straight() bool { return false }

type quadSeg struct{ x0, y0, x1, y1, x2, y2 float64 }

func (s quadSeg) point(t float64) (float64, float64) {
	u := 1 - t
	a := u * u
	b := 2 * u * t
	c := t * t
	return a*s.x0 + b*s.x1 + c*s.x2, a*s.y0 + b*s.y1 + c*s.y2
}
func (s quadSeg) straight() bool { return false }

// arcSeg is an elliptical arc in center parameterization.
type arcSeg struct {
	cx, cy, rx, ry float64
	phi            float64 // x-axis rotation in radians
	theta1, dTheta float64
}

func (s arcSeg) point(t float64) (float64, float64) {
	theta := s.theta1 + s.dTheta*t
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	cosP, sinP := math.Cos(s.phi), math.Sin(s.phi)
	x := s.cx + s.rx*cosT*cosP - s.ry*sinT*sinP
	y := s.cy + s.rx*cosT*sinP + s.ry*sinT*cosP
	return x, y
}
func (s arcSeg) straight() bool { return false }

// arcFromEndpoints converts the SVG endpoint arc form to center form
// (W3C SVG appendix F.6.5). Degenerate radii collapse to a line.
func arcFromEndpoints(x1, y1, rx, ry, rotDeg float64, largeArc, sweep bool, x2, y2 float64) segment {
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 || (x1 == x2 && y1 == y2) {
		return lineSeg{x1, y1, x2, y2}
	}
	phi := rotDeg * math.Pi / 180
	cosP, sinP := math.Cos(phi), math.Sin(phi)

	dx2 := (x1 - x2) / 2
	dy2 := (y1 - y2) / 2
	x1p := cosP*dx2 + sinP*dy2
	y1p := -sinP*dx2 + cosP*dy2

	// Scale radii up when they cannot span the endpoints.
	lambda := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry)
	if lambda > 1 {
		s := math.Sqrt(lambda)
		rx *= s
		ry *= s
	}

	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	co := 0.0
	if den != 0 && num > 0 {
		co = math.Sqrt(num / den)
	}
	if largeArc == sweep {
		co = -co
	}
	cxp := co * rx * y1p / ry
	cyp := -co * ry * x1p / rx

	cx := cosP*cxp - sinP*cyp + (x1+x2)/2
	cy := sinP*cxp + cosP*cyp + (y1+y2)/2

	angle := func(ux, uy, vx, vy float64) float64 {
		dot := ux*vx + uy*vy
		n := math.Hypot(ux, uy) * math.Hypot(vx, vy)
		if n == 0 {
			return 0
		}
		a := math.Acos(math.Max(-1, math.Min(1, dot/n)))
		if ux*vy-uy*vx < 0 {
			return -a
		}
		return a
	}
	theta1 := angle(1, 0, (x1p-cxp)/rx, (y1p-cyp)/ry)
	dTheta := angle((x1p-cxp)/rx, (y1p-cyp)/ry, (-x1p-cxp)/rx, (-y1p-cyp)/ry)
	if !sweep && dTheta > 0 {
		dTheta -= 2 * math.Pi
	}
	if sweep && dTheta < 0 {
		dTheta += 2 * math.Pi
	}
	return arcSeg{cx: cx, cy: cy, rx: rx, ry: ry, phi: phi, theta1: theta1, dTheta: dTheta}
}

var pathCmdRe = regexp.MustCompile(`([MmLlHhVvCcSsQqTtAaZz])|([+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)

// parsePathSegments parses an SVG path d attribute into parametric
// segments. Unknown or malformed trailing data is dropped.
func parsePathSegments(d string) []segment {
	matches := pathCmdRe.FindAllStringSubmatch(d, -1)
	var segs []segment

	var cx, cy float64       // current point
	var sx, sy float64       // subpath start
	var pcx, pcy float64     // previous control point
	var prevCmd byte

	i := 0
	next := func() (float64, bool) {
		for i < len(matches) {
			if matches[i][2] != "" {
				v, err := strconv.ParseFloat(matches[i][2], 64)
				i++
				if err != nil {
					return 0, false
				}
				return v, true
			}
			return 0, false
		}
		return 0, false
	}

	var cmd byte
	for i < len(matches) {
		if matches[i][1] != "" {
			cmd = matches[i][1][0]
			i++
		} else if cmd == 0 {
			break
		} else {
			// Implicit command repetition; M repeats as L.
			switch cmd {
			case 'M':
				cmd = 'L'
			case 'm':
				cmd = 'l'
			}
		}

		rel := cmd >= 'a'
		abs := func(x, y float64) (float64, float64) {
			if rel {
				return cx + x, cy + y
			}
			return x, y
		}

		switch cmd {
		case 'M', 'm':
			x, ok1 := next()
			y, ok2 := next()
			if !ok1 || !ok2 {
				return segs
			}
			cx, cy = abs(x, y)
			sx, sy = cx, cy
		case 'L', 'l':
			x, ok1 := next()
			y, ok2 := next()
			if !ok1 || !ok2 {
				return segs
			}
			nx, ny := abs(x, y)
			segs = append(segs, lineSeg{cx, cy, nx, ny})
			cx, cy = nx, ny
		case 'H', 'h':
			x, ok := next()
			if !ok {
				return segs
			}
			nx := x
			if rel {
				nx = cx + x
			}
			segs = append(segs, lineSeg{cx, cy, nx, cy})
			cx = nx
		case 'V', 'v':
			y, ok := next()
			if !ok {
				return segs
			}
			ny := y
			if rel {
				ny = cy + y
			}
			segs = append(segs, lineSeg{cx, cy, cx, ny})
			cy = ny
		case 'C', 'c':
			x1, ok1 := next()
			y1, ok2 := next()
			x2, ok3 := next()
			y2, ok4 := next()
			x, ok5 := next()
			y, ok6 := next()
			if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
				return segs
			}
			ax1, ay1 := abs(x1, y1)
			ax2, ay2 := abs(x2, y2)
			nx, ny := abs(x, y)
			segs = append(segs, cubicSeg{cx, cy, ax1, ay1, ax2, ay2, nx, ny})
			pcx, pcy = ax2, ay2
			cx, cy = nx, ny
		case 'S', 's':
			x2, ok1 := next()
			y2, ok2 := next()
			x, ok3 := next()
			y, ok4 := next()
			if !(ok1 && ok2 && ok3 && ok4) {
				return segs
			}
			ax1, ay1 := cx, cy
			if prevCmd == 'C' || prevCmd == 'c' || prevCmd == 'S' || prevCmd == 's' {
				ax1, ay1 = 2*cx-pcx, 2*cy-pcy
			}
			ax2, ay2 := abs(x2, y2)
			nx, ny := abs(x, y)
			segs = append(segs, cubicSeg{cx, cy, ax1, ay1, ax2, ay2, nx, ny})
			pcx, pcy = ax2, ay2
			cx, cy = nx, ny
		case 'Q', 'q':
			x1, ok1 := next()
			y1, ok2 := next()
			x, ok3 := next()
			y, ok4 := next()
			if !(ok1 && ok2 && ok3 && ok4) {
				return segs
			}
			ax1, ay1 := abs(x1, y1)
			nx, ny := abs(x, y)
			segs = append(segs, quadSeg{cx, cy, ax1, ay1, nx, ny})
			pcx, pcy = ax1, ay1
			cx, cy = nx, ny
		case 'T', 't':
			x, ok1 := next()
			y, ok2 := next()
			if !(ok1 && ok2) {
				return segs
			}
			ax1, ay1 := cx, cy
			if prevCmd == 'Q' || prevCmd == 'q' || prevCmd == 'T' || prevCmd == 't' {
				ax1, ay1 = 2*cx-pcx, 2*cy-pcy
			}
			nx, ny := abs(x, y)
			segs = append(segs, quadSeg{cx, cy, ax1, ay1, nx, ny})
			pcx, pcy = ax1, ay1
			cx, cy = nx, ny
		case 'A', 'a':
			rx, ok1 := next()
			ry, ok2 := next()
			rot, ok3 := next()
			laf, ok4 := next()
			swf, ok5 := next()
			x, ok6 := next()
			y, ok7 := next()
			if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
				return segs
			}
			nx, ny := abs(x, y)
			segs = append(segs, arcFromEndpoints(cx, cy, rx, ry, rot, laf != 0, swf != 0, nx, ny))
			cx, cy = nx, ny
		case 'Z', 'z':
			if cx != sx || cy != sy {
				segs = append(segs, lineSeg{cx, cy, sx, sy})
			}
			cx, cy = sx, sy
		}
		prevCmd = cmd
	}
	return segs
}

// flattenSegment recursively subdivides seg between t0 and t1, emitting
// transformed line segments into out. Deviation is measured before the
// transform, which matches the fixed pixel tolerance of review output.
func flattenSegment(seg segment, m Matrix, t0, t1 float64, depth int, out *[][4]float64) {
	x0, y0 := seg.point(t0)
	x1, y1 := seg.point(t1)
	if !seg.straight() && depth < flattenMaxDepth {
		xm, ym := seg.point((t0 + t1) / 2)
		dx := x1 - x0
		dy := y1 - y0
		den := math.Hypot(dx, dy)
		if den == 0 {
			den = 1
		}
		dev := math.Abs(dy*xm-dx*ym+x1*y0-y1*x0) / den
		if dev > flattenMaxErrPx {
			tm := (t0 + t1) / 2
			flattenSegment(seg, m, t0, tm, depth+1, out)
			flattenSegment(seg, m, tm, t1, depth+1, out)
			return
		}
	}
	ax, ay := m.Apply(x0, y0)
	bx, by := m.Apply(x1, y1)
	*out = append(*out, [4]float64{ax, ay, bx, by})
}

// flattenPath flattens a path d attribute into transformed line
// segments (x1, y1, x2, y2).
func flattenPath(d string, m Matrix) [][4]float64 {
	var out [][4]float64
	for _, seg := range parsePathSegments(d) {
		flattenSegment(seg, m, 0, 1, 0, &out)
	}
	return out
}
