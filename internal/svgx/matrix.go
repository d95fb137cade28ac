package svgx

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Matrix is a 2D affine transform (a b c d e f), column-major as in the
// SVG transform attribute: x' = a*x + c*y + e, y' = b*x + d*y + f.
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Mul returns m * n, applying n first.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// UniformScale returns the scale factor when m scales both axes
// equally, and false otherwise.
func (m Matrix) UniformScale() (float64, bool) {
	sx := math.Hypot(m[0], m[1])
	sy := math.Hypot(m[2], m[3])
	if math.Abs(sx-sy) < 1e-9 {
		return sx, true
	}
	return 0, false
}

// ScaleXY returns the per-axis scale magnitudes of m.
func (m Matrix) ScaleXY() (float64, float64) {
	return math.Hypot(m[0], m[1]), math.Hypot(m[2], m[3])
}

// Transform op types as they appear in the SVG transform attribute and
// in record JSON.
const (
	OpMatrix    = "matrix"
	OpTranslate = "translate"
	OpScale     = "scale"
	OpRotate    = "rotate"
	OpSkewX     = "skewX"
	OpSkewY     = "skewY"
)

// TransformOp is one step of a transform list. Only the fields relevant
// to Type are meaningful.
type TransformOp struct {
	Type string

	// matrix
	A, B, C, D, E, F float64

	// translate
	Tx, Ty float64

	// scale
	Sx, Sy float64

	// rotate and skews; Centered marks the three-argument rotate form.
	AngleDeg float64
	Cx, Cy   float64
	Centered bool
}

// Matrix returns the affine transform of op.
func (op TransformOp) Matrix() Matrix {
	switch op.Type {
	case OpMatrix:
		return Matrix{op.A, op.B, op.C, op.D, op.E, op.F}
	case OpTranslate:
		return Matrix{1, 0, 0, 1, op.Tx, op.Ty}
	case OpScale:
		return Matrix{op.Sx, 0, 0, op.Sy, 0, 0}
	case OpRotate:
		rad := op.AngleDeg * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)
		rot := Matrix{cos, sin, -sin, cos, 0, 0}
		if !op.Centered {
			return rot
		}
		to := Matrix{1, 0, 0, 1, op.Cx, op.Cy}
		back := Matrix{1, 0, 0, 1, -op.Cx, -op.Cy}
		return to.Mul(rot).Mul(back)
	case OpSkewX:
		return Matrix{1, 0, math.Tan(op.AngleDeg * math.Pi / 180), 1, 0, 0}
	case OpSkewY:
		return Matrix{1, math.Tan(op.AngleDeg * math.Pi / 180), 0, 1, 0, 0}
	default:
		return Identity()
	}
}

// OpsMatrix folds a transform list into a single matrix, applying ops
// left to right.
func OpsMatrix(ops []TransformOp) Matrix {
	m := Identity()
	for _, op := range ops {
		m = m.Mul(op.Matrix())
	}
	return m
}

var transformRe = regexp.MustCompile(`(matrix|translate|scale|rotate|skewX|skewY)\s*\(([^)]*)\)`)

// ParseTransform parses an SVG transform attribute value. Malformed
// entries are skipped, matching browser behavior.
func ParseTransform(s string) []TransformOp {
	var ops []TransformOp
	for _, m := range transformRe.FindAllStringSubmatch(s, -1) {
		vals := splitFloats(m[2])
		switch m[1] {
		case OpMatrix:
			if len(vals) >= 6 {
				ops = append(ops, TransformOp{
					Type: OpMatrix,
					A:    vals[0], B: vals[1], C: vals[2],
					D: vals[3], E: vals[4], F: vals[5],
				})
			}
		case OpTranslate:
			op := TransformOp{Type: OpTranslate}
			if len(vals) >= 1 {
				op.Tx = vals[0]
			}
			if len(vals) >= 2 {
				op.Ty = vals[1]
			}
			ops = append(ops, op)
		case OpScale:
			op := TransformOp{Type: OpScale, Sx: 1, Sy: 1}
			if len(vals) >= 1 {
				op.Sx = vals[0]
				op.Sy = vals[0]
			}
			if len(vals) >= 2 {
				op.Sy = vals[1]
			}
			ops = append(ops, op)
		case OpRotate:
			op := TransformOp{Type: OpRotate}
			if len(vals) >= 1 {
				op.AngleDeg = vals[0]
			}
			if len(vals) >= 3 {
				op.Cx, op.Cy = vals[1], vals[2]
				op.Centered = true
			}
			ops = append(ops, op)
		case OpSkewX, OpSkewY:
			op := TransformOp{Type: m[1]}
			if len(vals) >= 1 {
				op.AngleDeg = vals[0]
			}
			ops = append(ops, op)
		}
	}
	return ops
}

func splitFloats(s string) []float64 {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		vals = append(vals, v)
	}
	return vals
}
