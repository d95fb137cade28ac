package svgx

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Shape record types.
const (
	TypeRect    = "rect"
	TypeCircle  = "circle"
	TypeEllipse = "ellipse"
	TypeText    = "text"
)

// KindBaseShape marks flattened primitive records.
const KindBaseShape = "base_shape"

// Record is one flattened primitive shape in viewport pixel space.
type Record struct {
	Kind         string             `json:"kind"`
	Type         string             `json:"type"`
	SourceID     string             `json:"source_id,omitempty"`
	Attrs        map[string]float64 `json:"attrs"`
	Text         string             `json:"text,omitempty"`
	TransformOps []TransformOp      `json:"transform_ops"`
}

// Size describes the source SVG's viewport.
type Size struct {
	WidthPx   float64    `json:"width_px"`
	HeightPx  float64    `json:"height_px"`
	WidthRaw  string     `json:"width_raw,omitempty"`
	HeightRaw string     `json:"height_raw,omitempty"`
	ViewBox   *[4]float64 `json:"viewBox,omitempty"`
}

// Doc is a flattened SVG document.
type Doc struct {
	Size    Size     `json:"svg_size"`
	Objects []Record `json:"objects"`
}

// jsonOp is the wire form of TransformOp; pointers distinguish absent
// fields from zero values.
type jsonOp struct {
	Type     string   `json:"type"`
	A        *float64 `json:"a,omitempty"`
	B        *float64 `json:"b,omitempty"`
	C        *float64 `json:"c,omitempty"`
	D        *float64 `json:"d,omitempty"`
	E        *float64 `json:"e,omitempty"`
	F        *float64 `json:"f,omitempty"`
	Tx       *float64 `json:"tx,omitempty"`
	Ty       *float64 `json:"ty,omitempty"`
	Sx       *float64 `json:"sx,omitempty"`
	Sy       *float64 `json:"sy,omitempty"`
	AngleDeg *float64 `json:"angle_deg,omitempty"`
	Cx       *float64 `json:"cx,omitempty"`
	Cy       *float64 `json:"cy,omitempty"`
}

func ptr(v float64) *float64 { return &v }

// MarshalJSON emits only the fields relevant to the op type.
func (op TransformOp) MarshalJSON() ([]byte, error) {
	j := jsonOp{Type: op.Type}
	switch op.Type {
	case OpMatrix:
		j.A, j.B, j.C = ptr(op.A), ptr(op.B), ptr(op.C)
		j.D, j.E, j.F = ptr(op.D), ptr(op.E), ptr(op.F)
	case OpTranslate:
		j.Tx, j.Ty = ptr(op.Tx), ptr(op.Ty)
	case OpScale:
		j.Sx, j.Sy = ptr(op.Sx), ptr(op.Sy)
	case OpRotate:
		j.AngleDeg = ptr(op.AngleDeg)
		if op.Centered {
			j.Cx, j.Cy = ptr(op.Cx), ptr(op.Cy)
		}
	case OpSkewX, OpSkewY:
		j.AngleDeg = ptr(op.AngleDeg)
	}
	return json.Marshal(j)
}

// UnmarshalJSON accepts the wire form, defaulting missing fields the
// way the SVG transform grammar does.
func (op *TransformOp) UnmarshalJSON(data []byte) error {
	var j jsonOp
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*op = TransformOp{Type: j.Type}
	get := func(p *float64, def float64) float64 {
		if p == nil {
			return def
		}
		return *p
	}
	switch j.Type {
	case OpMatrix:
		op.A = get(j.A, 1)
		op.B = get(j.B, 0)
		op.C = get(j.C, 0)
		op.D = get(j.D, 1)
		op.E = get(j.E, 0)
		op.F = get(j.F, 0)
	case OpTranslate:
		op.Tx = get(j.Tx, 0)
		op.Ty = get(j.Ty, 0)
	case OpScale:
		op.Sx = get(j.Sx, 1)
		op.Sy = get(j.Sy, op.Sx)
	case OpRotate:
		op.AngleDeg = get(j.AngleDeg, 0)
		if j.Cx != nil && j.Cy != nil {
			op.Cx, op.Cy = *j.Cx, *j.Cy
			op.Centered = true
		}
	case OpSkewX, OpSkewY:
		op.AngleDeg = get(j.AngleDeg, 0)
	}
	return nil
}

// LoadDoc reads a flattened shape document from a JSON file.
func LoadDoc(path string) (*Doc, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read shape json: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse shape json: %w", err)
	}
	return &d, nil
}

// Save writes d as indented JSON.
func (d *Doc) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode shape json: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write shape json: %w", err)
	}
	return nil
}

// roundTo rounds v to n decimal digits, the precision shape records
// carry on the wire.
func roundTo(v float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(v*p) / p
}
