package gerber

import (
	"math"
	"strings"
	"testing"
)

const sampleLayer = `%FSLAX46Y46*%
%MOMM*%
%ADD10C,0.100000*%
%ADD11R,1.500000X0.500000*%
G04 sample layer*
D10*
X0Y0D02*
X10000000Y0D01*
X10000000Y10000000D01*
D11*
X5000000Y5000000D03*
G36*
X0Y0D02*
X2000000Y0D01*
X2000000Y2000000D01*
X0Y2000000D01*
X0Y0D01*
G37*
M02*
`

// TestParse tests parsing of a representative KiCad-style layer.
func TestParse(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader(sampleLayer))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if !doc.UnitMM {
		t.Error("expected millimeter unit")
	}
	if doc.Format.XDec != 6 {
		t.Errorf("expected 6 decimal digits, got %d", doc.Format.XDec)
	}

	if len(doc.Strokes) != 1 {
		t.Fatalf("expected 1 stroke, got %d", len(doc.Strokes))
	}
	s := doc.Strokes[0]
	if len(s.Points) != 3 {
		t.Fatalf("expected 3 stroke points, got %d", len(s.Points))
	}
	if s.Aperture.Code != "D10" {
		t.Errorf("expected stroke aperture D10, got %s", s.Aperture.Code)
	}
	if got := s.Points[2]; math.Abs(got.X-10) > 1e-9 || math.Abs(got.Y-10) > 1e-9 {
		t.Errorf("unexpected stroke endpoint: %+v", got)
	}

	if len(doc.Flashes) != 1 {
		t.Fatalf("expected 1 flash, got %d", len(doc.Flashes))
	}
	fl := doc.Flashes[0]
	if fl.Aperture.Code != "D11" || fl.Aperture.Shape != ShapeRectangle {
		t.Errorf("unexpected flash aperture: %+v", fl.Aperture)
	}
	if math.Abs(fl.At.X-5) > 1e-9 || math.Abs(fl.At.Y-5) > 1e-9 {
		t.Errorf("unexpected flash position: %+v", fl.At)
	}

	if len(doc.Regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(doc.Regions))
	}
	if got := len(doc.Regions[0].Contours); got != 1 {
		t.Fatalf("expected 1 contour, got %d", got)
	}
	if got := len(doc.Regions[0].Contours[0].Points); got != 5 {
		t.Errorf("expected 5 contour points, got %d", got)
	}
}

// TestParseArc tests arc linearization during parsing.
func TestParseArc(t *testing.T) {
	t.Parallel()

	// Quarter circle from (10,0) to (0,10) around the origin,
	// counter-clockwise.
	input := `%FSLAX46Y46*%
%MOMM*%
%ADD10C,0.100000*%
D10*
G75*
X10000000Y0D02*
G03X0Y10000000I-10000000J0D01*
M02*
`
	doc, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(doc.Strokes) != 1 {
		t.Fatalf("expected 1 stroke, got %d", len(doc.Strokes))
	}

	pts := doc.Strokes[0].Points
	if len(pts) < 10 {
		t.Fatalf("expected linearized arc with many points, got %d", len(pts))
	}

	// Every point stays on the radius and the endpoint lands exactly.
	for _, p := range pts {
		r := math.Hypot(p.X, p.Y)
		if math.Abs(r-10) > 1e-6 {
			t.Errorf("arc point %+v off radius: %v", p, r)
		}
	}
	last := pts[len(pts)-1]
	if math.Abs(last.X) > 1e-6 || math.Abs(last.Y-10) > 1e-6 {
		t.Errorf("arc endpoint = %+v, want (0,10)", last)
	}
}

// TestParseModalCoordinates tests that omitted X or Y tokens reuse the
// previous value.
func TestParseModalCoordinates(t *testing.T) {
	t.Parallel()

	input := `%FSLAX46Y46*%
%MOMM*%
%ADD10C,0.100000*%
D10*
X1000000Y2000000D02*
X3000000D01*
Y4000000D01*
M02*
`
	doc, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(doc.Strokes) != 1 {
		t.Fatalf("expected 1 stroke, got %d", len(doc.Strokes))
	}
	pts := doc.Strokes[0].Points
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	if math.Abs(pts[1].Y-2) > 1e-9 {
		t.Errorf("modal Y not carried: %+v", pts[1])
	}
	if math.Abs(pts[2].X-3) > 1e-9 {
		t.Errorf("modal X not carried: %+v", pts[2])
	}
}

// TestDocumentBounds tests bounding box computation with aperture margin.
func TestDocumentBounds(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader(sampleLayer))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	bb := doc.Bounds()
	if bb.Empty() {
		t.Fatal("expected non-empty bounds")
	}
	// The widest aperture is the 1.5x0.5 rectangle; half its smaller
	// side (0.25) pads the stroke extent.
	if bb.MaxX < 10 {
		t.Errorf("bounds too small: %+v", bb)
	}
}

// TestParseAperture tests %ADD line parsing.
func TestParseAperture(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		line     string
		wantCode string
		wantDia  float64
	}{
		{name: "circle", line: "%ADD10C,0.100000*%", wantCode: "D10", wantDia: 0.1},
		{name: "rectangle uses smaller side", line: "%ADD11R,1.5X0.5*%", wantCode: "D11", wantDia: 0.5},
		{name: "obround", line: "%ADD12O,2.0X1.0*%", wantCode: "D12", wantDia: 1.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ap, err := ParseAperture(tt.line, true)
			if err != nil {
				t.Fatalf("ParseAperture(%q) returned error: %v", tt.line, err)
			}
			if ap.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", ap.Code, tt.wantCode)
			}
			if math.Abs(ap.Diameter()-tt.wantDia) > 1e-9 {
				t.Errorf("diameter = %v, want %v", ap.Diameter(), tt.wantDia)
			}
		})
	}
}
