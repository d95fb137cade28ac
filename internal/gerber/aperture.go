package gerber

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ApertureShape identifies the template of a standard aperture.
type ApertureShape byte

// Standard aperture templates defined by RS-274X.
const (
	ShapeCircle    ApertureShape = 'C'
	ShapeRectangle ApertureShape = 'R'
	ShapeObround   ApertureShape = 'O'
	ShapePolygon   ApertureShape = 'P'
)

// Aperture is a tool definition from an %ADD header line.
type Aperture struct {
	// Code is the D-code selecting this aperture, e.g. "D10".
	Code string

	// Shape is the standard template letter. Macro apertures keep the
	// raw template name in Macro and leave Shape zero.
	Shape ApertureShape

	// Macro holds the template name for macro apertures (anything that
	// is not a single standard letter).
	Macro string

	// Params are the comma-separated modifiers in file units converted
	// to millimeters: C has diameter[,hole]; R and O have x,y[,hole];
	// P has outer diameter, vertices[,rotation[,hole]].
	Params []float64
}

// Diameter returns the nominal tool width in millimeters.
// For circles this is the diameter; for rectangles and obrounds the
// smaller side; zero when the aperture has no usable size (macros).
func (a Aperture) Diameter() float64 {
	switch a.Shape {
	case ShapeCircle, ShapePolygon:
		if len(a.Params) > 0 {
			return a.Params[0]
		}
	case ShapeRectangle, ShapeObround:
		if len(a.Params) >= 2 {
			return min(a.Params[0], a.Params[1])
		}
		if len(a.Params) == 1 {
			return a.Params[0]
		}
	}
	return 0
}

var apertureRe = regexp.MustCompile(`^%ADD(\d+)([A-Za-z_.$][A-Za-z0-9_.$]*)(?:,([^*]*))?\*%$`)

// ParseAperture parses an %ADD header line such as "%ADD10C,0.100*%".
// unitMM selects the file unit; imperial parameters are converted to
// millimeters.
func ParseAperture(line string, unitMM bool) (Aperture, error) {
	m := apertureRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Aperture{}, fmt.Errorf("not an aperture definition: %q", line)
	}

	a := Aperture{Code: "D" + m[1]}
	tmpl := m[2]
	if len(tmpl) == 1 {
		switch ApertureShape(tmpl[0]) {
		case ShapeCircle, ShapeRectangle, ShapeObround, ShapePolygon:
			a.Shape = ApertureShape(tmpl[0])
		default:
			a.Macro = tmpl
		}
	} else {
		a.Macro = tmpl
	}

	if m[3] != "" {
		for _, tok := range strings.Split(m[3], "X") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return Aperture{}, fmt.Errorf("aperture %s: bad modifier %q: %w", a.Code, tok, err)
			}
			if !unitMM {
				v *= mmPerInch
			}
			a.Params = append(a.Params, v)
		}
	}
	return a, nil
}
