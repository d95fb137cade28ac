package gerber

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// mmPerInch converts imperial coordinate values to the internal unit.
const mmPerInch = 25.4

// Format describes the FS (format specification) header of a Gerber file.
// Coordinates are fixed-point integers whose scale is given by the integer
// and decimal digit counts, with either leading or trailing zeros omitted.
type Format struct {
	// Absolute is true for absolute coordinate mode (FSLA...), false for
	// incremental (FSLI...). Incremental mode is deprecated in RS-274X;
	// parsing still records it so the header can be passed through.
	Absolute bool

	// ZeroSuppression is 'L' when leading zeros are omitted (the common
	// case) or 'T' when trailing zeros are omitted.
	ZeroSuppression byte

	// XInt, XDec, YInt, YDec are the integer/decimal digit counts for the
	// X and Y coordinate fields.
	XInt, XDec int
	YInt, YDec int
}

// DefaultFormat is used when a file carries no FS header.
// KiCad emits FSLAX46Y46 for metric boards; 2.5 is the conservative
// legacy default that older exporters assumed.
func DefaultFormat() Format {
	return Format{Absolute: true, ZeroSuppression: 'L', XInt: 2, XDec: 5, YInt: 2, YDec: 5}
}

// XTotal returns the total digit count of the X field.
func (f Format) XTotal() int { return f.XInt + f.XDec }

// YTotal returns the total digit count of the Y field.
func (f Format) YTotal() int { return f.YInt + f.YDec }

var fsDigits = regexp.MustCompile(`([XY])(\d)(\d)`)

// ParseFormat parses an FS header line such as "%FSLAX46Y46*%".
func ParseFormat(line string) (Format, error) {
	body := strings.TrimSuffix(strings.Trim(strings.TrimSpace(line), "%"), "*")
	if !strings.HasPrefix(body, "FS") {
		return Format{}, fmt.Errorf("not an FS line: %q", line)
	}
	body = body[2:]

	f := DefaultFormat()
	f.ZeroSuppression = 'L'
	if strings.Contains(body, "T") && !strings.Contains(body, "L") {
		f.ZeroSuppression = 'T'
	}
	f.Absolute = strings.Contains(body, "A")

	for _, m := range fsDigits.FindAllStringSubmatch(body, -1) {
		ival := int(m[2][0] - '0')
		dval := int(m[3][0] - '0')
		switch m[1] {
		case "X":
			f.XInt, f.XDec = ival, dval
		case "Y":
			f.YInt, f.YDec = ival, dval
		}
	}
	return f, nil
}

// String renders the format back into an FS header line.
func (f Format) String() string {
	mode := "I"
	if f.Absolute {
		mode = "A"
	}
	return fmt.Sprintf("%%FS%c%sX%d%dY%d%d*%%", f.ZeroSuppression, mode, f.XInt, f.XDec, f.YInt, f.YDec)
}

// ParseCoord decodes one coordinate token into millimeters.
// total and dec select the X or Y field layout. A nil token keeps the
// previous (modal) value, which callers express by passing prev back.
// unitMM selects the file unit; imperial values are converted.
func (f Format) ParseCoord(token string, total, dec int, unitMM bool) float64 {
	s := token
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	}

	if f.ZeroSuppression == 'L' {
		for len(s) < total {
			s = "0" + s
		}
	} else {
		for len(s) < total {
			s += "0"
		}
	}

	intPart := s
	fracPart := ""
	if dec > 0 && len(s) >= dec {
		intPart = s[:len(s)-dec]
		fracPart = s[len(s)-dec:]
	}

	var v float64
	for _, ch := range intPart {
		v = v*10 + float64(ch-'0')
	}
	var frac float64
	for _, ch := range fracPart {
		frac = frac*10 + float64(ch-'0')
	}
	if dec > 0 {
		v += frac / math.Pow10(dec)
	}
	v *= sign
	if !unitMM {
		v *= mmPerInch
	}
	return v
}

// FormatCoord encodes a millimeter value into a coordinate token using
// the field layout given by total and dec. The inverse of ParseCoord.
func (f Format) FormatCoord(vmm float64, total, dec int, unitMM bool) string {
	v := vmm
	if !unitMM {
		v = vmm / mmPerInch
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	ival := int(math.Floor(v))
	fval := int(math.Round((v - float64(ival)) * math.Pow10(dec)))
	if fval >= int(math.Pow10(dec)) {
		ival++
		fval = 0
	}

	var raw string
	if dec > 0 {
		raw = fmt.Sprintf("%0*d%0*d", total-dec, ival, dec, fval)
	} else {
		raw = fmt.Sprintf("%0*d", total, ival)
	}

	if f.ZeroSuppression == 'L' {
		raw = strings.TrimLeft(raw, "0")
		if raw == "" {
			raw = "0"
		}
	} else {
		raw = strings.TrimRight(raw, "0")
		if raw == "" {
			raw = "0"
		}
	}
	return sign + raw
}
