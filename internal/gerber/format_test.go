package gerber

import (
	"math"
	"testing"
)

// TestParseFormat tests FS header parsing.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want Format
	}{
		{
			name: "kicad metric format",
			line: "%FSLAX46Y46*%",
			want: Format{Absolute: true, ZeroSuppression: 'L', XInt: 4, XDec: 6, YInt: 4, YDec: 6},
		},
		{
			name: "legacy 2.5 format",
			line: "%FSLAX25Y25*%",
			want: Format{Absolute: true, ZeroSuppression: 'L', XInt: 2, XDec: 5, YInt: 2, YDec: 5},
		},
		{
			name: "trailing zero suppression",
			line: "%FSTAX24Y24*%",
			want: Format{Absolute: true, ZeroSuppression: 'T', XInt: 2, XDec: 4, YInt: 2, YDec: 4},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tt.line)
			if err != nil {
				t.Fatalf("ParseFormat(%q) returned error: %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}

	t.Run("rejects non-FS line", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseFormat("%MOMM*%"); err == nil {
			t.Error("expected error for non-FS line")
		}
	})
}

// TestFormatCoordRoundTrip tests that coordinate encoding inverts decoding.
func TestFormatCoordRoundTrip(t *testing.T) {
	t.Parallel()

	f := Format{Absolute: true, ZeroSuppression: 'L', XInt: 4, XDec: 6, YInt: 4, YDec: 6}

	values := []float64{0, 1.5, -1.5, 10.123456, -0.000001, 99.9}
	for _, v := range values {
		tok := f.FormatCoord(v, f.XTotal(), f.XDec, true)
		got := f.ParseCoord(tok, f.XTotal(), f.XDec, true)
		if math.Abs(got-v) > 1e-6 {
			t.Errorf("round trip of %v via %q = %v", v, tok, got)
		}
	}
}

// TestParseCoord tests decoding of raw coordinate tokens.
func TestParseCoord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format Format
		token  string
		unitMM bool
		want   float64
	}{
		{
			name:   "leading zeros omitted",
			format: Format{ZeroSuppression: 'L', XInt: 4, XDec: 6},
			token:  "10000000",
			unitMM: true,
			want:   10.0,
		},
		{
			name:   "negative value",
			format: Format{ZeroSuppression: 'L', XInt: 4, XDec: 6},
			token:  "-500000",
			unitMM: true,
			want:   -0.5,
		},
		{
			name:   "trailing zeros omitted",
			format: Format{ZeroSuppression: 'T', XInt: 2, XDec: 4},
			token:  "15",
			unitMM: true,
			want:   15.0,
		},
		{
			name:   "inch input converts to mm",
			format: Format{ZeroSuppression: 'L', XInt: 2, XDec: 4},
			token:  "10000",
			unitMM: false,
			want:   25.4,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.format.ParseCoord(tt.token, tt.format.XTotal(), tt.format.XDec, tt.unitMM)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseCoord(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

// TestFormatString tests FS header regeneration.
func TestFormatString(t *testing.T) {
	t.Parallel()

	f := Format{Absolute: true, ZeroSuppression: 'L', XInt: 4, XDec: 6, YInt: 4, YDec: 6}
	if got, want := f.String(), "%FSLAX46Y46*%"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
