package gerber

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ErrNoHeader is returned when a file ends before its header does.
var ErrNoHeader = errors.New("no command lines after gerber header")

// selectRe matches an aperture selection command like "D10*".
var selectRe = regexp.MustCompile(`^D(\d+)\*`)

// drawTailRe matches the trailing draw or flash operation of a
// coordinate line.
var drawTailRe = regexp.MustCompile(`(?:I[+-]?\d+)?(?:J[+-]?\d+)?D0?[13]\*$`)

// FilterSummary describes what a FilterByThickness run did.
type FilterSummary struct {
	// AcceptedApertures are the D-codes whose diameter fell inside the
	// thickness window.
	AcceptedApertures []string `json:"accepted_apertures"`

	// SuppressedDraws is the number of draw commands degraded to moves.
	SuppressedDraws int `json:"suppressed_draws"`
}

// FilterByThickness rewrites a Gerber layer keeping only draws made with
// apertures whose diameter lies in [minMM, maxMM] millimeters. Draws and
// flashes with other apertures are degraded to D02 moves so the machine
// state stays consistent. The header passes through untouched.
//
// Assembly-drawing layers mix component courtyard outlines (drawn with a
// fixed 0.1mm pen) with dimension text and reference designators drawn at
// other widths; a [0.1, 0.1] window keeps just the outlines.
func FilterByThickness(r io.Reader, w io.Writer, minMM, maxMM float64) (*FilterSummary, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gerber input: %w", err)
	}

	headerEnd, unitMM, err := scanHeader(lines)
	if err != nil {
		return nil, err
	}

	accepted := make(map[string]bool)
	summary := &FilterSummary{}
	for _, line := range lines[:headerEnd] {
		if !strings.HasPrefix(line, "%ADD") {
			continue
		}
		ap, err := ParseAperture(strings.TrimSpace(line), unitMM)
		if err != nil {
			continue
		}
		if d := ap.Diameter(); d >= minMM && d <= maxMM {
			accepted[ap.Code] = true
			summary.AcceptedApertures = append(summary.AcceptedApertures, ap.Code)
		}
	}

	bw := bufio.NewWriter(w)
	for _, line := range lines[:headerEnd] {
		bw.WriteString(line) //nolint:errcheck // flush error checked once below
		bw.WriteByte('\n')
	}

	active := false
	for _, raw := range lines[headerEnd:] {
		line := strings.TrimSpace(raw)
		switch {
		case selectRe.MatchString(line):
			active = accepted["D"+selectRe.FindStringSubmatch(line)[1]]
			bw.WriteString(raw) //nolint:errcheck
		case active || !strings.HasPrefix(line, "X"):
			bw.WriteString(raw) //nolint:errcheck
		default:
			// Draw or flash with a rejected aperture: keep the endpoint
			// so modal coordinates stay valid, but make it a move.
			if drawTailRe.MatchString(line) {
				line = drawTailRe.ReplaceAllString(line, "D02*")
				summary.SuppressedDraws++
			}
			bw.WriteString(line) //nolint:errcheck
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write filtered output: %w", err)
	}
	return summary, nil
}

// FilterByThicknessFile is the file-path convenience wrapper around
// FilterByThickness.
func FilterByThicknessFile(in, out string, minMM, maxMM float64) (*FilterSummary, error) {
	src, err := os.Open(in) //nolint:gosec // user-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open gerber input: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(out) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create gerber output: %w", err)
	}

	summary, err := FilterByThickness(src, dst, minMM, maxMM)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return summary, err
}

// scanHeader returns the index of the first body line and the file unit.
// The header ends at the first line after an aperture definition that is
// neither a comment nor an extended (%) command.
func scanHeader(lines []string) (int, bool, error) {
	unitMM := true
	apertureSeen := false
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if m := moRe.FindStringSubmatch(line); m != nil {
			unitMM = m[1] == "MM"
		}
		if strings.HasPrefix(line, "%ADD") {
			apertureSeen = true
			continue
		}
		if apertureSeen && !strings.HasPrefix(line, "G04") && !strings.HasPrefix(line, "%") {
			return i, unitMM, nil
		}
	}
	return 0, unitMM, ErrNoHeader
}
