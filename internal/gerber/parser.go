package gerber

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/nao1215/gerbenv/internal/geom"
)

// Interpolation modes.
const (
	modeLinear = "G01"
	modeArcCW  = "G02"
	modeArcCCW = "G03"
)

// Stroke is a drawn polyline with the aperture that was active while it
// was drawn. Arc segments are already linearized.
type Stroke struct {
	Points   []geom.Point
	Aperture Aperture
}

// Flash is a single aperture flash (D03).
type Flash struct {
	At       geom.Point
	Aperture Aperture
}

// Region is a filled G36/G37 area. Each contour is a closed polyline;
// overlapping contours combine under the even-odd rule when rendered.
type Region struct {
	Contours []geom.Polyline
}

// Document is a parsed Gerber layer.
type Document struct {
	// Format is the coordinate format from the FS header.
	Format Format

	// UnitMM is true when the file unit is millimeters.
	UnitMM bool

	// FSLine and MOLine preserve the raw header lines for pass-through
	// rewriting; empty when the file had none.
	FSLine string
	MOLine string

	// ApertureLines preserves the raw %ADD lines in file order.
	ApertureLines []string

	// Apertures maps D-codes to their definitions.
	Apertures map[string]Aperture

	// Strokes, Flashes and Regions are the draw primitives in file order
	// within each kind.
	Strokes []Stroke
	Flashes []Flash
	Regions []Region
}

// Paths returns the stroke polylines without aperture information.
// This is the view the outline filler works on.
func (d *Document) Paths() []geom.Polyline {
	paths := make([]geom.Polyline, 0, len(d.Strokes))
	for _, s := range d.Strokes {
		paths = append(paths, geom.Polyline{Points: s.Points})
	}
	return paths
}

// Bounds returns the bounding box of all primitives, grown by half the
// largest aperture so stroke width is accounted for.
func (d *Document) Bounds() geom.BBox {
	bb := geom.NewBBox()
	var maxAp float64
	for _, s := range d.Strokes {
		for _, p := range s.Points {
			bb.Extend(p)
		}
		maxAp = max(maxAp, s.Aperture.Diameter())
	}
	for _, f := range d.Flashes {
		bb.Extend(f.At)
		maxAp = max(maxAp, f.Aperture.Diameter())
	}
	for _, r := range d.Regions {
		for _, c := range r.Contours {
			for _, p := range c.Points {
				bb.Extend(p)
			}
		}
	}
	if !bb.Empty() {
		bb.ExtendBy(maxAp / 2)
	}
	return bb
}

// ParseOptions tunes arc linearization.
type ParseOptions struct {
	// MaxSegLen is the maximum chord length in millimeters when
	// approximating arcs.
	MaxSegLen float64

	// MaxAngleDeg is the maximum sweep per chord in degrees.
	MaxAngleDeg float64
}

// DefaultParseOptions returns linearization settings fine enough for
// rendering and coarse enough to keep polygon counts reasonable.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{MaxSegLen: 0.2, MaxAngleDeg: 5.0}
}

var (
	moRe     = regexp.MustCompile(`^%MO(IN|MM)\*%`)
	dcodeRe  = regexp.MustCompile(`^D(\d+)\*$`)
	gOnlyRe  = regexp.MustCompile(`^G0?([123])\*$`)
	moveRe   = regexp.MustCompile(`^(?:G0?([123]))?(?:X([+-]?\d+))?(?:Y([+-]?\d+))?(?:I([+-]?\d+))?(?:J([+-]?\d+))?(?:D0?([123]))?\*$`)
	endOfRe  = regexp.MustCompile(`^M0?2\*$`)
	regionRe = regexp.MustCompile(`^G3([67])\*$`)
)

// parserState carries the modal machine state while walking a file.
type parserState struct {
	haveCur  bool
	cur      geom.Point
	interp   string
	inRegion bool
	lastXTok string
	lastYTok string
}

// Parse reads a Gerber layer into a Document using default options.
func Parse(r io.Reader) (*Document, error) {
	return ParseWithOptions(r, DefaultParseOptions())
}

// ParseWithOptions reads a Gerber layer into a Document.
// Unknown extended commands (%TF, %LP, macro bodies, ...) are skipped:
// the pipeline only needs geometry, and KiCad attribute lines carry no
// coordinates.
func ParseWithOptions(r io.Reader, opts ParseOptions) (*Document, error) {
	doc := &Document{
		Format:    DefaultFormat(),
		UnitMM:    true,
		Apertures: make(map[string]Aperture),
	}

	var (
		st         parserState
		curRegion  *Region
		curContour *geom.Polyline
		curAp      Aperture
	)
	st.interp = modeLinear
	strokeIdx := -1

	flushContour := func() {
		if curContour != nil && len(curContour.Points) >= 3 {
			curRegion.Contours = append(curRegion.Contours, *curContour)
		}
		curContour = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "G04") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "%FS"):
			f, err := ParseFormat(line)
			if err != nil {
				return nil, err
			}
			doc.Format = f
			doc.FSLine = line
			continue
		case moRe.MatchString(line):
			doc.UnitMM = moRe.FindStringSubmatch(line)[1] == "MM"
			doc.MOLine = line
			continue
		case strings.HasPrefix(line, "%ADD"):
			ap, err := ParseAperture(line, doc.UnitMM)
			if err != nil {
				// Macro instantiations with unusual modifiers are kept
				// in the header but not used for geometry.
				doc.ApertureLines = append(doc.ApertureLines, line)
				continue
			}
			doc.Apertures[ap.Code] = ap
			doc.ApertureLines = append(doc.ApertureLines, line)
			continue
		case strings.HasPrefix(line, "%"):
			continue
		case strings.HasPrefix(line, "G74") || strings.HasPrefix(line, "G75"):
			// Only multi-quadrant arcs (G75) appear in practice; the
			// quadrant mode does not change our center-offset handling.
			continue
		case endOfRe.MatchString(line):
			flushContour()
			return doc, scanner.Err()
		}

		if m := regionRe.FindStringSubmatch(line); m != nil {
			if m[1] == "6" {
				st.inRegion = true
				curRegion = &Region{}
			} else {
				flushContour()
				if curRegion != nil && len(curRegion.Contours) > 0 {
					doc.Regions = append(doc.Regions, *curRegion)
				}
				curRegion = nil
				st.inRegion = false
			}
			continue
		}

		if m := gOnlyRe.FindStringSubmatch(line); m != nil {
			st.interp = "G0" + m[1]
			continue
		}

		if m := dcodeRe.FindStringSubmatch(line); m != nil {
			code := "D" + m[1]
			if ap, ok := doc.Apertures[code]; ok {
				curAp = ap
			} else {
				curAp = Aperture{Code: code}
			}
			strokeIdx = -1
			continue
		}

		m := moveRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if m[1] != "" {
			st.interp = "G0" + m[1]
		}

		xTok, yTok := m[2], m[3]
		if xTok == "" {
			xTok = st.lastXTok
		} else {
			st.lastXTok = xTok
		}
		if yTok == "" {
			yTok = st.lastYTok
		} else {
			st.lastYTok = yTok
		}

		next := st.cur
		if xTok != "" {
			next.X = doc.Format.ParseCoord(xTok, doc.Format.XTotal(), doc.Format.XDec, doc.UnitMM)
		}
		if yTok != "" {
			next.Y = doc.Format.ParseCoord(yTok, doc.Format.YTotal(), doc.Format.YDec, doc.UnitMM)
		}

		op := m[6]
		switch op {
		case "2": // move
			st.cur = next
			st.haveCur = true
			if st.inRegion {
				flushContour()
				curContour = &geom.Polyline{}
				curContour.Add(next)
			} else {
				strokeIdx = -1
			}
		case "3": // flash
			st.cur = next
			st.haveCur = true
			doc.Flashes = append(doc.Flashes, Flash{At: next, Aperture: curAp})
		case "1", "": // draw (D01 or modal draw)
			if op == "" && st.interp != modeLinear && st.interp != modeArcCW && st.interp != modeArcCCW {
				continue
			}
			pts := []geom.Point{next}
			if (st.interp == modeArcCW || st.interp == modeArcCCW) && m[4] != "" && m[5] != "" && st.haveCur {
				iOff := doc.Format.ParseCoord(m[4], doc.Format.XTotal(), doc.Format.XDec, doc.UnitMM)
				jOff := doc.Format.ParseCoord(m[5], doc.Format.YTotal(), doc.Format.YDec, doc.UnitMM)
				center := geom.Point{X: st.cur.X + iOff, Y: st.cur.Y + jOff}
				pts = geom.ArcPoints(st.cur, next, center, st.interp == modeArcCW, opts.MaxSegLen, opts.MaxAngleDeg)
			}

			if st.inRegion {
				if curContour == nil {
					curContour = &geom.Polyline{}
					if st.haveCur {
						curContour.Add(st.cur)
					}
				}
				for _, p := range pts {
					curContour.Add(p)
				}
			} else {
				if strokeIdx < 0 {
					s := Stroke{Aperture: curAp}
					if st.haveCur {
						s.Points = append(s.Points, st.cur)
					}
					doc.Strokes = append(doc.Strokes, s)
					strokeIdx = len(doc.Strokes) - 1
				}
				s := &doc.Strokes[strokeIdx]
				for _, p := range pts {
					n := len(s.Points)
					if n == 0 || s.Points[n-1] != p {
						s.Points = append(s.Points, p)
					}
				}
			}
			st.cur = next
			st.haveCur = true
		}
	}

	flushContour()
	if curRegion != nil && len(curRegion.Contours) > 0 {
		doc.Regions = append(doc.Regions, *curRegion)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gerber input: %w", err)
	}
	return doc, nil
}
