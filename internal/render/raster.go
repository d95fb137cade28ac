package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/nao1215/gerbenv/internal/geom"
	"github.com/nao1215/gerbenv/internal/gerber"
)

// Raster rasterizes layers bottom-to-top at dpmm dots per millimeter
// into an RGBA image with a transparent background. Strokes paint as
// stadium coverage of the aperture width, regions fill under the
// even-odd rule, flashes paint as their aperture shape.
func Raster(layers []Layer, dpmm float64) (*image.RGBA, error) {
	if dpmm <= 0 {
		return nil, fmt.Errorf("dpmm must be positive, got %v", dpmm)
	}
	bb := Bounds(layers)
	if bb.Empty() {
		return nil, fmt.Errorf("nothing to render: all layers are empty")
	}

	w := int(math.Ceil(bb.Width() * dpmm))
	h := int(math.Ceil(bb.Height() * dpmm))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	cv := &canvas{
		img:  image.NewRGBA(image.Rect(0, 0, w, h)),
		minX: bb.MinX,
		maxY: bb.MaxY,
		dpmm: dpmm,
	}

	for _, l := range layers {
		col, err := ParseHexColor(l.Color)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.Path, err)
		}
		cv.drawDocument(l.Doc, col)
	}
	return cv.img, nil
}

// canvas maps millimeter coordinates onto pixels, flipping Y.
type canvas struct {
	img  *image.RGBA
	minX float64
	maxY float64
	dpmm float64
}

func (c *canvas) toPx(p geom.Point) geom.Point {
	return geom.Point{
		X: (p.X - c.minX) * c.dpmm,
		Y: (c.maxY - p.Y) * c.dpmm,
	}
}

func (c *canvas) drawDocument(doc *gerber.Document, col color.NRGBA) {
	for _, reg := range doc.Regions {
		c.fillRegion(reg, col)
	}
	for _, s := range doc.Strokes {
		width := s.Aperture.Diameter()
		if width <= 0 {
			width = 0.1
		}
		r := width / 2 * c.dpmm
		for i := 1; i < len(s.Points); i++ {
			c.fillStadium(c.toPx(s.Points[i-1]), c.toPx(s.Points[i]), r, col)
		}
		if len(s.Points) == 1 {
			c.fillCircle(c.toPx(s.Points[0]), r, col)
		}
	}
	for _, f := range doc.Flashes {
		c.drawFlash(f, col)
	}
}

func (c *canvas) drawFlash(f gerber.Flash, col color.NRGBA) {
	center := c.toPx(f.At)
	switch f.Aperture.Shape {
	case gerber.ShapeRectangle:
		w, h := flashSize(f.Aperture)
		c.fillRect(center, w*c.dpmm, h*c.dpmm, col)
	case gerber.ShapeObround:
		w, h := flashSize(f.Aperture)
		wpx, hpx := w*c.dpmm, h*c.dpmm
		if wpx >= hpx {
			half := (wpx - hpx) / 2
			a := geom.Point{X: center.X - half, Y: center.Y}
			b := geom.Point{X: center.X + half, Y: center.Y}
			c.fillStadium(a, b, hpx/2, col)
		} else {
			half := (hpx - wpx) / 2
			a := geom.Point{X: center.X, Y: center.Y - half}
			b := geom.Point{X: center.X, Y: center.Y + half}
			c.fillStadium(a, b, wpx/2, col)
		}
	default:
		c.fillCircle(center, f.Aperture.Diameter()/2*c.dpmm, col)
	}
}

func (c *canvas) fillCircle(center geom.Point, r float64, col color.NRGBA) {
	c.fillStadium(center, center, r, col)
}

// fillStadium paints every pixel whose center lies within r of the
// segment ab. All arguments are in pixel space.
func (c *canvas) fillStadium(a, b geom.Point, r float64, col color.NRGBA) {
	if r <= 0 {
		return
	}
	bounds := c.img.Bounds()
	x0 := int(math.Floor(math.Min(a.X, b.X) - r))
	x1 := int(math.Ceil(math.Max(a.X, b.X) + r))
	y0 := int(math.Floor(math.Min(a.Y, b.Y) - r))
	y1 := int(math.Ceil(math.Max(a.Y, b.Y) + r))
	for y := max(y0, bounds.Min.Y); y <= min(y1, bounds.Max.Y-1); y++ {
		for x := max(x0, bounds.Min.X); x <= min(x1, bounds.Max.X-1); x++ {
			p := geom.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			if geom.SegmentDist(p, a, b) <= r {
				c.img.SetRGBA(x, y, color.RGBA{R: col.R, G: col.G, B: col.B, A: col.A})
			}
		}
	}
}

// fillRect paints an axis-aligned rectangle centered at center, in
// pixel space.
func (c *canvas) fillRect(center geom.Point, w, h float64, col color.NRGBA) {
	bounds := c.img.Bounds()
	x0 := int(math.Floor(center.X - w/2))
	x1 := int(math.Ceil(center.X + w/2))
	y0 := int(math.Floor(center.Y - h/2))
	y1 := int(math.Ceil(center.Y + h/2))
	for y := max(y0, bounds.Min.Y); y <= min(y1, bounds.Max.Y-1); y++ {
		for x := max(x0, bounds.Min.X); x <= min(x1, bounds.Max.X-1); x++ {
			px := float64(x) + 0.5
			py := float64(y) + 0.5
			if math.Abs(px-center.X) <= w/2 && math.Abs(py-center.Y) <= h/2 {
				c.img.SetRGBA(x, y, color.RGBA{R: col.R, G: col.G, B: col.B, A: col.A})
			}
		}
	}
}

// fillRegion scanline-fills the region's contours under the even-odd
// rule. Contour coordinates are in millimeters; edges are transformed
// per scanline.
func (c *canvas) fillRegion(reg gerber.Region, col color.NRGBA) {
	type edge struct{ a, b geom.Point }
	var edges []edge
	bb := geom.NewBBox()
	for _, contour := range reg.Contours {
		pts := contour.Points
		n := len(pts)
		if n < 3 {
			continue
		}
		for i := 0; i < n; i++ {
			a := c.toPx(pts[i])
			b := c.toPx(pts[(i+1)%n])
			if a == b {
				continue
			}
			edges = append(edges, edge{a, b})
			bb.Extend(a)
			bb.Extend(b)
		}
	}
	if len(edges) == 0 || bb.Empty() {
		return
	}

	bounds := c.img.Bounds()
	y0 := max(int(math.Floor(bb.MinY)), bounds.Min.Y)
	y1 := min(int(math.Ceil(bb.MaxY)), bounds.Max.Y-1)
	rgba := color.RGBA{R: col.R, G: col.G, B: col.B, A: col.A}

	var xs []float64
	for y := y0; y <= y1; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for _, e := range edges {
			ay, by := e.a.Y, e.b.Y
			if (ay <= cy && by > cy) || (by <= cy && ay > cy) {
				t := (cy - ay) / (by - ay)
				xs = append(xs, e.a.X+t*(e.b.X-e.a.X))
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(int(math.Ceil(xs[i]-0.5)), bounds.Min.X)
			x1 := min(int(math.Floor(xs[i+1]-0.5)), bounds.Max.X-1)
			for x := x0; x <= x1; x++ {
				c.img.SetRGBA(x, y, rgba)
			}
		}
	}
}

// SavePNG writes img to path, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create png output: %w", err)
	}
	err = png.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
