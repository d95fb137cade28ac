package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nao1215/gerbenv/internal/geom"
	"github.com/nao1215/gerbenv/internal/gerber"
	"github.com/nao1215/gerbenv/internal/job"
)

// Layer is one parsed layer with its render color.
type Layer struct {
	Doc      *gerber.Document
	Category job.Category
	Color    string
	Path     string
}

// Load parses the ordered layer files of one board side. colors must be
// parallel to ordered, as produced by job.Order.
func Load(projectDir string, ordered []job.Layer, colors []string, opts gerber.ParseOptions) ([]Layer, error) {
	if len(ordered) != len(colors) {
		return nil, fmt.Errorf("layer/color count mismatch: %d != %d", len(ordered), len(colors))
	}
	layers := make([]Layer, 0, len(ordered))
	for i, l := range ordered {
		f, err := os.Open(filepath.Join(projectDir, l.Path)) //nolint:gosec // project layer path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to open layer %s: %w", l.Path, err)
		}
		doc, err := gerber.ParseWithOptions(f, opts)
		f.Close() //nolint:errcheck,gosec // read-only file
		if err != nil {
			return nil, fmt.Errorf("failed to parse layer %s: %w", l.Path, err)
		}
		layers = append(layers, Layer{
			Doc:      doc,
			Category: l.Category,
			Color:    colors[i],
			Path:     l.Path,
		})
	}
	return layers, nil
}

// Bounds returns the union bounding box of all layers in millimeters.
func Bounds(layers []Layer) geom.BBox {
	bb := geom.NewBBox()
	for _, l := range layers {
		b := l.Doc.Bounds()
		if !b.Empty() {
			bb = bb.Union(b)
		}
	}
	return bb
}

var hexColorRe = regexp.MustCompile(`^#?([0-9A-Fa-f]{6})$`)

// ParseHexColor parses "#RRGGBB" into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	m := hexColorRe.FindStringSubmatch(s)
	if m == nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(m[1], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// CompositeGroups buckets layers by category for per-category composite
// images. Assembly drawings merge into the soldermask bucket because both
// mark fixed obstacles. The returned order follows the stacking order.
func CompositeGroups(layers []Layer) ([]job.Category, map[job.Category][]Layer) {
	groups := make(map[job.Category][]Layer)
	var order []job.Category
	for _, l := range layers {
		key := l.Category
		if key == job.CategoryAssemblyDrawing {
			key = job.CategorySolderMask
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], l)
	}
	return order, groups
}
