package mask

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/gerbenv/internal/job"
)

// blockedThreshold is the mean RGB luminance below which a pixel counts
// as blocked.
const blockedThreshold = 0.28

// ErrEmptyObservation is returned when none of the observation
// categories have a rendered image.
var ErrEmptyObservation = errors.New("mask: no observation images found")

// Grid is a binary occupancy grid. A cell is 1 when free and 0 when
// blocked, stored row-major.
type Grid struct {
	W, H  int
	Cells []uint8
}

// NewGrid returns an all-free grid of the given dimensions.
func NewGrid(w, h int) *Grid {
	g := &Grid{W: w, H: h, Cells: make([]uint8, w*h)}
	for i := range g.Cells {
		g.Cells[i] = 1
	}
	return g
}

// At returns the cell value at (x, y). Out-of-bounds cells read as
// blocked.
func (g *Grid) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return 0
	}
	return g.Cells[y*g.W+x]
}

// Set writes the cell value at (x, y).
func (g *Grid) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return
	}
	g.Cells[y*g.W+x] = v
}

// Free reports whether the cell at (x, y) is passable.
func (g *Grid) Free(x, y int) bool {
	return g.At(x, y) == 1
}

// String renders the grid as a row-major digit string, the wire form
// the training environment reads.
func (g *Grid) String() string {
	var b strings.Builder
	b.Grow(len(g.Cells))
	for _, c := range g.Cells {
		if c == 0 {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}

// FromImage thresholds an image into an occupancy grid: dark pixels
// (mean RGB luminance below 0.28) block, everything else is free.
func FromImage(img image.Image) *Grid {
	b := img.Bounds()
	g := &Grid{W: b.Dx(), H: b.Dy(), Cells: make([]uint8, b.Dx()*b.Dy())}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			lum := float64(r>>8+gr>>8+bl>>8) / (3 * 255)
			if lum < blockedThreshold {
				g.Cells[i] = 0
			} else {
				g.Cells[i] = 1
			}
			i++
		}
	}
	return g
}

// FromImageFile decodes a PNG and thresholds it into a grid.
func FromImageFile(path string) (*Grid, error) {
	fh, err := os.Open(path) //nolint:gosec // user-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer fh.Close()

	img, err := png.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return FromImage(img), nil
}

// observationOrder is the fixed category sequence of the observation
// string: where the agent moves, where it cannot, and where its
// endpoints are.
var observationOrder = []job.Category{
	job.CategoryGlue,
	job.CategorySolderMask,
	job.CategorySolderPaste,
}

// ObservationFile returns the image filename for a side and category,
// matching the composite renderer's output naming.
func ObservationFile(side, category string) string {
	return strings.ToLower(side) + "_" + strings.ToLower(category) + ".png"
}

// Observation concatenates the per-category grids for one side into a
// single digit string. Categories without a rendered image are skipped;
// when every category is missing it returns ErrEmptyObservation.
func Observation(dir, side string) (string, error) {
	var b strings.Builder
	found := false
	for _, cat := range observationOrder {
		path := filepath.Join(dir, ObservationFile(side, string(cat)))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to stat observation image: %w", err)
		}
		g, err := FromImageFile(path)
		if err != nil {
			return "", err
		}
		b.WriteString(g.String())
		found = true
	}
	if !found {
		return "", fmt.Errorf("%w: side %s in %s", ErrEmptyObservation, side, dir)
	}
	return b.String(), nil
}
