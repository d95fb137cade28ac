package render

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/draw"
)

// FitSquare fits src into a size x size canvas: the image is composited
// over white, scaled down to fit (never up) with Catmull-Rom resampling,
// and centered on a black canvas. The output matches the fixed
// observation geometry a training run expects.
func FitSquare(src image.Image, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %d", size)
	}

	flat := FillBackground(src, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	b := flat.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("cannot resize empty image")
	}

	scale := math.Min(math.Min(
		float64(size)/float64(w),
		float64(size)/float64(h),
	), 1.0)
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), flat, b, draw.Src, nil)

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	stddraw.Draw(out, out.Bounds(), image.NewUniform(color.NRGBA{A: 255}), image.Point{}, stddraw.Src)

	left := (size - nw) / 2
	top := (size - nh) / 2
	stddraw.Draw(out, image.Rect(left, top, left+nw, top+nh), scaled, scaled.Bounds().Min, stddraw.Src)
	return out, nil
}
