package render

import (
	"image"
	"image/color"
	"image/draw"
)

// FillBackground composites src over an opaque background color and
// returns the result. Fully transparent pixels take the background;
// everything else keeps its own color.
func FillBackground(src image.Image, bg color.NRGBA) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, b, src, b.Min, draw.Over)
	return out
}

// RecolorPreserveBlack replaces every visible non-black pixel with
// target, keeping the pixel's alpha. Pure black stays black so board
// outlines and silkscreen survive a uniform recolor.
func RecolorPreserveBlack(img *image.RGBA, target color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			if c.R == 0 && c.G == 0 && c.B == 0 {
				continue
			}
			img.SetRGBA(x, y, color.RGBA{R: target.R, G: target.G, B: target.B, A: c.A})
		}
	}
}
