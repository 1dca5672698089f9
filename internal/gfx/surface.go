// Package gfx is the small drawing layer the runtime composes modules with:
// RGBA surfaces bound to a screen region, bitmap text, color parsing and an
// asset registry for fonts and images.
package gfx

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Surface is an offscreen RGBA bitmap positioned at Rect on the screen.
// Drawing methods take coordinates local to the surface.
type Surface struct {
	Rect Rect
	Img  *image.RGBA
}

// NewSurface allocates a transparent surface for r.
func NewSurface(r Rect) *Surface {
	return &Surface{Rect: r, Img: image.NewRGBA(r.Local())}
}

func (s *Surface) Width() int  { return s.Img.Rect.Dx() }
func (s *Surface) Height() int { return s.Img.Rect.Dy() }

// Bounds returns the local bounds.
func (s *Surface) Bounds() image.Rectangle { return s.Img.Rect }

// Clear fills the whole surface with c, replacing alpha.
func (s *Surface) Clear(c color.Color) {
	draw.Draw(s.Img, s.Img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// Fill paints r with c, replacing alpha.
func (s *Surface) Fill(r image.Rectangle, c color.Color) {
	draw.Draw(s.Img, r.Intersect(s.Img.Rect), image.NewUniform(c), image.Point{}, draw.Src)
}

// Outline draws a rectangle border of the given thickness inside r.
func (s *Surface) Outline(r image.Rectangle, c color.Color, thickness int) {
	if thickness <= 0 {
		thickness = 1
	}
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(s.Img, e.Intersect(s.Img.Rect), u, image.Point{}, draw.Over)
	}
}

// DrawImage draws src with its top-left corner at at, blending over.
func (s *Surface) DrawImage(src image.Image, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	draw.Draw(s.Img, r, src, src.Bounds().Min, draw.Over)
}

// Composite draws src onto s at src.Rect using src's own alpha as the mask,
// so transparent pixels of src leave s untouched.
func (s *Surface) Composite(src *Surface) {
	dst := src.Rect.Bounds().Sub(s.Rect.Min())
	draw.DrawMask(s.Img, dst, src.Img, image.Point{}, src.Img, image.Point{}, draw.Over)
}

// At returns the pixel at local (x, y).
func (s *Surface) At(x, y int) color.RGBA { return s.Img.RGBAAt(x, y) }

// Rotate returns a copy of img turned clockwise by deg (0, 90, 180 or 270).
func Rotate(img *image.RGBA, deg int) *image.RGBA {
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	switch ((deg % 360) + 360) % 360 {
	case 90:
		out := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA(h-1-y, x, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return out
	case 180:
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA(w-1-x, h-1-y, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return out
	case 270:
		out := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA(y, w-1-x, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return out
	default:
		return img
	}
}
