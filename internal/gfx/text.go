package gfx

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// HAlign and VAlign place text inside a box.
type (
	HAlign int
	VAlign int
)

const (
	AlignLeft HAlign = iota
	AlignCenter
	AlignRight
)

const (
	AlignTop VAlign = iota
	AlignMiddle
	AlignBottom
)

// ParseHAlign maps "left", "center" and "right"; anything else is left.
func ParseHAlign(s string) HAlign {
	switch strings.ToLower(s) {
	case "center", "centre":
		return AlignCenter
	case "right":
		return AlignRight
	}
	return AlignLeft
}

// ParseVAlign maps "top", "center"/"middle" and "bottom"; anything else is top.
func ParseVAlign(s string) VAlign {
	switch strings.ToLower(s) {
	case "center", "centre", "middle":
		return AlignMiddle
	case "bottom":
		return AlignBottom
	}
	return AlignTop
}

// Face is a bitmap font drawn at an integer scale.
type Face struct {
	face  font.Face
	scale int
}

var base = basicfont.Face7x13

// NewFace returns the built-in 7x13 face scaled to approximate size pixels
// of line height.
func NewFace(size int) Face {
	scale := (size + base.Height/2) / base.Height
	if scale < 1 {
		scale = 1
	}
	return Face{face: base, scale: scale}
}

// Scale returns the integer magnification.
func (f Face) Scale() int { return f.scale }

// LineHeight is the pixel height of one line.
func (f Face) LineHeight() int { return base.Height * f.scale }

// Measure returns the pixel width of s.
func (f Face) Measure(s string) int {
	return font.MeasureString(f.face, s).Ceil() * f.scale
}

// Text draws one line of s with its top-left corner at at.
func (s *Surface) Text(f Face, at image.Point, text string, c color.Color) {
	if text == "" {
		return
	}
	if f.face == nil {
		f = NewFace(0)
	}
	w := font.MeasureString(f.face, text).Ceil()
	mask := image.NewAlpha(image.Rect(0, 0, w, base.Height))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: f.face,
		Dot:  fixed.P(0, base.Ascent),
	}
	d.DrawString(text)

	var m image.Image = mask
	if f.scale > 1 {
		big := image.NewAlpha(image.Rect(0, 0, w*f.scale, base.Height*f.scale))
		draw.NearestNeighbor.Scale(big, big.Rect, mask, mask.Rect, draw.Src, nil)
		m = big
	}
	r := image.Rectangle{Min: at, Max: at.Add(m.Bounds().Size())}
	draw.DrawMask(s.Img, r, image.NewUniform(c), image.Point{}, m, image.Point{}, draw.Over)
}

// Wrap breaks text into lines no wider than width pixels. Explicit newlines
// are kept; a single word wider than width is placed on its own line.
func (f Face) Wrap(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			cand := line + " " + w
			if f.Measure(cand) > width {
				out = append(out, line)
				line = w
				continue
			}
			line = cand
		}
		out = append(out, line)
	}
	return out
}

// TextBox draws word-wrapped text aligned inside r. Lines that do not fit
// vertically are dropped. It returns the number of lines drawn.
func (s *Surface) TextBox(f Face, r image.Rectangle, text string, c color.Color, h HAlign, v VAlign) int {
	if f.face == nil {
		f = NewFace(0)
	}
	lines := f.Wrap(text, r.Dx())
	lh := f.LineHeight()
	if fit := r.Dy() / lh; len(lines) > fit {
		lines = lines[:fit]
	}
	total := len(lines) * lh
	y := r.Min.Y
	switch v {
	case AlignMiddle:
		y += (r.Dy() - total) / 2
	case AlignBottom:
		y = r.Max.Y - total
	}
	for _, ln := range lines {
		x := r.Min.X
		switch h {
		case AlignCenter:
			x += (r.Dx() - f.Measure(ln)) / 2
		case AlignRight:
			x = r.Max.X - f.Measure(ln)
		}
		s.Text(f, image.Pt(x, y), ln, c)
		y += lh
	}
	return len(lines)
}
