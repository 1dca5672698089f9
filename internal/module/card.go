package module

import (
	"image"
	"image/color"

	"smartmirror/internal/gfx"
)

// Card is the three-region text layout (header, body, footer) shared by
// text-driven modules. It is used by value and tracks its own dirtiness.
type Card struct {
	Header, Body, Footer string

	HeaderAlign, BodyAlign, FooterAlign gfx.HAlign
	BodyVAlign                          gfx.VAlign

	dirty bool
}

// NewCard returns an empty card with centered body text.
func NewCard() Card {
	return Card{BodyAlign: gfx.AlignCenter, BodyVAlign: gfx.AlignMiddle, dirty: true}
}

// Update replaces the three texts and reports whether anything changed.
func (c *Card) Update(header, body, footer string) bool {
	if header == c.Header && body == c.Body && footer == c.Footer {
		return false
	}
	c.Header, c.Body, c.Footer = header, body, footer
	c.dirty = true
	return true
}

// Dirty reports whether the card changed since the last Draw.
func (c *Card) Dirty() bool { return c.dirty }

// Touch marks the card for redraw.
func (c *Card) Touch() { c.dirty = true }

// Draw paints the card onto s: the header on the first line, the footer on
// the last and the body in between.
func (c *Card) Draw(s *gfx.Surface, f gfx.Face, style gfx.Style) {
	c.dirty = false
	if s == nil {
		return
	}
	s.Clear(style.BgColor)
	b := s.Bounds()
	lh := f.LineHeight()

	body := b
	if c.Header != "" {
		hr := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+lh)
		fillIf(s, hr, style.TextBgColor)
		s.TextBox(f, hr, c.Header, style.TextColor, c.HeaderAlign, gfx.AlignTop)
		body.Min.Y += lh
	}
	if c.Footer != "" {
		fr := image.Rect(b.Min.X, b.Max.Y-lh, b.Max.X, b.Max.Y)
		fillIf(s, fr, style.TextBgColor)
		s.TextBox(f, fr, c.Footer, style.TextColor, c.FooterAlign, gfx.AlignTop)
		body.Max.Y -= lh
	}
	if c.Body != "" && body.Dy() > 0 {
		s.TextBox(f, body, c.Body, style.TextColor, c.BodyAlign, c.BodyVAlign)
	}
}

func fillIf(s *gfx.Surface, r image.Rectangle, c color.RGBA) {
	if c.A != 0 {
		s.Fill(r, c)
	}
}
