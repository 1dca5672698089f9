package gfx

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var named = map[string]color.RGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 255, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"cyan":        {0, 255, 255, 255},
	"magenta":     {255, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"orange":      {255, 165, 0, 255},
	"transparent": {},
	"none":        {},
}

// ParseColor accepts "#rgb", "#rrggbb", "#rrggbbaa" and a few color names.
// The empty string is transparent.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return color.RGBA{}, nil
	}
	if c, ok := named[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("gfx: unknown color %q", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("gfx: bad color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("gfx: bad color %q: %w", s, err)
	}
	// image.RGBA stores premultiplied alpha.
	r, g, b, a := uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v)
	if a != 255 {
		c := color.NRGBA{R: r, G: g, B: b, A: a}
		return color.RGBAModel.Convert(c).(color.RGBA), nil
	}
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// MustColor is ParseColor for literals known to be valid.
func MustColor(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Style is the visual defaults record shared by the screen and modules.
type Style struct {
	Color       color.RGBA // outlines
	BgColor     color.RGBA // module background
	TextColor   color.RGBA
	TextBgColor color.RGBA
	FontSize    int
}

// StyleSpec is the configuration form of Style: colors as strings, zero
// values inherit.
type StyleSpec struct {
	Color       string `json:"color,omitempty"`
	BgColor     string `json:"bg_color,omitempty"`
	TextColor   string `json:"text_color,omitempty"`
	TextBgColor string `json:"text_bg_color,omitempty"`
	FontSize    int    `json:"font_size,omitempty"`
}

// Resolve overlays the non-empty fields of spec onto base.
func (spec StyleSpec) Resolve(base Style) (Style, error) {
	out := base
	for _, f := range []struct {
		raw string
		dst *color.RGBA
	}{
		{spec.Color, &out.Color},
		{spec.BgColor, &out.BgColor},
		{spec.TextColor, &out.TextColor},
		{spec.TextBgColor, &out.TextBgColor},
	} {
		if f.raw == "" {
			continue
		}
		c, err := ParseColor(f.raw)
		if err != nil {
			return base, err
		}
		*f.dst = c
	}
	if spec.FontSize > 0 {
		out.FontSize = spec.FontSize
	}
	return out, nil
}
