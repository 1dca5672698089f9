package gfx

import (
	"fmt"
	"image"
)

// Rect is a screen region with inclusive corners, so a full 800x480 screen
// is {0, 0, 799, 479}.
type Rect struct {
	X0, Y0, X1, Y1 int
}

func (r Rect) Width() int  { return r.X1 - r.X0 + 1 }
func (r Rect) Height() int { return r.Y1 - r.Y0 + 1 }

// Empty reports whether the region covers no pixels.
func (r Rect) Empty() bool { return r.X1 < r.X0 || r.Y1 < r.Y0 }

// Bounds returns the region as a half-open image.Rectangle in screen space.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1+1, r.Y1+1)
}

// Local returns the region's size anchored at the origin.
func (r Rect) Local() image.Rectangle {
	return image.Rect(0, 0, r.Width(), r.Height())
}

// Min returns the top-left corner.
func (r Rect) Min() image.Point { return image.Pt(r.X0, r.Y0) }

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.Bounds().Overlaps(o.Bounds())
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X0, r.Y0, r.X1, r.Y1)
}
