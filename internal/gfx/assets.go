package gfx

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ScaleMode selects how an image is fitted into a box.
type ScaleMode int

const (
	// ScaleFit keeps the aspect ratio and fits entirely inside the box.
	ScaleFit ScaleMode = iota
	// ScaleFill keeps the aspect ratio and covers the box, cropping overflow.
	ScaleFill
	// ScaleStretch ignores the aspect ratio.
	ScaleStretch
)

// ParseScaleMode maps "fit", "fill" and "stretch".
func ParseScaleMode(s string) (ScaleMode, error) {
	switch strings.ToLower(s) {
	case "", "fit":
		return ScaleFit, nil
	case "fill":
		return ScaleFill, nil
	case "stretch":
		return ScaleStretch, nil
	}
	return ScaleFit, fmt.Errorf("gfx: unknown scale mode %q", s)
}

type imageKey struct {
	path string
	w, h int
	mode ScaleMode
}

// Assets caches font faces and decoded, scaled images. It is built once at
// startup and shared by reference; it is owned by the render loop.
type Assets struct {
	fs     afero.Fs
	faces  map[int]Face
	images map[imageKey]*image.RGBA
	limit  int
}

// NewAssets returns an empty registry reading files from fs.
func NewAssets(fs afero.Fs) *Assets {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Assets{
		fs:     fs,
		faces:  map[int]Face{},
		images: map[imageKey]*image.RGBA{},
		limit:  32,
	}
}

// Fs returns the filesystem assets are read from.
func (a *Assets) Fs() afero.Fs { return a.fs }

// Face returns the face for a font size.
func (a *Assets) Face(size int) Face {
	if f, ok := a.faces[size]; ok {
		return f
	}
	f := NewFace(size)
	a.faces[size] = f
	return f
}

// Image loads path and scales it into a w x h box. Results are cached by
// path, size and mode; the cache is reset once it holds too many entries.
func (a *Assets) Image(path string, w, h int, mode ScaleMode) (*image.RGBA, error) {
	k := imageKey{path: path, w: w, h: h, mode: mode}
	if img, ok := a.images[k]; ok {
		return img, nil
	}
	src, err := a.decode(path)
	if err != nil {
		return nil, err
	}
	img := Scale(src, w, h, mode)
	if len(a.images) >= a.limit {
		a.images = map[imageKey]*image.RGBA{}
	}
	a.images[k] = img
	return img, nil
}

func (a *Assets) decode(path string) (image.Image, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Scale resizes src into a w x h canvas according to mode. Fit letterboxes
// with transparent pixels and centers the image.
func Scale(src image.Image, w, h int, mode ScaleMode) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	if sb.Empty() || w <= 0 || h <= 0 {
		return out
	}
	switch mode {
	case ScaleStretch:
		draw.ApproxBiLinear.Scale(out, out.Rect, src, sb, draw.Src, nil)
	case ScaleFill:
		// Crop src to the target aspect ratio, then stretch.
		crop := sb
		if sb.Dx()*h > sb.Dy()*w {
			cw := sb.Dy() * w / h
			crop.Min.X += (sb.Dx() - cw) / 2
			crop.Max.X = crop.Min.X + cw
		} else {
			ch := sb.Dx() * h / w
			crop.Min.Y += (sb.Dy() - ch) / 2
			crop.Max.Y = crop.Min.Y + ch
		}
		draw.ApproxBiLinear.Scale(out, out.Rect, src, crop, draw.Src, nil)
	default:
		dw, dh := w, sb.Dy()*w/sb.Dx()
		if dh > h {
			dw, dh = sb.Dx()*h/sb.Dy(), h
		}
		x, y := (w-dw)/2, (h-dh)/2
		draw.ApproxBiLinear.Scale(out, image.Rect(x, y, x+dw, y+dh), src, sb, draw.Src, nil)
	}
	return out
}
