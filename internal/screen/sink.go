package screen

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Sink receives a fully composited frame.
type Sink interface {
	Name() string
	Write(img *image.RGBA) error
}

type format int

const (
	formatPNG format = iota
	formatJPEG
)

// FileSink writes frames as PNG or JPEG (chosen by extension). Each frame is
// written to path+".tmp" and renamed over path so readers never see a
// partial image.
type FileSink struct {
	fs      afero.Fs
	path    string
	format  format
	quality int
}

// NewFileSink returns a sink for path.
func NewFileSink(fs afero.Fs, path string) (*FileSink, error) {
	s := &FileSink{fs: fs, path: path, quality: 90}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		s.format = formatPNG
	case ".jpg", ".jpeg":
		s.format = formatJPEG
	default:
		return nil, fmt.Errorf("screen: unsupported output file type %q", path)
	}
	return s, nil
}

func (s *FileSink) Name() string { return "file:" + s.path }

func (s *FileSink) Write(img *image.RGBA) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	switch s.format {
	case formatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: s.quality})
	default:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		err = enc.Encode(w, img)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return s.fs.Rename(tmp, s.path)
}

// FramebufferSink converts frames to RGB565 little endian and writes them
// whole to a framebuffer device such as /dev/fb0.
type FramebufferSink struct {
	fs   afero.Fs
	path string
	buf  []byte
}

func NewFramebufferSink(fs afero.Fs, path string) *FramebufferSink {
	return &FramebufferSink{fs: fs, path: path}
}

func (s *FramebufferSink) Name() string { return "fb:" + s.path }

func (s *FramebufferSink) Write(img *image.RGBA) error {
	s.buf = AppendRGB565(s.buf[:0], img)
	f, err := s.fs.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, err = f.Write(s.buf)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// AppendRGB565 appends img as 16-bit RGB565 little endian pixels, row by row.
func AppendRGB565(dst []byte, img *image.RGBA) []byte {
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r, g, bl := uint16(row[i]), uint16(row[i+1]), uint16(row[i+2])
			v := (r>>3)<<11 | (g>>2)<<5 | bl>>3
			dst = append(dst, byte(v), byte(v>>8))
		}
	}
	return dst
}
