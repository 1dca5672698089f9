package screen

import (
	"image"
	"image/png"
	"testing"

	"github.com/spf13/afero"

	"smartmirror/internal/gfx"
	logx "smartmirror/pkg/logx"
)

func TestFileSinkWritesAtomically(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	sink, err := NewFileSink(fs, "/out/frame.png")
	if err != nil {
		t.Fatal(err)
	}
	s := New(4, 2, gfx.Style{BgColor: gfx.MustColor("red")}, 0, logx.Nop())
	s.AddSink(sink, true)
	s.Clear()
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/out/frame.png.tmp"); ok {
		t.Fatal("temp file left behind")
	}
	f, err := fs.Open("/out/frame.png")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Fatalf("size = %v", img.Bounds())
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 {
		t.Fatalf("pixel red = %d", r>>8)
	}
}

func TestFileSinkRejectsUnknownExtension(t *testing.T) {
	t.Parallel()
	if _, err := NewFileSink(afero.NewMemMapFs(), "/out/frame.bmp"); err == nil {
		t.Fatal("expected error")
	}
}

type countSink struct {
	n    int
	last image.Rectangle
}

func (c *countSink) Name() string { return "count" }
func (c *countSink) Write(img *image.RGBA) error {
	c.n++
	c.last = img.Rect
	return nil
}

func TestRemoteToggleAndRotation(t *testing.T) {
	t.Parallel()
	s := New(8, 4, gfx.Style{}, 90, logx.Nop())
	local, remote := &countSink{}, &countSink{}
	s.AddSink(local, false)
	s.AddSink(remote, true)

	_ = s.Flush()
	s.SetRemote(false)
	_ = s.Flush()

	if local.n != 2 || remote.n != 1 {
		t.Fatalf("local=%d remote=%d, want 2 and 1", local.n, remote.n)
	}
	if local.last.Dx() != 4 || local.last.Dy() != 8 {
		t.Fatalf("rotated frame = %v, want 4x8", local.last)
	}
	if s.Frames() != 2 {
		t.Fatalf("frames = %d", s.Frames())
	}
}

func TestRGB565(t *testing.T) {
	t.Parallel()
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, gfx.MustColor("#ffffff"))
	img.SetRGBA(1, 0, gfx.MustColor("#0000ff"))
	got := AppendRGB565(nil, img)
	want := []byte{0xff, 0xff, 0x1f, 0x00}
	if string(got) != string(want) {
		t.Fatalf("rgb565 = % x, want % x", got, want)
	}
}

func TestFramebufferSink(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/dev/fb0", nil, 0o644)
	sink := NewFramebufferSink(fs, "/dev/fb0")
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	if err := sink.Write(img); err != nil {
		t.Fatal(err)
	}
	b, _ := afero.ReadFile(fs, "/dev/fb0")
	if len(b) != 3*2*2 {
		t.Fatalf("wrote %d bytes, want 12", len(b))
	}
}
