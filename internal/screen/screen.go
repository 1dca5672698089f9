// Package screen owns the shared output surface and hands finished frames
// to the configured sinks.
package screen

import (
	"errors"
	"fmt"

	"smartmirror/internal/gfx"
	logx "smartmirror/pkg/logx"
)

type output struct {
	sink   Sink
	remote bool
}

// Screen is the full-size composition target. It is owned by the render
// loop.
type Screen struct {
	Surface *gfx.Surface
	Style   gfx.Style
	Face    gfx.Face

	rotate  int
	outputs []output
	remote  bool
	log     logx.Logger
	frames  uint64
}

// New returns a width x height screen. rotate is applied at flush.
func New(width, height int, style gfx.Style, rotate int, log logx.Logger) *Screen {
	return &Screen{
		Surface: gfx.NewSurface(gfx.Rect{X0: 0, Y0: 0, X1: width - 1, Y1: height - 1}),
		Style:   style,
		Face:    gfx.NewFace(style.FontSize),
		rotate:  rotate,
		remote:  true,
		log:     log.With(logx.String("comp", "screen")),
	}
}

func (s *Screen) Width() int  { return s.Surface.Width() }
func (s *Screen) Height() int { return s.Surface.Height() }

// AddSink registers an output. Remote sinks follow the remote-display toggle.
func (s *Screen) AddSink(sink Sink, remote bool) {
	s.outputs = append(s.outputs, output{sink: sink, remote: remote})
	s.log.Info("output sink added", logx.String("sink", sink.Name()), logx.Bool("remote", remote))
}

// Sinks returns the number of registered sinks.
func (s *Screen) Sinks() int { return len(s.outputs) }

// SetRemote enables or disables the remote sinks.
func (s *Screen) SetRemote(on bool) {
	if s.remote != on {
		s.log.Info("remote display toggled", logx.Bool("enabled", on))
	}
	s.remote = on
}

func (s *Screen) Remote() bool { return s.remote }

// Frames returns the number of frames flushed.
func (s *Screen) Frames() uint64 { return s.frames }

// Clear fills the surface with the background color.
func (s *Screen) Clear() { s.Surface.Clear(s.Style.BgColor) }

// Flush rotates the surface and writes it to every active sink. All sinks
// are attempted; their errors are joined.
func (s *Screen) Flush() error {
	img := gfx.Rotate(s.Surface.Img, s.rotate)
	var errs []error
	for _, o := range s.outputs {
		if o.remote && !s.remote {
			continue
		}
		if err := o.sink.Write(img); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.sink.Name(), err))
		}
	}
	s.frames++
	return errors.Join(errs...)
}
