package modules

import (
	"errors"
	"image"
	"math/rand/v2"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"smartmirror/internal/config"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
	"smartmirror/internal/timer"
	logx "smartmirror/pkg/logx"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true}

type slideshowConfig struct {
	Folder   string `json:"folder"`
	Interval string `json:"interval"`
	Random   bool   `json:"random"`
	Scale    string `json:"scale"`
	// Frame is an optional overlay stretched over the whole region.
	Frame string `json:"frame"`
}

// Slideshow shows the images of a folder one at a time.
type Slideshow struct {
	*module.Base
	assets   *gfx.Assets
	photos   []string
	frame    string
	mode     gfx.ScaleMode
	random   bool
	interval time.Duration
	timer    *timer.Timer
	pick     func(n int) int

	index int
	dirty bool
}

func NewSlideshow(env module.Env, def config.ModuleConfig) (module.Module, error) {
	var cfg slideshowConfig
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Folder) == "" {
		return nil, errors.New("slideshow: folder is required")
	}
	mode, err := gfx.ParseScaleMode(cfg.Scale)
	if err != nil {
		return nil, err
	}
	interval, err := duration(def, "interval", cfg.Interval, 30*time.Second)
	if err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	assets := env.Assets
	if assets == nil {
		assets = gfx.NewAssets(env.Fs)
	}
	photos, err := listImages(assets.Fs(), cfg.Folder)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		base.Log.Warn("slideshow folder has no images", logx.String("folder", cfg.Folder))
	} else {
		base.Log.Info("slideshow loaded", logx.String("folder", cfg.Folder), logx.Int("photos", len(photos)))
	}
	return &Slideshow{
		Base:     base,
		assets:   assets,
		photos:   photos,
		frame:    cfg.Frame,
		mode:     mode,
		random:   cfg.Random,
		interval: interval,
		timer:    timer.NewWithClock(time.Nanosecond, env.Clock()),
		pick:     rand.IntN,
		index:    -1,
	}, nil
}

func listImages(fs afero.Fs, folder string) ([]string, error) {
	entries, err := afero.ReadDir(fs, folder)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(path.Ext(e.Name()))] {
			continue
		}
		out = append(out, path.Join(folder, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Current returns the path of the photo on screen, "" before the first.
func (s *Slideshow) Current() string {
	if s.index < 0 || s.index >= len(s.photos) {
		return ""
	}
	return s.photos[s.index]
}

func (s *Slideshow) Evaluate() (bool, error) {
	if len(s.photos) == 0 || !s.timer.ExpiredRearm(s.interval) {
		return s.dirty, nil
	}
	if s.random {
		s.index = s.pick(len(s.photos))
	} else {
		s.index = (s.index + 1) % len(s.photos)
	}
	s.dirty = true
	return true, nil
}

func (s *Slideshow) Render(bool) error {
	s.dirty = false
	s.Clear()
	surf := s.Surface()
	if surf == nil || s.Current() == "" {
		return nil
	}
	w, h := surf.Width(), surf.Height()
	img, err := s.assets.Image(s.Current(), w, h, s.mode)
	if err != nil {
		s.Log.Warn("photo skipped", logx.String("path", s.Current()), logx.Err(err))
		return nil
	}
	b := img.Bounds()
	surf.DrawImage(img, image.Pt((w-b.Dx())/2, (h-b.Dy())/2))
	if s.frame != "" {
		if fr, err := s.assets.Image(s.frame, w, h, gfx.ScaleStretch); err == nil {
			surf.DrawImage(fr, image.Point{})
		} else {
			s.Log.Warn("frame not loaded", logx.String("path", s.frame), logx.Err(err))
		}
	}
	return nil
}
