package modules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/fetch"
	"smartmirror/internal/module"
	"smartmirror/internal/timer"
	logx "smartmirror/pkg/logx"
)

const oneCallURL = "https://api.openweathermap.org/data/3.0/onecall"

type weatherConfig struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	AppID   string `json:"appid"`
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Units   string `json:"units"`
	Lang    string `json:"lang"`
	Exclude string `json:"exclude"`

	Refresh   string `json:"refresh"`
	CacheFile string `json:"cache_file"`
	CacheTTL  string `json:"cache_ttl"`

	Degrees    string `json:"degrees"`
	TimeFormat string `json:"time_format"`
}

// oneCall is the subset of the OpenWeatherMap One Call response we show.
type oneCall struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Dt        int64   `json:"dt"`
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"current"`
	Daily []struct {
		Dt      int64 `json:"dt"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
	} `json:"daily"`
	Alerts []struct {
		SenderName  string `json:"sender_name"`
		Event       string `json:"event"`
		Start       int64  `json:"start"`
		End         int64  `json:"end"`
		Description string `json:"description"`
	} `json:"alerts"`
}

// Weather shows current conditions and forwards the first active alert as a
// WeatherAlertEvent.
type Weather struct {
	*module.Base
	cfg     weatherConfig
	api     *fetch.Cache
	card    module.Card
	timer   *timer.Timer
	refresh time.Duration
}

func NewWeather(env module.Env, def config.ModuleConfig) (module.Module, error) {
	cfg := weatherConfig{
		Title:      "Weather",
		URL:        oneCallURL,
		Units:      "imperial",
		Lang:       "en",
		Exclude:    "minutely,hourly",
		Degrees:    "°F",
		TimeFormat: "%I:%M %p",
	}
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, errors.New("weather: appid is required")
	}
	if cfg.Lat == "" || cfg.Lon == "" {
		return nil, errors.New("weather: lat and lon are required")
	}
	refresh, err := duration(def, "refresh", cfg.Refresh, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	ttl, err := duration(def, "cache_ttl", cfg.CacheTTL, time.Hour)
	if err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	w := &Weather{
		Base:    base,
		cfg:     cfg,
		card:    module.NewCard(),
		timer:   timer.NewWithClock(time.Nanosecond, env.Clock()),
		refresh: refresh,
	}
	w.api = newSource(base, fetch.Config{
		URL: cfg.URL,
		Params: map[string]string{
			"appid":   cfg.AppID,
			"lat":     cfg.Lat,
			"lon":     cfg.Lon,
			"units":   cfg.Units,
			"lang":    cfg.Lang,
			"exclude": cfg.Exclude,
		},
		Refresh:   refresh,
		CacheFile: cfg.CacheFile,
		TTL:       ttl,
	})
	w.card.Update(cfg.Title, loadingText, "")
	return w, nil
}

func (w *Weather) Evaluate() (bool, error) {
	if !w.timer.Expired() {
		return w.card.Dirty(), nil
	}
	var data oneCall
	res, err := w.api.FetchJSON(w.Env.Context(), false, &data)
	if res.Text == "" {
		if err != nil && !errors.Is(err, fetch.ErrNotReady) {
			w.Log.Debug("weather not available", logx.Err(err))
		}
		w.card.Update(w.cfg.Title, loadingText, "")
		w.timer.Arm(pollInterval)
		return w.card.Dirty(), nil
	}
	if errors.Is(err, fetch.ErrNotReady) {
		// The previous forecast stays up until the refresh lands.
		w.timer.Arm(pollInterval)
		return w.card.Dirty(), nil
	}
	w.timer.Arm(w.refresh)

	cur := data.Current
	body := fmt.Sprintf("%.0f%s\n%.0f %%\n%.0f%s", cur.Temp, w.cfg.Degrees, cur.Humidity, cur.FeelsLike, w.cfg.Degrees)
	footer := formatTime(time.Unix(cur.Dt, 0), w.cfg.TimeFormat)
	if len(data.Daily) > 0 && len(data.Daily[0].Weather) > 0 {
		footer = "(" + data.Daily[0].Weather[0].Description + ") " + footer
	}
	if res.Stale {
		footer += " (cached)"
	}
	w.card.Update(w.cfg.Title, body, footer)

	if len(data.Daily) > 0 {
		if err := w.Publish(eventbus.NewEvent(WeatherForecastEvent, map[string]any{"data": data})); err != nil {
			return false, err
		}
	}
	if len(data.Alerts) > 0 {
		a := data.Alerts[0]
		e := eventbus.NewEvent(WeatherAlertEvent, map[string]any{
			"header":  a.Event,
			"body":    joinParagraphs(a.Description),
			"footer":  "Expires: " + formatTime(time.Unix(a.End, 0), w.cfg.TimeFormat),
			"timeout": w.refresh.Milliseconds(),
		})
		if err := w.Publish(e); err != nil {
			return false, err
		}
		w.Log.Info("weather alert published", logx.String("alert", a.Event))
	}
	return w.card.Dirty(), nil
}

func (w *Weather) Render(bool) error {
	w.card.Draw(w.Surface(), w.Face, w.Style)
	return nil
}

// joinParagraphs unwraps hard line breaks inside paragraphs; blank lines
// still separate paragraphs.
func joinParagraphs(s string) string {
	paras := strings.Split(s, "\n\n")
	for i, p := range paras {
		lines := strings.Split(p, "\n")
		for j := range lines {
			lines[j] = strings.TrimSpace(lines[j])
		}
		paras[i] = strings.Join(lines, " ")
	}
	return strings.Join(paras, "\n\n")
}
