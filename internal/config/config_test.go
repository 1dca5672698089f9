package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "screen": {"width": 800, "height": 480, "text_color": "#eee", "output_file": "${OUT_DIR}/frame.png"},
  "logging": {"level": "debug", "console": true},
  "tick": "20ms",
  "positions": {"top": "0,0,1,0.2"},
  "modules": [
    {"kind": "clock", "name": "clock", "position": "top", "config": {"format": "15:04"}},
    {"kind": "webapi", "name": "quotes", "position": "0,0.2,1,0.6", "config": {"url": "https://api/${API_KEY}"}},
    {"kind": "cron", "name": "alarms", "position": "None"}
  ]
}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseExpandsDotenv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", sampleJSON)
	writeFile(t, dir, ".env", "OUT_DIR=/tmp/mirror\nAPI_KEY=abc123\n")

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Screen.OutputFile != "/tmp/mirror/frame.png" {
		t.Fatalf("output_file = %q", cfg.Screen.OutputFile)
	}
	var wc struct {
		URL string `json:"url"`
	}
	if err := cfg.Modules[1].Decode(&wc); err != nil {
		t.Fatal(err)
	}
	if wc.URL != "https://api/abc123" {
		t.Fatalf("url = %q", wc.URL)
	}
	if tick, _ := cfg.TickInterval(); tick != 20*time.Millisecond {
		t.Fatalf("tick = %v", tick)
	}
	if m.Get() != cfg {
		t.Fatal("Load should commit the config")
	}
}

func TestParseProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", sampleJSON)
	writeFile(t, dir, ".env", "OUT_DIR=/from/dotenv\n")
	t.Setenv("OUT_DIR", "/from/env")

	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Screen.OutputFile != "/from/env/frame.png" {
		t.Fatalf("output_file = %q", cfg.Screen.OutputFile)
	}
}

func TestParseYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
screen:
  width: 320
  height: 240
  rotate: 90
logging:
  level: info
  console: false
modules:
  - kind: text
    name: hello
    position: "0,0,1,1"
    subscriptions: [TextEvent]
    config:
      text: hi
`)
	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Screen.Rotate != 90 || len(cfg.Modules) != 1 || cfg.Modules[0].Subscriptions[0] != "TextEvent" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"screen":{"width":1,"height":1},"logging":{},"modules":[],"telegram":{}}`)
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "screen size",
			cfg:     Config{},
			wantErr: "width and height",
		},
		{
			name: "duplicate names",
			cfg: Config{
				Screen:  ScreenConfig{Width: 10, Height: 10},
				Modules: []ModuleConfig{{Kind: "clock"}, {Kind: "clock"}},
			},
			wantErr: "duplicate module name",
		},
		{
			name: "unknown position",
			cfg: Config{
				Screen:  ScreenConfig{Width: 10, Height: 10},
				Modules: []ModuleConfig{{Kind: "clock", Position: "left"}},
			},
			wantErr: "unknown position",
		},
		{
			name: "bad tick",
			cfg: Config{
				Screen: ScreenConfig{Width: 10, Height: 10},
				Tick:   "soon",
			},
			wantErr: "invalid duration",
		},
		{
			name: "bad rotate",
			cfg: Config{
				Screen: ScreenConfig{Width: 10, Height: 10, Rotate: 45},
			},
			wantErr: "screen.rotate",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestModuleDecodeStrict(t *testing.T) {
	t.Parallel()
	m := ModuleConfig{Kind: "clock", Config: []byte(`{"format":"15:04","colour":"red"}`)}
	var v struct {
		Format string `json:"format"`
	}
	if err := m.Decode(&v); err == nil {
		t.Fatal("expected unknown field error")
	}
	if err := (ModuleConfig{Kind: "clock"}).Decode(&v); err != nil {
		t.Fatalf("absent config: %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Logging: LoggingConfig{Level: "info"},
		Modules: []ModuleConfig{
			{Kind: "clock", Name: "a"},
			{Kind: "text", Name: "b", Config: []byte(`{"text":"x"}`)},
			{Kind: "fps", Name: "gone"},
		},
	}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Modules: []ModuleConfig{
			{Kind: "clock", Name: "a"},
			{Kind: "text", Name: "b", Config: []byte(`{"text":"y"}`)},
			{Kind: "fps", Name: "new"},
		},
	}
	sections, _, mods := SummarizeConfigChange(oldCfg, newCfg)
	if !reflect.DeepEqual(sections, []string{"logging", "modules"}) {
		t.Fatalf("sections = %v", sections)
	}
	if !reflect.DeepEqual(mods, []string{"b", "gone", "new"}) {
		t.Fatalf("modules = %v", mods)
	}
}

func TestSinkDisabled(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "null", "None"} {
		if !SinkDisabled(s) {
			t.Fatalf("SinkDisabled(%q) = false", s)
		}
	}
	if SinkDisabled("/tmp/x.png") {
		t.Fatal("path should not be disabled")
	}
}
