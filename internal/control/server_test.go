package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"smartmirror/internal/eventbus"
	logx "smartmirror/pkg/logx"
)

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/event", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPostEvent(t *testing.T) {
	t.Parallel()
	inbox := eventbus.NewInbox(1)
	s := NewServer(Config{}, inbox, nil, nil, logx.Nop())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[1,2]`, http.StatusBadRequest},
		{"not json", `event`, http.StatusBadRequest},
		{"no kind", `{"text":"hi"}`, http.StatusBadRequest},
		{"empty kind", `{"event":""}`, http.StatusBadRequest},
		{"queued", `{"event":"TextEvent","text":"hi"}`, http.StatusOK},
		{"full", `{"event":"TextEvent","text":"again"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		w := post(t, s.Handler(), tt.body)
		if w.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d (%s)", tt.name, w.Code, tt.want, w.Body.String())
		}
	}

	rec, ok := inbox.Poll()
	if !ok || rec["event"] != "TextEvent" || rec["text"] != "hi" {
		t.Fatalf("queued record = %v", rec)
	}
	if _, ok := inbox.Poll(); ok {
		t.Fatal("rejected record was queued")
	}
}

func TestPostEventResponseBody(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{}, eventbus.NewInbox(4), nil, nil, logx.Nop())
	w := post(t, s.Handler(), `{"event":"PyMirrorEvent","refresh":true}`)
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "queued" {
		t.Fatalf("body = %v", body)
	}
}

func TestPostEventRateLimited(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{RatePerSec: 0.001, Burst: 1}, eventbus.NewInbox(8), nil, nil, logx.Nop())
	if w := post(t, s.Handler(), `{"event":"A"}`); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	if w := post(t, s.Handler(), `{"event":"A"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "mirror_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := NewServer(Config{}, eventbus.NewInbox(2), reg, func() any { return map[string]int{"tasks": 3} }, logx.Nop())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"tasks":3`) {
		t.Fatalf("healthz = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "mirror_test_total 1") {
		t.Fatalf("metrics = %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsRouteAbsentWithoutGatherer(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{}, eventbus.NewInbox(2), nil, nil, logx.Nop())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
