package control

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"smartmirror/internal/eventbus"
	logx "smartmirror/pkg/logx"
)

func get(s *Server, target string, header ...string) int {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w.Code
}

func TestPprofToken(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{Addr: "127.0.0.1:0", Pprof: PprofConfig{Enabled: true, Token: "s3cret"}},
		eventbus.NewInbox(1), nil, nil, logx.Nop())

	if code := get(s, "/debug/pprof/cmdline"); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
	if code := get(s, "/debug/pprof/cmdline?token=nope"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", code)
	}
	if code := get(s, "/debug/pprof/cmdline?token=s3cret"); code != http.StatusOK {
		t.Fatalf("query token: %d", code)
	}
	if code := get(s, "/debug/pprof/cmdline", "Authorization", "Bearer s3cret"); code != http.StatusOK {
		t.Fatalf("bearer token: %d", code)
	}
}

func TestPprofRefusedOnPublicAddrWithoutToken(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{Addr: "0.0.0.0:8080", Pprof: PprofConfig{Enabled: true}},
		eventbus.NewInbox(1), nil, nil, logx.Nop())
	if code := get(s, "/debug/pprof/cmdline"); code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestPprofDisabledByDefault(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{}, eventbus.NewInbox(1), nil, nil, logx.Nop())
	if code := get(s, "/debug/pprof/"); code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:80":   true,
		"[::1]:9":        true,
		":8080":          false,
		"0.0.0.0:8080":   false,
		"10.0.0.5:8080":  false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
