package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GATE_TEST_STR", "  hello  ")
	t.Setenv("GATE_TEST_BOOL", "true")
	t.Setenv("GATE_TEST_INT", "42")
	t.Setenv("GATE_TEST_DUR", "90s")
	t.Setenv("GATE_TEST_BAD", "not-a-number")

	if got := EnvString("GATE_TEST_STR", "def"); got != "hello" {
		t.Fatalf("EnvString: %q", got)
	}
	if got := EnvString("GATE_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default: %q", got)
	}
	if !EnvBool("GATE_TEST_BOOL", false) {
		t.Fatal("EnvBool")
	}
	if got := EnvInt("GATE_TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt: %d", got)
	}
	if got := EnvInt("GATE_TEST_BAD", 7); got != 7 {
		t.Fatalf("EnvInt bad value: %d", got)
	}
	if got := EnvDuration("GATE_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration: %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.HTTPAddr == "" || cfg.LogLevel == "" {
		t.Fatalf("empty defaults: %+v", cfg)
	}
	if cfg.ReadHeaderTimeout <= 0 || cfg.MaxHeaderBytes <= 0 {
		t.Fatalf("bad timeout defaults: %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%v want=%v", in, got, want)
		}
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Setenv("GATE_TOKEN_HMAC_KEY", "")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: false}); err != nil {
		t.Fatalf("policy off: %v", err)
	}
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Fatal("missing key must fail under policy")
	}

	t.Setenv("GATE_TOKEN_HMAC_KEY", "short")
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err == nil {
		t.Fatal("short key must fail under policy")
	}

	t.Setenv("GATE_TOKEN_HMAC_KEY", strings.Repeat("k", 32))
	if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
}

func TestMetricPath(t *testing.T) {
	cases := map[string]string{
		"/api/content/intro": "/api/content/{id}",
		"/api/content":       "/api/content",
		"/api/login":         "/api/login",
		"/healthz":           "/healthz",
	}
	for in, want := range cases {
		if got := metricPath(in); got != want {
			t.Fatalf("metricPath(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestWithRequestLogging_CapturesStatus(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	WithRequestLogging(inner, log).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/login", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status: %d", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Fatalf("body: %q", rec.Body.String())
	}
}

func TestPrettyHandler(t *testing.T) {
	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Debug("hidden")
	log.Info("http.request", "method", "GET", "path", "/api/me", "status", 200)

	out := sb.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug leaked below level: %q", out)
	}
	if !strings.Contains(out, "msg=http.request") || !strings.Contains(out, "status=200") {
		t.Fatalf("log line: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color codes without color enabled: %q", out)
	}
}
