package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/shinestar-cleaners/internal/chat"
	"github.com/wolfman30/shinestar-cleaners/internal/chatbot"
	"github.com/wolfman30/shinestar-cleaners/internal/contact"
	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

const validContact = `{"name":"Jane","email":"jane@example.com","message":"Need a quote"}`

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.Discard()
	relays := relay.NewMemoryFactory()
	registry := chat.NewRegistry(nil, relays,
		chat.WithEngineOptions(chatbot.WithScheduler(chatbot.Immediate), chatbot.WithLogger(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &Config{
		Logger:         logger,
		ContactHandler: contact.NewHandler(logger, contact.WithRelays(relays)),
		ChatHandler:    chat.NewHandler(registry, logger),
		Context:        ctx,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterContactEndpoint(t *testing.T) {
	var observed int
	router := newTestRouter(t, func(cfg *Config) {
		cfg.ContactLatency = func(time.Duration) { observed++ }
	})

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(validContact))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp contact.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success response, got %+v", resp)
	}
	if observed != 1 {
		t.Fatalf("expected latency to be observed once, got %d", observed)
	}
}

func TestRouterContactRateLimited(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.ContactRateLimit = 0.001
		cfg.ContactRateBurst = 1
	})

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(validContact))
		req.RemoteAddr = "198.51.100.7:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("expected first submission to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second submission to be limited, got %d", code)
	}
}

func TestRouterPrefillEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/contact/prefill?session=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterChatRoutesMounted(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var state chat.StateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if state.SessionID == "" || len(state.Messages) != 1 {
		t.Fatalf("unexpected opened session %+v", state)
	}
}

func TestRouterMetricsOptional(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics handler, got %d", rr.Code)
	}

	router = newTestRouter(t, func(cfg *Config) {
		cfg.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
	})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with metrics handler, got %d", rr.Code)
	}
}

func TestRouterServesStaticSite(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	router := newTestRouter(t, func(cfg *Config) { cfg.StaticDir = dir })

	cases := []struct {
		path string
		code int
		body string
	}{
		{"/", http.StatusOK, "home"},
		{"/assets/app.js", http.StatusOK, "console.log(1)"},
		{"/services/office", http.StatusOK, "home"},
		{"/../../etc/passwd", http.StatusOK, "home"},
		{"/api/unknown", http.StatusNotFound, "not found"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rr.Code != tc.code {
			t.Errorf("%s: expected status %d, got %d", tc.path, tc.code, rr.Code)
			continue
		}
		if !strings.Contains(rr.Body.String(), tc.body) {
			t.Errorf("%s: expected body to contain %q, got %q", tc.path, tc.body, rr.Body.String())
		}
	}
}
