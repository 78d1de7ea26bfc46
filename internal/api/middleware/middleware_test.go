package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

var testSecret = []byte("test-secret")

func TestTokenFromRequestPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/contacts?token=query", nil)
	if got := TokenFromRequest(r); got != "query" {
		t.Fatalf("got %q", got)
	}

	r.Header.Set("Authorization", "Bearer header")
	if got := TokenFromRequest(r); got != "header" {
		t.Fatalf("got %q", got)
	}

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie"})
	if got := TokenFromRequest(r); got != "cookie" {
		t.Fatalf("got %q", got)
	}
}

func TestRequireAuth(t *testing.T) {
	ctx := context.Background()
	ds, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ds.Close)
	if err := ds.CreateUser(ctx, &models.User{ID: "a1", FullName: "Alice"}); err != nil {
		t.Fatal(err)
	}

	auth := NewAuthMiddleware(ds, testSecret, zerolog.Nop())
	h := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		w.Write([]byte(user.ID))
	}))

	valid, _ := crypto.IssueSessionToken(testSecret, "a1", time.Hour)
	ghost, _ := crypto.IssueSessionToken(testSecret, "ghost", time.Hour)
	forged, _ := crypto.IssueSessionToken([]byte("other"), "a1", time.Hour)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"valid", valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"unknown user", ghost, http.StatusUnauthorized},
		{"wrong secret", forged, http.StatusUnauthorized},
		{"garbage", "not.a.jwt", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
		if tc.token != "" {
			r.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != tc.status {
			t.Errorf("%s: got %d, want %d", tc.name, w.Code, tc.status)
		}
		if tc.status == http.StatusOK && w.Body.String() != "a1" {
			t.Errorf("%s: user not in context, body %q", tc.name, w.Body.String())
		}
	}
}

func TestLocalRateLimit(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})
	rl.limits = map[string]RateLimit{
		"GET /limited": {2, time.Minute, ipKey},
	}
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/limited", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	// Other clients and unlisted paths are unaffected.
	r := httptest.NewRequest(http.MethodGet, "/limited", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("second client got %d", w.Code)
	}
}

func TestLocalRateLimitPerRoute(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(method, path string) int {
		r := httptest.NewRequest(method, path, nil)
		r.RemoteAddr = "10.0.0.3:1234"
		r.Header.Set("Authorization", "Bearer same-session")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	// Exhaust the 30/min hide budget first.
	for i := 0; i < 30; i++ {
		if code := send(http.MethodDelete, "/api/contacts/b1"); code != http.StatusOK {
			t.Fatalf("hide %d got %d", i, code)
		}
	}
	if code := send(http.MethodDelete, "/api/contacts/b1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected hide budget exhausted, got %d", code)
	}

	// History has its own 120/min budget under the same session.
	for i := 0; i < 100; i++ {
		if code := send(http.MethodGet, "/api/messages/b1"); code != http.StatusOK {
			t.Fatalf("history %d got %d", i, code)
		}
	}
}

func TestRateLimitWhitelist(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{Whitelist: []string{"10.1.0.0/16", "192.168.1.5"}})
	if !rl.isWhitelisted("10.1.2.3") || !rl.isWhitelisted("192.168.1.5") {
		t.Fatal("expected whitelisted")
	}
	if rl.isWhitelisted("10.2.0.1") {
		t.Fatal("unexpected whitelist match")
	}
}

func TestValidateRequest(t *testing.T) {
	h := ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	cases := []struct {
		method, path, ct, body string
		status                 int
	}{
		{"POST", "/api/messages/send/b1", "application/json", `{"text":"hi"}`, 200},
		{"POST", "/api/messages/send/b1", "multipart/form-data; boundary=x", "--x--", 200},
		{"POST", "/api/messages/send/b1", "text/plain", "hi", http.StatusUnsupportedMediaType},
		{"GET", "/uploads/../secret", "", "", http.StatusBadRequest},
		{"GET", "/api/contacts?q=<script>", "", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, "/", strings.NewReader(tc.body))
		r.URL.Path = tc.path
		if i := strings.Index(tc.path, "?"); i >= 0 {
			r.URL.Path, r.URL.RawQuery = tc.path[:i], tc.path[i+1:]
		}
		if tc.ct != "" {
			r.Header.Set("Content-Type", tc.ct)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != tc.status {
			t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, w.Code, tc.status)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/messages/send/b1": "/api/messages/send/:id",
		"/api/messages/m1":      "/api/messages/:id",
		"/api/contacts/c1":      "/api/contacts/:id",
		"/api/contacts/online":  "/api/contacts/online",
		"/uploads/msg_1_a.png":  "/uploads/:file",
		"/api/health":           "/api/health",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
