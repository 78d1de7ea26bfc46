package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/attachment"
	"github.com/eldtechnologies/chatterbox/internal/config"
	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
	"github.com/eldtechnologies/chatterbox/internal/presence"
	"github.com/eldtechnologies/chatterbox/internal/realtime"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

const secret = "router-test-secret"

type testServer struct {
	*httptest.Server
	registry *presence.Registry
	tokens   map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	ds, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ds.Close)

	tokens := make(map[string]string)
	for _, u := range []*models.User{
		{ID: "a1", FullName: "Alice", Email: "a@example.com", Password: "hash"},
		{ID: "b1", FullName: "Bob", Email: "b@example.com"},
		{ID: "c1", FullName: "Carol", Email: "c@example.com"},
	} {
		if err := ds.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		tok, err := crypto.IssueSessionToken([]byte(secret), u.ID, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		tokens[u.ID] = tok
	}

	cfg := &config.Config{
		Env:            "test",
		JWTSecret:      secret,
		MaxUploadBytes: config.DefaultMaxUploadBytes,
		CORSOrigins:    []string{"*"},
	}
	registry := presence.NewRegistry()
	router := NewRouter(Options{
		Config:    cfg,
		Store:     ds,
		StoreKind: "sqlite",
		Files:     attachment.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), "", zerolog.Nop()),
		Presence:  registry,
		Logger:    zerolog.Nop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, registry: registry, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, user string, body io.Reader, contentType string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func (s *testServer) sendJSON(t *testing.T, from, to string, payload any) (int, models.Message) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	status, body := s.do(t, http.MethodPost, "/api/messages/send/"+to, from, bytes.NewReader(raw), "application/json")
	var msg models.Message
	if status == http.StatusCreated {
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Fatal(err)
		}
	}
	return status, msg
}

func (s *testServer) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?token=" + url.QueryEscape(s.tokens[user])
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.registry.Lookup(user); ok {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never registered", user)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) realtime.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env realtime.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/contacts", "/api/messages/b1", "/ws"} {
		if status, _ := s.do(t, http.MethodGet, path, "", nil, ""); status != http.StatusUnauthorized {
			t.Errorf("%s: got %d", path, status)
		}
	}
}

func TestSendJSONAndHistory(t *testing.T) {
	s := newTestServer(t)

	status, sent := s.sendJSON(t, "a1", "b1", map[string]string{"text": "hello"})
	if status != http.StatusCreated {
		t.Fatalf("send returned %d", status)
	}
	if sent.ID == "" || sent.SenderID != "a1" || sent.ReceiverID != "b1" || sent.Text != "hello" {
		t.Fatalf("unexpected message %+v", sent)
	}

	status, body := s.do(t, http.MethodGet, "/api/messages/a1", "b1", nil, "")
	if status != http.StatusOK {
		t.Fatalf("history returned %d", status)
	}
	var hist []models.Message
	if err := json.Unmarshal(body, &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].ID != sent.ID {
		t.Fatalf("unexpected history %s", body)
	}
}

func TestSendValidation(t *testing.T) {
	s := newTestServer(t)

	if status, _ := s.sendJSON(t, "a1", "b1", map[string]string{"text": "  "}); status != http.StatusBadRequest {
		t.Errorf("empty message: got %d", status)
	}
	if status, _ := s.sendJSON(t, "a1", "zz", map[string]string{"text": "hi"}); status != http.StatusNotFound {
		t.Errorf("unknown recipient: got %d", status)
	}
	if status, _ := s.sendJSON(t, "a1", "b1", map[string]string{"image": "data:image/png;base64,***"}); status != http.StatusBadRequest {
		t.Errorf("bad data url: got %d", status)
	}
	if status, _ := s.do(t, http.MethodPost, "/api/messages/send/b1", "a1", strings.NewReader("{"), "application/json"); status != http.StatusBadRequest {
		t.Errorf("malformed json: got %d", status)
	}
}

func TestSendDataURLImage(t *testing.T) {
	s := newTestServer(t)
	status, msg := s.sendJSON(t, "a1", "b1", map[string]string{"image": "data:image/png;base64,AAAA"})
	if status != http.StatusCreated {
		t.Fatalf("send returned %d", status)
	}
	if msg.Image == "" || msg.File == nil || !strings.Contains(msg.Image, attachment.UploadsPath) {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func multipartBody(t *testing.T, text, field, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if text != "" {
		mw.WriteField("text", text)
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestMultipartUploadServeAndDelete(t *testing.T) {
	s := newTestServer(t)
	payload := []byte("%PDF-1.4 test")

	body, ct := multipartBody(t, "see attached", "file", "report.pdf", "application/pdf", payload)
	status, raw := s.do(t, http.MethodPost, "/api/messages/send/b1", "a1", body, ct)
	if status != http.StatusCreated {
		t.Fatalf("send returned %d: %s", status, raw)
	}
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.File == nil || msg.File.Filename != "report.pdf" || msg.Image != "" {
		t.Fatalf("unexpected message %s", raw)
	}
	if !strings.HasPrefix(msg.File.URL, s.URL+attachment.UploadsPath) || !strings.HasSuffix(msg.File.URL, ".pdf") {
		t.Fatalf("unexpected url %q", msg.File.URL)
	}

	path := strings.TrimPrefix(msg.File.URL, s.URL)
	status, served := s.do(t, http.MethodGet, path, "", nil, "")
	if status != http.StatusOK || !bytes.Equal(served, payload) {
		t.Fatalf("upload not served: %d", status)
	}

	if status, _ := s.do(t, http.MethodDelete, "/api/messages/"+msg.ID, "b1", nil, ""); status != http.StatusForbidden {
		t.Fatalf("receiver delete: got %d", status)
	}
	if status, _ := s.do(t, http.MethodDelete, "/api/messages/"+msg.ID, "a1", nil, ""); status != http.StatusOK {
		t.Fatalf("sender delete: got %d", status)
	}
	if status, _ := s.do(t, http.MethodGet, path, "", nil, ""); status != http.StatusNotFound {
		t.Fatalf("file should be gone, got %d", status)
	}
	if status, _ := s.do(t, http.MethodDelete, "/api/messages/"+msg.ID, "a1", nil, ""); status != http.StatusNotFound {
		t.Fatalf("second delete: got %d", status)
	}
}

func TestMultipartLegacyImageField(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "", "image", "cat.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	status, raw := s.do(t, http.MethodPost, "/api/messages/send/b1", "a1", body, ct)
	if status != http.StatusCreated {
		t.Fatalf("send returned %d: %s", status, raw)
	}
	var msg models.Message
	json.Unmarshal(raw, &msg)
	if msg.Image == "" || msg.File == nil || msg.Image != msg.File.URL {
		t.Fatalf("unexpected message %s", raw)
	}
}

func TestMultipartKeepsDeclaredType(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartBody(t, "", "file", "notes.txt", "application/octet-stream", []byte("plain words"))
	status, raw := s.do(t, http.MethodPost, "/api/messages/send/b1", "a1", body, ct)
	if status != http.StatusCreated {
		t.Fatalf("send returned %d: %s", status, raw)
	}
	var msg models.Message
	json.Unmarshal(raw, &msg)
	if msg.File == nil || msg.File.MimeType != "application/octet-stream" || msg.File.Filename != "notes.txt" {
		t.Fatalf("unexpected attachment %s", raw)
	}
}

func TestMultipartSniffsMissingType(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("plain words"))
	mw.Close()

	// CreateFormFile declares octet-stream; drop it so the server sniffs.
	body := bytes.Replace(buf.Bytes(), []byte("Content-Type: application/octet-stream\r\n"), nil, 1)
	status, raw := s.do(t, http.MethodPost, "/api/messages/send/b1", "a1", bytes.NewReader(body), mw.FormDataContentType())
	if status != http.StatusCreated {
		t.Fatalf("send returned %d: %s", status, raw)
	}
	var msg models.Message
	json.Unmarshal(raw, &msg)
	if msg.File == nil || msg.File.MimeType != "text/plain" {
		t.Fatalf("expected sniffed text/plain without parameters, got %s", raw)
	}
	if !strings.HasSuffix(msg.File.URL, ".plain") {
		t.Fatalf("unexpected url %q", msg.File.URL)
	}
}

func TestUploadsDirectoryNotListed(t *testing.T) {
	s := newTestServer(t)
	if status, _ := s.do(t, http.MethodGet, "/uploads/", "", nil, ""); status != http.StatusNotFound {
		t.Fatalf("got %d", status)
	}
}

func TestContactsHide(t *testing.T) {
	s := newTestServer(t)

	contacts := func(user string) []models.User {
		status, body := s.do(t, http.MethodGet, "/api/contacts", user, nil, "")
		if status != http.StatusOK {
			t.Fatalf("contacts returned %d", status)
		}
		if bytes.Contains(body, []byte("hash")) {
			t.Fatal("password hash leaked")
		}
		var users []models.User
		if err := json.Unmarshal(body, &users); err != nil {
			t.Fatal(err)
		}
		return users
	}

	if got := contacts("a1"); len(got) != 2 {
		t.Fatalf("expected 2 contacts, got %+v", got)
	}

	for i := 0; i < 2; i++ {
		if status, _ := s.do(t, http.MethodDelete, "/api/contacts/b1", "a1", nil, ""); status != http.StatusOK {
			t.Fatalf("hide returned %d", status)
		}
	}

	got := contacts("a1")
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("unexpected contacts %+v", got)
	}
	if got := contacts("b1"); len(got) != 2 {
		t.Fatalf("hiding must be one-directional, got %+v", got)
	}
}

func TestRealtimeDelivery(t *testing.T) {
	s := newTestServer(t)
	bob := s.dial(t, "b1")
	alice := s.dial(t, "a1")

	status, body := s.do(t, http.MethodGet, "/api/contacts/online", "a1", nil, "")
	if status != http.StatusOK || !bytes.Contains(body, []byte(`"a1"`)) || !bytes.Contains(body, []byte(`"b1"`)) {
		t.Fatalf("online returned %d %s", status, body)
	}

	_, sent := s.sendJSON(t, "a1", "b1", map[string]string{"text": "ping"})

	env := readEnvelope(t, bob)
	if env.Type != "new-message" {
		t.Fatalf("unexpected event %q", env.Type)
	}
	var pushed models.Message
	if err := json.Unmarshal(env.Data, &pushed); err != nil {
		t.Fatal(err)
	}
	if pushed.ID != sent.ID || pushed.Text != "ping" {
		t.Fatalf("unexpected payload %s", env.Data)
	}

	if status, _ := s.do(t, http.MethodDelete, "/api/messages/"+sent.ID, "a1", nil, ""); status != http.StatusOK {
		t.Fatalf("delete returned %d", status)
	}
	for name, conn := range map[string]*websocket.Conn{"bob": bob, "alice": alice} {
		env := readEnvelope(t, conn)
		if env.Type != "message-deleted" || !strings.Contains(string(env.Data), sent.ID) {
			t.Fatalf("%s got %s %s", name, env.Type, env.Data)
		}
	}
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/health", "", nil, "")
	if status != http.StatusOK {
		t.Fatalf("health returned %d: %s", status, body)
	}

	s.sendJSON(t, "a1", "b1", map[string]string{"text": "x"})
	status, body = s.do(t, http.MethodGet, "/api/stats", "", nil, "")
	if status != http.StatusOK {
		t.Fatalf("stats returned %d", status)
	}
	var stats struct {
		TotalUsers    int64  `json:"totalUsers"`
		TotalMessages int64  `json:"totalMessages"`
		StorageMode   string `json:"storageMode"`
	}
	json.Unmarshal(body, &stats)
	if stats.TotalUsers != 3 || stats.TotalMessages != 1 || stats.StorageMode != "local" {
		t.Fatalf("unexpected stats %s", body)
	}
}
