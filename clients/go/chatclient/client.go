// Package chatclient is a Go client for the chat HTTP and websocket API.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eldtechnologies/chatterbox/internal/models"
)

// Client is a chat API client authenticated with a session token.
type Client struct {
	BaseURL    string
	ConfigDir  string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new client and loads a saved token if one exists.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("CHAT_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".chatterbox")
	}

	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadToken()
	return c
}

// LoadToken reads the saved session token from disk.
func (c *Client) LoadToken() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "token"))
	if err != nil {
		return err
	}
	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken stores token on disk for later invocations.
func (c *Client) SaveToken(token string) error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	c.Token = token
	return os.WriteFile(filepath.Join(c.ConfigDir, "token"), []byte(token), 0600)
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat error %d: %s", e.Status, e.Message)
}

// doRequest performs an HTTP request and returns the response body.
func (c *Client) doRequest(method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, nil
}

func (c *Client) getJSON(path string, out any) error {
	respBody, err := c.doRequest("GET", path, nil, "")
	if err != nil {
		return err
	}
	return json.Unmarshal(respBody, out)
}

// Contacts lists the users visible to the caller.
func (c *Client) Contacts() ([]models.User, error) {
	var users []models.User
	if err := c.getJSON("/api/contacts", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Online lists the IDs of connected users.
func (c *Client) Online() ([]string, error) {
	var resp struct {
		Online []string `json:"online"`
	}
	if err := c.getJSON("/api/contacts/online", &resp); err != nil {
		return nil, err
	}
	return resp.Online, nil
}

// HideContact removes userID from the caller's contact list.
func (c *Client) HideContact(userID string) error {
	_, err := c.doRequest("DELETE", "/api/contacts/"+url.PathEscape(userID), nil, "")
	return err
}

// History returns the conversation with counterpartID.
func (c *Client) History(counterpartID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.getJSON("/api/messages/"+url.PathEscape(counterpartID), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendText sends a text-only message.
func (c *Client) SendText(receiverID, text string) (*models.Message, error) {
	reqBody, _ := json.Marshal(map[string]string{"text": text})
	return c.send(receiverID, bytes.NewReader(reqBody), "application/json")
}

// SendFile sends a message with one attachment read from r.
func (c *Client) SendFile(receiverID, text, filename, contentType string, r io.Reader) (*models.Message, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if text != "" {
		if err := mw.WriteField("text", text); err != nil {
			return nil, err
		}
	}

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return c.send(receiverID, &buf, mw.FormDataContentType())
}

func (c *Client) send(receiverID string, body io.Reader, contentType string) (*models.Message, error) {
	respBody, err := c.doRequest("POST", "/api/messages/send/"+url.PathEscape(receiverID), body, contentType)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage deletes a message the caller sent.
func (c *Client) DeleteMessage(messageID string) error {
	_, err := c.doRequest("DELETE", "/api/messages/"+url.PathEscape(messageID), nil, "")
	return err
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Region    string                 `json:"region,omitempty"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health. A degraded server still returns a body.
func (c *Client) Health() (*HealthResponse, error) {
	req, err := http.NewRequest("GET", c.BaseURL+"/api/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Event is one pushed realtime event.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Listen connects to the realtime channel and calls fn for every event
// until ctx is cancelled or the connection drops.
func (c *Client) Listen(ctx context.Context, fn func(Event)) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(ev)
	}
}
