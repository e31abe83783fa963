// Package testhelpers provides common utilities for testing the room relay
// end to end.
//
// It starts fully wired servers on httptest listeners, dials WebSocket
// clients with a valid Origin, and reads relay frames with deadlines so a
// missing reply fails the test instead of hanging it.
package testhelpers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/server"
)

// TestOrigin is the origin every helper-dialed client presents. TestConfig
// allows it.
const TestOrigin = "http://localhost:8080"

// ReadTimeout bounds how long ReadFrame waits for a frame.
const ReadTimeout = 2 * time.Second

// TestConfig returns a configuration suitable for in-process servers: the
// default settings with TestOrigin allowed and metrics enabled.
func TestConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	return cfg
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StartServer builds a Server from cfg, starts its hub, and serves its routes
// on an httptest listener. Both are shut down when the test ends.
func StartServer(t *testing.T, cfg server.Config) (*server.Server, *httptest.Server) {
	t.Helper()

	srv := server.New(cfg, DiscardLogger())
	srv.StartHub()

	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(func() {
		ts.Close()
		if err := srv.Shutdown(5 * time.Second); err != nil {
			t.Logf("hub shutdown: %v", err)
		}
	})
	return srv, ts
}

// WSURL converts an httptest server URL into its WebSocket endpoint.
func WSURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// Dial opens a WebSocket connection presenting origin. An empty origin sends
// no Origin header. The handshake response is returned for status checks.
func Dial(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// ConnectWebSocket dials url with TestOrigin and closes the connection when
// the test ends.
func ConnectWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := Dial(url, TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendJSON marshals v and writes it as a single text frame.
func SendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal message: %v", err)
	}
	SendRaw(t, conn, data)
}

// SendRaw writes data as a single text frame.
func SendRaw(t *testing.T, conn *websocket.Conn, data []byte) {
	t.Helper()

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
}

// ReadFrame reads one frame, failing the test if none arrives within
// ReadTimeout.
func ReadFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return data
}

// ReadJSON reads one frame and decodes it as a JSON object.
func ReadJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	data := ReadFrame(t, conn)
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode %q: %v", data, err)
	}
	return msg
}

// ExpectType reads one frame and checks its type field.
func ExpectType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()

	msg := ReadJSON(t, conn)
	if got, _ := msg["type"].(string); got != want {
		t.Fatalf("Expected message type %q, got %v", want, msg)
	}
	return msg
}

// ExpectError reads one frame and checks it is an error with message want.
func ExpectError(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()

	msg := ExpectType(t, conn, "error")
	if got, _ := msg["message"].(string); got != want {
		t.Fatalf("Expected error message %q, got %q", want, got)
	}
}

// ExpectNoMessage fails the test if a frame arrives within timeout. The
// connection should not be read from afterwards.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, got %q", data)
	}
}

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v", timeout)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
