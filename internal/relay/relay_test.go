package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn records every frame queued to it.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// decoded returns every queued frame as a JSON object.
func (c *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	frames := c.Frames()
	out := make([]map[string]any, len(frames))
	for i, f := range frames {
		require.NoError(t, json.Unmarshal(f, &out[i]), "frame %d: %s", i, f)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type peer struct {
	conn    *fakeConn
	session *Session
}

func newPeer() peer {
	c := &fakeConn{}
	return peer{conn: c, session: NewSession(c, "127.0.0.1:0")}
}

func newTestRouter() *Router {
	logger := discardLogger()
	return NewRouter(NewRegistry(logger, nil), NewRateLimiter(DefaultWindow, DefaultMaxMessages), logger, nil)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
