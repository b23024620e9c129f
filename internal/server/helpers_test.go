package server

import (
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/lanpreview/internal/netif"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

// freePort asks the OS for an unused TCP port and releases it.
func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint16(port)
}

// newTestServer creates a stopped server on a free port that is stopped again
// when the test ends.
func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	return newConfiguredServer(t, nil, opts...)
}

// newConfiguredServer is newTestServer with a hook to adjust the config.
func newConfiguredServer(t *testing.T, configure func(*Config), opts ...Option) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = freePort(t)
	cfg.ShutdownTimeout = 3 * time.Second
	if configure != nil {
		configure(&cfg)
	}

	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	srv, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Stop()
	})
	return srv
}

// dialWebSocket connects a test client to url.
func dialWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	conn, resp, err := dialer.Dial(url, http.Header{})
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// readMessage reads one frame with a deadline.
func readMessage(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return kind, data
}

// waitForSession waits until the server tracks a session other than prev.
func waitForSession(t *testing.T, srv *Server, prev *Session) *Session {
	t.Helper()
	var got *Session
	require.Eventually(t, func() bool {
		got = srv.CurrentSession()
		return got != nil && got != prev
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

// fakeResolver records calls and answers with a fixed result.
type fakeResolver struct {
	mu     sync.Mutex
	addr   string
	err    error
	calls  int
	names  []string
	family []netif.Family
}

func (f *fakeResolver) Resolve(name string, family netif.Family) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.names = append(f.names, name)
	f.family = append(f.family, family)
	return f.addr, f.err
}
