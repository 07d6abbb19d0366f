package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"nesprobe/internal/debug"
)

// syncBuffer is shared by the loggers of concurrent sessions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// bufferedConn reads frames the handshake reader already pulled in.
type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func dial(t *testing.T, url string) net.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, br, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(url, "http")+"/ws/")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if br != nil {
		return &bufferedConn{Conn: conn, r: br}
	}
	return conn
}

func readStatus(t *testing.T, conn net.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("Expected JSON message, got %q", data)
	}
	return resp
}

func TestServer_WebSocketSession(t *testing.T) {
	srv := NewServer("", nil, 0)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	defer conn.Close()

	if resp := readStatus(t, conn); resp["status"] != "ready" {
		t.Fatalf("Expected ready, got %v", resp)
	}

	steps := []struct {
		req    []byte
		status string
	}{
		{request("frame", nil), "error"},
		{request("loadRom", map[string]string{"path": writeROM(t)}), "ok"},
		{request("frame", map[string]int{"count": 2}), "ok"},
		{request("quit", nil), "quit"},
	}
	for _, step := range steps {
		if err := wsutil.WriteClientText(conn, step.req); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if resp := readStatus(t, conn); resp["status"] != step.status {
			t.Errorf("%s: expected %s, got %v", step.req, step.status, resp)
		}
	}
}

func TestServer_SessionsAreIndependent(t *testing.T) {
	ts := httptest.NewServer(NewServer("", nil, 0).Handler())
	defer ts.Close()

	first := dial(t, ts.URL)
	defer first.Close()
	second := dial(t, ts.URL)
	defer second.Close()
	readStatus(t, first)
	readStatus(t, second)

	wsutil.WriteClientText(first, request("loadRom", map[string]string{"path": writeROM(t)}))
	if resp := readStatus(t, first); resp["status"] != "ok" {
		t.Fatalf("Expected load ok, got %v", resp)
	}

	wsutil.WriteClientText(second, request("getState", nil))
	if resp := readStatus(t, second); resp["message"] != "No ROM loaded" {
		t.Errorf("Expected second session without ROM, got %v", resp)
	}
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected ListenAndServe to return after cancel")
	}
}

func TestServer_VerbosityIsPerSession(t *testing.T) {
	var logs syncBuffer
	srv := NewServer("", debug.New(&logs, 0), 0)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	first := dial(t, ts.URL)
	defer first.Close()
	second := dial(t, ts.URL)
	defer second.Close()
	readStatus(t, first)
	readStatus(t, second)

	wsutil.WriteClientText(first, request("setVerbosity", map[string]int{"level": 2}))
	if resp := readStatus(t, first); resp["status"] != "ok" {
		t.Fatalf("Expected setVerbosity ok, got %v", resp)
	}
	wsutil.WriteClientText(first, request("loadRom", map[string]string{"path": "/nonexistent/first.nes"}))
	readStatus(t, first)
	wsutil.WriteClientText(second, request("loadRom", map[string]string{"path": "/nonexistent/second.nes"}))
	readStatus(t, second)

	out := logs.String()
	if !strings.Contains(out, "first.nes") {
		t.Errorf("Expected debug output for the first session, got %q", out)
	}
	if strings.Contains(out, "second.nes") {
		t.Errorf("Expected second session to stay quiet, got %q", out)
	}
	if srv.log.Level() != 0 {
		t.Errorf("Expected server level 0, got %d", srv.log.Level())
	}
}

func TestServer_CloseSessions(t *testing.T) {
	srv := NewServer("", nil, 0)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	defer conn.Close()
	readStatus(t, conn)

	done := make(chan struct{})
	go func() {
		srv.closeSessions()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected closeSessions to return")
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := wsutil.ReadServerText(conn); err == nil {
		t.Error("Expected open session to be closed")
	}

	late := dial(t, ts.URL)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(5 * time.Second))
	if data, err := wsutil.ReadServerText(late); err == nil {
		t.Errorf("Expected connection after close to be dropped, got %q", data)
	}
}
