package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/sentinel/anim"
)

func TestResolveSocketPath(t *testing.T) {
	tests := []struct {
		name, override, runtime, want string
	}{
		{"override wins", "/run/custom.sock", "/run/user/1000", "/run/custom.sock"},
		{"runtime dir", "", "/run/user/1000", "/run/user/1000/sentinel.sock"},
		{"fallback", "", "", FallbackSocketPath},
	}
	for _, tt := range tests {
		if got := ResolveSocketPath(tt.override, tt.runtime); got != tt.want {
			t.Errorf("%s: ResolveSocketPath() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// listen starts a Unix listener in a temp dir and returns its path.
func listen(t *testing.T) (net.Listener, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, path
}

func accept(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return conn
}

// next waits for one chunk and hands it to the client.
func next(t *testing.T, c *Client) (Chunk, []Message) {
	t.Helper()
	select {
	case ch := <-c.Chunks():
		return ch, c.Handle(ch)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return Chunk{}, nil
	}
}

func TestClientConnectFailsWithoutServer(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	defer c.Close()
	if err := c.TryConnect(context.Background()); err == nil {
		t.Fatal("TryConnect succeeded with no listener")
	}
	if c.Connected() {
		t.Error("Connected() = true after failed dial")
	}
}

func TestClientReceivesMessages(t *testing.T) {
	ln, path := listen(t)
	c := NewClient(path)
	defer c.Close()

	if err := c.TryConnect(context.Background()); err != nil {
		t.Fatalf("TryConnect: %v", err)
	}
	server := accept(t, ln)
	defer server.Close()

	if _, err := server.Write([]byte(`{"type":"state","state":"alert","intensity":0.8}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, msgs := next(t, c)
	if len(msgs) != 1 || msgs[0].State != anim.Alert {
		t.Fatalf("messages = %+v, want one alert", msgs)
	}
}

func TestClientReconnectsAfterPeerClose(t *testing.T) {
	ln, path := listen(t)
	c := NewClient(path)
	defer c.Close()

	if err := c.TryConnect(context.Background()); err != nil {
		t.Fatalf("TryConnect: %v", err)
	}
	first := accept(t, ln)
	// Leave a partial line behind; it must not leak into the next connection.
	first.Write([]byte(`{"type":"state",`))
	first.Close()

	for c.Connected() {
		next(t, c)
	}

	if err := c.TryConnect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	second := accept(t, ln)
	defer second.Close()
	second.Write([]byte(`{"type":"state","state":"sleepy","intensity":0.1}` + "\n"))

	_, msgs := next(t, c)
	if len(msgs) != 1 || msgs[0].State != anim.Sleepy {
		t.Fatalf("messages after reconnect = %+v, want one sleepy", msgs)
	}
}

func TestClientIgnoresStaleChunks(t *testing.T) {
	c := NewClient("unused")
	c.gen = 3
	c.conn = &net.UnixConn{}
	if msgs := c.Handle(Chunk{Gen: 2, Data: []byte(`{"type":"state","state":"idle","intensity":1}` + "\n")}); msgs != nil {
		t.Errorf("stale chunk decoded: %+v", msgs)
	}
	c.conn = nil
}

func TestClientTryConnectWhenConnectedIsNoop(t *testing.T) {
	ln, path := listen(t)
	c := NewClient(path)
	defer c.Close()
	if err := c.TryConnect(context.Background()); err != nil {
		t.Fatalf("TryConnect: %v", err)
	}
	server := accept(t, ln)
	defer server.Close()

	gen := c.gen
	if err := c.TryConnect(context.Background()); err != nil {
		t.Fatalf("second TryConnect: %v", err)
	}
	if c.gen != gen {
		t.Errorf("second TryConnect dialed again (gen %d -> %d)", gen, c.gen)
	}
}
