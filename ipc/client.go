package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// DialTimeout bounds a single connection attempt. Dials run on the
// caller's goroutine, so it stays well under one 60 Hz frame.
const DialTimeout = 4 * time.Millisecond

const readChunkSize = 4096

// Chunk is one read from the control socket. Exactly one of Data or Err is
// set. Gen identifies the connection that produced it.
type Chunk struct {
	Gen  uint64
	Data []byte
	Err  error
}

// Client is a reconnecting control-channel reader.
//
// All methods except the internal reader goroutine must be called from the
// single goroutine that owns the Client. Reads happen on a per-connection
// goroutine and arrive as Chunks; the owner passes each chunk to Handle.
type Client struct {
	path   string
	dialer net.Dialer
	dec    Decoder

	conn   net.Conn
	gen    uint64
	done   chan struct{}
	chunks chan Chunk
	wg     sync.WaitGroup
}

// NewClient returns a disconnected client for the socket at path.
func NewClient(path string) *Client {
	return &Client{
		path:   path,
		dialer: net.Dialer{Timeout: DialTimeout},
		chunks: make(chan Chunk, 16),
	}
}

// Path returns the socket path.
func (c *Client) Path() string { return c.path }

// Connected reports whether a connection is live.
func (c *Client) Connected() bool { return c.conn != nil }

// Chunks delivers reads from the live connection.
func (c *Client) Chunks() <-chan Chunk { return c.chunks }

// TryConnect dials the socket if not already connected. A failed attempt
// leaves the client disconnected; the caller retries on its own schedule.
func (c *Client) TryConnect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.dialer.DialContext(ctx, "unix", c.path)
	if err != nil {
		return err
	}
	c.gen++
	c.conn = conn
	c.done = make(chan struct{})
	c.dec.Reset()

	c.wg.Add(1)
	go c.readLoop(conn, c.gen, c.done)

	slogger().Info("ipc: connected", "path", c.path)
	return nil
}

func (c *Client) readLoop(conn net.Conn, gen uint64, done <-chan struct{}) {
	defer c.wg.Done()
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		var ch Chunk
		switch {
		case n > 0:
			ch = Chunk{Gen: gen, Data: append([]byte(nil), buf[:n]...)}
		case err != nil:
			ch = Chunk{Gen: gen, Err: err}
		default:
			continue
		}
		select {
		case c.chunks <- ch:
		case <-done:
			return
		}
		if n > 0 && err != nil {
			select {
			case c.chunks <- Chunk{Gen: gen, Err: err}:
			case <-done:
			}
			return
		}
		if ch.Err != nil {
			return
		}
	}
}

// Handle consumes a chunk on the owning goroutine. Data chunks are decoded
// into messages. A read error or EOF drops the connection; the next
// TryConnect starts a new one. Chunks from a replaced connection are
// ignored.
func (c *Client) Handle(ch Chunk) []Message {
	if c.conn == nil || ch.Gen != c.gen {
		return nil
	}
	if ch.Err != nil {
		if errors.Is(ch.Err, io.EOF) {
			slogger().Info("ipc: peer closed connection", "path", c.path)
		} else {
			slogger().Warn("ipc: read failed", "path", c.path, "err", ch.Err)
		}
		c.disconnect()
		return nil
	}
	return c.dec.Feed(ch.Data)
}

func (c *Client) disconnect() {
	if c.conn == nil {
		return
	}
	close(c.done)
	_ = c.conn.Close()
	c.conn = nil
	c.done = nil
	c.dec.Reset()
}

// Close drops the connection and waits for its reader to exit.
func (c *Client) Close() error {
	var err error
	if c.conn != nil {
		close(c.done)
		err = c.conn.Close()
		c.conn = nil
		c.done = nil
	}
	c.wg.Wait()
	return err
}
