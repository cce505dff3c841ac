package ipc

import (
	"bytes"
	"unicode/utf8"
)

// MaxBufferSize bounds the bytes held while waiting for a newline. A peer
// that exceeds it loses everything buffered so far.
const MaxBufferSize = 1 << 20

// Decoder splits a byte stream into newline-terminated records and parses
// each one as a Message. It never blocks and holds no state beyond the
// pending partial line. The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends data to the pending buffer and returns every message
// completed by it. Malformed records are logged and skipped individually.
func (d *Decoder) Feed(data []byte) []Message {
	d.buf = append(d.buf, data...)
	if len(d.buf) > MaxBufferSize {
		slogger().Warn("ipc: decode buffer overflow, discarding",
			"buffered", len(d.buf), "limit", MaxBufferSize)
		d.Reset()
		return nil
	}

	var msgs []Message
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if !utf8.Valid(line) {
			slogger().Warn("ipc: dropping non-UTF-8 line", "len", len(line))
			continue
		}
		msg, err := parseMessage(line)
		if err != nil {
			slogger().Warn("ipc: dropping line", "err", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	if len(d.buf) == 0 {
		d.buf = nil
	}
	return msgs
}

// Buffered returns the number of bytes waiting for a newline.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Reset drops any partial line.
func (d *Decoder) Reset() { d.buf = nil }
