package bridge

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// FramingNDJSON writes one JSON-RPC envelope per newline-terminated line.
	FramingNDJSON Framing = "ndjson"

	// FramingContentLength writes MIME-style 'Content-Length: N' framed envelopes.
	FramingContentLength Framing = "content-length"
)

// Framing selects the wire format for outbound messages. Inbound messages are
// auto-detected per frame, so a bridge can talk to child processes using either
// convention regardless of what it writes.
type Framing string

// errSkipFrame signals an undecodable or empty frame the reader should skip.
var errSkipFrame = errors.New("skip frame")

// writeFrame writes one serialized JSON-RPC envelope and flushes.
func writeFrame(w *bufio.Writer, framing Framing, payload []byte) error {
	switch framing {
	case FramingContentLength:
		if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
	default:
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// readFrame reads one message body from the stream. A line starting with a
// Content-Length header is treated as a framed payload; anything else falls back
// to newline-delimited parsing. Returns errSkipFrame for frames the caller
// should skip, io.EOF (or the underlying error) when the stream ends.
func readFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	trimmed := bytes.TrimSpace(line)
	if err != nil {
		if len(trimmed) == 0 {
			return nil, err
		}
		// Final unterminated line still carries a message.
		return trimmed, nil
	}
	if len(trimmed) == 0 {
		return nil, errSkipFrame
	}

	lower := strings.ToLower(string(trimmed))
	if !strings.HasPrefix(lower, "content-length:") {
		return trimmed, nil
	}

	length, err := strconv.Atoi(strings.TrimSpace(lower[len("content-length:"):]))
	if err != nil || length <= 0 {
		return nil, errSkipFrame
	}

	// Consume the remaining header block up to the blank separator line.
	for {
		header, err := r.ReadBytes('\n')
		if err != nil {
			return nil, io.EOF
		}
		if len(bytes.TrimSpace(header)) == 0 {
			break
		}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, io.EOF
	}
	return body, nil
}
