// Package sse implements the Server-Sent-Events framing used on both
// sides of the relay: the writer emits `data: <json>` frames to the
// client and the scanner re-parses the same framing when a stage-one
// stream is drained internally. Keeping encode and decode in one place
// guarantees the two stay symmetric.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Done is the terminal sentinel frame payload. It is the only frame whose
// payload is not JSON, and it is always the last frame of a stream.
const Done = "[DONE]"

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte(Done)
)

// Writer emits SSE frames, flushing after every frame so the transport's
// native flow control provides backpressure.
type Writer struct {
	w       *bufio.Writer
	flusher http.Flusher
}

// Prepare sets the SSE response headers and returns a frame writer. It
// fails when the ResponseWriter cannot flush, which would silently buffer
// the whole stream.
func Prepare(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return NewWriter(w, flusher), nil
}

// NewWriter wraps an arbitrary writer; flusher may be nil in tests.
func NewWriter(w io.Writer, flusher http.Flusher) *Writer {
	return &Writer{w: bufio.NewWriter(w), flusher: flusher}
}

// WriteJSON marshals v and emits it as one data frame.
func (w *Writer) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return w.writeFrame(payload)
}

// WriteDone emits the terminal sentinel frame.
func (w *Writer) WriteDone() error {
	return w.writeFrame(doneMarker)
}

func (w *Writer) writeFrame(payload []byte) error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Payload extracts the JSON payload from one SSE line. It returns nil for
// blank lines, the [DONE] sentinel, non-data lines, and anything that is
// not a JSON object start.
func Payload(line []byte) []byte {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || bytes.Equal(trimmed, doneMarker) {
		return nil
	}
	if bytes.HasPrefix(trimmed, dataPrefix) {
		trimmed = bytes.TrimSpace(trimmed[len(dataPrefix):])
	}
	if len(trimmed) == 0 || bytes.Equal(trimmed, doneMarker) || trimmed[0] != '{' {
		return nil
	}
	return trimmed
}

// Scanner iterates the JSON payloads of an SSE byte stream, skipping
// framing noise and stopping at the [DONE] sentinel.
type Scanner struct {
	s       *bufio.Scanner
	payload []byte
	done    bool
}

// NewScanner returns a scanner over r. The buffer is sized for frames
// carrying inline base64 media.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Scanner{s: s}
}

// Scan advances to the next JSON payload. It returns false at end of
// input or once the sentinel has been seen.
func (sc *Scanner) Scan() bool {
	if sc.done {
		return false
	}
	for sc.s.Scan() {
		line := sc.s.Bytes()
		trimmed := bytes.TrimSpace(line)
		if bytes.HasPrefix(trimmed, dataPrefix) {
			trimmed = bytes.TrimSpace(trimmed[len(dataPrefix):])
		}
		if bytes.Equal(trimmed, doneMarker) {
			sc.done = true
			return false
		}
		if payload := Payload(line); payload != nil {
			// Copy: the scanner reuses its buffer on the next Scan.
			sc.payload = append(sc.payload[:0], payload...)
			return true
		}
	}
	return false
}

// Bytes returns the current JSON payload.
func (sc *Scanner) Bytes() []byte {
	return sc.payload
}

// Done reports whether the [DONE] sentinel was observed.
func (sc *Scanner) Done() bool {
	return sc.done
}

// Err returns the first scanning error, if any.
func (sc *Scanner) Err() error {
	return sc.s.Err()
}
