package upstream

import (
	"bufio"
	"io"
)

// LineStream is a pull-based iterator over the raw lines of a streaming
// response body. The sequence is finite — it ends on connection close or the
// upstream's done sentinel — and single-pass: once Next returns false the
// stream is exhausted and cannot be restarted.
type LineStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
}

func newLineStream(body io.ReadCloser) *LineStream {
	sc := bufio.NewScanner(body)
	// Increase scanner buffer for large chunks
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LineStream{body: body, sc: sc}
}

// Next returns the next raw line. ok is false when the sequence is done,
// whether cleanly or by transport failure; Err distinguishes the two.
func (s *LineStream) Next() (line string, ok bool) {
	if !s.sc.Scan() {
		return "", false
	}
	return s.sc.Text(), true
}

// Err is non-nil when the sequence terminated on a transport failure rather
// than a clean close.
func (s *LineStream) Err() error {
	return s.sc.Err()
}

// Close releases the upstream connection. Safe to call after exhaustion.
func (s *LineStream) Close() error {
	return s.body.Close()
}
