package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Writer frames relay events as server-sent events on an http.ResponseWriter,
// flushing after every event so delivery is truly incremental. A write error
// means the caller disconnected; it is returned so the relay stops and the
// upstream connection can be released.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter commits the event-stream response headers. After this point
// failures can only be reported in-band.
func NewWriter(w http.ResponseWriter, requestID string) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if requestID != "" {
		h.Set("X-Request-ID", requestID)
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

type responseFrame struct {
	Response string `json:"response"`
}

type legacyFrame struct {
	Text string `json:"text"`
}

// Emit writes one event as a data frame and flushes.
func (wr *Writer) Emit(ev Event) error {
	switch ev.Type {
	case EventDone:
		if _, err := io.WriteString(wr.w, "data: [DONE]\n\n"); err != nil {
			return err
		}
	case EventFullText:
		data, err := json.Marshal(legacyFrame{Text: ev.Text})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(wr.w, "data: %s\n\n", data); err != nil {
			return err
		}
	default:
		// Delta and in-band Error share the outward frame shape.
		data, err := json.Marshal(responseFrame{Response: ev.Text})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(wr.w, "data: %s\n\n", data); err != nil {
			return err
		}
	}
	wr.flusher.Flush()
	return nil
}
