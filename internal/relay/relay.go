package relay

import (
	"encoding/json"
	"strings"
)

// EventType tags an outward stream event.
type EventType int

const (
	// EventDelta carries an incremental text fragment.
	EventDelta EventType = iota
	// EventFullText carries the complete text in the legacy flat shape.
	// Emitted only by the buffered fallback mode.
	EventFullText
	// EventError carries a caller-safe failure message, in-band. Always
	// followed by EventDone.
	EventError
	// EventDone terminates the sequence. Emitted exactly once per run.
	EventDone
)

func (t EventType) String() string {
	switch t {
	case EventDelta:
		return "delta"
	case EventFullText:
		return "full_text"
	case EventError:
		return "error"
	default:
		return "done"
	}
}

// Event is one outward stream event.
type Event struct {
	Type EventType
	Text string
}

// Lines is the inbound side of the relay: a finite, single-pass sequence of
// raw lines. *upstream.LineStream satisfies it.
type Lines interface {
	Next() (string, bool)
	Err() error
}

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// chunk covers the two payload shapes the upstream emits: the
// chat-completions delta shape and a flat text shape used by some backends.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Text string `json:"text"`
}

// Run drains the line sequence and turns each line into zero or more outward
// events before the next line is consumed. The emitted sequence is zero or
// more deltas followed by exactly one Done; a mid-stream failure inserts one
// Error carrying failMessage before the Done. Run returns the first error
// from emit (the caller disconnecting), nil otherwise.
func Run(lines Lines, failMessage string, emit func(Event) error) error {
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			// keep-alive padding
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == doneSentinel {
			return emit(Event{Type: EventDone})
		}

		var ch chunk
		if err := json.Unmarshal([]byte(data), &ch); err != nil {
			// Non-JSON keep-alive comment; skipping must not end the stream.
			continue
		}
		delta := ch.Text
		if len(ch.Choices) > 0 {
			delta = ch.Choices[0].Delta.Content
		}
		if delta == "" {
			// role-only preamble chunk
			continue
		}
		if err := emit(Event{Type: EventDelta, Text: delta}); err != nil {
			return err
		}
	}

	// The sequence ended without the sentinel: connection drop or transport
	// failure. Terminate fail-safe without losing already-forwarded deltas.
	if err := emit(Event{Type: EventError, Text: failMessage}); err != nil {
		return err
	}
	return emit(Event{Type: EventDone})
}

// RunBuffered wraps an already-complete text into the streamed event shape,
// for callers that requested streaming while the operator forces buffered
// mode. Legacy consumers read the flat-text frame; current consumers the
// delta frame. Both carry the full text.
func RunBuffered(text string, emit func(Event) error) error {
	if err := emit(Event{Type: EventDelta, Text: text}); err != nil {
		return err
	}
	if err := emit(Event{Type: EventFullText, Text: text}); err != nil {
		return err
	}
	return emit(Event{Type: EventDone})
}
