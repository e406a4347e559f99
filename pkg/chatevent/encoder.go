package chatevent

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/papercomputeco/ssechat/pkg/sse"
)

// Encoder writes events as SSE frames.
type Encoder struct {
	w *sse.Writer
}

// NewEncoder returns an Encoder writing to w. Frames are flushed as they are
// written when w supports flushing.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: sse.NewWriter(w)}
}

// Encode writes one event.
func (e *Encoder) Encode(ev Event) error {
	f, err := Frame(ev)
	if err != nil {
		return err
	}
	return e.w.WriteFrame(f)
}

// Done writes the "[DONE]" sentinel.
func (e *Encoder) Done() error {
	return e.w.WriteDone()
}

// Frame converts an event into its SSE frame.
func Frame(ev Event) (*sse.Frame, error) {
	if ev == nil {
		return nil, fmt.Errorf("encoding nil event")
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.EventName(), err)
	}

	return &sse.Frame{Type: ev.EventName(), Data: string(data)}, nil
}
