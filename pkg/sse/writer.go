package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Flusher is implemented by writers that buffer, such as http.ResponseWriter
// or *bufio.Writer.
type Flusher interface {
	Flush()
}

// Writer emits SSE frames to an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer for w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one frame. Multi-line data is split across several
// "data:" lines so that a Reader joins it back to the same value.
func (w *Writer) WriteFrame(f *Frame) error {
	var b strings.Builder

	if f.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", f.ID)
	}
	if f.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", f.Type)
	}
	for _, line := range strings.Split(f.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}

	return w.flush()
}

// WriteDone writes the "[DONE]" sentinel frame.
func (w *Writer) WriteDone() error {
	return w.WriteFrame(&Frame{Data: DoneSentinel})
}

func (w *Writer) flush() error {
	switch f := w.w.(type) {
	case *bufio.Writer:
		return f.Flush()
	case Flusher:
		f.Flush()
	}
	return nil
}
