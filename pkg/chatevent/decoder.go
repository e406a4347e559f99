package chatevent

import (
	"io"

	"github.com/papercomputeco/ssechat/pkg/sse"
)

// Decoder turns a raw SSE byte stream into typed events. Decoding is single
// pass: a Decoder cannot be rewound, and a fresh Decoder over the same bytes
// yields the same events.
type Decoder struct {
	r *sse.Reader

	done    bool
	sawDone bool
	err     error
}

// NewDecoder returns a Decoder reading from src.
func NewDecoder(src io.Reader) *Decoder {
	return &Decoder{r: sse.NewReader(src)}
}

// NewTeeDecoder returns a Decoder reading from src that also writes every raw
// byte it consumes to dest.
func NewTeeDecoder(src io.Reader, dest io.Writer) *Decoder {
	return &Decoder{r: sse.NewTeeReader(src, dest)}
}

// Next returns the next event.
//
// It returns io.EOF once the source is exhausted or the "[DONE]" sentinel was
// read; nothing past the sentinel is consumed. An UnknownEventKind error is
// not fatal and Next may be called again. Any other error is sticky: every
// later call returns it again.
func (d *Decoder) Next() (Event, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.done {
		return nil, io.EOF
	}

	f, err := d.r.Next()
	if err != nil {
		d.err = err
		return nil, err
	}
	if f == nil {
		d.done = true
		return nil, io.EOF
	}
	if f.IsDone() {
		d.done = true
		d.sawDone = true
		return nil, io.EOF
	}

	ev, err := Decode(f)
	if err != nil && IsFatal(err) {
		d.err = err
	}
	return ev, err
}

// SawDone reports whether the stream was closed by the "[DONE]" sentinel.
func (d *Decoder) SawDone() bool {
	return d.sawDone
}

// Decode converts a single frame into an event.
func Decode(f *sse.Frame) (Event, error) {
	return Parse(f.Type, []byte(f.Data))
}
