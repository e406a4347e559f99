package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// ErrLineTooLong is returned when a single line exceeds maxLineSize.
var ErrLineTooLong = errors.New("sse: line too long")

// Reader reads SSE frames from a source io.Reader. When constructed with
// NewTeeReader every raw line, terminator included, is also written to a
// destination writer before it is parsed, so the destination receives the
// source bytes unchanged:
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
type Reader struct {
	src  *bufio.Reader
	dest io.Writer
	eof  bool

	// current accumulates fields for the frame being built.
	current   *Frame
	hasData   bool
	dataLines int
}

// NewReader returns a Reader that parses frames from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses frames from src and writes all
// raw bytes through to dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return &Reader{
		src:     bufio.NewReaderSize(src, initialBufferSize),
		dest:    dest,
		current: &Frame{},
	}
}

// Next blocks until a complete frame is available and returns it.
// Next returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Frame, error) {
	for !r.eof {
		raw, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if raw == "" {
			break
		}

		if r.dest != nil {
			if _, err := io.WriteString(r.dest, raw); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")

		if line == "" {
			if r.hasData {
				return r.take(), nil
			}

			// Leading blank lines and keep-alive newlines.
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		r.parseLine(line)
	}

	// The stream ended without a trailing blank line.
	if r.hasData {
		return r.take(), nil
	}

	return nil, nil
}

// readLine returns the next line with its terminator. The final line of the
// source may have none. An empty string means the source is exhausted.
func (r *Reader) readLine() (string, error) {
	var sb strings.Builder
	for {
		chunk, err := r.src.ReadSlice('\n')
		sb.Write(chunk)
		if sb.Len() > maxLineSize {
			return "", ErrLineTooLong
		}

		switch {
		case err == nil:
			return sb.String(), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			r.eof = true
			return sb.String(), nil
		default:
			return "", err
		}
	}
}

// parseLine accumulates a single "field:value" line into the current frame.
// A single leading space after the colon is stripped.
func (r *Reader) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		field = line
	}

	switch field {
	case "data":
		if r.dataLines > 0 {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.dataLines++
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *Reader) take() *Frame {
	f := r.current
	r.current = &Frame{}
	r.hasData = false
	r.dataLines = 0
	return f
}
