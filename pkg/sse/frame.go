// Package sse reads and writes the Server-Sent Events framing used by the
// ssechat protocol. The Reader optionally tees every raw line it consumes to a
// destination writer so a relay can forward the upstream stream verbatim while
// inspecting it.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the data value that tells a consumer to close the stream.
const DoneSentinel = "[DONE]"

// Frame is a single SSE block, delimited by a blank line in the byte stream.
type Frame struct {
	// Type is the value of the "event:" field. Empty when the block had none.
	Type string

	// Data is the concatenation of every "data:" line in the block, joined
	// with "\n".
	Data string

	// ID is the value of the "id:" field, if present.
	ID string
}

// IsDone reports whether the frame is the "[DONE]" sentinel. A frame that
// names an event type is never the sentinel, even with "[DONE]" data.
func (f *Frame) IsDone() bool {
	return f.Type == "" && f.Data == DoneSentinel
}
