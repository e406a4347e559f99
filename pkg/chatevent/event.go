// Package chatevent defines the typed events of the ssechat streaming protocol
// and converts them to and from SSE frames.
//
// A chat turn on the wire is a sequence of frames:
//
//	event: start        {"model": "deepseek-chat", "reasoning": "enabled"}
//	event: reasoning    {"content": "..."}
//	event: message      {"content": "..."}
//	event: tool_call    {"id": "call_1", "type": "function", "name": "...", "arguments": {...}}
//	event: tool_result  {"tool_call_id": "call_1", "result": ...} | {"tool_call_id": "call_1", "error": "..."}
//	event: error        {"finish_reason": "error", "message": "..."}
//	event: end          {"finish_reason": "stop", "stats": {...}}
//	data: [DONE]
package chatevent

import "fmt"

// Wire names of every event kind.
const (
	NameStart      = "start"
	NameReasoning  = "reasoning"
	NameMessage    = "message"
	NameToolCall   = "tool_call"
	NameToolResult = "tool_result"
	NameError      = "error"
	NameEnd        = "end"
)

// Event is the sealed sum of all protocol events. The unexported marker
// method prevents implementations outside this package.
type Event interface {
	// EventName returns the wire name of the event kind.
	EventName() string

	event()
}

// Start opens a chat turn.
type Start struct {
	Model            string
	ReasoningEnabled bool
}

// Reasoning carries a fragment of the model's intermediate reasoning.
type Reasoning struct {
	Content string `json:"content"`
}

// Message carries a fragment of the final answer text.
type Message struct {
	Content string `json:"content"`
}

// ToolCall announces a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Kind      string         `json:"type"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult carries the outcome of a previously announced tool call.
type ToolResult struct {
	ToolCallID string
	Outcome    ToolOutcome
}

// Error terminates a chat turn early.
type Error struct {
	FinishReason string `json:"finish_reason"`
	Message      string `json:"message"`

	// Detail is the raw upstream error text, when the producer sent one.
	Detail string `json:"error,omitempty"`
}

// End terminates a chat turn normally.
type End struct {
	FinishReason string `json:"finish_reason"`
	Stats        Stats  `json:"stats"`
}

func (Start) EventName() string      { return NameStart }
func (Reasoning) EventName() string  { return NameReasoning }
func (Message) EventName() string    { return NameMessage }
func (ToolCall) EventName() string   { return NameToolCall }
func (ToolResult) EventName() string { return NameToolResult }
func (Error) EventName() string      { return NameError }
func (End) EventName() string        { return NameEnd }

func (Start) event()      {}
func (Reasoning) event()  {}
func (Message) event()    {}
func (ToolCall) event()   {}
func (ToolResult) event() {}
func (Error) event()      {}
func (End) event()        {}

// Interface compliance checks.
var (
	_ Event = Start{}
	_ Event = Reasoning{}
	_ Event = Message{}
	_ Event = ToolCall{}
	_ Event = ToolResult{}
	_ Event = Error{}
	_ Event = End{}
)

// IsTerminal reports whether ev ends a chat turn.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case End, *End, Error, *Error:
		return true
	default:
		return false
	}
}

// ToolOutcome holds exactly one of a success value or a failure message.
type ToolOutcome struct {
	value  any
	errMsg string
	failed bool
}

// Success returns an outcome carrying the tool's result value.
func Success(v any) ToolOutcome {
	return ToolOutcome{value: v}
}

// Failure returns an outcome carrying the tool's error message.
func Failure(msg string) ToolOutcome {
	return ToolOutcome{errMsg: msg, failed: true}
}

// Failed reports whether the tool call failed.
func (o ToolOutcome) Failed() bool {
	return o.failed
}

// Value returns the result value of a successful outcome, nil otherwise.
func (o ToolOutcome) Value() any {
	if o.failed {
		return nil
	}
	return o.value
}

// Err returns the error message of a failed outcome, "" otherwise.
func (o ToolOutcome) Err() string {
	return o.errMsg
}

// Stats is reported once, on End.
type Stats struct {
	ToolCalls   uint   `json:"tool_calls"`
	ToolResults uint   `json:"tool_results"`
	Tokens      Tokens `json:"tokens"`
	TimingMs    Timing `json:"timing_ms"`
}

// Tokens holds token counts. Total is always Prompt + Completion.
type Tokens struct {
	Prompt     uint `json:"prompt"`
	Completion uint `json:"completion"`
	Total      uint `json:"total"`
}

// Timing holds stream timings in milliseconds. Total is never below FirstByte.
type Timing struct {
	FirstByte uint `json:"first_byte"`
	Total     uint `json:"total"`
}

// Validate checks the Stats invariants.
func (s Stats) Validate() error {
	if s.Tokens.Total != s.Tokens.Prompt+s.Tokens.Completion {
		return fmt.Errorf("tokens.total %d != prompt %d + completion %d",
			s.Tokens.Total, s.Tokens.Prompt, s.Tokens.Completion)
	}
	if s.TimingMs.Total < s.TimingMs.FirstByte {
		return fmt.Errorf("timing_ms.total %d < first_byte %d",
			s.TimingMs.Total, s.TimingMs.FirstByte)
	}
	return nil
}
