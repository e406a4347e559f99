// Package session enforces the legal orderings of a chat turn's event stream.
//
// State flow:
//
//	NotStarted → Started → Streaming → Terminated
//
// Only start leaves NotStarted. reasoning, message, tool_call and tool_result
// move Started to Streaming and keep Streaming. end and error move Started or
// Streaming to Terminated, which is absorbing.
package session

import (
	"fmt"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
)

// State is the position of a Machine in the session lifecycle.
type State int

const (
	NotStarted State = iota
	Started
	Streaming
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Started:
		return "Started"
	case Streaming:
		return "Streaming"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Policy decides how tool results referencing unknown calls are treated.
type Policy int

const (
	// PolicyStrict rejects unknown tool call references as fatal.
	PolicyStrict Policy = iota

	// PolicyLenient reports unknown tool call references as warnings and
	// accepts the event.
	PolicyLenient
)

func (p Policy) String() string {
	if p == PolicyLenient {
		return "lenient"
	}
	return "strict"
}

// ParsePolicy parses "strict" or "lenient".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "strict", "":
		return PolicyStrict, nil
	case "lenient":
		return PolicyLenient, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown session policy %q (available: strict, lenient)", s)
	}
}

// Options configures a Machine.
type Options struct {
	Policy Policy

	// RejectDuplicateResults fails a second tool_result for the same call id.
	RejectDuplicateResults bool
}

// Machine validates one session's events. It is not safe for concurrent use;
// a session is consumed by a single reader.
type Machine struct {
	opts  Options
	state State

	reasoningEnabled bool

	// calls tracks announced tool call ids and whether a result was seen.
	calls map[string]bool
}

// NewMachine returns a Machine in the NotStarted state.
func NewMachine(opts Options) *Machine {
	return &Machine{
		opts:  opts,
		state: NotStarted,
		calls: make(map[string]bool),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// ReasoningEnabled reports the flag carried by the start event.
func (m *Machine) ReasoningEnabled() bool {
	return m.reasoningEnabled
}

// Advance validates ev against the current state and applies the transition.
//
// A fatal *chatevent.ProtocolError leaves the machine unchanged and the event
// must not be applied downstream. A non-fatal one (an unknown tool call
// reference under PolicyLenient) is a warning: the transition was applied.
func (m *Machine) Advance(ev chatevent.Event) error {
	if m.state == Terminated {
		return chatevent.NewProtocolError(chatevent.EventAfterTermination, ev.EventName(), "session already terminated")
	}

	if m.state == NotStarted {
		start, ok := ev.(chatevent.Start)
		if !ok {
			return chatevent.NewProtocolError(chatevent.UnexpectedFirstEvent, ev.EventName(), "first event must be start")
		}
		m.reasoningEnabled = start.ReasoningEnabled
		m.state = Started
		return nil
	}

	switch e := ev.(type) {
	case chatevent.Start:
		return chatevent.NewProtocolError(chatevent.UnexpectedFirstEvent, e.EventName(), "session already started")

	case chatevent.Reasoning:
		if !m.reasoningEnabled {
			return chatevent.NewProtocolError(chatevent.UnexpectedReasoningEvent, e.EventName(), "reasoning disabled for this session")
		}
		m.state = Streaming
		return nil

	case chatevent.Message:
		m.state = Streaming
		return nil

	case chatevent.ToolCall:
		// A repeated id re-opens the call for a fresh result.
		m.calls[e.ID] = false
		m.state = Streaming
		return nil

	case chatevent.ToolResult:
		return m.advanceToolResult(e)

	case chatevent.End, chatevent.Error:
		m.state = Terminated
		return nil

	default:
		return chatevent.NewProtocolError(chatevent.UnknownEventKind, ev.EventName(), "")
	}
}

func (m *Machine) advanceToolResult(e chatevent.ToolResult) error {
	answered, known := m.calls[e.ToolCallID]

	if !known {
		err := chatevent.NewProtocolError(chatevent.UnknownToolCallReference, e.EventName(),
			fmt.Sprintf("no tool_call with id %q", e.ToolCallID))
		if m.opts.Policy == PolicyStrict {
			return err
		}
		m.state = Streaming
		return err.AsWarning()
	}

	if answered && m.opts.RejectDuplicateResults {
		return chatevent.NewProtocolError(chatevent.DuplicateToolResult, e.EventName(),
			fmt.Sprintf("tool_call %q already has a result", e.ToolCallID))
	}

	m.calls[e.ToolCallID] = true
	m.state = Streaming
	return nil
}
