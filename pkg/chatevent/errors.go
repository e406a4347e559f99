package chatevent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies protocol violations.
type ErrorKind int

const (
	// UnknownEventKind is an "event:" name this package does not know.
	UnknownEventKind ErrorKind = iota + 1

	// MalformedPayload is a data body that is not valid JSON for its kind.
	MalformedPayload

	// AmbiguousToolResult is a tool_result with both or neither of
	// "result" and "error".
	AmbiguousToolResult

	// EventAfterTermination is any event following end or error.
	EventAfterTermination

	// UnexpectedReasoningEvent is a reasoning event in a turn that started
	// with reasoning disabled.
	UnexpectedReasoningEvent

	// UnknownToolCallReference is a tool_result whose id no tool_call
	// announced.
	UnknownToolCallReference

	// UnexpectedFirstEvent is a turn that does not open with start, or a
	// second start.
	UnexpectedFirstEvent

	// DuplicateToolResult is a second tool_result for the same call id.
	DuplicateToolResult
)

// Sentinels usable with errors.Is against any *ProtocolError of that kind.
var (
	ErrUnknownEventKind         = errors.New("unknown event kind")
	ErrMalformedPayload         = errors.New("malformed payload")
	ErrAmbiguousToolResult      = errors.New("ambiguous tool result")
	ErrEventAfterTermination    = errors.New("event after termination")
	ErrUnexpectedReasoningEvent = errors.New("unexpected reasoning event")
	ErrUnknownToolCallReference = errors.New("unknown tool call reference")
	ErrUnexpectedFirstEvent     = errors.New("unexpected first event")
	ErrDuplicateToolResult      = errors.New("duplicate tool result")
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownEventKind:
		return "UnknownEventKind"
	case MalformedPayload:
		return "MalformedPayload"
	case AmbiguousToolResult:
		return "AmbiguousToolResult"
	case EventAfterTermination:
		return "EventAfterTermination"
	case UnexpectedReasoningEvent:
		return "UnexpectedReasoningEvent"
	case UnknownToolCallReference:
		return "UnknownToolCallReference"
	case UnexpectedFirstEvent:
		return "UnexpectedFirstEvent"
	case DuplicateToolResult:
		return "DuplicateToolResult"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case UnknownEventKind:
		return ErrUnknownEventKind
	case MalformedPayload:
		return ErrMalformedPayload
	case AmbiguousToolResult:
		return ErrAmbiguousToolResult
	case EventAfterTermination:
		return ErrEventAfterTermination
	case UnexpectedReasoningEvent:
		return ErrUnexpectedReasoningEvent
	case UnknownToolCallReference:
		return ErrUnknownToolCallReference
	case UnexpectedFirstEvent:
		return ErrUnexpectedFirstEvent
	case DuplicateToolResult:
		return ErrDuplicateToolResult
	default:
		return nil
	}
}

// ProtocolError reports a protocol violation found while decoding or
// validating a stream.
type ProtocolError struct {
	Kind ErrorKind

	// Event is the wire name of the offending event, or the literal unknown
	// name for UnknownEventKind.
	Event string

	// Detail is a human readable explanation.
	Detail string

	// Err is the underlying cause, if any (e.g. a JSON syntax error).
	Err error

	fatal bool
}

// NewProtocolError returns an error of the given kind. Every kind except
// UnknownEventKind is fatal until marked otherwise with AsWarning.
func NewProtocolError(kind ErrorKind, event, detail string) *ProtocolError {
	return &ProtocolError{
		Kind:   kind,
		Event:  event,
		Detail: detail,
		fatal:  kind != UnknownEventKind,
	}
}

// WithCause attaches an underlying error.
func (e *ProtocolError) WithCause(err error) *ProtocolError {
	e.Err = err
	return e
}

// AsWarning marks the error non-fatal.
func (e *ProtocolError) AsWarning() *ProtocolError {
	e.fatal = false
	return e
}

// Fatal reports whether the session must stop.
func (e *ProtocolError) Fatal() bool {
	return e.fatal
}

func (e *ProtocolError) Error() string {
	msg := e.Kind.String()
	if e.Event != "" || e.Kind == UnknownEventKind {
		msg += fmt.Sprintf(" (event %q)", e.Event)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ProtocolError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsFatal reports whether err must stop a session. Errors that are not
// protocol errors, such as I/O failures, are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Fatal()
	}
	return true
}

// KindOf returns the ErrorKind of err, or 0 when err is not a protocol error.
func KindOf(err error) ErrorKind {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
