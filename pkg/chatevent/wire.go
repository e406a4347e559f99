package chatevent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	reasoningEnabled  = "enabled"
	reasoningDisabled = "disabled"

	defaultToolKind     = "function"
	defaultErrorReason  = "error"
	defaultFinishReason = "stop"
)

// fields is a JSON object whose values are decoded lazily, so that key
// presence can be told apart from zero values.
type fields map[string]json.RawMessage

func parseFields(event string, data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, NewProtocolError(MalformedPayload, event, "invalid JSON body").WithCause(err)
	}
	if f == nil {
		return nil, NewProtocolError(MalformedPayload, event, "body is not a JSON object")
	}
	return f, nil
}

// has reports whether key is present, including an explicit null.
func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

// isNull reports whether key is absent or null.
func (f fields) isNull(key string) bool {
	raw, ok := f[key]
	return !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (f fields) decode(event, key string, v any) error {
	if err := json.Unmarshal(f[key], v); err != nil {
		return NewProtocolError(MalformedPayload, event, fmt.Sprintf("field %q", key)).WithCause(err)
	}
	return nil
}

// str decodes a string field. A missing required field is malformed; a
// missing optional field yields def.
func (f fields) str(event, key string, required bool, def string) (string, error) {
	if f.isNull(key) {
		if required {
			return "", NewProtocolError(MalformedPayload, event, fmt.Sprintf("missing field %q", key))
		}
		return def, nil
	}
	var s string
	if err := f.decode(event, key, &s); err != nil {
		return "", err
	}
	return s, nil
}

// Parse converts an event name and its JSON body into a typed Event.
func Parse(name string, data []byte) (Event, error) {
	switch name {
	case NameStart:
		return parseStart(data)
	case NameReasoning:
		content, err := parseContent(name, data)
		if err != nil {
			return nil, err
		}
		return Reasoning{Content: content}, nil
	case NameMessage:
		content, err := parseContent(name, data)
		if err != nil {
			return nil, err
		}
		return Message{Content: content}, nil
	case NameToolCall:
		return parseToolCall(data)
	case NameToolResult:
		return parseToolResult(data)
	case NameError:
		return parseError(data)
	case NameEnd:
		return parseEnd(data)
	default:
		return nil, NewProtocolError(UnknownEventKind, name, "")
	}
}

func parseStart(data []byte) (Event, error) {
	f, err := parseFields(NameStart, data)
	if err != nil {
		return nil, err
	}

	model, err := f.str(NameStart, "model", true, "")
	if err != nil {
		return nil, err
	}

	enabled, err := parseReasoningFlag(f)
	if err != nil {
		return nil, err
	}

	return Start{Model: model, ReasoningEnabled: enabled}, nil
}

// parseReasoningFlag accepts "enabled" / "disabled" or a boolean. An absent
// flag means reasoning is disabled.
func parseReasoningFlag(f fields) (bool, error) {
	if f.isNull("reasoning") {
		return false, nil
	}

	var b bool
	if err := json.Unmarshal(f["reasoning"], &b); err == nil {
		return b, nil
	}

	var s string
	if err := f.decode(NameStart, "reasoning", &s); err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case reasoningEnabled:
		return true, nil
	case reasoningDisabled:
		return false, nil
	default:
		return false, NewProtocolError(MalformedPayload, NameStart,
			fmt.Sprintf("reasoning must be %q or %q, got %q", reasoningEnabled, reasoningDisabled, s))
	}
}

func parseContent(name string, data []byte) (string, error) {
	f, err := parseFields(name, data)
	if err != nil {
		return "", err
	}
	return f.str(name, "content", true, "")
}

func parseToolCall(data []byte) (Event, error) {
	f, err := parseFields(NameToolCall, data)
	if err != nil {
		return nil, err
	}

	id, err := f.str(NameToolCall, "id", true, "")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, NewProtocolError(MalformedPayload, NameToolCall, `empty field "id"`)
	}

	kind, err := f.str(NameToolCall, "type", false, defaultToolKind)
	if err != nil {
		return nil, err
	}

	name, err := f.str(NameToolCall, "name", true, "")
	if err != nil {
		return nil, err
	}

	args, err := parseArguments(f)
	if err != nil {
		return nil, err
	}

	return ToolCall{ID: id, Kind: kind, Name: name, Arguments: args}, nil
}

// parseArguments accepts a JSON object or a string holding a JSON object,
// the way OpenAI-compatible producers encode function arguments.
func parseArguments(f fields) (map[string]any, error) {
	args := map[string]any{}
	if f.isNull("arguments") {
		return args, nil
	}

	raw := f["arguments"]
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if strings.TrimSpace(encoded) == "" {
			return args, nil
		}
		raw = json.RawMessage(encoded)
	}

	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, NewProtocolError(MalformedPayload, NameToolCall, `field "arguments" is not a JSON object`).WithCause(err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func parseToolResult(data []byte) (Event, error) {
	f, err := parseFields(NameToolResult, data)
	if err != nil {
		return nil, err
	}

	id, err := f.str(NameToolResult, "tool_call_id", true, "")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, NewProtocolError(MalformedPayload, NameToolResult, `empty field "tool_call_id"`)
	}

	hasResult, hasError := f.has("result"), f.has("error")
	switch {
	case hasResult && hasError:
		return nil, NewProtocolError(AmbiguousToolResult, NameToolResult, `both "result" and "error" present`)
	case !hasResult && !hasError:
		return nil, NewProtocolError(AmbiguousToolResult, NameToolResult, `neither "result" nor "error" present`)
	case hasError:
		var msg string
		if err := f.decode(NameToolResult, "error", &msg); err != nil {
			return nil, err
		}
		return ToolResult{ToolCallID: id, Outcome: Failure(msg)}, nil
	default:
		var v any
		if err := f.decode(NameToolResult, "result", &v); err != nil {
			return nil, err
		}
		return ToolResult{ToolCallID: id, Outcome: Success(v)}, nil
	}
}

func parseError(data []byte) (Event, error) {
	f, err := parseFields(NameError, data)
	if err != nil {
		return nil, err
	}

	reason, err := f.str(NameError, "finish_reason", false, defaultErrorReason)
	if err != nil {
		return nil, err
	}
	msg, err := f.str(NameError, "message", false, "")
	if err != nil {
		return nil, err
	}
	detail, err := f.str(NameError, "error", false, "")
	if err != nil {
		return nil, err
	}

	return Error{FinishReason: reason, Message: msg, Detail: detail}, nil
}

func parseEnd(data []byte) (Event, error) {
	f, err := parseFields(NameEnd, data)
	if err != nil {
		return nil, err
	}

	reason, err := f.str(NameEnd, "finish_reason", false, defaultFinishReason)
	if err != nil {
		return nil, err
	}

	if f.isNull("stats") {
		return nil, NewProtocolError(MalformedPayload, NameEnd, `missing field "stats"`)
	}
	var stats Stats
	if err := f.decode(NameEnd, "stats", &stats); err != nil {
		return nil, err
	}
	if err := stats.Validate(); err != nil {
		return nil, NewProtocolError(MalformedPayload, NameEnd, "invalid stats").WithCause(err)
	}

	return End{FinishReason: reason, Stats: stats}, nil
}

// MarshalJSON encodes the start payload with a textual reasoning flag.
func (s Start) MarshalJSON() ([]byte, error) {
	flag := reasoningDisabled
	if s.ReasoningEnabled {
		flag = reasoningEnabled
	}
	return json.Marshal(struct {
		Model     string `json:"model"`
		Reasoning string `json:"reasoning"`
	}{s.Model, flag})
}

// MarshalJSON encodes exactly one of "result" or "error".
func (r ToolResult) MarshalJSON() ([]byte, error) {
	if r.Outcome.Failed() {
		return json.Marshal(struct {
			ToolCallID string `json:"tool_call_id"`
			Error      string `json:"error"`
		}{r.ToolCallID, r.Outcome.Err()})
	}
	return json.Marshal(struct {
		ToolCallID string `json:"tool_call_id"`
		Result     any    `json:"result"`
	}{r.ToolCallID, r.Outcome.Value()})
}

// UnmarshalJSON applies the same validation as the stream decoder.
func (r *ToolResult) UnmarshalJSON(data []byte) error {
	ev, err := parseToolResult(data)
	if err != nil {
		return err
	}
	*r = ev.(ToolResult)
	return nil
}
