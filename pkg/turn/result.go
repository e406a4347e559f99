// Package turn folds a validated event sequence into one assembled chat turn.
package turn

import (
	"github.com/papercomputeco/ssechat/pkg/chatevent"
)

// ToolExchange pairs a tool call with its result. Result is nil until a
// tool_result for the call arrives.
type ToolExchange struct {
	Call   chatevent.ToolCall    `json:"call"`
	Result *chatevent.ToolResult `json:"result,omitempty"`
}

// Result is the assembled record of one chat turn.
type Result struct {
	Model            string `json:"model"`
	ReasoningEnabled bool   `json:"reasoning_enabled"`
	ReasoningText    string `json:"reasoning_text"`
	MessageText      string `json:"message_text"`

	// ToolCalls is in announcement order.
	ToolCalls []ToolExchange `json:"tool_calls"`

	// OrphanResults holds tool results whose call was never announced.
	// Only populated when the session accepts them.
	OrphanResults []chatevent.ToolResult `json:"orphan_results,omitempty"`

	FinishReason string `json:"finish_reason"`

	// Stats is set only when the turn ended with an end event.
	Stats *chatevent.Stats `json:"stats,omitempty"`

	// TerminatedEarly is true when the turn ended with an error event or was
	// aborted.
	TerminatedEarly bool `json:"terminated_early"`

	// Failure is the error message of an error event or the abort reason.
	Failure string `json:"failure,omitempty"`
}

// Exchange returns the tool exchange for a call id.
func (r *Result) Exchange(id string) (ToolExchange, bool) {
	for _, ex := range r.ToolCalls {
		if ex.Call.ID == id {
			return ex, true
		}
	}
	return ToolExchange{}, false
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}

	out := *r

	if r.ToolCalls != nil {
		out.ToolCalls = make([]ToolExchange, len(r.ToolCalls))
		for i, ex := range r.ToolCalls {
			out.ToolCalls[i] = ToolExchange{Call: cloneCall(ex.Call)}
			if ex.Result != nil {
				res := cloneResult(*ex.Result)
				out.ToolCalls[i].Result = &res
			}
		}
	}

	if r.OrphanResults != nil {
		out.OrphanResults = make([]chatevent.ToolResult, len(r.OrphanResults))
		for i, res := range r.OrphanResults {
			out.OrphanResults[i] = cloneResult(res)
		}
	}

	if r.Stats != nil {
		stats := *r.Stats
		out.Stats = &stats
	}

	return &out
}

func cloneCall(c chatevent.ToolCall) chatevent.ToolCall {
	if c.Arguments != nil {
		c.Arguments = cloneValue(c.Arguments).(map[string]any)
	}
	return c
}

func cloneResult(r chatevent.ToolResult) chatevent.ToolResult {
	if r.Outcome.Failed() {
		return r
	}
	r.Outcome = chatevent.Success(cloneValue(r.Outcome.Value()))
	return r
}

// cloneValue copies the JSON shaped values produced by encoding/json.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
