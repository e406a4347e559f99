package turn

import (
	"github.com/papercomputeco/ssechat/pkg/chatevent"
)

// Assembler accumulates the events of one session into a Result. Events must
// already be validated by a session.Machine; Apply never fails.
//
// Once a terminal event is applied, or Abort is called, the result is frozen
// and further events are ignored.
type Assembler struct {
	res    Result
	frozen bool

	// index maps a tool call id to its position in res.ToolCalls.
	index map[string]int
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{index: make(map[string]int)}
}

// Apply folds ev into the result.
func (a *Assembler) Apply(ev chatevent.Event) {
	if a.frozen {
		return
	}

	switch e := ev.(type) {
	case chatevent.Start:
		a.res.Model = e.Model
		a.res.ReasoningEnabled = e.ReasoningEnabled

	case chatevent.Reasoning:
		a.res.ReasoningText += e.Content

	case chatevent.Message:
		a.res.MessageText += e.Content

	case chatevent.ToolCall:
		// A repeated id replaces the earlier call and clears its result.
		if i, ok := a.index[e.ID]; ok {
			a.res.ToolCalls[i] = ToolExchange{Call: cloneCall(e)}
			return
		}
		a.index[e.ID] = len(a.res.ToolCalls)
		a.res.ToolCalls = append(a.res.ToolCalls, ToolExchange{Call: cloneCall(e)})

	case chatevent.ToolResult:
		res := cloneResult(e)
		if i, ok := a.index[e.ToolCallID]; ok {
			a.res.ToolCalls[i].Result = &res
			return
		}
		a.res.OrphanResults = append(a.res.OrphanResults, res)

	case chatevent.End:
		stats := e.Stats
		a.res.FinishReason = e.FinishReason
		a.res.Stats = &stats
		a.res.TerminatedEarly = false
		a.frozen = true

	case chatevent.Error:
		a.res.FinishReason = e.FinishReason
		a.res.Failure = e.Message
		a.res.Stats = nil
		a.res.TerminatedEarly = true
		a.frozen = true
	}
}

// Abort freezes the partial result as terminated early. It is a no-op on a
// result that is already frozen.
func (a *Assembler) Abort(reason string) {
	if a.frozen {
		return
	}
	a.res.TerminatedEarly = true
	a.res.Failure = reason
	a.frozen = true
}

// Frozen reports whether the result is final.
func (a *Assembler) Frozen() bool {
	return a.frozen
}

// Result returns a deep copy of the result so far.
func (a *Assembler) Result() *Result {
	return a.res.Clone()
}
