package cliui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
	"github.com/papercomputeco/ssechat/pkg/turn"
)

// StreamPrinter writes events to a terminal as they arrive. Reasoning and
// message deltas are printed inline; every other event gets its own line.
type StreamPrinter struct {
	w    io.Writer
	last string
}

// NewStreamPrinter returns a printer writing to w.
func NewStreamPrinter(w io.Writer) *StreamPrinter {
	return &StreamPrinter{w: w}
}

// Observe prints ev. It matches pipeline.Observer.
func (p *StreamPrinter) Observe(ev chatevent.Event) {
	name := ev.EventName()
	if name != p.last && (p.last == chatevent.NameReasoning || p.last == chatevent.NameMessage) {
		fmt.Fprintln(p.w)
	}
	defer func() { p.last = name }()

	switch e := ev.(type) {
	case chatevent.Start:
		reasoning := "off"
		if e.ReasoningEnabled {
			reasoning = "on"
		}
		fmt.Fprintf(p.w, "%s %s %s\n",
			KeyStyle.Render("model:"),
			NameStyle.Render(e.Model),
			DimStyle.Render("(reasoning "+reasoning+")"),
		)

	case chatevent.Reasoning:
		fmt.Fprint(p.w, ReasoningStyle.Render(e.Content))

	case chatevent.Message:
		fmt.Fprint(p.w, e.Content)

	case chatevent.ToolCall:
		fmt.Fprintf(p.w, "%s %s(%s)\n", ToolStyle.Render("→"), NameStyle.Render(e.Name), compact(e.Arguments))

	case chatevent.ToolResult:
		fmt.Fprintf(p.w, "%s %s %s\n", ToolStyle.Render("←"), DimStyle.Render(e.ToolCallID), outcome(e.Outcome))

	case chatevent.Error:
		fmt.Fprintf(p.w, "%s %s\n", FailMark, ErrorStyle.Render(e.Message))

	case chatevent.End:
		fmt.Fprintf(p.w, "%s %s\n", SuccessMark, DimStyle.Render(statsLine(e.FinishReason, &e.Stats)))
	}
}

// RenderTurn writes a summary of an assembled turn. With markdown set the
// message text is rendered with glamour.
func RenderTurn(w io.Writer, res *turn.Result, markdown bool) error {
	if res == nil {
		return nil
	}

	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("Model:"), NameStyle.Render(res.Model))

	if res.ReasoningText != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", KeyStyle.Render("Reasoning:"), ReasoningStyle.Render(res.ReasoningText))
	}

	if len(res.ToolCalls) > 0 || len(res.OrphanResults) > 0 {
		fmt.Fprintf(w, "\n%s\n", KeyStyle.Render("Tools:"))
		for _, ex := range res.ToolCalls {
			fmt.Fprintf(w, "  %s %s(%s)", ToolStyle.Render("→"), NameStyle.Render(ex.Call.Name), compact(ex.Call.Arguments))
			if ex.Result == nil {
				fmt.Fprintf(w, " %s\n", DimStyle.Render("no result"))
				continue
			}
			fmt.Fprintf(w, " = %s\n", outcome(ex.Result.Outcome))
		}
		for _, orphan := range res.OrphanResults {
			fmt.Fprintf(w, "  %s %s %s\n", ToolStyle.Render("?"), DimStyle.Render(orphan.ToolCallID), outcome(orphan.Outcome))
		}
	}

	if res.MessageText != "" {
		text := res.MessageText
		if markdown {
			// RenderMarkdown falls back to the raw text.
			text, _ = RenderMarkdown(text)
		}
		fmt.Fprintf(w, "\n%s\n%s\n", KeyStyle.Render("Answer:"), strings.TrimRight(text, "\n"))
	}

	fmt.Fprintln(w)
	if res.TerminatedEarly {
		fmt.Fprintf(w, "%s %s %s\n", FailMark, ErrorStyle.Render(res.FinishReason), res.Failure)
		return nil
	}
	fmt.Fprintf(w, "%s %s\n", SuccessMark, DimStyle.Render(statsLine(res.FinishReason, res.Stats)))
	return nil
}

func statsLine(finish string, s *chatevent.Stats) string {
	if s == nil {
		return finish
	}
	return fmt.Sprintf("%s · %d tokens (%d prompt, %d completion) · first byte %dms · total %dms",
		finish,
		s.Tokens.Total, s.Tokens.Prompt, s.Tokens.Completion,
		s.TimingMs.FirstByte, s.TimingMs.Total,
	)
}

func outcome(o chatevent.ToolOutcome) string {
	if o.Failed() {
		return ErrorStyle.Render("error: " + o.Err())
	}
	return compact(o.Value())
}

func compact(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	if string(b) == "null" {
		return ""
	}
	return string(b)
}
