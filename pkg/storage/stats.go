package storage

// Stats summarises a set of stored turns.
type Stats struct {
	Total           int            `json:"total"`
	Completed       int            `json:"completed"`
	TerminatedEarly int            `json:"terminated_early"`
	ToolCalls       int            `json:"tool_calls"`
	OrphanResults   int            `json:"orphan_results"`
	Models          map[string]int `json:"models"`
}

// Summarize counts outcomes, tool calls and models across recs. Records
// without an assembled turn count toward Total only.
func Summarize(recs []*Record) Stats {
	stats := Stats{Total: len(recs), Models: map[string]int{}}
	for _, rec := range recs {
		if rec.Turn == nil {
			continue
		}
		if rec.Turn.TerminatedEarly {
			stats.TerminatedEarly++
		} else {
			stats.Completed++
		}
		stats.ToolCalls += len(rec.Turn.ToolCalls)
		stats.OrphanResults += len(rec.Turn.OrphanResults)
		if rec.Turn.Model != "" {
			stats.Models[rec.Turn.Model]++
		}
	}
	return stats
}
