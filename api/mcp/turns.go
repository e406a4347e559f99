package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/storage"
)

var (
	listTurnsToolName    = "list_turns"
	listTurnsDescription = "List stored chat turns, most recently completed first. Each turn carries the assembled reply text, tool calls with their results, and the final statistics."

	getTurnToolName    = "get_turn"
	getTurnDescription = "Fetch one stored chat turn by its id."

	turnStatsToolName    = "turn_stats"
	turnStatsDescription = "Summarise every stored chat turn: how many completed, how many were cut short, tool call and orphan result counts, and turns per model."
)

// defaultListLimit caps list_turns when the caller gives no limit.
const defaultListLimit = 20

// ListTurnsInput represents the input arguments for the list_turns tool.
type ListTurnsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of turns to return (default: 20)"`
}

// ListTurnsOutput represents the output of the list_turns tool.
type ListTurnsOutput struct {
	Count int               `json:"count"`
	Turns []*storage.Record `json:"turns"`
}

// GetTurnInput represents the input arguments for the get_turn tool.
type GetTurnInput struct {
	ID string `json:"id" jsonschema:"the id of the stored turn"`
}

// TurnStatsInput takes no arguments.
type TurnStatsInput struct{}

// list_turns and get_turn return records whose tool values have no fixed
// shape, so their output type is any and no output schema is inferred.

func (s *Server) handleListTurns(ctx context.Context, _ *mcp.CallToolRequest, input ListTurnsInput) (*mcp.CallToolResult, any, error) {
	logger := s.config.Logger

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	logger.Debug("MCP list_turns request", zap.Int("limit", limit))

	recs, err := s.config.Driver.List(ctx, limit)
	if err != nil {
		logger.Error("failed to list turns", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to list turns: %v", err)), nil, nil
	}
	if recs == nil {
		recs = []*storage.Record{}
	}

	output := ListTurnsOutput{Count: len(recs), Turns: recs}
	return s.jsonResult(output), output, nil
}

func (s *Server) handleGetTurn(ctx context.Context, _ *mcp.CallToolRequest, input GetTurnInput) (*mcp.CallToolResult, any, error) {
	logger := s.config.Logger

	if input.ID == "" {
		return errorResult("id is required"), nil, nil
	}

	logger.Debug("MCP get_turn request", zap.String("id", input.ID))

	rec, err := s.config.Driver.Get(ctx, input.ID)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return errorResult(nf.Error()), nil, nil
		}
		logger.Error("failed to get turn", zap.String("id", input.ID), zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to get turn: %v", err)), nil, nil
	}

	return s.jsonResult(rec), rec, nil
}

func (s *Server) handleTurnStats(ctx context.Context, _ *mcp.CallToolRequest, _ TurnStatsInput) (*mcp.CallToolResult, storage.Stats, error) {
	recs, err := s.config.Driver.List(ctx, 0)
	if err != nil {
		s.config.Logger.Error("failed to list turns", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to list turns: %v", err)), storage.Stats{}, nil
	}

	stats := storage.Summarize(recs)
	return s.jsonResult(stats), stats, nil
}

// jsonResult serializes v into a TextContent block alongside the structured
// output, for clients that only read text content.
func (s *Server) jsonResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		s.config.Logger.Error("failed to marshal tool output", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
