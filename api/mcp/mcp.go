// Package mcp exposes stored chat turns to MCP (Model Context Protocol)
// clients.
package mcp

import (
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/utils"
)

type Config struct {
	// Driver is the store the tools read turns from
	Driver storage.Driver

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the turn query tools.
func NewServer(c Config) (*Server, error) {
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ssechat",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listTurnsToolName,
		Description: listTurnsDescription,
	}, s.handleListTurns)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        getTurnToolName,
		Description: getTurnDescription,
	}, s.handleGetTurn)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        turnStatsToolName,
		Description: turnStatsDescription,
	}, s.handleTurnStats)

	s.mcpServer = mcpServer

	// Stateless: every request is answered from the store alone.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
