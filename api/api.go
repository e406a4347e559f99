package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/api/mcp"
	"github.com/papercomputeco/ssechat/pkg/storage"
)

// Server is the API server for querying assembled chat turns.
type Server struct {
	config Config
	driver storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected so it can be shared with the proxy when both run in
// one process.
func NewServer(config Config, driver storage.Driver, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/turns", s.handleListTurns)
	app.Get("/turns/stats", s.handleTurnStats)
	app.Get("/turns/:id", s.handleGetTurn)

	mcpServer, err := mcp.NewServer(mcp.Config{Driver: driver, Logger: logger})
	if err != nil {
		logger.Warn("MCP endpoint disabled", zap.Error(err))
	} else {
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
