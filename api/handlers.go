package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/storage"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the body of GET /turns.
type ListResponse struct {
	Count int               `json:"count"`
	Turns []*storage.Record `json:"turns"`
}

// StatsResponse is the body of GET /turns/stats.
type StatsResponse = storage.Stats

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListTurns returns stored turns, newest first. ?limit=N caps the count.
func (s *Server) handleListTurns(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	recs, err := s.driver.List(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list turns", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list turns"})
	}
	if recs == nil {
		recs = []*storage.Record{}
	}

	return c.JSON(ListResponse{Count: len(recs), Turns: recs})
}

// handleGetTurn returns a single turn by its id.
func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	rec, err := s.driver.Get(c.Context(), id)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "turn not found"})
		}
		s.logger.Error("failed to get turn", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get turn"})
	}

	return c.JSON(rec)
}

// handleTurnStats returns counts over every stored turn.
func (s *Server) handleTurnStats(c *fiber.Ctx) error {
	recs, err := s.driver.List(c.Context(), 0)
	if err != nil {
		s.logger.Error("failed to list turns", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list turns"})
	}

	return c.JSON(storage.Summarize(recs))
}
