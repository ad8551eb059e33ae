package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mwita/settlepay/internal/core/domain"
	"github.com/mwita/settlepay/internal/core/pipeline"
)

type TransferHandler struct {
	Engine *pipeline.Engine
}

type TransferRequest struct {
	FromID int64 `json:"from_id"`
	ToID   int64 `json:"to_id"`
	Amount int64 `json:"amount"` // Cents!
}

// Submit admits a transfer into the pipeline. The call is asynchronous: a
// 202 means the transfer was validated and scheduled, and its outcome shows
// up in the transaction log.
func (h *TransferHandler) Submit(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	if err := h.Engine.Submit(req.FromID, req.ToID, req.Amount); err != nil {
		if domain.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}
