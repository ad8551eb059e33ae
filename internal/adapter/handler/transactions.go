package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mwita/settlepay/internal/core/txlog"
)

type TransactionsHandler struct {
	Log *txlog.Log
}

// GetTransactions returns the ordered transaction log. Passing ?account=N
// filters to entries that account participates in, as sender or receiver.
func (h *TransactionsHandler) GetTransactions(c *fiber.Ctx) error {
	if raw := c.Query("account"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account id"})
		}
		return c.JSON(fiber.Map{"transactions": h.Log.EntriesFor(id)})
	}
	return c.JSON(fiber.Map{"transactions": h.Log.Entries()})
}
