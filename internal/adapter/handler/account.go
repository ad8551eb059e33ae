package handler

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mwita/settlepay/internal/core/ledger"
)

type AccountHandler struct {
	Ledger *ledger.Ledger
}

// CreateAccountRequest defines what the administrative caller sends us
type CreateAccountRequest struct {
	Owner    string `json:"owner"`
	Balance  int64  `json:"balance"`
	Verified bool   `json:"verified"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest

	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Owner == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Owner is required"})
	}

	id, err := h.Ledger.Add(req.Owner, req.Balance, req.Verified)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Info("✅ Account Created", "id", id, "owner", req.Owner)

	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": id})
}

// ListAccounts returns a consistent snapshot of the ledger for display.
func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"accounts": h.Ledger.Snapshot()})
}
