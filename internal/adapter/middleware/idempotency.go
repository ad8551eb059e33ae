package middleware

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
)

type cachedResponse struct {
	status int
	body   []byte
}

// Idempotency replays the cached response for a repeated Idempotency-Key,
// so a retried transfer submission is admitted into the pipeline once. The
// cache is in-memory and scoped to the process, like the ledger it guards.
func Idempotency() fiber.Handler {
	var mu sync.Mutex
	seen := make(map[string]cachedResponse)

	return func(c *fiber.Ctx) error {
		// 1. Get Key from Header
		key := c.Get("Idempotency-Key")

		// If no key, skip
		if key == "" {
			return c.Next()
		}

		// 2. Check if key exists
		mu.Lock()
		cached, hit := seen[key]
		mu.Unlock()
		if hit {
			slog.Info("🛑 Idempotency Hit! Returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(cached.status).Send(cached.body)
		}

		// 3. Run the Handler
		if err := c.Next(); err != nil {
			return err
		}

		// 4. Save the Result
		resStatus := c.Response().StatusCode()
		resBody := make([]byte, len(c.Response().Body()))
		copy(resBody, c.Response().Body())

		mu.Lock()
		seen[key] = cachedResponse{status: resStatus, body: resBody}
		mu.Unlock()
		slog.Info("💾 Idempotency Key Saved", "key", key)

		return nil
	}
}
