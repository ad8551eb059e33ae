package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwita/settlepay/internal/core/txlog"
)

// SendWebhook posts the JSON payload to the subscriber's URL.
func SendWebhook(url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Settlepay-Webhook/1.0")

	// Don't let a slow subscriber block us.
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("subscriber returned error: %d", resp.StatusCode)
}

// Notifier pushes terminal transaction outcomes to a single webhook URL.
// Delivery is fire-and-forget; a failed post is logged and dropped, the
// transaction log stays the source of truth.
type Notifier struct {
	url string
}

func NewNotifier(url string) *Notifier {
	return &Notifier{url: url}
}

// TerminalEntry dispatches one terminal log entry asynchronously.
func (n *Notifier) TerminalEntry(e txlog.Entry) {
	if n == nil || n.url == "" {
		return
	}
	go func() {
		payload := map[string]interface{}{
			"event": "transaction." + e.Status,
			"data":  e,
		}
		if err := SendWebhook(n.url, payload); err != nil {
			slog.Error("❌ Webhook failed", "error", err, "tx_id", e.TxID)
		} else {
			slog.Info("✅ Webhook sent", "tx_id", e.TxID, "status", e.Status)
		}
	}()
}
