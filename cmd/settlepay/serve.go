package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"

	"github.com/mwita/settlepay/internal/adapter/handler"
	"github.com/mwita/settlepay/internal/adapter/middleware"
	"github.com/mwita/settlepay/internal/adapter/storage"
	"github.com/mwita/settlepay/internal/core/config"
	"github.com/mwita/settlepay/internal/core/domain"
	"github.com/mwita/settlepay/internal/core/ledger"
	"github.com/mwita/settlepay/internal/core/notifications"
	"github.com/mwita/settlepay/internal/core/pipeline"
	"github.com/mwita/settlepay/internal/core/txlog"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the settlement engine and its HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	// 3. Bootstrap the ledger from the credentials file
	led := ledger.New()
	creds := storage.NewCredentialStore(cfg.CredentialsFile)
	known, err := creds.Load()
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}
	for owner, c := range known {
		if err := led.Restore(c.ID, owner, c.Balance, c.Verified); err != nil {
			slog.Warn("Skipping credentials entry", "owner", owner, "error", err)
		}
	}

	// 4. Replay the transaction log and wire the engine
	log, err := txlog.Open(cfg.TxLogFile)
	if err != nil {
		return fmt.Errorf("transaction log: %w", err)
	}

	engine := pipeline.New(led, log, pipeline.Options{
		AntifraudWorkers:  cfg.AntifraudWorkers,
		SettlementWorkers: cfg.SettlementWorkers,
		QueueCapacity:     cfg.QueueCapacity,
		AdmissionDelay:    cfg.AdmissionDelay,
	})

	notifier := notifications.NewNotifier(cfg.WebhookURL)
	creds.StartWriter(led.Snapshot)
	log.SetNotify(func(e txlog.Entry) {
		if e.Status == domain.StatusApproved {
			creds.Kick()
		}
		if e.Status != domain.StatusPending {
			notifier.TerminalEntry(e)
		}
	})

	go drainWriteErrors(log, cfg.ErrorLogFile)

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Use(middleware.RequestID())

	// 6. Routes
	api := app.Group("/v1")

	api.Post("/transfers", middleware.Idempotency(), (&handler.TransferHandler{Engine: engine}).Submit)
	accountHandler := &handler.AccountHandler{Ledger: led}
	api.Get("/accounts", accountHandler.ListAccounts)
	api.Post("/accounts", accountHandler.CreateAccount)
	api.Get("/transactions", (&handler.TransactionsHandler{Log: log}).GetTransactions)

	// 7. Start Pipeline
	engine.Start()

	// Listen for OS signals (Ctrl+C, Docker Stop)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("🛑 Shutting down...")

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	// Let in-flight settlements reach a terminal state before closing files.
	engine.Close()
	creds.Close()
	if err := log.Close(); err != nil {
		slog.Error("Closing transaction log failed", "error", err)
	}

	slog.Info("👋 Engine exited successfully")
	return nil
}

// drainWriteErrors mirrors durable-write failures to the error log file.
// The pipeline never stops for these; the in-memory log stays authoritative.
func drainWriteErrors(log *txlog.Log, path string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("Cannot open error log", "error", err, "path", path)
		for range log.Errors() {
		}
		return
	}
	defer f.Close()
	for werr := range log.Errors() {
		fmt.Fprintf(f, "%s transaction log write failed: %v\n",
			time.Now().Format("2006-01-02 15:04:05"), werr)
	}
}
