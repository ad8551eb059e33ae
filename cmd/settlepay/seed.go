package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwita/settlepay/internal/adapter/storage"
	"github.com/mwita/settlepay/internal/core/config"
	"github.com/mwita/settlepay/internal/core/ledger"
)

func seedCmd() *cobra.Command {
	var count int
	var balance int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a freshly seeded credentials file",
		Long: `Creates count test accounts, every even-numbered one verified, and
writes them to the credentials file the serve command bootstraps from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("data dir: %w", err)
			}

			led := ledger.New()
			led.Seed(count, balance)

			creds := storage.NewCredentialStore(cfg.CredentialsFile)
			if _, err := creds.Load(); err != nil {
				return fmt.Errorf("credentials: %w", err)
			}
			if err := creds.Rewrite(led.Snapshot()); err != nil {
				return fmt.Errorf("credentials: %w", err)
			}

			fmt.Printf("Seeded %d accounts with balance %d into %s\n", count, balance, cfg.CredentialsFile)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "number of accounts to create")
	cmd.Flags().Int64Var(&balance, "balance", 50000, "initial balance per account, in minor units")

	return cmd
}
