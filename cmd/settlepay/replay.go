package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwita/settlepay/internal/core/config"
	"github.com/mwita/settlepay/internal/core/txlog"
)

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the transaction log and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()

			log, err := txlog.Open(cfg.TxLogFile)
			if err != nil {
				return fmt.Errorf("transaction log: %w", err)
			}
			defer log.Close()

			entries := log.Entries()
			byStatus := make(map[string]int)
			for _, e := range entries {
				byStatus[e.Status]++
			}

			fmt.Printf("%s: %d entries, next tx id %d\n", cfg.TxLogFile, len(entries), log.MaxTxID()+1)
			for _, status := range []string{"pending", "approved", "declined", "rejected"} {
				if n := byStatus[status]; n > 0 {
					fmt.Printf("  %-9s %d\n", status, n)
				}
			}
			return nil
		},
	}
}
