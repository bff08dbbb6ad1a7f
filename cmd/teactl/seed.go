package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/app"
	"github.com/xaenox/tea-bot/internal/synthetic"
)

func seedCmd() *cobra.Command {
	var (
		days int
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write synthetic demo conversations into the message log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := app.OpenStorage(cfg.Database, log.Named("storage"))
			if err != nil {
				return err
			}
			defer store.Close()

			entries := synthetic.Conversations(seed, time.Now(), days)
			if err := store.AddMessages(cmd.Context(), entries...); err != nil {
				return fmt.Errorf("seed messages: %w", err)
			}
			log.Info("Seeded demo conversations", zap.Int("messages", len(entries)), zap.Int("days", days))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d messages from %d users over %d days\n",
				len(entries), len(synthetic.DemoUsers), days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days of history to generate")
	cmd.Flags().Uint64Var(&seed, "seed", synthetic.DefaultSeed, "random seed")
	return cmd
}
