package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xaenox/tea-bot/internal/app"
	"github.com/xaenox/tea-bot/internal/classifier"
)

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer an admin statistics question, e.g. \"users this month\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			admin := classifier.NewAdmin(app.StatsProvider(cfg.Stats, store, log), log.Named("admin"))
			answer, err := admin.Answer(cmd.Context(), strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}
