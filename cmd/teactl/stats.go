package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/xaenox/tea-bot/internal/app"
	"github.com/xaenox/tea-bot/internal/models"
)

func statsCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParsePeriod(period)
			if err != nil {
				return err
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

			res, err := app.StatsProvider(cfg.Stats, store, log).Compute(cmd.Context(), p)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&period, "period", string(models.PeriodWeek), "day, week or month")
	return cmd
}
