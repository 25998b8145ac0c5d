package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcinema/internal/insights"
)

var insightsCmd = &cobra.Command{
	Use:   "insights <owner/name>",
	Short: "Classify the metrics of an analyzed repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsights,
}

func runInsights(cmd *cobra.Command, args []string) error {
	repo, err := parseRepo(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		record, err := a.engine.Record(ctx, repo)
		if err != nil {
			return err
		}
		return formatter.Format(cmd.OutOrStdout(), insights.NewReport(record))
	})
}
