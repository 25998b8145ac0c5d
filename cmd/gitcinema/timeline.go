package main

import (
	"context"

	"github.com/spf13/cobra"
)

var timelineWindow string

var timelineCmd = &cobra.Command{
	Use:   "timeline <owner/name>",
	Short: "Show the commit sentiment timeline of an analyzed repository",
	Long: `Buckets the stored commits of a repository by commit, day or week and
prints the smoothed sentiment series. When the window holds no commits the
most recent commits are shown instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

func init() {
	timelineCmd.Flags().StringVarP(&timelineWindow, "window", "w", "30d", "time window: 7d, 30d, 90d or all")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	repo, err := parseRepo(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		record, err := a.engine.Record(ctx, repo)
		if err != nil {
			return err
		}
		result, err := a.timeline.Build(record.Commits, timelineWindow)
		if err != nil {
			return err
		}
		return formatter.Format(cmd.OutOrStdout(), result)
	})
}
