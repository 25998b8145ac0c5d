package main

import (
	"context"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <github-url>",
	Short: "Analyze a repository, or show its stored analysis",
	Long: `Fetches commit history, the file tree, the README and core files of a
GitHub repository and stores the derived analysis. A repository that was
analyzed before is served from the store without contacting GitHub.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		record, err := a.pipeline.Analyze(ctx, args[0])
		if err != nil {
			return err
		}
		return formatter.Format(cmd.OutOrStdout(), record)
	})
}
