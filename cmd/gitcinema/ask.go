package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <owner/name> <question...>",
	Short: "Assemble the context relevant to a question",
	Long: `Ranks the files of an analyzed repository against the keywords of the
question and prints the resulting context bundle: tree, README, package
manifest, core files and the best matching files.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	repo, err := parseRepo(args[0])
	if err != nil {
		return err
	}
	question := strings.Join(args[1:], " ")

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		bundle, err := a.engine.RetrieveContext(ctx, repo, question)
		if err != nil {
			return err
		}
		return formatter.Format(cmd.OutOrStdout(), bundle)
	})
}
