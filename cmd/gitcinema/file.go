package main

import (
	"context"

	"github.com/spf13/cobra"
)

var fileCmd = &cobra.Command{
	Use:   "file <owner/name> <path>",
	Short: "Print one file of an analyzed repository",
	Args:  cobra.ExactArgs(2),
	RunE:  runFile,
}

func runFile(cmd *cobra.Command, args []string) error {
	repo, err := parseRepo(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		file, err := a.engine.GetFile(ctx, repo, args[1])
		if err != nil {
			return err
		}
		return formatter.Format(cmd.OutOrStdout(), file)
	})
}
