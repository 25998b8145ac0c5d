package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var narrativeCmd = &cobra.Command{
	Use:   "narrative <owner/name> <file|->",
	Short: "Attach a narrative JSON document to an analyzed repository",
	Long: `Stores an opaque JSON narrative alongside the analysis of a repository.
Pass - to read the document from standard input.`,
	Args: cobra.ExactArgs(2),
	RunE: runNarrative,
}

func runNarrative(cmd *cobra.Command, args []string) error {
	repo, err := parseRepo(args[0])
	if err != nil {
		return err
	}

	var data []byte
	if args[1] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("failed to read narrative: %w", err)
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		if err := a.pipeline.AttachNarrative(ctx, repo, data); err != nil {
			return err
		}
		return formatter.Format(cmd.OutOrStdout(), fmt.Sprintf("Narrative attached to %s", repo))
	})
}
