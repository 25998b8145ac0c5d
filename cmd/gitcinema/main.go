package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcinema/internal/config"
	"github.com/rohankatakam/gitcinema/internal/logging"
	"github.com/rohankatakam/gitcinema/internal/output"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile    string
	verbose    bool
	outputFlag string
	noColor    bool
	metricsOut string

	logger    *logging.Logger
	cfg       *config.Config
	formatter output.Formatter
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("Hint:"), hint)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gitcinema",
	Short: "gitcinema - repository history, sentiment and context at a glance",
	Long: `gitcinema analyzes a public GitHub repository once, keeps the result in a
local store, and answers follow-up requests (context for a question, single
files, sentiment timelines, insights) from that store.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.New(logging.Config{
			Level:      cfg.Logging.Level,
			OutputFile: cfg.Logging.File,
			MaxSize:    int64(cfg.Logging.MaxSizeMB) * 1024 * 1024,
			MaxBackups: cfg.Logging.MaxBackups,
			JSONFormat: cfg.Logging.JSON,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		mode, err := output.ParseMode(outputFlag)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(mode, !noColor && !color.NoColor)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .gitcinema/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "write prometheus metrics to this file on exit")

	rootCmd.SetVersionTemplate(`gitcinema {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(narrativeCmd)
	rootCmd.AddCommand(insightsCmd)
}
