package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ufpmap/internal/services"
)

var errConfig = services.ErrConfiguration

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var dataFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag, &dataFlag)

	rootCmd := &cobra.Command{
		Use:           "ufpmap",
		Short:         "Render ultrafine-particle sensor data as an animated map",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataFlag, "data", "", "Reading table (CSV, TSV, Parquet, JSON); overrides data.path")

	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newDatesCommand(ctx))
	rootCmd.AddCommand(newSummaryCommand(ctx))
	rootCmd.AddCommand(newBaseMapCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newFlightsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func usageError(format string, args ...any) error {
	return services.Wrap(services.ErrInput, "", "", fmt.Sprintf(format, args...), nil)
}
