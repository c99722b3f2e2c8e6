package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ufpmap/internal/basemap"
	"ufpmap/internal/config"
	"ufpmap/internal/fileutil"
	"ufpmap/internal/geo"
	"ufpmap/internal/readings"
	"ufpmap/internal/services"
)

func newBaseMapCommand(ctx *commandContext) *cobra.Command {
	var exportPath string
	var refresh bool

	cmd := &cobra.Command{
		Use:   "basemap",
		Short: "Build or refresh the cached map background",
		Long: `Basemap fetches the OpenStreetMap tiles covering the site extent, stitches
them into a background at the configured frame size, and caches the result.
Later renders reuse the cached image without touching the network.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			locations, err := readings.ResolveLocations(cfg)
			if err != nil {
				return err
			}
			extent, err := geo.Resolve(cfg, locations)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "", "basemap", "map extent", err)
			}

			builder := basemap.NewBuilder(basemap.SettingsFromConfig(cfg), logger)
			build := builder.Ensure
			if refresh {
				build = builder.Refresh
			}
			path, err := build(cmd.Context(), extent, cfg.Render.Width, cfg.Render.Height)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Base map: %s\n", path)
			fmt.Fprintf(out, "Extent: lon %.5f..%.5f, lat %.5f..%.5f (%dx%d px)\n",
				extent.LonMin, extent.LonMax, extent.LatMin, extent.LatMax, cfg.Render.Width, cfg.Render.Height)

			if target := strings.TrimSpace(exportPath); target != "" {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
					return fmt.Errorf("create export directory: %w", err)
				}
				if err := fileutil.CopyFile(path, expanded); err != nil {
					return fmt.Errorf("export base map: %w", err)
				}
				fmt.Fprintf(out, "Exported to %s\n", expanded)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "Also copy the background to this PNG path")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Discard the cached background and fetch tiles again")
	return cmd
}
