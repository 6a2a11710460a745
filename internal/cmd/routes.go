package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/output"
)

var routesOutput string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show the effective redirect table and protected prefixes",
	Long: `Show the redirects, protected prefixes and rate-limited endpoint the edge
router would use with the current configuration, including any entries added
by edge.routes_file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(routesOutput)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		opts, err := edgeOptions(cfg)
		if err != nil {
			return err
		}
		rt, err := edge.New(opts)
		if err != nil {
			return err
		}

		rendered, err := output.FormatRoutes(format, output.NewRouteSet(rt))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().StringVar(&routesOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
}
