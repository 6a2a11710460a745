package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/namelens/edgegate/internal/errors"
	"github.com/namelens/edgegate/internal/observability"
)

// selfCheck is one step of `edgegate health`.
type selfCheck struct {
	name string
	run  func(ctx context.Context) error
}

func selfChecks() []selfCheck {
	return []selfCheck{
		{"Version information available", func(context.Context) error {
			if versionInfo.Version == "" {
				return errwrap.NewConfigInvalidError("Version information missing")
			}
			return nil
		}},
		{"Configuration and edge routes valid", func(ctx context.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			_, err = checkRoutes(cfg)
			return err
		}},
	}
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the binary has version metadata and that the configuration builds a valid edge router, without starting the server.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", nil)
			return
		}
		log := observability.CLILogger
		log.Info("Running health check...")

		for _, check := range selfChecks() {
			if err := check.run(cmd.Context()); err != nil {
				log.Error("❌ FAIL: "+check.name, zap.Error(err))
				ExitWithCode(log, foundry.ExitConfigInvalid, check.name+" check failed", err)
				return
			}
			log.Info("✅ " + check.name)
		}

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
