package cmd

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/edgegate/internal/config"
	"github.com/namelens/edgegate/internal/observability"
	"github.com/namelens/edgegate/internal/output"
)

var envInfoOutput outputFlags

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display build, runtime and effective edge configuration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(envInfoOutput.format)
		if err != nil {
			return err
		}
		target, err := envInfoOutput.target()
		if err != nil {
			return err
		}

		groups := buildInfoGroups()
		if cfg, err := loadConfig(cmd.Context()); err != nil {
			observability.CLILogger.Warn("Config load failed; showing build information only", zap.Error(err))
		} else {
			groups = append(groups, configGroups(cfg)...)
		}

		rendered, err := output.FormatEnvInfo(format, groups)
		if err != nil {
			return err
		}
		return target.writeRendered("envinfo", format, rendered)
	},
}

func buildInfoGroups() []output.EnvGroup {
	identity := GetAppIdentity()
	v := crucible.GetVersion()

	return []output.EnvGroup{
		output.EnvGroup{Title: "Application"}.
			Add("Name", identity.BinaryName).
			Add("Version", versionInfo.Version).
			Add("Commit", versionInfo.Commit).
			Add("Built", versionInfo.BuildDate),
		output.EnvGroup{Title: "SSOT"}.
			Add("Gofulmen", v.Gofulmen).
			Add("Crucible", v.Crucible),
		output.EnvGroup{Title: "Runtime"}.
			Add("Go", runtime.Version()).
			Add("GOOS/GOARCH", runtime.GOOS+"/"+runtime.GOARCH).
			Add("NumCPU", strconv.Itoa(runtime.NumCPU())),
	}
}

func configGroups(cfg *config.Config) []output.EnvGroup {
	rl := cfg.Edge.RateLimit

	server := output.EnvGroup{Title: "Configuration"}.
		Add("Config file", configFileForLog()).
		Add("Listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Add("Log level", cfg.Logging.Level).
		Add("Log profile", cfg.Logging.Profile).
		Add("Metrics", fmt.Sprintf("enabled=%t port=%d", cfg.Metrics.Enabled, cfg.Metrics.Port)).
		Add("Store", describeStore(cfg.Store))

	edge := output.EnvGroup{Title: "Edge"}.
		Add("Session cookie", cfg.Edge.SessionCookie).
		Add("Login path", cfg.Edge.LoginPath).
		Add("Routes file", valueOrUnset(cfg.Edge.RoutesFile)).
		Add("Debug headers", strconv.FormatBool(cfg.Edge.DebugHeaders))

	limit := output.EnvGroup{Title: "Rate limit"}.
		Add("Endpoint", rl.Method+" "+rl.Endpoint).
		Add("Backend", rl.Backend).
		Add("Limit", fmt.Sprintf("%d per %s", rl.Limit, rl.Window)).
		Add("Strict", strconv.FormatBool(rl.Strict)).
		Add("Sweep interval", rl.SweepInterval.String())

	collaborators := output.EnvGroup{Title: "Collaborators"}.
		Add("Contact", fmt.Sprintf("enabled=%t store=%t", cfg.Contact.Enabled, cfg.Contact.Store)).
		Add("Analytics", fmt.Sprintf("enabled=%t %.0f/s burst %d", cfg.Analytics.Enabled, cfg.Analytics.EventsPerSecond, cfg.Analytics.Burst)).
		Add("Site root", valueOrUnset(cfg.Site.Root))

	return []output.EnvGroup{server, edge, limit, collaborators}
}

func init() {
	envInfoOutput.bind(envInfoCmd, "table|json|markdown")
	rootCmd.AddCommand(envInfoCmd)
}
