package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"

	"github.com/namelens/edgegate/internal/appid"
	"github.com/namelens/edgegate/internal/config"
	"github.com/namelens/edgegate/internal/observability"
	"github.com/namelens/edgegate/internal/server/handlers"
)

var (
	cfgFile string
	verbose bool

	// App identity loaded from .fulmen/app.yaml (or the embedded copy)
	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo records build metadata for the CLI and the /version
// endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

// envPrefix is the identity's environment prefix, EDGEGATE_ by default.
func envPrefix() string {
	if appIdentity != nil && appIdentity.EnvPrefix != "" {
		return appIdentity.EnvPrefix
	}
	return "EDGEGATE_"
}

var rootCmd = &cobra.Command{
	// Use and Short are replaced from the app identity in init.
	Use:   filepath.Base(os.Args[0]),
	Short: "Edge router for the marketing site",
	Long: `Edge router for the marketing site.

Every page request passes through the router, which applies legacy redirects,
gates protected paths behind a session cookie, rate limits contact form
submissions, and annotates the rest.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// gofulmen's global telemetry would otherwise print config-loading
	// metrics to stdout. serve installs its own system.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Help text is rendered before OnInitialize hooks run.
	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		applyIdentityToHelp(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig loads identity and the CLI logger. Commands load their own
// configuration through loadConfig so a broken config file does not stop
// `version` or `help`.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	appIdentity = identity
	applyIdentityToHelp(identity)

	if err := observability.InitCLILogger(appIdentity.BinaryName, verbose); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
}

func applyIdentityToHelp(identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

// loadConfig resolves configuration honoring --config.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return config.LoadFile(ctx, cfgFile, overrides...)
}
