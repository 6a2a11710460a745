package observability

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
)

// Logging profiles accepted in configuration.
const (
	ProfileSimple     = "SIMPLE"
	ProfileStructured = "STRUCTURED"
)

var (
	// CLILogger writes human-readable output for CLI commands.
	CLILogger *logging.Logger

	// ServerLogger writes request and edge decisions while serving.
	ServerLogger *logging.Logger
)

// ServerLogOptions selects how the serve command logs.
type ServerLogOptions struct {
	Level       string
	Profile     string
	Namespace   string
	Environment string
}

// InitCLILogger installs CLILogger. Verbose lowers the level to DEBUG.
func InitCLILogger(serviceName string, verbose bool) error {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		return fmt.Errorf("cli logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
	return nil
}

// InitServerLogger installs ServerLogger. The SIMPLE profile writes console
// lines; anything else emits JSON with correlation IDs. Both go to stderr.
func InitServerLogger(serviceName string, opts ServerLogOptions) error {
	logger, err := logging.New(serverConfig(serviceName, opts))
	if err != nil {
		return fmt.Errorf("server logger: %w", err)
	}
	ServerLogger = logger
	return nil
}

func serverConfig(serviceName string, opts ServerLogOptions) *logging.LoggerConfig {
	fields := map[string]any{}
	if opts.Namespace != "" {
		fields["namespace"] = opts.Namespace
	}
	env := opts.Environment
	if env == "" {
		env = "production"
	}

	config := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: normalizeLevel(opts.Level),
		Service:      serviceName,
		Environment:  env,
		StaticFields: fields,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:    "console",
				Format:  "json",
				Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	if strings.EqualFold(opts.Profile, ProfileSimple) {
		config.Profile = logging.ProfileSimple
		config.Middleware = nil
		config.Sinks[0].Format = "console"
		config.EnableStacktrace = false
	}
	return config
}

var levelNames = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// normalizeLevel maps a config level to gofulmen's severity name, defaulting
// to INFO.
func normalizeLevel(level string) string {
	if name, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return name
	}
	return "INFO"
}
