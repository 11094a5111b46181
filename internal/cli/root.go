package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/cruciblehq/kiln/internal"
	"github.com/cruciblehq/kiln/internal/runtime"
)

// Represents the root command for kiln.
var RootCmd struct {
	Quiet      bool          `short:"q" help:"Suppress informational output."`
	Verbose    bool          `short:"v" help:"Enable verbose output."`
	Debug      bool          `short:"d" help:"Enable debug output."`
	File       string        `short:"f" type:"path" help:"Pipeline descriptor. Defaults to ./kiln.toml, then the user descriptor, then the built-in pipeline." placeholder:"FILE"`
	Local      bool          `help:"Build on the host in a private work area instead of a containerd container."`
	Containerd string        `help:"containerd socket address." default:"${containerd}" placeholder:"ADDR"`
	Namespace  string        `help:"containerd namespace." default:"${namespace}" placeholder:"NS"`
	Build      BuildCmd      `cmd:"" help:"Compile the source tree and assemble the runtime image."`
	Run        RunCmd        `cmd:"" help:"Launch a runtime image and exit with its exit code."`
	Launch     LaunchCmd     `cmd:"" help:"Build, then launch the resulting image."`
	Dockerfile DockerfileCmd `cmd:"" help:"Print the equivalent multi-stage Dockerfile."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Build an executable in an isolated stage and package only that executable into a minimal runtime image."),
		kong.UsageOnError(),
		kong.Vars{
			"version":    internal.VersionString(),
			"containerd": runtime.DefaultAddress,
			"namespace":  runtime.DefaultNamespace,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	logger, ok := slog.Default().Handler().(*log.Logger)
	if !ok {
		return // Not a charm logger, nothing to configure
	}

	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	logger.SetLevel(logLevel(debug, quiet))
	logger.SetReportTimestamp(verbose)
	logger.SetReportCaller(verbose && debug)
}

// Maps the debug and quiet modes to a log level. Debug wins over quiet.
func logLevel(debug, quiet bool) log.Level {
	switch {
	case debug:
		return log.DebugLevel
	case quiet:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

// Opens the containerd runtime selected by the global flags.
func openRuntime() (*runtime.Runtime, error) {
	return runtime.New(RootCmd.Containerd, RootCmd.Namespace)
}
