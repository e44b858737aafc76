package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duscan/duscan/cmd"
	"github.com/duscan/duscan/pkg/duscan"
	"github.com/duscan/duscan/pkg/duscanerrors"
)

// duscanMainify wraps a non-standard Cobra entry point (one returning an
// error) into a standard one, selecting the process exit code from the
// error's duscanerrors.Kind rather than always exiting with 1.
func duscanMainify(entry func(*cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(command *cobra.Command, arguments []string) {
		err := entry(command, arguments)
		if err == nil {
			return
		}

		cmd.Error(err)

		var classified *duscanerrors.Error
		if errors.As(err, &classified) {
			os.Exit(classified.Kind.ExitCode())
		}
		os.Exit(4)
	}
}

func rootMain(command *cobra.Command, arguments []string) {
	// Print version information, if requested.
	if rootConfiguration.version {
		fmt.Println(duscan.Version)
		return
	}

	// If no flags were set, then print help information and bail.
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "duscan",
	Short: "duscan scans directory trees and reports disk usage",
	Args:  cmd.DisallowArguments,
	Run:   rootMain,
}

var rootConfiguration struct {
	// version indicates that version information should be printed.
	version bool
	// logLevel overrides DUSCAN_LOG_LEVEL ("warn", "debug", or "trace").
	logLevel string
}

// applyLogLevel resolves the --log-level flag against duscan.VerbosityLevel,
// taking precedence over DUSCAN_LOG_LEVEL when set.
func applyLogLevel() error {
	switch rootConfiguration.logLevel {
	case "":
		return nil
	case "warn":
		duscan.VerbosityLevel = duscan.LevelWarn
	case "debug":
		duscan.VerbosityLevel = duscan.LevelDebug
	case "trace":
		duscan.VerbosityLevel = duscan.LevelTrace
	default:
		return fmt.Errorf("invalid log level %q (expected \"warn\", \"debug\", or \"trace\")", rootConfiguration.logLevel)
	}
	return nil
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.version, "version", "v", false, "Show version information")

	persistent := rootCommand.PersistentFlags()
	persistent.StringVar(&rootConfiguration.logLevel, "log-level", "", "Override DUSCAN_LOG_LEVEL (\"warn\", \"debug\", or \"trace\")")

	rootCommand.PersistentPreRunE = func(*cobra.Command, []string) error {
		return applyLogLevel()
	}

	// Disable Cobra's command sorting behavior so that scan/view appear in
	// the order we register them.
	cobra.EnableCommandSorting = false

	// Disable Cobra's use of mousetrap, which breaks invocation from
	// non-console launchers on Windows.
	cobra.MousetrapHelpText = ""

	rootCommand.AddCommand(
		scanCommand,
		viewCommand,
	)
}

func main() {
	cmd.HandleTerminalCompatibility()

	// Errors reaching here come from argument and flag handling (command Run
	// functions exit on their own), so they map to the invalid-input code.
	if err := rootCommand.Execute(); err != nil {
		os.Exit(duscanerrors.InvalidInput.ExitCode())
	}
}
