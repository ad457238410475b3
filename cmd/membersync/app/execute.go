package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/membersync/pkg/errors"
)

// Execute parses args and runs the selected command under ctx.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.out)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "membersync",
		Short:   "Reconcile ERP enrollments into the membership directory",
		Version: a.version,
		Long: `membersync reads the enrollment list of the ERP and brings the
membership directory in line with it: missing users are created with a
wallet and credentials, existing users are corrected, and every user is
placed in the contributor or non-contributor group of the active period.

Runs are idempotent. A run against unchanged sources makes no writes.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&a.config.ConfigFile, "config", "", "config file (default is ./membersync.yaml or $HOME/.membersync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().BoolVar(&a.config.NoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&a.config.Format, "format", "o", "", "output format: table, json, yaml, markdown")
	rootCmd.PersistentFlags().StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("membersync {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand applies the parsed global flags and rebuilds the logger.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	verbose := mustFlag("verbose", flags.GetBool)
	quiet := mustFlag("quiet", flags.GetBool)
	noColor := mustFlag("no-color", flags.GetBool)
	format := mustFlag("format", flags.GetString)
	logLevel := mustFlag("log-level", flags.GetString)

	// --config replaces everything loaded at startup
	if flags.Changed("config") {
		config, err := LoadConfig(mustFlag("config", flags.GetString))
		if err != nil {
			return errors.InPhase(errors.PhaseConfig, err)
		}
		a.config = config
	}
	a.config.UpdateFromFlags(verbose, quiet, noColor, format, logLevel)

	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewSyncCommand())
	rootCmd.AddCommand(a.NewPlanCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError prints err and exits with the code of the phase that failed.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		//nolint:errcheck // Ignoring write error since we're exiting anyway
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(errors.ExitCode(err))
	}
}

// mustFlag reads a persistent flag defined by createRootCommand. A lookup
// failure means the flag was never registered.
func mustFlag[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic("flag " + name + " not registered: " + err.Error())
	}
	return val
}
