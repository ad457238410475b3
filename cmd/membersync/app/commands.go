package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/membersync"
	"github.com/agentstation/membersync/internal/cmd/output"
	"github.com/agentstation/membersync/pkg/errors"
	"github.com/agentstation/membersync/pkg/logging"
)

// NewSyncCommand creates the sync command.
func (a *App) NewSyncCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the directory with the ERP",
		Long: `Sync logs in to the directory, reads every directory user and every
enrollment record, then creates and corrects users and their group
memberships. With --dry-run nothing is written and the report lists what
a real run would do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSync(cmd, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only, write nothing")
	return cmd
}

// NewPlanCommand creates the plan command.
func (a *App) NewPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the actions a sync would take",
		Long: `Plan reads both systems and prints the user and membership actions
a sync would apply, along with identity conflicts. It never writes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			result, err := a.run(cmd, true)
			if result == nil || result.Plan == nil {
				return err
			}
			view := result.Plan.View()
			if writeErr := a.write(cmd, format, view, output.PlanDocument(view)); writeErr != nil && err == nil {
				err = writeErr
			}
			return err
		},
	}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("membersync %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}

func (a *App) runSync(cmd *cobra.Command, dryRun bool) error {
	format, err := a.format()
	if err != nil {
		return err
	}
	result, err := a.run(cmd, dryRun)
	if result == nil {
		return err
	}
	view := result.View()
	if writeErr := a.write(cmd, format, view, output.ReportDocument(view)); writeErr != nil && err == nil {
		err = writeErr
	}
	return err
}

// run executes one reconciliation with the app logger on the context.
func (a *App) run(cmd *cobra.Command, dryRun bool) (*membersync.Result, error) {
	syncer, err := a.Syncer()
	if err != nil {
		return nil, err
	}
	ctx := logging.WithLogger(cmd.Context(), a.logger)
	return syncer.Sync(ctx,
		membersync.WithDryRun(dryRun),
		membersync.WithTimeout(a.config.SyncTimeout),
	)
}

func (a *App) format() (output.Format, error) {
	format, err := output.ParseFormat(a.config.Format)
	if err != nil {
		return "", errors.InPhase(errors.PhaseConfig, errors.NewConfigError("format", err.Error(), err))
	}
	if format == "" {
		format = output.DetectFormat("")
	}
	return format, nil
}

// write renders doc for table and markdown output and raw otherwise.
func (a *App) write(cmd *cobra.Command, format output.Format, raw any, doc output.Document) error {
	data := raw
	if format == output.FormatTable || format == output.FormatMarkdown {
		data = doc
	}
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
}
