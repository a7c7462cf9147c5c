package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ecowatch/internal/query"
	"github.com/roach88/ecowatch/internal/replication"
)

func newBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Push the visible entries to the remote replica",
		Long: `Push the entries the list shows to the remote replica, one document per
entry, merging into what is already there. The push stops at the first
failure; entries pushed before it stay pushed.

Example:
  ecowatch backup
  ecowatch backup --query frog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := query.ParseSortMode(opts.Sort)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --sort", err)
			}
			a, err := openApp(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := commandContext(cmd)

			visible, err := a.visibleEntries(ctx, opts.Query, mode)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list entries", err)
			}
			pushed, err := a.tracker.Backup(ctx, visible)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("backup stopped after %d of %d entries", pushed, len(visible)), err)
			}
			return a.out.Success(map[string]int{"pushed": pushed}, func(w io.Writer) {
				fmt.Fprintf(w, "Pushed %d entries\n", pushed)
			})
		},
	}
	opts.register(cmd)
	return cmd
}

// restoreOutput is the structured result of restore. Skipped documents
// are only logged.
type restoreOutput struct {
	Applied int `json:"applied" yaml:"applied"`
}

func newRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace local entries with the remote replica",
		Long: `Fetch every document from the remote replica and replace the local
entries with them. Documents that cannot be decoded are skipped and
logged.

If the fetch fails nothing local changes. If writing fails after the
local entries were cleared, only part of the replica has been restored;
run restore again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.tracker.Restore(commandContext(cmd))
			if err != nil {
				msg := "restore failed"
				if replication.IsPartialRestore(err) {
					msg = fmt.Sprintf("restore incomplete after %d entries", res.Applied)
				}
				return WrapExitError(ExitFailure, msg, err)
			}
			return a.out.Success(restoreOutput{Applied: res.Applied}, func(w io.Writer) {
				fmt.Fprintf(w, "Restored %d entries\n", res.Applied)
			})
		},
	}
}
