package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ecowatch/internal/query"
	"github.com/roach88/ecowatch/internal/species"
)

// ListOptions holds flags for commands that read the visible list.
type ListOptions struct {
	*RootOptions
	Query string
	Sort  string
}

func (o *ListOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Query, "query", "q", "", "only entries whose name contains this text, ignoring case")
	cmd.Flags().StringVarP(&o.Sort, "sort", "s", "name", "sort order (name|created|max-temp)")
}

func newListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List species entries",
		Long: `List species entries through the query pipeline.

Example:
  ecowatch list
  ecowatch list --query frog --sort max-temp`,
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

			entries, err := a.visibleEntries(commandContext(cmd), opts.Query, mode)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list entries", err)
			}
			return a.out.Success(entries, func(w io.Writer) { writeEntries(w, entries) })
		},
	}
	opts.register(cmd)
	return cmd
}

// oneShotDebounce replaces the typing debounce when the query is known up
// front.
const oneShotDebounce = time.Millisecond

// visibleEntries runs a pipeline until it emits the result for text and
// returns that list.
func (a *app) visibleEntries(ctx context.Context, text string, mode query.SortMode) ([]species.Entry, error) {
	ctx, cancel := context.WithCancel(ctx)
	p := a.newPipeline(query.WithDebounce(oneShotDebounce), query.WithInitialSort(mode), query.WithGracePeriod(0))
	p.SetQuery(text)
	go p.Run(ctx)
	defer func() {
		cancel()
		<-p.Done()
	}()

	for r := range p.Subscribe(ctx) {
		if r.Query != text {
			continue
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Entries, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("query pipeline stopped")
}
