package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ecowatch/internal/query"
	"github.com/roach88/ecowatch/internal/species"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	ListOptions
	MetricsListen string
}

func newWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{ListOptions: ListOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the entry list live while typing a search",
		Long: `Keep the entry list on screen and reprint it whenever it changes.

Each input line replaces the search text. Lines starting with ':' are
commands:
  :sort <name|created|max-temp>  change the order
  :check                         check the shown entries against the readings
  :backup                        push the shown entries to the replica
  :restore                       replace local entries with the replica
  :quit                          stop

Watch stops on :quit, Ctrl-C, or end of input once the last search has
been shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address, e.g. :9464 (overrides config)")
	return cmd
}

// watchState tracks what the user asked for and what was last printed.
type watchState struct {
	text string
	sort query.SortMode

	shown    query.Result
	hasShown bool
	eof      bool
}

func (s *watchState) settled() bool {
	return s.eof && s.hasShown && s.shown.Query == s.text && s.shown.Sort == s.sort
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	mode, err := query.ParseSortMode(opts.Sort)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --sort", err)
	}
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	listen := opts.MetricsListen
	if listen == "" {
		listen = a.settings.Metrics.Listen
	}
	if listen != "" {
		stop, err := a.serveMetrics(ctx, listen)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	return a.withSensors(ctx, func() error {
		return a.watchLoop(ctx, cancel, cmd, opts, mode)
	})
}

// watchLoop shows live results and applies input lines until input ends
// with a settled result, :quit, or ctx is done.
func (a *app) watchLoop(ctx context.Context, cancel context.CancelFunc, cmd *cobra.Command, opts *WatchOptions, mode query.SortMode) error {
	p := a.newPipeline(query.WithInitialSort(mode))
	p.SetQuery(opts.Query)
	go p.Run(ctx)
	defer func() {
		cancel()
		<-p.Done()
	}()

	state := &watchState{text: opts.Query, sort: mode}
	results := p.Subscribe(ctx)
	lines := readLines(ctx, cmd.InOrStdin())

	a.logger.Debug("watch started", "query", opts.Query, "sort", mode)
	for {
		select {
		case <-ctx.Done():
			return nil

		case r, ok := <-results:
			if !ok {
				return nil
			}
			state.shown, state.hasShown = r, true
			if err := a.showResult(r); err != nil {
				return err
			}
			if state.settled() {
				return nil
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				state.eof = true
				if state.settled() {
					return nil
				}
				continue
			}
			quit, err := a.handleWatchLine(ctx, p, state, line)
			if err != nil {
				a.logger.Error("watch command failed", "line", line, "error", err)
				a.out.Error(err)
			}
			if quit {
				return nil
			}
		}
	}
}

// handleWatchLine applies one input line. It reports whether watch
// should stop.
func (a *app) handleWatchLine(ctx context.Context, p *query.Pipeline, state *watchState, line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		state.text = line
		p.SetQuery(line)
		return false, nil
	}

	command, arg, _ := strings.Cut(strings.TrimSpace(line[1:]), " ")
	var shown []species.Entry
	if state.hasShown {
		shown = state.shown.Entries
	}

	switch command {
	case "quit", "q":
		return true, nil

	case "sort":
		mode, err := query.ParseSortMode(arg)
		if err != nil {
			return false, err
		}
		state.sort = mode
		p.SetSort(mode)
		return false, nil

	case "check":
		results := make([]saveOutput, 0, len(shown))
		for _, e := range shown {
			res, err := a.tracker.Check(ctx, e.ID)
			if err != nil {
				return false, err
			}
			results = append(results, newSaveOutput(res))
		}
		return false, a.out.Success(results, func(w io.Writer) {
			for _, r := range results {
				fmt.Fprintf(w, "#%d %s: ", r.Entry.ID, r.Entry.Summary())
				writeViolations(w, r.Violations)
			}
		})

	case "backup":
		pushed, err := a.tracker.Backup(ctx, shown)
		if err != nil {
			return false, err
		}
		return false, a.out.Success(map[string]int{"pushed": pushed}, func(w io.Writer) {
			fmt.Fprintf(w, "Pushed %d entries\n", pushed)
		})

	case "restore":
		res, err := a.tracker.Restore(ctx)
		if err != nil {
			return false, err
		}
		return false, a.out.Success(restoreOutput{Applied: res.Applied}, func(w io.Writer) {
			fmt.Fprintf(w, "Restored %d entries\n", res.Applied)
		})

	default:
		return false, fmt.Errorf("unknown command %q", ":"+command)
	}
}

func (a *app) showResult(r query.Result) error {
	if r.Err != nil {
		return a.out.Error(r.Err)
	}
	return a.out.Success(r.Entries, func(w io.Writer) {
		fmt.Fprintf(w, "── %q by %s: %d entries\n", r.Query, r.Sort, len(r.Entries))
		writeEntries(w, r.Entries)
	})
}

// readLines delivers input lines until EOF, then closes the channel.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// serveMetrics exposes /metrics until the returned stop is called.
func (a *app) serveMetrics(ctx context.Context, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}, nil
}
