package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/threshold"
	"github.com/roach88/ecowatch/internal/tracker"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	ID      int64
	Name    string
	Habitat string
	Status  string
	Address string
	Prefill []string
	Locate  bool
}

// saveOutput is the structured result of add and check.
type saveOutput struct {
	Entry      species.Entry         `json:"entry" yaml:"entry"`
	Violations []threshold.Violation `json:"violations" yaml:"violations"`
}

func newSaveOutput(res tracker.SaveResult) saveOutput {
	vs := res.Violations
	if vs == nil {
		vs = []threshold.Violation{}
	}
	return saveOutput{Entry: res.Entry, Violations: vs}
}

// entryFlags are the optional numeric fields, set only when given.
var entryFlags = []string{"population", "min-temp", "max-temp", "min-humidity", "max-humidity", "lat", "lng"}

func newAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a species entry",
		Long: `Add a species entry, or update one with --id.

The entry is validated, checked against the current sensor readings, and
stored. Any threshold the readings fall outside of raises one alert.

With --id, only the flags given replace the stored values.

Example:
  ecowatch add --name "Tree frog" --min-temp 12 --max-humidity 95
  ecowatch add --name Newt --prefill --locate
  ecowatch add --id 3 --status endangered`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.ID, "id", 0, "update the entry with this id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "species name (required for new entries)")
	cmd.Flags().StringVar(&opts.Habitat, "habitat", "", "habitat description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "conservation status")
	cmd.Flags().StringVar(&opts.Address, "address", "", "where it was observed")
	cmd.Flags().Int("population", 0, "estimated head count")
	cmd.Flags().Float64("min-temp", 0, "minimum temperature °C")
	cmd.Flags().Float64("max-temp", 0, "maximum temperature °C")
	cmd.Flags().Float64("min-humidity", 0, "minimum humidity %")
	cmd.Flags().Float64("max-humidity", 0, "maximum humidity %")
	cmd.Flags().Float64("lat", 0, "latitude")
	cmd.Flags().Float64("lng", 0, "longitude")
	cmd.Flags().StringSliceVar(&opts.Prefill, "prefill", nil,
		"fill empty thresholds from current readings (all, min-temp, max-temp, min-humidity, max-humidity)")
	cmd.Flags().Lookup("prefill").NoOptDefVal = "all"
	cmd.Flags().BoolVar(&opts.Locate, "locate", false, "fill position and address from the location source")

	return cmd
}

func runAdd(cmd *cobra.Command, opts *AddOptions) error {
	fields, err := parsePrefill(opts.Prefill)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --prefill", err)
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := commandContext(cmd)

	var e species.Entry
	if opts.ID != 0 {
		stored, err := a.store.ByID(ctx, opts.ID)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to load entry", err)
		}
		if stored == nil {
			return WrapExitError(ExitFailure, "cannot update", fmt.Errorf("%w: %d", tracker.ErrNotFound, opts.ID))
		}
		e = *stored
	}
	if err := applyEntryFlags(cmd, opts, &e); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	var (
		res            tracker.SaveResult
		temp, humidity *float64
	)
	err = a.withSensors(ctx, func() error {
		if fields != nil {
			e = a.tracker.Prefill(e, fields...)
		}
		if opts.Locate {
			located, err := a.tracker.Locate(ctx, e)
			if err != nil {
				a.logger.Warn("saving without position", "error", err)
			} else {
				e = located
			}
		}

		var err error
		res, err = a.tracker.Save(ctx, e)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to save entry", err)
		}
		temp, humidity = a.tracker.Readings()
		return nil
	})
	if err != nil {
		return err
	}

	return a.out.Success(newSaveOutput(res), func(w io.Writer) {
		fmt.Fprintf(w, "Saved #%d %s\n", res.Entry.ID, res.Entry.Summary())
		writeReadings(w, temp, humidity)
		writeViolations(w, res.Violations)
	})
}

// parsePrefill returns nil when prefill was not requested and an empty
// slice for "all".
func parsePrefill(values []string) ([]tracker.Field, error) {
	if values == nil {
		return nil, nil
	}
	fields := []tracker.Field{}
	for _, v := range values {
		if v == "all" {
			return []tracker.Field{}, nil
		}
		f, err := tracker.ParseField(v)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// applyEntryFlags copies every flag the user set onto e.
func applyEntryFlags(cmd *cobra.Command, opts *AddOptions, e *species.Entry) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		e.Name = opts.Name
	}
	if flags.Changed("habitat") {
		e.Habitat = species.Ptr(opts.Habitat)
	}
	if flags.Changed("status") {
		e.Status = species.Ptr(opts.Status)
	}
	if flags.Changed("address") {
		e.Address = species.Ptr(opts.Address)
	}
	for _, name := range entryFlags {
		if !flags.Changed(name) {
			continue
		}
		if name == "population" {
			n, err := flags.GetInt(name)
			if err != nil {
				return err
			}
			e.Population = &n
			continue
		}
		v, err := flags.GetFloat64(name)
		if err != nil {
			return err
		}
		switch name {
		case "min-temp":
			e.MinTemp = &v
		case "max-temp":
			e.MaxTemp = &v
		case "min-humidity":
			e.MinHumidity = &v
		case "max-humidity":
			e.MaxHumidity = &v
		case "lat":
			e.Lat = &v
		case "lng":
			e.Lng = &v
		}
	}
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", arg))
	}
	return id, nil
}

func newShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one species entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			e, err := a.store.ByID(commandContext(cmd), id)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load entry", err)
			}
			if e == nil {
				return WrapExitError(ExitFailure, "cannot show", fmt.Errorf("%w: %d", tracker.ErrNotFound, id))
			}
			return a.out.Success(e, func(w io.Writer) { writeEntry(w, *e) })
		},
	}
}

func newDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a species entry",
		Long:  "Delete a species entry. Deleting an id that does not exist succeeds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.DeleteByID(commandContext(cmd), id); err != nil {
				return WrapExitError(ExitFailure, "failed to delete entry", err)
			}
			return a.out.Success(map[string]int64{"deleted": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted #%d\n", id)
			})
		},
	}
}

func newClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every local species entry",
		Long:  "Delete every local species entry. The remote replica is not touched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to clear without --yes")
			}
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := commandContext(cmd)
			n, err := a.store.Count(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count entries", err)
			}
			if err := a.store.DeleteAll(ctx); err != nil {
				return WrapExitError(ExitFailure, "failed to clear entries", err)
			}
			return a.out.Success(map[string]int{"deleted": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %d entries\n", n)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting everything")
	return cmd
}

func newCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [id...]",
		Short: "Check entries against the current readings",
		Long: `Check stored entries against the current sensor readings and alert on
every entry with a threshold out of range. With no ids, every entry is
checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := commandContext(cmd)

			if len(ids) == 0 {
				all, err := a.store.All(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list entries", err)
				}
				for _, e := range all {
					ids = append(ids, e.ID)
				}
			}

			results := make([]saveOutput, 0, len(ids))
			var temp, humidity *float64
			err = a.withSensors(ctx, func() error {
				for _, id := range ids {
					res, err := a.tracker.Check(ctx, id)
					if err != nil {
						if errors.Is(err, tracker.ErrNotFound) {
							return WrapExitError(ExitFailure, "cannot check", err)
						}
						return WrapExitError(ExitFailure, "failed to check entry", err)
					}
					results = append(results, newSaveOutput(res))
				}
				temp, humidity = a.tracker.Readings()
				return nil
			})
			if err != nil {
				return err
			}

			return a.out.Success(results, func(w io.Writer) {
				writeReadings(w, temp, humidity)
				if len(results) == 0 {
					fmt.Fprintln(w, "(no entries)")
				}
				for _, r := range results {
					fmt.Fprintf(w, "#%d %s: ", r.Entry.ID, r.Entry.Summary())
					writeViolations(w, r.Violations)
				}
			})
		},
	}
}
