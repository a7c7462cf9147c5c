package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ecowatch/internal/query"
	"github.com/roach88/ecowatch/internal/species"
)

// entryFileVersion is written to and required in entry files.
const entryFileVersion = 1

// EntryFile is the YAML layout used by import and export.
type EntryFile struct {
	Version int             `yaml:"version"`
	Entries []species.Entry `yaml:"entries"`
}

// LoadEntryFile parses an entry file, rejecting unknown fields.
func LoadEntryFile(r io.Reader) (*EntryFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry file: %w", err)
	}

	var f EntryFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if f.Version != entryFileVersion {
		return nil, fmt.Errorf("unsupported entry file version %d (want %d)", f.Version, entryFileVersion)
	}
	return &f, nil
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	ListOptions
	Output string
}

func newExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{ListOptions: ListOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write entries to a YAML file",
		Long: `Write the visible entries to a YAML entry file, or to stdout.

Example:
  ecowatch export -o species.yaml
  ecowatch export --query frog`,
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
			data, err := yaml.Marshal(EntryFile{Version: entryFileVersion, Entries: entries})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to encode entries", err)
			}

			if opts.Output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write output", err)
			}
			return a.out.Success(map[string]any{"exported": len(entries), "path": opts.Output}, func(w io.Writer) {
				fmt.Fprintf(w, "Exported %d entries to %s\n", len(entries), opts.Output)
			})
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// importOutput is the structured result of import.
type importOutput struct {
	Imported   int `json:"imported" yaml:"imported"`
	Violations int `json:"violations" yaml:"violations"`
}

func newImportCommand(rootOpts *RootOptions) *cobra.Command {
	var newIDs bool

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Save entries from a YAML file",
		Long: `Save every entry in a YAML entry file, validating and checking each one
as add does. Entries keep their ids, replacing stored entries with the
same id, unless --new-ids is given. Import stops at the first invalid
entry; entries before it stay saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to open entry file", err)
				}
				defer file.Close()
				in = file
			}
			f, err := LoadEntryFile(in)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid entry file", err)
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := commandContext(cmd)

			var out importOutput
			err = a.withSensors(ctx, func() error {
				for i, e := range f.Entries {
					if newIDs {
						e.ID, e.CreatedAt = 0, 0
					}
					res, err := a.tracker.Save(ctx, e)
					if err != nil {
						return WrapExitError(ExitFailure, fmt.Sprintf("entry %d (%q) not imported", i+1, e.Name), err)
					}
					out.Imported++
					out.Violations += len(res.Violations)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return a.out.Success(out, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d entries (%d threshold violations)\n", out.Imported, out.Violations)
			})
		},
	}
	cmd.Flags().BoolVar(&newIDs, "new-ids", false, "insert every entry as new")
	return cmd
}
