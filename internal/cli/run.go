package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
)

// Execute runs the CLI with args and returns the process exit code.
// Failures are reported on stderr, or on stdout as a structured response
// when --format is json or yaml.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, os.Stdin, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: stdout}
	if formatter.Format == "text" || !slices.Contains(ValidFormats, formatter.Format) {
		formatter.Format = "text"
		formatter.Writer = stderr
	}
	_ = formatter.Error(err)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Flag and argument errors from cobra itself.
		return ExitCommandError
	}
	return exitErr.Code
}
