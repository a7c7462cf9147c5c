package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ecowatch/internal/replication"
	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/store"
	"github.com/roach88/ecowatch/internal/tracker"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Domain failure (validation, storage, sync)
	ExitCommandError = 2 // Command error (bad flags, config, unreadable files)
)

// Error codes reported in structured output.
const (
	CodeValidation = "VALIDATION"
	CodeStorage    = "STORAGE"
	CodeSync       = "SYNC"
	CodeDecode     = "DECODE"
	CodeNotFound   = "NOT_FOUND"
	CodeLocation   = "LOCATION"
	CodeCommand    = "COMMAND"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// classify maps an error to its structured code and details.
func classify(err error) (string, any) {
	var (
		ve *species.ValidationError
		se *replication.SyncError
		de *replication.DecodeError
		st *store.StorageError
	)
	switch {
	case errors.As(err, &ve):
		return CodeValidation, map[string]string{"rule": string(ve.Rule)}
	case errors.As(err, &se):
		details := map[string]string{"op": se.Op, "phase": se.Phase}
		if se.Key != "" {
			details["key"] = se.Key
		}
		return CodeSync, details
	case errors.As(err, &de):
		return CodeDecode, map[string]string{"key": de.Key, "field": de.Field}
	case errors.As(err, &st):
		return CodeStorage, map[string]any{"op": st.Op, "constraint": st.Constraint}
	case errors.Is(err, tracker.ErrNotFound):
		return CodeNotFound, nil
	case errors.Is(err, tracker.ErrLocationUnavailable):
		return CodeLocation, nil
	default:
		return CodeCommand, nil
	}
}

// OutputFormatter renders command results as text, JSON or YAML.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard structured response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status" yaml:"status"`                   // "ok" or "error"
	Data   any       `json:"data,omitempty" yaml:"data,omitempty"`   // success payload
	Error  *CLIError `json:"error,omitempty" yaml:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code" yaml:"code"`                           // "VALIDATION", "SYNC", etc.
	Message string `json:"message" yaml:"message"`                     // human-readable message
	Details any    `json:"details,omitempty" yaml:"details,omitempty"` // additional context
}

// Success outputs data. In text mode text renders it; a nil text prints
// data with fmt.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	switch f.Format {
	case "json", "yaml":
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if text != nil {
		text(f.Writer)
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(err error) error {
	code, details := classify(err)
	switch f.Format {
	case "json", "yaml":
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error(), Details: details},
		})
	}
	_, werr := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, err)
	return werr
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	if f.Format == "yaml" {
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	}
	return json.NewEncoder(f.Writer).Encode(resp)
}
