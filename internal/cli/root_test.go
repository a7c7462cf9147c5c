package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ecowatch", cmd.Use)
	assert.Contains(t, cmd.Long, "thresholds")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"add", "list", "show", "delete", "clear", "check", "backup", "restore", "watch", "import", "export"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestAddCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	addCmd, _, err := cmd.Find([]string{"add"})
	require.NoError(t, err)

	prefill := addCmd.Flags().Lookup("prefill")
	require.NotNil(t, prefill)
	assert.Equal(t, "all", prefill.NoOptDefVal)

	for _, name := range append([]string{"id", "name", "habitat", "status", "address", "locate"}, entryFlags...) {
		assert.NotNil(t, addCmd.Flags().Lookup(name), name)
	}
}

func TestListCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"list", "backup", "export", "watch"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		sortFlag := sub.Flags().Lookup("sort")
		require.NotNil(t, sortFlag, name)
		assert.Equal(t, "name", sortFlag.DefValue)
		assert.Equal(t, "q", sub.Flags().Lookup("query").Shorthand)
	}
}

func TestExecute_InvalidFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), &RootOptions{}, []string{"--format", "xml", "list"},
		strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), `invalid format "xml"`)
}

func TestExecute_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), &RootOptions{}, []string{"frobnicate"},
		strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "Error [COMMAND]")
}
