package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/pkg/errors"
)

// executeCommand runs vtrctl with args and returns stdout.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "vtrctl", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"expiry", "rules", "records"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"rules-dir", "output", "verbose", "no-color", "timeout", "server", "api-key"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCommand_RejectsUnknownOutput(t *testing.T) {
	_, err := executeCommand(t, "", "--output", "yaml", "rules", "validate")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRootCommand_MissingRulesDir(t *testing.T) {
	_, err := executeCommand(t, "", "--rules-dir", "/does/not/exist", "rules", "validate")
	require.Error(t, err)
	assert.True(t, errors.IsConfigIntegrity(err))
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestPrintError_ListsFields(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetErr(&buf)

	PrintError(cmd, errors.NewValidation("bad input").WithField("b", "second").WithField("a", "first"))

	out := buf.String()
	assert.Contains(t, out, "bad input")
	assert.Less(t, strings.Index(out, "a: first"), strings.Index(out, "b: second"))
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"ID", "NAME"}, [][]string{{"1", "Annual test"}, {"94", "First test"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID  NAME", lines[0])
	assert.Equal(t, "--  -----------", lines[1])
	assert.Equal(t, "1   Annual test", lines[2])
	assert.Equal(t, "94  First test", lines[3])

	assert.Empty(t, FormatTable(nil, nil))
}
