package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "lapis", cmd.Use)
	assert.Contains(t, cmd.Short, "LAPIS")
	assert.Contains(t, cmd.Long, "SILO")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"serve", "compile", "info", "validate", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	config := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)
	assert.Equal(t, "lapis.yaml", config.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"serve", []string{"addr", "silo-url"}},
		{"compile", []string{"query", "input"}},
		{"info", []string{"silo-url"}},
		{"test", []string{"update", "filter", "golden-dir"}},
	}
	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "validate"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCompileQueryAndInputAreExclusive(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"compile", "aggregated", "--query", "limit=1", "--input", "-"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}
