package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

// writeTestScenario writes a scenario named name into dir/scenarios and
// returns dir. The scenario compiles against the harness sars-cov-2 config.
func writeTestScenario(t *testing.T, dir, name, steps string) string {
	t.Helper()
	config, err := filepath.Abs("../harness/testdata/configs/sars-cov-2.yaml")
	require.NoError(t, err)

	content := "name: " + name + "\n" +
		"description: \"generated\"\n" +
		"config: " + config + "\n" +
		"steps:\n" + steps
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, name+".yaml"), []byte(content), 0644))
	return dir
}

func TestTestCommand_HarnessScenariosPass(t *testing.T) {
	out, _, err := execute(t, context.Background(), "", "test", harnessScenarios)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ aggregated_by_country")
	assert.Contains(t, out, "✓ sequences_segmented")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_FilterJSON(t *testing.T) {
	out, _, err := execute(t, context.Background(), "",
		"test", harnessScenarios, "--filter", "aggregated_*", "--format", "json")
	require.NoError(t, err, out)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	scenarios := data["scenarios"].([]any)
	require.Len(t, scenarios, 1)
	first := scenarios[0].(map[string]any)
	assert.Equal(t, "aggregated_by_country", first["name"])
	assert.Equal(t, "match", first["golden"])
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := writeTestScenario(t, t.TempDir(), "swiss", `  - endpoint: aggregated
    query: "country=Switzerland"
`)
	scenarios := filepath.Join(dir, "scenarios")
	golden := filepath.Join(dir, "golden", "swiss.golden")

	out, _, err := execute(t, context.Background(), "", "test", scenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ swiss")

	out, _, err = execute(t, context.Background(), "", "test", scenarios, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ swiss (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario": "swiss"`)
	assert.Contains(t, string(data), `"value": "Switzerland"`)

	out, _, err = execute(t, context.Background(), "", "test", scenarios)
	require.NoError(t, err, out)

	edited := strings.Replace(string(data), "Switzerland", "Germany", 1)
	require.NoError(t, os.WriteFile(golden, []byte(edited), 0644))

	out, _, err = execute(t, context.Background(), "", "test", scenarios, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
	first := resp.Data.(map[string]any)["scenarios"].([]any)[0].(map[string]any)
	assert.Contains(t, first["errors"].([]any)[0], "do not match golden file")
}

func TestTestCommand_FailedExpectation(t *testing.T) {
	dir := writeTestScenario(t, t.TempDir(), "broken", `  - endpoint: aminoAcidMutations
    query: "aminoAcidMutations=XYZ:501Y"
`)

	out, _, err := execute(t, context.Background(), "", "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "unknown gene 'XYZ'")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
	assert.Contains(t, out, "Error [E008]: 1 scenario(s) failed")
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\n"), 0644))

	out, _, err := execute(t, context.Background(), "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		out, _, err := execute(t, context.Background(), "", "test", "/nonexistent/scenarios", "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodeInput, decodeResponse(t, out).Error.Code)
	})

	t.Run("bad filter", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), "", "test", harnessScenarios, "--filter", "[")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "invalid filter pattern")
	})

	t.Run("missing argument", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), "", "test")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 1 arg")
	})
}

func TestTestCommand_EmptyDirectory(t *testing.T) {
	out, _, err := execute(t, context.Background(), "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
