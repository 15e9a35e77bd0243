package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
config: configs/lapis.yaml
steps:
  - endpoint: aggregated
    query: "country=Switzerland"
  - endpoint: aggregated
    body:
      country: Switzerland
    expect:
      cacheable: true
assertions:
  - type: same_query
    steps: [0, 1]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "configs", "lapis.yaml"), scenario.Config)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "country=Switzerland", scenario.Steps[0].Query)
	assert.Equal(t, "Switzerland", scenario.Steps[1].Body["country"])
	require.NotNil(t, scenario.Steps[1].Expect)
	require.NotNil(t, scenario.Steps[1].Expect.Cacheable)
	assert.True(t, *scenario.Steps[1].Expect.Cacheable)
	assert.Equal(t, []int{0, 1}, scenario.Assertions[0].Steps)
}

func TestLoadScenario_AbsoluteConfigKept(t *testing.T) {
	path := writeScenario(t, `
name: abs
description: "Absolute config path"
config: /etc/lapis/lapis.yaml
steps:
  - endpoint: details
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/lapis/lapis.yaml", scenario.Config)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "Misspelled key"
config: lapis.yaml
steps:
  - endpoint: aggregated
    expcet:
      error: boom
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "expcet")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
config: c.yaml
steps: [{endpoint: aggregated}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
config: c.yaml
steps: [{endpoint: aggregated}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing config",
			content: `
name: n
description: d
steps: [{endpoint: aggregated}]
`,
			wantErr: "config is required",
		},
		{
			name: "no steps",
			content: `
name: n
description: d
config: c.yaml
`,
			wantErr: "steps list is required",
		},
		{
			name: "missing endpoint",
			content: `
name: n
description: d
config: c.yaml
steps: [{query: "country=Switzerland"}]
`,
			wantErr: "step 0: endpoint is required",
		},
		{
			name: "query and body",
			content: `
name: n
description: d
config: c.yaml
steps:
  - endpoint: aggregated
    query: "country=Switzerland"
    body: {country: Switzerland}
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "same_query with one step",
			content: `
name: n
description: d
config: c.yaml
steps: [{endpoint: aggregated}]
assertions:
  - type: same_query
    steps: [0]
`,
			wantErr: "needs at least two steps",
		},
		{
			name: "step out of range",
			content: `
name: n
description: d
config: c.yaml
steps: [{endpoint: aggregated}]
assertions:
  - type: action_type
    step: 3
    action: Aggregated
`,
			wantErr: "step 3 out of range",
		},
		{
			name: "filter_contains without node",
			content: `
name: n
description: d
config: c.yaml
steps: [{endpoint: aggregated}]
assertions:
  - type: filter_contains
    step: 0
`,
			wantErr: "filter_contains requires node",
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: d
config: c.yaml
steps: [{endpoint: aggregated}]
assertions:
  - type: trace_contains
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_Empty(t *testing.T) {
	_, err := LoadScenarios(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios")
}

func TestLoadScenarios_Sorted(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"aggregated_by_country", "mutations_by_lineage", "sequences_segmented"}, names)
}
