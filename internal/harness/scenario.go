package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one request conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Config is the gateway configuration whose schema the requests are
	// parsed against. LoadScenario resolves it relative to the scenario
	// file.
	Config string `yaml:"config"`

	// Steps are compiled in order.
	Steps []Step `yaml:"steps"`

	// Assertions relate the compiled steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one request.
type Step struct {
	// Endpoint is the endpoint name, with a segment or gene after a slash
	// for the sequence endpoints.
	Endpoint string `yaml:"endpoint"`

	// Query is the request as a URL query string (GET).
	Query string `yaml:"query,omitempty"`

	// Body is the request as a JSON object (POST).
	Body map[string]any `yaml:"body,omitempty"`

	// Expect checks the compilation outcome. Without it the step must
	// compile.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is the expected outcome of one step.
type ExpectClause struct {
	// Error is a substring of the expected error. Empty means the step
	// must compile.
	Error string `yaml:"error,omitempty"`

	// Cacheable, when set, is the expected cache eligibility.
	Cacheable *bool `yaml:"cacheable,omitempty"`
}

// Assertion relates compiled steps.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Steps are the step indexes compared by same_query.
	Steps []int `yaml:"steps,omitempty"`

	// Step is the step index checked by filter_contains and action_type.
	Step int `yaml:"step,omitempty"`

	// Node is the filter node type searched by filter_contains.
	Node string `yaml:"node,omitempty"`

	// Action is the action type expected by action_type.
	Action string `yaml:"action,omitempty"`
}

// Assertion types.
const (
	AssertSameQuery      = "same_query"
	AssertFilterContains = "filter_contains"
	AssertActionType     = "action_type"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos do not silently disable a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", dir)
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Endpoint == "" {
			return fmt.Errorf("step %d: endpoint is required", i)
		}
		if step.Query != "" && step.Body != nil {
			return fmt.Errorf("step %d: query and body are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, len(s.Steps)); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, steps int) error {
	inRange := func(i int) error {
		if i < 0 || i >= steps {
			return fmt.Errorf("step %d out of range [0, %d)", i, steps)
		}
		return nil
	}

	switch a.Type {
	case AssertSameQuery:
		if len(a.Steps) < 2 {
			return fmt.Errorf("%s needs at least two steps", a.Type)
		}
		for _, i := range a.Steps {
			if err := inRange(i); err != nil {
				return err
			}
		}
	case AssertFilterContains:
		if a.Node == "" {
			return fmt.Errorf("%s requires node", a.Type)
		}
		return inRange(a.Step)
	case AssertActionType:
		if a.Action == "" {
			return fmt.Errorf("%s requires action", a.Type)
		}
		return inRange(a.Step)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
