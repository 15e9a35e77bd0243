package harness

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Steps    []StepResult // all steps, for context
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nSteps:\n")
	for i, s := range e.Steps {
		if s.Error != "" {
			fmt.Fprintf(&buf, "  [%d] %s error: %s\n", i, s.Endpoint, s.Error)
		} else {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", i, s.Endpoint, s.Query)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the compiled steps and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertSameQuery:
			err = assertSameQuery(result.Steps, a)
		case AssertFilterContains:
			err = assertFilterContains(result.Steps, a)
		case AssertActionType:
			err = assertActionType(result.Steps, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// compiled returns the step at i or an assertion error when it is out of
// range or did not compile.
func compiled(steps []StepResult, i int, kind string) (StepResult, error) {
	if i < 0 || i >= len(steps) {
		return StepResult{}, &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("step %d", i),
			Actual:   fmt.Sprintf("only %d steps", len(steps)),
			Steps:    steps,
		}
	}
	if steps[i].Error != "" {
		return StepResult{}, &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("step %d to compile", i),
			Actual:   steps[i].Error,
			Steps:    steps,
		}
	}
	return steps[i], nil
}

func assertSameQuery(steps []StepResult, a Assertion) error {
	first, err := compiled(steps, a.Steps[0], AssertSameQuery)
	if err != nil {
		return err
	}
	for _, i := range a.Steps[1:] {
		s, err := compiled(steps, i, AssertSameQuery)
		if err != nil {
			return err
		}
		if s.CacheKey != first.CacheKey {
			return &AssertionError{
				Type:     AssertSameQuery,
				Expected: fmt.Sprintf("step %d to compile like step %d: %s", i, a.Steps[0], first.Query),
				Actual:   string(s.Query),
				Steps:    steps,
			}
		}
	}
	return nil
}

func assertFilterContains(steps []StepResult, a Assertion) error {
	s, err := compiled(steps, a.Step, AssertFilterContains)
	if err != nil {
		return err
	}
	var q struct {
		FilterExpression any `json:"filterExpression"`
	}
	if err := json.Unmarshal(s.Query, &q); err != nil {
		return err
	}
	if !containsNode(q.FilterExpression, a.Node) {
		return &AssertionError{
			Type:     AssertFilterContains,
			Expected: fmt.Sprintf("a %s node in the filter of step %d", a.Node, a.Step),
			Actual:   "not found",
			Steps:    steps,
		}
	}
	return nil
}

// containsNode walks a decoded filter tree looking for a node whose type
// is node.
func containsNode(v any, node string) bool {
	switch t := v.(type) {
	case map[string]any:
		if t["type"] == node {
			return true
		}
		for _, key := range []string{"child", "children"} {
			if containsNode(t[key], node) {
				return true
			}
		}
	case []any:
		for _, c := range t {
			if containsNode(c, node) {
				return true
			}
		}
	}
	return false
}

func assertActionType(steps []StepResult, a Assertion) error {
	s, err := compiled(steps, a.Step, AssertActionType)
	if err != nil {
		return err
	}
	var q struct {
		Action struct {
			Type string `json:"type"`
		} `json:"action"`
	}
	if err := json.Unmarshal(s.Query, &q); err != nil {
		return err
	}
	if q.Action.Type != a.Action {
		return &AssertionError{
			Type:     AssertActionType,
			Expected: fmt.Sprintf("step %d to compile to %s", a.Step, a.Action),
			Actual:   q.Action.Type,
			Steps:    steps,
		}
	}
	return nil
}
