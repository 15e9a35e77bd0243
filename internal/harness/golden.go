package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario run: the compiled query (or
// error) of every step.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Steps    []StepResult `json:"steps"`
}

// MarshalSnapshot renders a run as indented JSON with a trailing newline.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(Snapshot{Scenario: name, Steps: result.Steps}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// GoldenPath is the golden file of the scenario called name in dir.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// WriteGolden replaces the golden file at path with the snapshot of result.
func WriteGolden(path, name string, result *Result) error {
	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// MatchesGolden reports whether the golden file at path holds the snapshot
// of result. A missing file is returned as an error satisfying
// errors.Is(err, fs.ErrNotExist).
func MatchesGolden(path, name string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	got, err := MarshalSnapshot(name, result)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// RunWithGolden runs a scenario, fails t on any failed expectation and
// compares the compiled queries with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
