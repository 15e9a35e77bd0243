package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lapis/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to golden/ next to the scenarios directory
}

// ScenarioResult holds the result of a single scenario.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r TestResult) writeText(w io.Writer) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No scenarios found.")
		return err
	}
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		suffix := ""
		if s.Golden == "updated" {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, s.Name, suffix)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	if r.Failed == 0 {
		_, err := fmt.Fprintln(w, "✓ All scenarios passed")
		return err
	}
	return nil
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run request conformance scenarios",
		Long: `Run request conformance scenarios.

Each scenario file names a config and a list of requests. The requests are
parsed and compiled exactly as the gateway would, checked against their
expectations and assertions, and compared with the golden file of the
scenario. Nothing is sent to SILO.

Golden files live in ../golden relative to the scenarios directory unless
--golden-dir is given. Scenarios without a golden file are checked by
their assertions only.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad filter)

Examples:
  lapis test ./testdata/scenarios
  lapis test ./testdata/scenarios --filter "aggregated_*"
  lapis test ./testdata/scenarios --update
  lapis test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return fail(formatter, ExitCommandError, ErrCodeInput,
			fmt.Sprintf("scenarios directory not found: %s", scenariosDir), err)
	}
	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInput, "failed to find scenarios", err)
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		formatter.VerboseLog("Running %s", file)
		sr := runScenario(file, goldenDir, opts.Update)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if err := formatter.Failure(ErrCodeTestFailed, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, ErrCodeTestFailed+": "+msg)
	}
	return formatter.Success(result)
}

// findScenarioFiles finds the YAML scenario files in dir whose base name
// without extension matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func runScenario(file, goldenDir string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}
	sr := ScenarioResult{Name: scenario.Name}

	result, err := harness.Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Errors = result.Errors

	path := harness.GoldenPath(goldenDir, scenario.Name)
	if update {
		if err := harness.WriteGolden(path, scenario.Name, result); err != nil {
			sr.Errors = append(sr.Errors, err.Error())
			return sr
		}
		sr.Golden = "updated"
		sr.Pass = result.Pass
		return sr
	}

	match, err := harness.MatchesGolden(path, scenario.Name, result)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		sr.Golden = "missing"
	case err != nil:
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		return sr
	case !match:
		sr.Errors = append(sr.Errors, "compiled queries do not match golden file (run with --update to regenerate)")
		return sr
	default:
		sr.Golden = "match"
	}
	sr.Pass = result.Pass
	return sr
}
