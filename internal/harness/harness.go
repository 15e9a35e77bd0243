package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/roach88/lapis/internal/cache"
	"github.com/roach88/lapis/internal/compiler"
	"github.com/roach88/lapis/internal/config"
	"github.com/roach88/lapis/internal/request"
)

// Harness compiles the steps of scenarios against one schema.
type Harness struct {
	parser   *request.Parser
	compiler *compiler.Compiler
	logger   *slog.Logger
}

// New builds a harness for the schema described by the config file at
// configPath.
func New(configPath string) (*Harness, error) {
	cfg, err := config.Load(configPath, config.Overrides{})
	if err != nil {
		return nil, err
	}
	s, err := cfg.BuildSchema()
	if err != nil {
		return nil, err
	}
	parser, err := request.NewParser(s)
	if err != nil {
		return nil, err
	}
	return &Harness{
		parser:   parser,
		compiler: compiler.New(s),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Run executes a scenario and returns its result. The returned error is
// reserved for scenarios that cannot run at all (unreadable config); failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	h, err := New(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", scenario.Config, err)
	}
	return h.Run(scenario), nil
}

// Run executes a scenario against the harness schema.
func (h *Harness) Run(scenario *Scenario) *Result {
	result := NewResult()

	for i, step := range scenario.Steps {
		sr := h.compileStep(step)
		result.Steps = append(result.Steps, sr)
		h.logger.Debug("step compiled", "step", i, "endpoint", step.Endpoint, "error", sr.Error)

		for _, msg := range checkExpect(step, sr) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Endpoint, msg))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result
}

func (h *Harness) compileStep(step Step) StepResult {
	sr := StepResult{Endpoint: step.Endpoint}

	props, err := properties(step)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	q, err := h.compiler.Endpoint(h.parser, step.Endpoint, props)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}

	if sr.Query, err = json.Marshal(q); err != nil {
		sr.Error = err.Error()
		return sr
	}
	if sr.CacheKey, err = cache.Key(q); err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Cacheable = q.CacheEligible()
	return sr
}

// properties converts the step's query string or body the way the HTTP
// layer converts GET and POST requests.
func properties(step Step) (request.Properties, error) {
	if step.Body != nil {
		body, err := json.Marshal(step.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		return request.FromJSON(body)
	}
	values, err := url.ParseQuery(step.Query)
	if err != nil {
		return nil, err
	}
	return request.FromQuery(values)
}

func checkExpect(step Step, sr StepResult) []string {
	var wantErr string
	if step.Expect != nil {
		wantErr = step.Expect.Error
	}

	switch {
	case sr.Error != "" && wantErr == "":
		return []string{"unexpected error: " + sr.Error}
	case sr.Error != "" && !strings.Contains(sr.Error, wantErr):
		return []string{fmt.Sprintf("expected error containing %q, got %q", wantErr, sr.Error)}
	case sr.Error == "" && wantErr != "":
		return []string{fmt.Sprintf("expected error containing %q, compiled successfully", wantErr)}
	}

	if step.Expect != nil && step.Expect.Cacheable != nil && sr.Error == "" && *step.Expect.Cacheable != sr.Cacheable {
		return []string{fmt.Sprintf("expected cacheable=%t, got %t", *step.Expect.Cacheable, sr.Cacheable)}
	}
	return nil
}
