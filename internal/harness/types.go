package harness

import "encoding/json"

// StepResult is the compilation outcome of one step.
type StepResult struct {
	Endpoint string `json:"endpoint"`
	// Query is the compiled SILO query; nil when compilation failed.
	Query     json.RawMessage `json:"query,omitempty"`
	Cacheable bool            `json:"cacheable"`
	Error     string          `json:"error,omitempty"`

	// CacheKey is the cache key of Query. It is a hash and not part of
	// golden snapshots.
	CacheKey string `json:"-"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one result per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors describes every failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
