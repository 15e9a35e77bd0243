package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"dataVersion": "1700000000"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"dataVersion": "1700000000"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error(ErrCodeConfig, "silo.url is required", []string{"lapis.yaml"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E002", resp.Error.Code)
	assert.Equal(t, "silo.url is required", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("gateway ready"))
	assert.Equal(t, "gateway ready\n", buf.String())
}

type report struct{}

func (report) writeText(w io.Writer) error {
	_, err := fmt.Fprint(w, "custom rendering\n")
	return err
}

func TestOutputFormatter_TextReport(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(report{}))
	assert.Equal(t, "custom rendering\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeBadRequest, "invalid request", "limit"))
			assert.Contains(t, buf.String(), "Error [E005]: invalid request")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: limit")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("Querying %s", "http://silo:8081/info")

	assert.Empty(t, out.String())
	assert.Equal(t, "Querying http://silo:8081/info\n", diag.String())

	formatter.Verbose = false
	formatter.VerboseLog("dropped")
	assert.NotContains(t, diag.String(), "dropped")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad config")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "serve", errors.New("boom")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: serve: boom", wrapped.Error())
}

func TestFail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := fail(formatter, ExitCommandError, ErrCodeConfig, "loading config", errors.New("no such file"))

	assert.Equal(t, "Error [E002]: loading config: no such file\n", buf.String())
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.EqualError(t, err, "E002: loading config: no such file")
}
