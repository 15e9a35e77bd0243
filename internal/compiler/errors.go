package compiler

import "fmt"

// CompileError is a request that is well-formed but cannot be expressed as
// a downstream query, such as an unparseable date or an advanced query
// syntax error.
type CompileError struct {
	Field   string
	Message string
	// Pos is the 1-based column in an advanced query, 0 if unknown.
	Pos int
}

func (e *CompileError) Error() string {
	if e.Pos > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Field, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func compileErr(field, format string, args ...any) *CompileError {
	return &CompileError{Field: field, Message: fmt.Sprintf(format, args...)}
}
