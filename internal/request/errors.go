package request

import "fmt"

// BadRequestError is a request validation failure. The client can always
// recover by correcting the request.
type BadRequestError struct {
	// Property is the request property at fault, if any.
	Property string
	Message  string
}

func (e *BadRequestError) Error() string {
	if e.Property == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Property, e.Message)
}

func badRequest(property, format string, args ...any) *BadRequestError {
	return &BadRequestError{Property: property, Message: fmt.Sprintf(format, args...)}
}
