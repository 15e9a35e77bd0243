package response

import "fmt"

// ClientDisconnectedError is a failed write to the client. Nothing more can
// be sent on the response.
type ClientDisconnectedError struct {
	Err error
}

func (e *ClientDisconnectedError) Error() string {
	return fmt.Sprintf("client disconnected: %v", e.Err)
}

func (e *ClientDisconnectedError) Unwrap() error { return e.Err }

// AbortedError is a row failure after the status line was sent. The
// response is truncated and the connection must be dropped.
type AbortedError struct {
	Rows int
	Err  error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("stream aborted after %d rows: %v", e.Rows, e.Err)
}

func (e *AbortedError) Unwrap() error { return e.Err }
