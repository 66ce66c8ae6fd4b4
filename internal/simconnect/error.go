package simconnect

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed is returned by Open when the transport could not be opened.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNotOpen is returned when registering with a client that is not connected.
	ErrNotOpen = errors.New("connection is not open")

	// ErrClosed is returned by Open after the client was closed.
	ErrClosed = errors.New("client is closed")

	// ErrQuit is reported by Client.Err after the simulator closed the connection.
	ErrQuit = errors.New("simulator quit")

	// ErrUnsupportedPlatform is returned when no native transport exists for
	// the running platform.
	ErrUnsupportedPlatform = errors.New("simconnect is not supported on this platform")

	// ErrShortRecord is returned when a record is smaller than its declared layout.
	ErrShortRecord = errors.New("short record")
)

// SchemaError is returned when a data definition cannot be built.
type SchemaError struct {
	Variable string
	msg      string
}

func NewSchemaError(variable, msg string) *SchemaError {
	return &SchemaError{Variable: variable, msg: msg}
}

func (e *SchemaError) Error() string {
	if e.Variable == "" {
		return "schema: " + e.msg
	}
	return fmt.Sprintf("schema: variable %q: %s", e.Variable, e.msg)
}

// ExceptionError is an exception notification sent by the simulator. Code
// identifies the problem, SendID the offending request and Index the
// offending parameter.
type ExceptionError struct {
	Code   uint32
	SendID uint32
	Index  uint32
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("simconnect exception %d (send id %d, index %d)", e.Code, e.SendID, e.Index)
}
