// Package simconnect is a client for the flight simulator's local IPC
// protocol. A Client owns one connection and runs every protocol call and
// every callback on a single dispatcher goroutine, since the transport is
// not reentrant.
package simconnect

// Library opens connections to the simulator. Implementations include the
// native Windows binding, the log replay transport and the test double.
type Library interface {
	// Name identifies the library in logs.
	Name() string

	// Open connects as the application name. The returned Conn signals on
	// ready (non-blocking) whenever records may be waiting.
	Open(name string, ready chan<- struct{}) (Conn, error)
}

// Conn is one open simulator connection. It is only used from the
// dispatcher goroutine.
type Conn interface {
	AddToDataDefinition(defineID uint32, name, units string, dataType DataType, epsilon float32) error
	ClearDataDefinition(defineID uint32) error
	RequestDataOnSimObject(requestID, defineID, objectID uint32, period Period, flags DataRequestFlag) error
	SubscribeToSystemEvent(eventID uint32, name string) error
	UnsubscribeFromSystemEvent(eventID uint32) error

	// GetNextDispatch returns the next raw record. ok is false when no
	// record is waiting.
	GetNextDispatch() (p []byte, ok bool, err error)

	Close() error
}

// Metrics receives dispatcher counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordDispatched(kind RecvID)
	RecordDecodeError()
	RecordException(code uint32)
	RecordCallbackError()
}

type nopMetrics struct{}

func (nopMetrics) RecordDispatched(RecvID) {}
func (nopMetrics) RecordDecodeError() {}
func (nopMetrics) RecordException(uint32) {}
func (nopMetrics) RecordCallbackError() {}
