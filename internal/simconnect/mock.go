package simconnect

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// MockLibrary is an in-memory Library for tests. Every Open returns a new
// MockConn unless OpenErr is set.
type MockLibrary struct {
	mu      sync.Mutex
	name    string
	openErr error
	opens   int
	conn    *MockConn
}

// NewMockLibrary creates a mock library reporting name in logs.
func NewMockLibrary(name string) *MockLibrary {
	return &MockLibrary{name: name}
}

func (l *MockLibrary) Name() string {
	return l.name
}

// FailOpen makes subsequent Open calls return err.
func (l *MockLibrary) FailOpen(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.openErr = err
}

func (l *MockLibrary) Open(name string, ready chan<- struct{}) (Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.opens++
	if l.openErr != nil {
		return nil, l.openErr
	}

	l.conn = &MockConn{
		appName:     name,
		ready:       ready,
		definitions: make(map[uint32][]Variable),
		requests:    make(map[uint32]uint32),
		events:      make(map[string]uint32),
	}
	return l.conn, nil
}

// Opens returns the number of Open calls.
func (l *MockLibrary) Opens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// Conn returns the most recently opened connection, or nil.
func (l *MockLibrary) Conn() *MockConn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// MockConn records every call made by the dispatcher and replays records
// pushed by the test.
type MockConn struct {
	mu          sync.Mutex
	appName     string
	ready       chan<- struct{}
	pending     []mockRecord
	calls       []string
	definitions map[uint32][]Variable
	requests    map[uint32]uint32
	events      map[string]uint32
	closed      bool
}

type mockRecord struct {
	p   []byte
	err error
}

func (c *MockConn) record(call string) {
	c.calls = append(c.calls, call)
}

func (c *MockConn) AddToDataDefinition(defineID uint32, name, units string, dataType DataType, epsilon float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(fmt.Sprintf("AddToDataDefinition(%d, %s, %s, %s)", defineID, name, units, dataType))
	c.definitions[defineID] = append(c.definitions[defineID], Variable{Name: name, Units: units, DataType: dataType, Epsilon: epsilon})
	return nil
}

func (c *MockConn) ClearDataDefinition(defineID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(fmt.Sprintf("ClearDataDefinition(%d)", defineID))
	delete(c.definitions, defineID)
	for req, def := range c.requests {
		if def == defineID {
			delete(c.requests, req)
		}
	}
	return nil
}

func (c *MockConn) RequestDataOnSimObject(requestID, defineID, objectID uint32, period Period, flags DataRequestFlag) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(fmt.Sprintf("RequestDataOnSimObject(%d, %d, %d, %d, %d)", requestID, defineID, objectID, period, flags))
	c.requests[requestID] = defineID
	return nil
}

func (c *MockConn) SubscribeToSystemEvent(eventID uint32, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(fmt.Sprintf("SubscribeToSystemEvent(%d, %s)", eventID, name))
	c.events[name] = eventID
	return nil
}

func (c *MockConn) UnsubscribeFromSystemEvent(eventID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(fmt.Sprintf("UnsubscribeFromSystemEvent(%d)", eventID))
	for name, id := range c.events {
		if id == eventID {
			delete(c.events, name)
		}
	}
	return nil
}

func (c *MockConn) GetNextDispatch() ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil, false, nil
	}

	rec := c.pending[0]
	c.pending = c.pending[1:]

	if rec.err != nil {
		// like the native event, fire again while records remain
		if len(c.pending) > 0 {
			c.signal()
		}
		return nil, false, rec.err
	}
	return rec.p, true, nil
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("already closed")
	}
	c.closed = true
	c.record("Close()")
	return nil
}

// Push queues raw records and signals the dispatcher.
func (c *MockConn) Push(records ...[]byte) {
	c.mu.Lock()
	for _, p := range records {
		c.pending = append(c.pending, mockRecord{p: p})
	}
	c.mu.Unlock()

	c.signal()
}

// PushError queues a GetNextDispatch failure behind the pending records.
func (c *MockConn) PushError(err error) {
	c.mu.Lock()
	c.pending = append(c.pending, mockRecord{err: err})
	c.mu.Unlock()

	c.signal()
}

func (c *MockConn) signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// PushEvent queues an event record for the subscription to name. It
// returns false when nothing is subscribed to name.
func (c *MockConn) PushEvent(name SystemEvent, data uint32) bool {
	id, ok := c.EventID(name)
	if !ok {
		return false
	}

	c.Push(EncodeEvent(id, data))
	return true
}

// PushData queues a data record for every request of defineID.
func (c *MockConn) PushData(defineID uint32, data []byte) bool {
	c.mu.Lock()
	var requests []uint32
	for req, def := range c.requests {
		if def == defineID {
			requests = append(requests, req)
		}
	}
	c.mu.Unlock()

	for _, req := range requests {
		c.Push(EncodeSimObjectData(req, defineID, data))
	}
	return len(requests) > 0
}

// AppName is the application name passed to Open.
func (c *MockConn) AppName() string {
	return c.appName
}

// EventID returns the id subscribed for name.
func (c *MockConn) EventID(name SystemEvent) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.events[string(name)]
	return id, ok
}

// Definition returns the variables added for defineID, in order.
func (c *MockConn) Definition(defineID uint32) []Variable {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.definitions[defineID])
}

// Requested reports whether data was requested for defineID.
func (c *MockConn) Requested(defineID uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, def := range c.requests {
		if def == defineID {
			return true
		}
	}
	return false
}

// Calls returns the transport calls in the order they were made.
func (c *MockConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// Closed reports whether Close was called.
func (c *MockConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
