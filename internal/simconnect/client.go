package simconnect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	stateIdle int32 = iota
	stateOpen
	stateClosed
)

type registrationKind int

const (
	kindDefinition registrationKind = iota
	kindEvent
)

// SystemEventArgs is delivered to system event subscribers.
type SystemEventArgs struct {
	Event SystemEvent
	Data  uint32

	// State is true when Data is 1, e.g. paused for SystemEventPause.
	State bool
}

type command struct {
	name string
	fn   func(conn Conn) error
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) func(*Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("library", c.lib.Name()))
	}
}

// WithExceptionHandler sets a hook called on the dispatcher goroutine for
// every exception notification with a non-zero code.
func WithExceptionHandler(fn func(*ExceptionError)) func(*Client) {
	return func(c *Client) {
		c.onException = fn
	}
}

// WithMetrics sets the dispatcher metrics sink.
func WithMetrics(m Metrics) func(*Client) {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client is a single simulator connection. All transport calls and all
// callbacks run on one dispatcher goroutine, in delivery order. Registration
// calls are safe from any goroutine and return before the transport has
// processed them.
type Client struct {
	lib         Library
	logger      *slog.Logger
	metrics     Metrics
	onException func(*ExceptionError)

	state        atomic.Int32
	nextDefineID atomic.Uint32
	nextEventID  atomic.Uint32

	mu    sync.Mutex
	queue []command
	pulse chan struct{}

	openOnce sync.Once
	opened   chan struct{}
	openErr  error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	closeErr error

	errMu sync.Mutex
	err   error

	// owned by the dispatcher goroutine
	conn        Conn
	definitions map[uint32]func([]byte) error
	events      map[uint32]func(SystemEventArgs)
}

// NewClient creates a client that connects through lib. The connection is
// not opened until Open is called.
func NewClient(lib Library, options ...func(*Client)) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Client{
		lib:         lib,
		logger:      logger,
		metrics:     nopMetrics{},
		pulse:       make(chan struct{}, 1),
		opened:      make(chan struct{}),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		definitions: make(map[uint32]func([]byte) error),
		events:      make(map[uint32]func(SystemEventArgs)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Open starts the dispatcher and waits for the connection attempt. Only the
// first call attempts to connect; every caller observes the same outcome.
// Cancelling ctx abandons the wait, not the attempt.
//
// A nil error only reports that the attempt succeeded. Once the simulator
// quits, Open keeps returning nil while IsOpen reports false and Err returns
// ErrQuit.
func (c *Client) Open(ctx context.Context, name string) error {
	c.openOnce.Do(func() {
		go c.run(name)
	})

	select {
	case <-c.opened:
		return c.openErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsOpen reports whether the connection is established and not yet closed.
func (c *Client) IsOpen() bool {
	return c.state.Load() == stateOpen
}

// Done is closed when the dispatcher goroutine has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns ErrQuit when the simulator closed the connection, the open
// error when the connection failed, or nil.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.err = err
}

// Close drains pending registration work, stops the dispatcher and closes
// the connection. It may be called repeatedly and from any goroutine.
func (c *Client) Close() error {
	c.openOnce.Do(func() {
		c.openErr = ErrClosed
		c.state.Store(stateClosed)
		close(c.opened)
		close(c.done)
	})

	c.stopOnce.Do(func() {
		close(c.stop)
	})

	<-c.done
	return c.closeErr
}

// AddDefinition registers def with the simulator and requests it every
// simulation frame. onData runs on the dispatcher goroutine for each record.
func AddDefinition[T any](c *Client, def *Definition[T], onData func(T)) (*Registration, error) {
	if def == nil || onData == nil {
		return nil, errors.New("definition and callback are required")
	}
	if !c.IsOpen() {
		return nil, ErrNotOpen
	}

	id := c.nextDefineID.Add(1)
	vars := def.Variables()
	handler := func(p []byte) error {
		v, err := def.Decode(p)
		if err != nil {
			return err
		}

		onData(v)
		return nil
	}

	ok := c.enqueue(command{
		name: fmt.Sprintf("adding definition %d", id),
		fn: func(conn Conn) error {
			c.definitions[id] = handler

			for _, v := range vars {
				if err := conn.AddToDataDefinition(id, v.Name, v.Units, v.DataType, v.Epsilon); err != nil {
					return fmt.Errorf("adding variable %q: %w", v.Name, err)
				}
			}

			if err := conn.RequestDataOnSimObject(id, id, ObjectIDUser, PeriodSimFrame, DataRequestFlagChanged); err != nil {
				return fmt.Errorf("requesting data: %w", err)
			}
			return nil
		},
	})
	if !ok {
		return nil, ErrNotOpen
	}

	return &Registration{id: id, kind: kindDefinition, client: c}, nil
}

// SubscribeToSystemEvent subscribes onEvent to a simulator system event.
// onEvent runs on the dispatcher goroutine.
func (c *Client) SubscribeToSystemEvent(event SystemEvent, onEvent func(SystemEventArgs)) (*Registration, error) {
	if onEvent == nil {
		return nil, errors.New("event callback is required")
	}
	if !c.IsOpen() {
		return nil, ErrNotOpen
	}

	id := c.nextEventID.Add(1)
	ok := c.enqueue(command{
		name: fmt.Sprintf("subscribing to %s event", event),
		fn: func(conn Conn) error {
			c.events[id] = func(args SystemEventArgs) {
				args.Event = event
				onEvent(args)
			}

			return conn.SubscribeToSystemEvent(id, string(event))
		},
	})
	if !ok {
		return nil, ErrNotOpen
	}

	return &Registration{id: id, kind: kindEvent, client: c}, nil
}

func (c *Client) unregister(kind registrationKind, id uint32) {
	switch kind {
	case kindDefinition:
		c.enqueue(command{
			name: fmt.Sprintf("clearing definition %d", id),
			fn: func(conn Conn) error {
				delete(c.definitions, id)
				return conn.ClearDataDefinition(id)
			},
		})

	case kindEvent:
		c.enqueue(command{
			name: fmt.Sprintf("unsubscribing event %d", id),
			fn: func(conn Conn) error {
				delete(c.events, id)
				return conn.UnsubscribeFromSystemEvent(id)
			},
		})
	}
}

func (c *Client) enqueue(cmd command) bool {
	c.mu.Lock()
	if c.state.Load() != stateOpen {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, cmd)
	c.mu.Unlock()

	select {
	case c.pulse <- struct{}{}:
	default:
	}

	return true
}

func (c *Client) run(name string) {
	defer close(c.done)

	ready := make(chan struct{}, 1)
	conn, err := c.lib.Open(name, ready)
	if err != nil {
		c.openErr = fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.lib.Name(), err)
		c.setErr(c.openErr)
		c.state.Store(stateClosed)
		close(c.opened)
		return
	}

	c.conn = conn
	c.state.Store(stateOpen)
	close(c.opened)

	c.logger.Info("connected")
	defer c.shutdown()

	for {
		select {
		case <-c.stop:
			c.seal()
			c.drain()
			return

		case <-c.pulse:
			c.drain()

		case <-ready:
			if c.dispatchAll() {
				c.logger.Info("simulator quit")
				c.setErr(ErrQuit)
				return
			}
		}
	}
}

// seal stops enqueue from accepting commands. Anything queued before it is
// left for the caller to drain.
func (c *Client) seal() {
	c.mu.Lock()
	c.state.Store(stateClosed)
	c.mu.Unlock()
}

func (c *Client) shutdown() {
	c.seal()

	c.mu.Lock()
	c.queue = nil
	c.mu.Unlock()

	clear(c.definitions)
	clear(c.events)

	if err := c.conn.Close(); err != nil {
		c.closeErr = fmt.Errorf("closing connection: %w", err)
		c.logger.Error(c.closeErr.Error())
	}

	c.logger.Info("disconnected")
}

func (c *Client) drain() {
	for {
		c.mu.Lock()
		queue := c.queue
		c.queue = nil
		c.mu.Unlock()

		if len(queue) == 0 {
			return
		}

		for _, cmd := range queue {
			if err := cmd.fn(c.conn); err != nil {
				c.logger.Error(fmt.Sprintf("%s: %s", cmd.name, err.Error()))
			}
		}
	}
}

func (c *Client) dispatchAll() (quit bool) {
	for {
		p, ok, err := c.conn.GetNextDispatch()
		if err != nil {
			c.logger.Error(fmt.Sprintf("reading next record: %s", err.Error()))
			return false
		}
		if !ok {
			return false
		}

		if c.dispatch(p) {
			return true
		}
	}
}

func (c *Client) dispatch(p []byte) (quit bool) {
	hdr, err := parseHeader(p)
	if err != nil {
		c.metrics.RecordDecodeError()
		c.logger.Warn(fmt.Sprintf("parsing record: %s", err.Error()))
		return false
	}

	c.metrics.RecordDispatched(hdr.ID)

	switch hdr.ID {
	case RecvIDQuit:
		return true

	case RecvIDException:
		c.handleException(p)

	case RecvIDEvent:
		c.handleEvent(p)

	case RecvIDSimObjectData, RecvIDSimObjectDataByType:
		c.handleData(p)

	case RecvIDOpen:
		c.logger.Debug("connection acknowledged", slog.Uint64("version", uint64(hdr.Version)))

	default:
		c.logger.Debug("ignoring record", slog.String("kind", hdr.ID.String()))
	}

	return false
}

func (c *Client) handleException(p []byte) {
	rec, err := parseException(p)
	if err != nil {
		c.metrics.RecordDecodeError()
		c.logger.Warn(fmt.Sprintf("parsing exception: %s", err.Error()))
		return
	}
	if rec.Exception == ExceptionNone {
		return
	}

	exc := &ExceptionError{Code: rec.Exception, SendID: rec.SendID, Index: rec.Index}
	c.metrics.RecordException(exc.Code)
	c.logger.Warn(exc.Error())

	if c.onException != nil {
		c.invoke("exception handler", func() error {
			c.onException(exc)
			return nil
		})
	}
}

func (c *Client) handleEvent(p []byte) {
	rec, err := parseEvent(p)
	if err != nil {
		c.metrics.RecordDecodeError()
		c.logger.Warn(fmt.Sprintf("parsing event: %s", err.Error()))
		return
	}

	handler, ok := c.events[rec.EventID]
	if !ok {
		c.logger.Debug("event for unknown subscription", slog.Uint64("eventID", uint64(rec.EventID)))
		return
	}

	c.invoke("event callback", func() error {
		handler(SystemEventArgs{Data: rec.Data, State: rec.Data == 1})
		return nil
	})
}

func (c *Client) handleData(p []byte) {
	rec, err := parseSimObjectData(p)
	if err != nil {
		c.metrics.RecordDecodeError()
		c.logger.Warn(fmt.Sprintf("parsing object data: %s", err.Error()))
		return
	}

	handler, ok := c.definitions[rec.DefineID]
	if !ok {
		c.logger.Debug("data for unknown definition", slog.Uint64("defineID", uint64(rec.DefineID)))
		return
	}

	c.invoke("data callback", func() error {
		return handler(rec.Data)
	})
}

// invoke runs a user callback, logging its error or panic without
// stopping the dispatcher.
func (c *Client) invoke(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordCallbackError()
			c.logger.Error(fmt.Sprintf("%s panicked: %v", what, r))
		}
	}()

	if err := fn(); err != nil {
		if errors.Is(err, ErrShortRecord) {
			c.metrics.RecordDecodeError()
		} else {
			c.metrics.RecordCallbackError()
		}
		c.logger.Error(fmt.Sprintf("%s: %s", what, err.Error()))
	}
}

// Registration is a live definition or event subscription.
type Registration struct {
	id     uint32
	kind   registrationKind
	client *Client
	closed atomic.Bool
}

// ID is the definition or event id assigned by the client.
func (r *Registration) ID() uint32 {
	return r.id
}

// Close removes the registration. It is idempotent and does nothing once
// the connection is closed.
func (r *Registration) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.client.unregister(r.kind, r.id)
	return nil
}
