// Package replay plays a CSV flight log back as a simulator connection.
// The library doubles as the clock of the replayed flight, so positions
// are logged with their recorded times.
package replay

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/flight-logger/internal/flightlog/csvlog"
	"github.com/roman-kulish/flight-logger/internal/geo"
	"github.com/roman-kulish/flight-logger/internal/simconnect"
	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// Library replays records to every connection it opens.
type Library struct {
	name    string
	records []csvlog.Record

	mu  sync.Mutex
	now time.Time
}

// New creates a library replaying records in order.
func New(name string, records []csvlog.Record) *Library {
	l := Library{
		name:    name,
		records: records,
	}
	if len(records) > 0 {
		l.now = records[0].Time
	}
	return &l
}

// Open reads the CSV log at path into a library.
func Open(path string) (*Library, error) {
	records, err := csvlog.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return New(filepath.Base(path), records), nil
}

func (l *Library) Name() string {
	return "replay:" + l.name
}

// Len returns the number of records.
func (l *Library) Len() int {
	return len(l.records)
}

// Now returns the time of the record being dispatched.
func (l *Library) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

func (l *Library) Since(t time.Time) time.Duration {
	return l.Now().Sub(t)
}

func (l *Library) setNow(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = t
}

func (l *Library) Open(name string, ready chan<- struct{}) (simconnect.Conn, error) {
	c := conn{
		lib:         l,
		ready:       ready,
		definitions: make(map[uint32]*definition),
		events:      make(map[string]uint32),
		pending:     [][]byte{simconnect.EncodeOpen()},
	}
	c.signal()

	return &c, nil
}

type field struct {
	dataType simconnect.DataType
	value    func(telemetry.Position) float64
}

type definition struct {
	fields []field
	broken bool
}

type request struct {
	requestID uint32
	defineID  uint32
}

const (
	phaseIdle = iota
	phaseEvents
	phaseRecords
	phaseQuit
	phaseDone
)

type conn struct {
	lib   *Library
	ready chan<- struct{}

	mu          sync.Mutex
	definitions map[uint32]*definition
	requests    []request
	events      map[string]uint32
	pending     [][]byte
	phase       int
	next        int
	closed      bool
}

// variables served from a CSV log, keyed by name and then by units
var variables = map[string]map[string]func(telemetry.Position) float64{
	telemetry.VarLatitude: {
		"degrees": func(p telemetry.Position) float64 { return p.Latitude },
	},
	telemetry.VarLongitude: {
		"degrees": func(p telemetry.Position) float64 { return p.Longitude },
	},
	telemetry.VarAltitude: {
		"feet":   func(p telemetry.Position) float64 { return p.Altitude },
		"meters": func(p telemetry.Position) float64 { return geo.FeetToMeters(p.Altitude) },
	},
	telemetry.VarAirspeed: {
		"knots": func(p telemetry.Position) float64 { return p.Airspeed },
	},
}

func (c *conn) AddToDataDefinition(defineID uint32, name, units string, dataType simconnect.DataType, _ float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, ok := c.definitions[defineID]
	if !ok {
		def = &definition{}
		c.definitions[defineID] = def
	}

	value, ok := variables[strings.ToUpper(name)][strings.ToLower(units)]
	if !ok || dataType.Size() == 0 {
		def.broken = true
		c.pending = append(c.pending, simconnect.EncodeException(simconnect.ExceptionNameUnrecognized, defineID, uint32(len(def.fields))))
		c.signal()
		return nil
	}

	def.fields = append(def.fields, field{dataType: dataType, value: value})
	return nil
}

func (c *conn) ClearDataDefinition(defineID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.definitions, defineID)
	c.requests = slices.DeleteFunc(c.requests, func(r request) bool { return r.defineID == defineID })
	return nil
}

func (c *conn) RequestDataOnSimObject(requestID, defineID, _ uint32, _ simconnect.Period, _ simconnect.DataRequestFlag) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, request{requestID: requestID, defineID: defineID})
	if c.phase == phaseIdle {
		c.phase = phaseEvents
	}
	c.signal()
	return nil
}

func (c *conn) SubscribeToSystemEvent(eventID uint32, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events[name] = eventID
	return nil
}

func (c *conn) UnsubscribeFromSystemEvent(eventID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, id := range c.events {
		if id == eventID {
			delete(c.events, name)
		}
	}
	return nil
}

func (c *conn) GetNextDispatch() ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, simconnect.ErrClosed
	}

	for len(c.pending) == 0 {
		if !c.advance() {
			return nil, false, nil
		}
	}

	p := c.pending[0]
	c.pending = c.pending[1:]
	return p, true, nil
}

// advance queues the records of the next playback step. It returns false
// when there is nothing more to play.
func (c *conn) advance() bool {
	switch c.phase {
	case phaseEvents:
		if id, ok := c.events[string(simconnect.SystemEventSim)]; ok {
			c.pending = append(c.pending, simconnect.EncodeEvent(id, 1))
		}
		if id, ok := c.events[string(simconnect.SystemEventPause)]; ok {
			c.pending = append(c.pending, simconnect.EncodeEvent(id, 0))
		}
		c.phase = phaseRecords
		return true

	case phaseRecords:
		if c.next >= len(c.lib.records) {
			c.phase = phaseQuit
			return true
		}

		rec := c.lib.records[c.next]
		c.next++
		c.lib.setNow(rec.Time)

		for _, req := range c.requests {
			def, ok := c.definitions[req.defineID]
			if !ok || def.broken {
				continue
			}

			var data []byte
			for _, f := range def.fields {
				// sizes were checked when the field was added
				data, _ = simconnect.AppendValue(data, f.dataType, f.value(rec.Position))
			}
			c.pending = append(c.pending, simconnect.EncodeSimObjectData(req.requestID, req.defineID, data))
		}
		return true

	case phaseQuit:
		c.pending = append(c.pending, simconnect.EncodeQuit())
		c.phase = phaseDone
		return true

	default:
		return false
	}
}

func (c *conn) signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}
