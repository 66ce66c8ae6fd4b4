package simconnect

// DataType is the wire type of a single data definition field.
type DataType uint32

const (
	DataTypeInvalid DataType = iota
	DataTypeInt32
	DataTypeInt64
	DataTypeFloat32
	DataTypeFloat64
	DataTypeString8
	DataTypeString32
	DataTypeString64
	DataTypeString128
	DataTypeString256
	DataTypeString260
	DataTypeStringV
)

// Size returns the fixed width of the type on the wire, or 0 for types
// the decoder does not support.
func (t DataType) Size() int {
	switch t {
	case DataTypeInt32, DataTypeFloat32:
		return 4
	case DataTypeInt64, DataTypeFloat64:
		return 8
	default:
		return 0
	}
}

func (t DataType) String() string {
	switch t {
	case DataTypeInt32:
		return "int32"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat32:
		return "float32"
	case DataTypeFloat64:
		return "float64"
	case DataTypeInvalid:
		return "invalid"
	default:
		return "string"
	}
}

// Period controls how often the simulator delivers a data definition.
type Period uint32

const (
	PeriodNever Period = iota
	PeriodOnce
	PeriodVisualFrame
	PeriodSimFrame
	PeriodSecond
)

// DataRequestFlag modifies a data request.
type DataRequestFlag uint32

const (
	DataRequestFlagDefault DataRequestFlag = 0
	DataRequestFlagChanged DataRequestFlag = 1
	DataRequestFlagTagged  DataRequestFlag = 2
)

// ObjectIDUser addresses the user's aircraft.
const ObjectIDUser uint32 = 0

// SystemEvent names a simulator system event.
type SystemEvent string

const (
	// SystemEventPause fires with 1 when the simulation is paused and 0 when resumed.
	SystemEventPause SystemEvent = "Pause"

	// SystemEventSim fires with 1 when the user is in control of the aircraft
	// and 0 when in menus or loading.
	SystemEventSim SystemEvent = "Sim"
)

// RecvID identifies the kind of a record returned by the transport.
type RecvID uint32

const (
	RecvIDNull RecvID = iota
	RecvIDException
	RecvIDOpen
	RecvIDQuit
	RecvIDEvent
	RecvIDEventObjectAddRemove
	RecvIDEventFilename
	RecvIDEventFrame
	RecvIDSimObjectData
	RecvIDSimObjectDataByType
)

func (id RecvID) String() string {
	switch id {
	case RecvIDNull:
		return "null"
	case RecvIDException:
		return "exception"
	case RecvIDOpen:
		return "open"
	case RecvIDQuit:
		return "quit"
	case RecvIDEvent:
		return "event"
	case RecvIDEventObjectAddRemove:
		return "event_object_add_remove"
	case RecvIDEventFilename:
		return "event_filename"
	case RecvIDEventFrame:
		return "event_frame"
	case RecvIDSimObjectData:
		return "simobject_data"
	case RecvIDSimObjectDataByType:
		return "simobject_data_bytype"
	default:
		return "unknown"
	}
}

// Exception codes reported by the simulator that callers commonly inspect.
const (
	ExceptionNone              uint32 = 0
	ExceptionErrorCode         uint32 = 1
	ExceptionSizeMismatch      uint32 = 2
	ExceptionUnrecognizedID    uint32 = 3
	ExceptionUnopened          uint32 = 4
	ExceptionVersionMismatch   uint32 = 5
	ExceptionTooManyGroups     uint32 = 6
	ExceptionNameUnrecognized  uint32 = 7
	ExceptionTooManyEventNames uint32 = 8
	ExceptionEventIDDuplicate  uint32 = 9
)
