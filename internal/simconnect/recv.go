package simconnect

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// ProtocolVersion is written into the header of records built by Encode* helpers.
	ProtocolVersion uint32 = 4

	headerSize        = 12
	exceptionSize     = headerSize + 12
	eventSize         = headerSize + 12
	simObjectDataSize = headerSize + 28
)

type recvHeader struct {
	Size    uint32
	Version uint32
	ID      RecvID
}

type recvException struct {
	Exception uint32
	SendID    uint32
	Index     uint32
}

type recvEvent struct {
	GroupID uint32
	EventID uint32
	Data    uint32
}

type recvSimObjectData struct {
	RequestID   uint32
	ObjectID    uint32
	DefineID    uint32
	Flags       uint32
	EntryNumber uint32
	OutOf       uint32
	DefineCount uint32
	Data        []byte
}

func u32(p []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(p[off:])
}

func parseHeader(p []byte) (recvHeader, error) {
	if len(p) < headerSize {
		return recvHeader{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrShortRecord, headerSize, len(p))
	}

	return recvHeader{
		Size:    u32(p, 0),
		Version: u32(p, 4),
		ID:      RecvID(u32(p, 8)),
	}, nil
}

func parseException(p []byte) (recvException, error) {
	if len(p) < exceptionSize {
		return recvException{}, fmt.Errorf("%w: exception needs %d bytes, got %d", ErrShortRecord, exceptionSize, len(p))
	}

	return recvException{
		Exception: u32(p, headerSize),
		SendID:    u32(p, headerSize+4),
		Index:     u32(p, headerSize+8),
	}, nil
}

func parseEvent(p []byte) (recvEvent, error) {
	if len(p) < eventSize {
		return recvEvent{}, fmt.Errorf("%w: event needs %d bytes, got %d", ErrShortRecord, eventSize, len(p))
	}

	return recvEvent{
		GroupID: u32(p, headerSize),
		EventID: u32(p, headerSize+4),
		Data:    u32(p, headerSize+8),
	}, nil
}

func parseSimObjectData(p []byte) (recvSimObjectData, error) {
	if len(p) < simObjectDataSize {
		return recvSimObjectData{}, fmt.Errorf("%w: object data needs %d bytes, got %d", ErrShortRecord, simObjectDataSize, len(p))
	}

	return recvSimObjectData{
		RequestID:   u32(p, headerSize),
		ObjectID:    u32(p, headerSize+4),
		DefineID:    u32(p, headerSize+8),
		Flags:       u32(p, headerSize+12),
		EntryNumber: u32(p, headerSize+16),
		OutOf:       u32(p, headerSize+20),
		DefineCount: u32(p, headerSize+24),
		Data:        p[simObjectDataSize:],
	}, nil
}

func appendHeader(p []byte, size int, id RecvID) []byte {
	p = binary.LittleEndian.AppendUint32(p, uint32(size))
	p = binary.LittleEndian.AppendUint32(p, ProtocolVersion)
	return binary.LittleEndian.AppendUint32(p, uint32(id))
}

// EncodeOpen builds the record a transport returns once the connection is established.
func EncodeOpen() []byte {
	return appendHeader(make([]byte, 0, headerSize), headerSize, RecvIDOpen)
}

// EncodeQuit builds the record a transport returns when the simulator exits.
func EncodeQuit() []byte {
	return appendHeader(make([]byte, 0, headerSize), headerSize, RecvIDQuit)
}

// EncodeException builds an exception record.
func EncodeException(code, sendID, index uint32) []byte {
	p := appendHeader(make([]byte, 0, exceptionSize), exceptionSize, RecvIDException)
	p = binary.LittleEndian.AppendUint32(p, code)
	p = binary.LittleEndian.AppendUint32(p, sendID)
	return binary.LittleEndian.AppendUint32(p, index)
}

// EncodeEvent builds a system event record for a subscribed event id.
func EncodeEvent(eventID, data uint32) []byte {
	p := appendHeader(make([]byte, 0, eventSize), eventSize, RecvIDEvent)
	p = binary.LittleEndian.AppendUint32(p, 0)
	p = binary.LittleEndian.AppendUint32(p, eventID)
	return binary.LittleEndian.AppendUint32(p, data)
}

// EncodeSimObjectData builds a data record carrying one encoded definition.
func EncodeSimObjectData(requestID, defineID uint32, data []byte) []byte {
	size := simObjectDataSize + len(data)
	p := appendHeader(make([]byte, 0, size), size, RecvIDSimObjectData)
	p = binary.LittleEndian.AppendUint32(p, requestID)
	p = binary.LittleEndian.AppendUint32(p, ObjectIDUser)
	p = binary.LittleEndian.AppendUint32(p, defineID)
	p = binary.LittleEndian.AppendUint32(p, uint32(DataRequestFlagChanged))
	p = binary.LittleEndian.AppendUint32(p, 1)
	p = binary.LittleEndian.AppendUint32(p, 1)
	p = binary.LittleEndian.AppendUint32(p, 1)
	return append(p, data...)
}

// AppendValue appends v encoded as dataType to p.
func AppendValue(p []byte, dataType DataType, v float64) ([]byte, error) {
	switch dataType {
	case DataTypeInt32:
		return binary.LittleEndian.AppendUint32(p, uint32(int32(v))), nil
	case DataTypeInt64:
		return binary.LittleEndian.AppendUint64(p, uint64(int64(v))), nil
	case DataTypeFloat32:
		return binary.LittleEndian.AppendUint32(p, math.Float32bits(float32(v))), nil
	case DataTypeFloat64:
		return binary.LittleEndian.AppendUint64(p, math.Float64bits(v)), nil
	default:
		return p, fmt.Errorf("encoding %s: unsupported data type", dataType)
	}
}
