package simconnect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	hdr, err := parseHeader(EncodeQuit())
	require.NoError(t, err)
	assert.Equal(t, RecvIDQuit, hdr.ID)
	assert.Equal(t, uint32(headerSize), hdr.Size)

	exc, err := parseException(EncodeException(ExceptionNameUnrecognized, 7, 2))
	require.NoError(t, err)
	assert.Equal(t, recvException{Exception: ExceptionNameUnrecognized, SendID: 7, Index: 2}, exc)

	ev, err := parseEvent(EncodeEvent(3, 1))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), ev.EventID)
	assert.Equal(t, uint32(1), ev.Data)

	data, err := parseSimObjectData(EncodeSimObjectData(5, 6, []byte{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), data.RequestID)
	assert.Equal(t, uint32(6), data.DefineID)
	assert.Equal(t, []byte{1, 2, 3, 4}, data.Data)
}

func TestExceptionError(t *testing.T) {
	exc, err := parseException(EncodeException(ExceptionErrorCode, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, ExceptionErrorCode, exc.Exception)

	e := &ExceptionError{Code: exc.Exception, SendID: exc.SendID, Index: exc.Index}
	assert.Equal(t, "simconnect exception 1 (send id 3, index 0)", e.Error())
}

func TestParseShortRecords(t *testing.T) {
	_, err := parseHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortRecord)

	_, err = parseException(EncodeQuit())
	assert.ErrorIs(t, err, ErrShortRecord)

	_, err = parseEvent(EncodeQuit())
	assert.ErrorIs(t, err, ErrShortRecord)

	_, err = parseSimObjectData(EncodeEvent(1, 1))
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestAppendValue(t *testing.T) {
	for _, dt := range []DataType{DataTypeInt32, DataTypeInt64, DataTypeFloat32, DataTypeFloat64} {
		p, err := AppendValue(nil, dt, 12)
		require.NoError(t, err)
		assert.Len(t, p, dt.Size(), dt.String())
	}

	_, err := AppendValue(nil, DataTypeString8, 1)
	assert.Error(t, err)
}
