package simconnect

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Numeric lists the value types a field setter may accept. Only a subset
// maps onto a wire type; the rest are rejected when the definition is built.
type Numeric interface {
	int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// Variable describes one simulator variable requested by a definition.
type Variable struct {
	Name     string
	Units    string
	DataType DataType
	Epsilon  float32
}

// FieldOption customises a single field.
type FieldOption func(*Variable)

// WithDataType states the wire type explicitly. It must agree with the
// wire type of the setter's value type.
func WithDataType(t DataType) FieldOption {
	return func(v *Variable) {
		v.DataType = t
	}
}

// WithEpsilon sets the change threshold below which the simulator treats
// the value as unchanged.
func WithEpsilon(epsilon float32) FieldOption {
	return func(v *Variable) {
		v.Epsilon = epsilon
	}
}

// Field binds a Variable to a setter on the record type T.
type Field[T any] struct {
	variable Variable
	decode   func(p []byte, dst *T)
	err      error
}

// Var declares a field of T filled from the simulator variable name,
// expressed in units, using set to store the decoded value.
func Var[T any, V Numeric](name, units string, set func(*T, V), opts ...FieldOption) Field[T] {
	inferred, ok := dataTypeOf[V]()

	v := Variable{Name: name, Units: units, DataType: inferred}
	for _, opt := range opts {
		opt(&v)
	}

	var zero V
	switch {
	case !ok:
		return Field[T]{variable: v, err: NewSchemaError(name, fmt.Sprintf("value type %T has no wire type", zero))}
	case v.DataType != inferred:
		return Field[T]{variable: v, err: NewSchemaError(name, fmt.Sprintf("data type %s does not match value type %T", v.DataType, zero))}
	case set == nil:
		return Field[T]{variable: v, err: NewSchemaError(name, "nil setter")}
	}

	return Field[T]{
		variable: v,
		decode:   decoderFor(v.DataType, set),
	}
}

func dataTypeOf[V Numeric]() (DataType, bool) {
	var zero V
	switch any(zero).(type) {
	case float64:
		return DataTypeFloat64, true
	case float32:
		return DataTypeFloat32, true
	case int32, uint32:
		return DataTypeInt32, true
	case int64, uint64:
		return DataTypeInt64, true
	default:
		return DataTypeInvalid, false
	}
}

func decoderFor[T any, V Numeric](t DataType, set func(*T, V)) func([]byte, *T) {
	switch t {
	case DataTypeInt32:
		return func(p []byte, dst *T) {
			set(dst, V(int32(binary.LittleEndian.Uint32(p))))
		}
	case DataTypeInt64:
		return func(p []byte, dst *T) {
			set(dst, V(int64(binary.LittleEndian.Uint64(p))))
		}
	case DataTypeFloat32:
		return func(p []byte, dst *T) {
			set(dst, V(math.Float32frombits(binary.LittleEndian.Uint32(p))))
		}
	default:
		return func(p []byte, dst *T) {
			set(dst, V(math.Float64frombits(binary.LittleEndian.Uint64(p))))
		}
	}
}

// Definition is an ordered, immutable list of fields decoded into T.
type Definition[T any] struct {
	fields []Field[T]
	size   int
}

// NewDefinition validates fields and builds a Definition. Any field error
// is returned as a *SchemaError.
func NewDefinition[T any](fields ...Field[T]) (*Definition[T], error) {
	if len(fields) == 0 {
		return nil, NewSchemaError("", "definition has no fields")
	}

	d := Definition[T]{fields: make([]Field[T], len(fields))}
	for i, f := range fields {
		if f.err != nil {
			return nil, f.err
		}
		if f.decode == nil {
			return nil, NewSchemaError(f.variable.Name, "field was not declared with Var")
		}

		d.fields[i] = f
		d.size += f.variable.DataType.Size()
	}

	return &d, nil
}

// Variables returns the variables in declaration order.
func (d *Definition[T]) Variables() []Variable {
	vars := make([]Variable, len(d.fields))
	for i, f := range d.fields {
		vars[i] = f.variable
	}
	return vars
}

// Size is the number of bytes one record occupies on the wire.
func (d *Definition[T]) Size() int {
	return d.size
}

// Decode reads one record from p. Fields are laid out in declaration order,
// little endian, without padding. Trailing bytes are ignored.
func (d *Definition[T]) Decode(p []byte) (T, error) {
	var v T
	if len(p) < d.size {
		return v, fmt.Errorf("%w: definition needs %d bytes, got %d", ErrShortRecord, d.size, len(p))
	}

	offset := 0
	for _, f := range d.fields {
		f.decode(p[offset:], &v)
		offset += f.variable.DataType.Size()
	}

	return v, nil
}
