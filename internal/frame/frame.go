// Package frame provides the columnar snapshots rendered by a live panel.
//
// A Frame is an ordered set of named, typed fields. The time field keeps its
// values in a TimeVector, which carries an opaque handle assigned once at
// construction. Appending to or truncating a vector in place keeps its handle,
// so a frame mutated between renders is recognised as the same series.
package frame

import "sync/atomic"

// FieldType is the semantic type of a field.
type FieldType string

const (
	FieldTypeTime   FieldType = "time"   // epoch milliseconds
	FieldTypeNumber FieldType = "number" // float64 values
	FieldTypeString FieldType = "string" // string values
)

var lastVectorID atomic.Uint64

func nextVectorID() uint64 {
	return lastVectorID.Add(1)
}

// Vector is the common behaviour of field value containers.
type Vector interface {
	Len() int
}

// Field is a named, typed column of a frame.
type Field struct {
	Name   string
	Type   FieldType
	Values Vector
}

// Frame is a snapshot of a data stream.
type Frame struct {
	Name   string
	Fields []*Field
}

// New creates a frame from the given fields.
func New(name string, fields ...*Field) *Frame {
	return &Frame{Name: name, Fields: fields}
}

// NewTimeField creates a time field over a fresh TimeVector.
func NewTimeField(name string, values ...int64) *Field {
	return &Field{Name: name, Type: FieldTypeTime, Values: NewTimeVector(values...)}
}

// NewNumberField creates a number field.
func NewNumberField(name string, values ...float64) *Field {
	return &Field{Name: name, Type: FieldTypeNumber, Values: NewNumberVector(values...)}
}

// Field returns the first field with the given name.
func (f *Frame) Field(name string) (*Field, bool) {
	if f == nil {
		return nil, false
	}
	for _, fld := range f.Fields {
		if fld.Name == name {
			return fld, true
		}
	}
	return nil, false
}

// TimeField returns the first field of type time.
func (f *Frame) TimeField() (*Field, bool) {
	if f == nil {
		return nil, false
	}
	for _, fld := range f.Fields {
		if fld.Type == FieldTypeTime {
			return fld, true
		}
	}
	return nil, false
}

// TimeVector returns the values of the time field or nil when the frame has none.
func (f *Frame) TimeVector() *TimeVector {
	fld, ok := f.TimeField()
	if !ok {
		return nil
	}
	tv, _ := fld.Values.(*TimeVector)
	return tv
}

// Len returns the number of rows, taken from the first field.
func (f *Frame) Len() int {
	if f == nil || len(f.Fields) == 0 || f.Fields[0].Values == nil {
		return 0
	}
	return f.Fields[0].Values.Len()
}
