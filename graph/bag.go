package graph

import (
	"reflect"
)

// Field is one named wire member value.
type Field struct {
	Name  string
	Value any
}

// LostData holds the wire members of one instance that matched no current
// member, in wire order.
type LostData []Field

// Get returns the value of the named field.
func (l LostData) Get(name string) (any, bool) {
	for _, f := range l {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// AfterDeserializer is implemented by types that want to observe a completed
// read. AfterDeserialize runs exactly once per instance, with the instance's
// LostData (nil when every wire member matched). Errors and panics are
// reported to the diagnostic sink and never fail the read.
type AfterDeserializer interface {
	AfterDeserialize(lost LostData) error
}

// Bag is the decoded form of a struct whose wire identity has no local type.
// Writing a *Bag emits its original identity and fields, so unknown data
// survives a read and write cycle.
type Bag struct {
	Identity string
	Fields   []Field
}

// Get returns the value of the named field.
func (b *Bag) Get(name string) (any, bool) {
	return LostData(b.Fields).Get(name)
}

// Names returns the field names in wire order.
func (b *Bag) Names() []string {
	names := make([]string, len(b.Fields))
	for i, f := range b.Fields {
		names[i] = f.Name
	}
	return names
}

// Lost records the LostData of one instance, as returned by Decoder.DecodeLost.
type Lost struct {
	Instance any
	Identity string
	Fields   LostData
}

var (
	bagPtrType = reflect.TypeOf((*Bag)(nil))
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
)
