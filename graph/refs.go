package graph

import (
	"reflect"

	"github.com/wippyai/graphcodec/descriptor"
)

// Reference ids and type ids are assigned from 1 in first-seen order, per
// call. Zero is reserved and never assigned.

// refKey is the identity of one reference value on the write side. Pointers
// are keyed by address and element type so a struct and its first field stay
// distinct; slices add their length so subslices of one array are distinct.
type refKey struct {
	ptr uintptr
	len int
	typ reflect.Type
}

func keyOf(v reflect.Value) refKey {
	switch v.Kind() {
	case reflect.Slice:
		return refKey{ptr: v.Pointer(), len: v.Len(), typ: v.Type()}
	case reflect.Pointer:
		return refKey{ptr: v.Pointer(), typ: v.Type().Elem()}
	default:
		return refKey{ptr: v.Pointer(), typ: v.Type()}
	}
}

type writeRefs struct {
	ids  map[refKey]uint64
	next uint64
}

func (t *writeRefs) reset() {
	t.ids = make(map[refKey]uint64)
	t.next = 0
}

func (t *writeRefs) lookup(k refKey) (uint64, bool) {
	id, ok := t.ids[k]
	return id, ok
}

func (t *writeRefs) insert(k refKey) uint64 {
	t.next++
	t.ids[k] = t.next
	return t.next
}

type writeTypes struct {
	ids  map[*descriptor.TypeDescriptor]uint64
	next uint64
}

func (t *writeTypes) reset() {
	t.ids = make(map[*descriptor.TypeDescriptor]uint64)
	t.next = 0
}

func (t *writeTypes) lookup(d *descriptor.TypeDescriptor) (uint64, bool) {
	id, ok := t.ids[d]
	return id, ok
}

func (t *writeTypes) insert(d *descriptor.TypeDescriptor) uint64 {
	t.next++
	t.ids[d] = t.next
	return t.next
}

// objectState tracks one read-side instance.
type objectState uint8

const (
	stateDeclared  objectState = iota // id and wire type known
	stateAllocated                    // instance built and registered
	statePopulated                    // every wire member assigned or diverted
	stateReady                        // hook has run
)

func (s objectState) String() string {
	switch s {
	case stateDeclared:
		return "declared"
	case stateAllocated:
		return "allocated"
	case statePopulated:
		return "populated"
	default:
		return "ready"
	}
}

type readEntry struct {
	value reflect.Value
	typ   *wireType
	state objectState
}

// readRefs maps reference ids to instances. Entries are registered in the
// Allocated state, before population, so cycles resolve to the shell.
type readRefs struct {
	entries []readEntry
}

func (t *readRefs) reset() {
	clear(t.entries)
	t.entries = t.entries[:0]
}

// nextID is the id the next instance frame must carry.
func (t *readRefs) nextID() uint64 {
	return uint64(len(t.entries)) + 1
}

func (t *readRefs) declare(wt *wireType) uint64 {
	t.entries = append(t.entries, readEntry{typ: wt, state: stateDeclared})
	return uint64(len(t.entries))
}

func (t *readRefs) allocate(id uint64, v reflect.Value) {
	e := &t.entries[id-1]
	e.value = v
	e.state = stateAllocated
}

func (t *readRefs) advance(id uint64, s objectState) {
	t.entries[id-1].state = s
}

func (t *readRefs) get(id uint64) (readEntry, bool) {
	if id == 0 || id > uint64(len(t.entries)) {
		return readEntry{}, false
	}
	e := t.entries[id-1]
	if e.state == stateDeclared {
		return readEntry{}, false
	}
	return e, true
}

type readTypes struct {
	types []*wireType
}

func (t *readTypes) reset() {
	clear(t.types)
	t.types = t.types[:0]
}

func (t *readTypes) nextID() uint64 {
	return uint64(len(t.types)) + 1
}

func (t *readTypes) insert(wt *wireType) {
	t.types = append(t.types, wt)
}

func (t *readTypes) get(id uint64) (*wireType, bool) {
	if id == 0 || id > uint64(len(t.types)) {
		return nil, false
	}
	return t.types[id-1], true
}
