// Package graph writes and reads object graphs over any wire backend.
//
// A stream is the format version followed by the root value. Types are
// declared inline the first time they appear and referenced by id afterwards;
// a declaration carries the type's identity, kind, type arguments and, for
// structs, its member names and types. Pointers, slices and maps are
// instances: the first occurrence writes the body under a new id, later
// occurrences write a back-reference, so shared and cyclic structure survives
// a round trip. Struct values, arrays and primitives are written inline.
//
// The reader matches wire types to local ones by identity and wire members to
// local members by name. Members that no longer exist are collected as
// LostData; members the stream lacks keep whatever the allocation strategy
// gave them. Structs whose identity is unknown decode to *Bag, which writes
// back out under its original identity.
//
//	enc := graph.NewEncoder(wire.NewBinaryWriter(w))
//	err := enc.Encode(order)
//
//	dec := graph.NewDecoder(wire.NewBinaryReader(r))
//	var out *Order
//	err = dec.DecodeInto(&out)
package graph
