// Package descriptor builds the type metadata the graph codec writes and reads.
//
// A TypeDescriptor gives a Go type a wire identity, a Kind, an ordered member
// list and a construction strategy. Descriptors are derived from reflection and
// refined by explicit registration:
//
//	reg := descriptor.NewRegistry()
//	reg.MustRegister(Order{},
//		descriptor.WithIdentity("shop.Order"),
//		descriptor.WithConstructor(func() any { return &Order{Status: "new"} }),
//		descriptor.Rename("CustomerID", "customer"),
//		descriptor.Property("Total", (*Order).Total, nil),
//	)
//
// # Identity
//
// An explicit WithIdentity or an Identifier method wins. Otherwise named types
// use "<package path>.<Name>", or "<package name>.<Name>" when qualification
// is turned off with WithUnqualifiedIdentity or WithQualify(false). Unnamed
// composites are spelled from their parts: "[]T", "[N]T", "*T", "map[K]V".
// Generic instantiations append their arguments, "pkg.Box[int32]", and keep
// the argument-free Unbound identity; Registry.Open returns the open form.
//
// # Members
//
// Struct fields are selected by MemberOptions and the graph tag:
//
//	Name  string `graph:"name,ordinal=2"` // rename and reposition
//	cache []byte `graph:"-"`              // never serialized
//	note  string `graph:",include"`       // unexported but forced in
//
// Member types are resolved on first use so recursive types describe in
// constant time.
//
// # Concurrency
//
// A Registry is safe for concurrent use. Describe is idempotent; racing first
// descriptions of one type are settled by sync.Map.LoadOrStore and every
// caller observes the winning descriptor.
package descriptor
