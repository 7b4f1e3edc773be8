// Package rom converts between typed Go values and the wire values of
// a JSON-RPC style remote object protocol.
//
// Wire values are nil, bool, int32, int64, float32, float64, string,
// []any lists of wire values, and *[Props] property sets. The types
// of in-memory values are described by [Descriptor]s, each of which
// classifies into one wire [Category]:
//
//   - Primitives flatten to themselves.
//   - Enums flatten to the name of their member.
//   - Registers are composite values. They flatten to a *Props of
//     their properties, tagged with their type name and module in the
//     [TypeProperty] and [ModuleProperty] properties. The tags let
//     the receiver construct the concrete type of a value even when
//     it is declared as a supertype.
//   - Lists flatten to []any, maps with string keys to *Props.
//   - Remote classes are objects owned by the server. They flatten to
//     an opaque object reference, and unflatten by resolving the
//     reference to a local [Handle] or typed [Wrapper].
//
// Named types are added to a [Registry], which an [Engine] consults
// in both directions:
//
//	reg := rom.NewRegistry()
//	reg.MustRegister(rom.Must(rom.NewRegister[Gain]("core", "Gain")))
//	e := rom.New(reg, rom.Options{})
//
//	wire, err := e.Flatten(Gain{ID: "abc", Volume: 0.5}, false)
//	// wire is {id: "abc", volume: 0.5, __type__: "Gain", __module__: "core"}
//
//	g, err := rom.UnflattenAs[Gain](e, wire, nil)
//
// A remote object created by the client inside a transaction has no
// server-side identity until the transaction commits. Flattening such
// an uncommitted object is only allowed as part of the transaction
// that creates it; elsewhere it fails with an
// [UncommittedReferenceError].
//
// The rom/objects package provides client and server side resolvers,
// rom/codec encodes wire values as bytes, and rom/kmd reads module
// descriptors that declare types without Go code.
package rom
