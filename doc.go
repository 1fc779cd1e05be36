// Package graphcodec serializes arbitrary Go object graphs and reads them back.
//
// Cyclic and shared pointers, slices and maps keep their identity across a
// round trip, interface values keep their dynamic type, and readers tolerate
// drift between the writer's types and their own.
//
// # Architecture Overview
//
//	graphcodec/        Codec, Config, Serialize, Deserialize, Clone
//	├── wire/          Primitive codec contract with binary, text and token backends
//	├── descriptor/    Type descriptors, identities and registration options
//	├── graph/         Graph protocol encoder and decoder, Bag, LostData, Inspect
//	├── errors/        Structured error types
//	└── cmd/graphdump/ Stream inspection CLI
//
// # Quick Start
//
//	data, err := graphcodec.Marshal(order)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var out *Order
//	if err := graphcodec.Unmarshal(data, &out); err != nil {
//	    log.Fatal(err)
//	}
//
// Types are described on first use. Register them up front to rename members,
// pin identities or install constructors:
//
//	descriptor.Default().MustRegister(Order{},
//	    descriptor.WithIdentity("shop.Order"),
//	    descriptor.WithConstructor(func() any { return &Order{Currency: "EUR"} }),
//	)
//
// A reader must be able to resolve an identity to decode it into a local
// type. Types reached from a DeserializeInto target are registered
// automatically; anything else decodes to *graph.Bag until registered.
//
// # Configuration
//
// LoadConfig reads a TOML file and applies GRAPHCODEC_* environment
// overrides:
//
//	format = "text"
//	compression = "zstd"
//	max_depth = 4096
//	log_level = "info"
//
// # Thread Safety
//
// Codec and Registry are safe for concurrent use. graph.Encoder,
// graph.Decoder and the wire backends are not.
package graphcodec
