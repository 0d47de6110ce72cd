// Package packed stores several independently typed arrays in one allocation.
//
// A packed arena holds homogeneous arrays ("fields") back to back in a single
// contiguous, zero-initialized buffer instead of one allocation per array.
// Data that is always used together, such as the raw bytes, line lengths and
// newline flags of a text buffer, shares one allocation and one cache-friendly
// region with a layout that can be inspected.
//
// # Architecture Overview
//
//	packed/          Root package with the Allocator interface and Block
//	├── layout/      Offset and size computation for ordered fields
//	├── schema/      Named field descriptors (Go types or WIT records)
//	├── arena/       Buffer ownership and typed field views
//	├── alloc/       Heap, off-heap and WebAssembly linear memory allocators
//	└── errors/      Structured error types
//
// # Quick Start
//
//	s, err := schema.New("text",
//		schema.Of[byte]("chars"),
//		schema.Of[uint64]("lines"),
//		schema.Of[bool]("newlines"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	a, err := arena.New(s, schema.Counts{3, 9, 2})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Dispose()
//
//	chars, _ := arena.MutField[byte](a, 0)
//	chars.Fill('C')
//
// # Layout
//
// Fields are packed in declaration order. Each field starts at the previous
// field's end rounded up to its own alignment, and the buffer size is rounded
// up to the largest alignment. Fields are never reordered to save padding.
//
// # Ownership
//
// An arena owns exactly one buffer. Dispose releases it once, with the size
// and alignment recorded at allocation time. Views borrow from the arena and
// must not be used after it is disposed; doing so panics instead of touching
// released memory.
//
// # Thread Safety
//
// Arenas and views carry no locks. Views over different fields never share
// bytes and may be used from different goroutines; anything else needs
// external synchronization. Allocators guard their own bookkeeping and may be
// shared by many arenas.
package packed
