// Package schema declares the named fields of a packed arena.
//
// A schema is the runtime counterpart of a declaration such as
//
//	text { chars: u8, lines: u64, newlines: bool }
//
// Fields are registered once, validated at the declaration boundary (names,
// power-of-two alignment, pointer-free element types) and then reused to
// plan any number of arenas with different counts:
//
//	s, err := schema.New("text",
//		schema.Of[uint8]("chars"),
//		schema.Of[uint64]("lines"),
//		schema.Of[bool]("newlines"),
//	)
//	plan, err := s.Plan(schema.Counts{3, 9, 2})
//
// Schemas can also be derived from WIT records with FromWIT, where each
// record field of type list<T> becomes a packed field of T.
package schema
