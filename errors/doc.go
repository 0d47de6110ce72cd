// Package errors provides structured error types for packed arenas.
//
// Errors are categorized by Phase (declare, layout, alloc, access, release)
// and Kind (error category). The Error type carries the field path, Go/WIT
// type names and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDeclare, errors.KindInvalidFieldSpec).
//		Path("text", "lines").
//		GoType("uint64").
//		Detail("alignment %d is not a power of two", 3).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.LayoutOverflow(path, "size * count overflows")
//	err := errors.OutOfBounds(path, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching compares phase and kind only, so the exported targets work as
// sentinels:
//
//	if errors.Is(err, perrors.ErrLayoutOverflow) { ... }
package errors
