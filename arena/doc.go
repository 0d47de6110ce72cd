// Package arena owns packed buffers and hands out typed views of their fields.
//
// An Arena is created from a schema and one element count per field. The
// buffer is allocated once, zero-filled, and released by Dispose with the
// size and alignment it was allocated with:
//
//	a, err := arena.New(s, schema.Counts{3, 9, 2})
//	if err != nil {
//	    return err
//	}
//	defer a.Dispose()
//
// # Views
//
// Field and MutField return views bounded to exactly one field. The element
// type is checked against the schema, so a field declared as uint64 cannot be
// read as float64:
//
//	lines, err := arena.MutField[uint64](a, 1)
//	lines.Set(0, 42)
//
// At and Set panic on an index out of range; Get and Put return the error
// instead. MutView.Slice exposes the field as a plain slice whose capacity
// stops at the field's end.
//
// # Borrowing
//
// Go cannot forbid two writable views of the same field at compile time.
// BorrowMut tracks outstanding writable borrows per field and refuses a second
// one until the first is released:
//
//	v, release, err := arena.BorrowMut[byte](a, 0)
//	if err != nil {
//	    return err
//	}
//	defer release()
//
// # Ownership
//
// Arenas must not be copied. Transfer moves the buffer to a new handle and
// releases the old one; a deferred Dispose on the old handle is a no-op. Any
// view used after its arena was disposed or transferred panics with a
// released error.
//
// # Linear memory
//
// When the allocator implements packed.Validator, new views are only handed
// out while the block still aliases the allocator's memory. After a
// WebAssembly memory grows without reserved capacity, Field returns a
// detached error and Attached reports false; views taken earlier point at a
// stale copy and must be discarded.
package arena
