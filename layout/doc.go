// Package layout computes packed buffer layouts for ordered field lists.
//
// Each field is an array of Count elements of Size bytes aligned to Align.
// Fields are placed in declaration order, the way a record's fields are laid
// out in linear memory:
//
//   - offset[i] = AlignTo(end of field i-1, Align[i]), offset[0] = 0
//   - the buffer size is the final cursor rounded up to the largest alignment
//   - empty fields still pad the cursor to their alignment
//
// No field is ever reordered to reduce padding.
//
// # Usage
//
//	plan, err := layout.Compute([]layout.FieldSpec{
//		{Name: "chars", Size: 1, Align: 1, Count: 3},
//		{Name: "lines", Size: 8, Align: 8, Count: 9},
//	})
//	// plan.Offsets, plan.Size, plan.Align
//
// All arithmetic is checked against MaxSize; nothing wraps.
package layout
