package layout

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/wippyai/packed/errors"
)

// MaxSize bounds every offset and buffer size. Buffers are exposed as Go
// slices, which are indexed by int.
const MaxSize = uintptr(math.MaxInt)

// FieldSpec describes one packed array.
type FieldSpec struct {
	Name  string
	Size  uintptr // element size in bytes
	Align uintptr // element alignment, a power of two
	Count uintptr // number of elements
}

// Plan is the computed layout of an ordered field list.
type Plan struct {
	Fields  []FieldSpec
	Offsets []uintptr
	Size    uintptr // total buffer size, a multiple of Align
	Align   uintptr // largest field alignment, 1 when there are no fields
}

// Len returns the number of fields.
func (p Plan) Len() int {
	return len(p.Fields)
}

// End returns the first byte past field i's body.
func (p Plan) End(i int) uintptr {
	return p.Offsets[i] + p.Fields[i].Size*p.Fields[i].Count
}

// Range returns the half-open byte range of field i.
func (p Plan) Range(i int) (start, end uintptr) {
	return p.Offsets[i], p.End(i)
}

// Padding returns the bytes of the buffer not covered by any field body.
func (p Plan) Padding() uintptr {
	used := uintptr(0)
	for i := range p.Fields {
		used += p.Fields[i].Size * p.Fields[i].Count
	}
	return p.Size - used
}

// Validate checks the static preconditions of a field spec.
func Validate(spec FieldSpec) error {
	if !IsPowerOfTwo(spec.Align) {
		return errors.New(errors.PhaseDeclare, errors.KindInvalidFieldSpec).
			Path(spec.Name).
			Value(spec.Align).
			Detail("alignment %d is not a power of two", spec.Align).
			Build()
	}
	if spec.Align > MaxSize/2+1 {
		return errors.InvalidFieldSpec([]string{spec.Name}, fmt.Sprintf("alignment %d exceeds address range", spec.Align))
	}
	return nil
}

// Compute lays out specs in order and returns offsets and the total size.
func Compute(specs []FieldSpec) (Plan, error) {
	plan := Plan{
		Fields:  append([]FieldSpec(nil), specs...),
		Offsets: make([]uintptr, len(specs)),
		Align:   1,
	}

	size := uintptr(0)
	for i, spec := range specs {
		if err := Validate(spec); err != nil {
			return Plan{}, err
		}

		offset, ok := AlignTo(size, spec.Align)
		if !ok {
			return Plan{}, errors.LayoutOverflow([]string{spec.Name},
				fmt.Sprintf("offset %d aligned to %d overflows", size, spec.Align))
		}
		plan.Offsets[i] = offset

		if spec.Align > plan.Align {
			plan.Align = spec.Align
		}

		body, ok := SafeMul(spec.Size, spec.Count)
		if !ok {
			return Plan{}, errors.LayoutOverflow([]string{spec.Name},
				fmt.Sprintf("%d elements of %d bytes overflows", spec.Count, spec.Size))
		}
		size, ok = SafeAdd(offset, body)
		if !ok {
			return Plan{}, errors.LayoutOverflow([]string{spec.Name},
				fmt.Sprintf("field end %d + %d overflows", offset, body))
		}
	}

	total, ok := AlignTo(size, plan.Align)
	if !ok {
		return Plan{}, errors.LayoutOverflow(nil,
			fmt.Sprintf("size %d aligned to %d overflows", size, plan.Align))
	}
	plan.Size = total

	return plan, nil
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignTo rounds n up to a multiple of align. It reports false when the
// result would exceed MaxSize.
func AlignTo(n, align uintptr) (uintptr, bool) {
	if align <= 1 {
		return n, n <= MaxSize
	}
	sum, ok := SafeAdd(n, align-1)
	if !ok {
		return 0, false
	}
	return sum &^ (align - 1), true
}

// SafeMul returns a*b, or false when the product exceeds MaxSize.
func SafeMul(a, b uintptr) (uintptr, bool) {
	hi, lo := bits.Mul(uint(a), uint(b))
	if hi != 0 || uintptr(lo) > MaxSize {
		return 0, false
	}
	return uintptr(lo), true
}

// SafeAdd returns a+b, or false when the sum exceeds MaxSize.
func SafeAdd(a, b uintptr) (uintptr, bool) {
	if a > MaxSize || b > MaxSize-a {
		return 0, false
	}
	return a + b, true
}
