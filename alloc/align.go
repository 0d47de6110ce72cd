package alloc

import (
	"unsafe"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/packed"
	"github.com/wippyai/packed/errors"
	"github.com/wippyai/packed/layout"
)

// checkRequest validates size and alignment and returns the raw size needed
// to carve an aligned block of size bytes out of an allocation aligned to
// base.
func checkRequest(size, align, base int) (int, error) {
	if size < 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "negative allocation size")
	}
	if align < 1 || !layout.IsPowerOfTwo(uintptr(align)) {
		return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Value(align).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	if align <= base {
		return size, nil
	}
	raw, ok := layout.SafeAdd(uintptr(size), uintptr(align-1))
	if !ok {
		return 0, errors.AllocationFailed(size, align, nil)
	}
	return int(raw), nil
}

// alignedSlice returns the first size bytes of raw that start on an align
// boundary, or nil when raw is too short.
func alignedSlice(raw []byte, size, align int) []byte {
	if size == 0 {
		return raw[:0:0]
	}
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	offset := 0
	if mod := ptr % uintptr(align); mod != 0 {
		offset = align - int(mod)
	}
	if offset+size > len(raw) {
		return nil
	}
	return raw[offset : offset+size : offset+size]
}

// IsAligned reports whether b starts on an align boundary.
func IsAligned(b []byte, align int) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))%uintptr(align) == 0
}

// attached reports whether b.Data is the live view of mem at b.Addr.
func attached(mem api.Memory, b packed.Block) bool {
	if b.Size == 0 {
		return true
	}
	cur, ok := mem.Read(b.Addr, uint32(b.Size))
	return ok && len(b.Data) == b.Size && unsafe.SliceData(cur) == unsafe.SliceData(b.Data)
}
