package alloc

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	perrors "github.com/wippyai/packed/errors"
)

// memoryWASM is a minimal WASM module with 1 page of memory exported as "memory"
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory" (6 bytes + string)
	0x02, 0x00, // kind: memory, index 0
}

func newMemory(t *testing.T) api.Memory {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	compiled, err := rt.CompileModule(ctx, memoryWASM)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		t.Fatal("memory export missing")
	}
	return mem
}

func TestNewLinear_Range(t *testing.T) {
	mem := newMemory(t)

	tests := []struct {
		name        string
		base, limit uint32
		wantErr     bool
		available   int
	}{
		{"whole_memory", 0, 0, false, 65535},
		{"reserved_tail", 4096, 0, false, 65536 - 4096},
		{"window", 1024, 2048, false, 1024},
		{"past_end", 0, 65537, true, 0},
		{"empty", 2048, 2048, true, 0},
		{"inverted", 4096, 1024, true, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLinear(mem, tc.base, tc.limit)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLinear: %v", err)
			}
			if got := l.Available(); got != tc.available {
				t.Errorf("available: got %d, want %d", got, tc.available)
			}
		})
	}

	if _, err := NewLinear(nil, 0, 0); err == nil {
		t.Error("expected error for nil memory")
	}
}

func TestLinear_AllocFree(t *testing.T) {
	mem := newMemory(t)
	l, err := NewLinear(mem, 1024, 0)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}

	b, err := l.Alloc(88, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if b.Addr != 1024 {
		t.Errorf("addr: got %d, want 1024", b.Addr)
	}
	if len(b.Data) != 88 || cap(b.Data) != 88 {
		t.Errorf("len/cap: got %d/%d", len(b.Data), cap(b.Data))
	}

	// Host writes are visible to the guest at the block address.
	b.Data[0] = 0x2a
	if v, ok := mem.ReadByte(1024); !ok || v != 0x2a {
		t.Errorf("guest read %d, ok=%v", v, ok)
	}

	if err := l.Free(b); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if got := l.Available(); got != 65536-1024 {
		t.Errorf("available after free: got %d", got)
	}
	if st := l.Stats(); st.Live != 0 || st.Allocs != 1 || st.Frees != 1 {
		t.Errorf("stats: %+v", st)
	}
}

func TestLinear_ZeroesReusedMemory(t *testing.T) {
	mem := newMemory(t)
	l, _ := NewLinear(mem, 64, 0)

	b, _ := l.Alloc(32, 4)
	for i := range b.Data {
		b.Data[i] = 0xff
	}
	l.Free(b)

	again, err := l.Alloc(32, 4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if again.Addr != b.Addr {
		t.Fatalf("expected reuse of %d, got %d", b.Addr, again.Addr)
	}
	for i, v := range again.Data {
		if v != 0 {
			t.Fatalf("byte %d not zero", i)
		}
	}
}

func TestLinear_AlignmentAndCoalescing(t *testing.T) {
	mem := newMemory(t)
	l, _ := NewLinear(mem, 1, 1025)

	a, err := l.Alloc(10, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Alloc(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	c, err := l.Alloc(100, 4)
	if err != nil {
		t.Fatal(err)
	}

	if a.Addr != 1 {
		t.Errorf("a: got %d, want 1", a.Addr)
	}
	if b.Addr != 16 {
		t.Errorf("b: got %d, want 16", b.Addr)
	}
	if c.Addr != 32 {
		t.Errorf("c: got %d, want 32", c.Addr)
	}

	// Free out of order; the range must merge back into one span.
	for _, blk := range []struct {
		name string
		free func() error
	}{
		{"b", func() error { return l.Free(b) }},
		{"a", func() error { return l.Free(a) }},
		{"c", func() error { return l.Free(c) }},
	} {
		if err := blk.free(); err != nil {
			t.Fatalf("Free %s: %v", blk.name, err)
		}
	}
	if len(l.free) != 1 || l.free[0].start != 1 || l.free[0].end != 1025 {
		t.Errorf("free list not coalesced: %+v", l.free)
	}

	whole, err := l.Alloc(1024, 1)
	if err != nil {
		t.Fatalf("Alloc of whole range: %v", err)
	}
	if whole.Addr != 1 {
		t.Errorf("whole: got %d, want 1", whole.Addr)
	}
}

func TestLinear_Exhaustion(t *testing.T) {
	mem := newMemory(t)
	l, _ := NewLinear(mem, 1024, 2048)

	if _, err := l.Alloc(1025, 1); !errors.Is(err, perrors.ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure, got %v", err)
	}
	b, err := l.Alloc(1024, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := l.Alloc(1, 1); !errors.Is(err, perrors.ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure when full, got %v", err)
	}
	if mem.Size() != 65536 {
		t.Errorf("memory grew to %d", mem.Size())
	}
	l.Free(b)
}

func TestLinear_FreeErrors(t *testing.T) {
	mem := newMemory(t)
	l, _ := NewLinear(mem, 1024, 0)

	b, _ := l.Alloc(64, 8)
	if err := l.Free(b); err != nil {
		t.Fatal(err)
	}

	var e *perrors.Error
	if err := l.Free(b); !errors.As(err, &e) || e.Kind != perrors.KindReleased {
		t.Errorf("double free: expected released error, got %v", err)
	}

	c, _ := l.Alloc(64, 8)
	c.Size = 32
	if err := l.Free(c); err == nil {
		t.Error("expected error for size mismatch")
	}
}

func TestLinear_ValidAfterGrow(t *testing.T) {
	mem := newMemory(t)
	l, _ := NewLinear(mem, 1024, 0)

	b, err := l.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if !l.Valid(b) {
		t.Fatal("fresh block should be valid")
	}

	if _, ok := mem.Grow(1); !ok {
		t.Fatal("grow failed")
	}
	if l.Valid(b) {
		t.Fatal("block should detach once memory reallocates")
	}

	// A stale view no longer reaches guest memory.
	b.Data[0] = 0x5a
	if v, _ := mem.ReadByte(b.Addr); v == 0x5a {
		t.Fatal("write through stale view reached linear memory")
	}

	// Release still works by address, and new blocks see current memory.
	if err := l.Free(b); err != nil {
		t.Fatalf("Free: %v", err)
	}
	c, err := l.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc after grow: %v", err)
	}
	if !l.Valid(c) {
		t.Error("block allocated after grow should be valid")
	}
	c.Data[0] = 0x5a
	if v, ok := mem.ReadByte(c.Addr); !ok || v != 0x5a {
		t.Errorf("guest read %d, ok=%v", v, ok)
	}
}
