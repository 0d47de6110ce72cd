package alloc

import (
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"

	perrors "github.com/wippyai/packed/errors"
)

func TestHeap_Alignment(t *testing.T) {
	h := NewHeap(0)
	for _, align := range []int{1, 2, 4, 8, 16, 32, 64, 4096} {
		t.Run(strconv.Itoa(align), func(t *testing.T) {
			for _, size := range []int{1, 3, 17, 100} {
				b, err := h.Alloc(size, align)
				if err != nil {
					t.Fatalf("Alloc(%d, %d): %v", size, align, err)
				}
				if len(b.Data) != size || cap(b.Data) != size {
					t.Errorf("len/cap: got %d/%d, want %d", len(b.Data), cap(b.Data), size)
				}
				if !IsAligned(b.Data, align) {
					t.Errorf("block not aligned to %d", align)
				}
				if b.Size != size || b.Align != align {
					t.Errorf("recorded %d/%d, want %d/%d", b.Size, b.Align, size, align)
				}
				for i, v := range b.Data {
					if v != 0 {
						t.Fatalf("byte %d not zero", i)
					}
				}
				if err := h.Free(b); err != nil {
					t.Fatalf("Free: %v", err)
				}
			}
		})
	}
	if st := h.Stats(); st.Live != 0 || st.InUse != 0 || st.Reserved != 0 {
		t.Errorf("leaked: %+v", st)
	}
}

func TestHeap_Stats(t *testing.T) {
	h := NewHeap(0)

	a, _ := h.Alloc(10, 8)
	b, _ := h.Alloc(20, 1)

	st := h.Stats()
	if st.InUse != 30 || st.Live != 2 || st.Allocs != 2 || st.Frees != 0 {
		t.Fatalf("after allocs: %+v", st)
	}
	if st.Reserved != 10+7+20 {
		t.Errorf("reserved: got %d, want 37", st.Reserved)
	}

	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(b); err != nil {
		t.Fatal(err)
	}
	st = h.Stats()
	if st.InUse != 0 || st.Reserved != 0 || st.Live != 0 || st.Frees != 2 {
		t.Errorf("after frees: %+v", st)
	}
}

func TestHeap_Limit(t *testing.T) {
	h := NewHeap(100)

	a, err := h.Alloc(60, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := h.Alloc(41, 1); !errors.Is(err, perrors.ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure, got %v", err)
	}
	if _, err := h.Alloc(40, 1); err != nil {
		t.Fatalf("Alloc within limit: %v", err)
	}
	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Alloc(60, 1); err != nil {
		t.Fatalf("Alloc after free: %v", err)
	}
}

func TestHeap_FreeErrors(t *testing.T) {
	h := NewHeap(0)
	b, _ := h.Alloc(16, 4)

	if err := h.Free(b); err != nil {
		t.Fatalf("Free: %v", err)
	}

	var e *perrors.Error
	err := h.Free(b)
	if !errors.As(err, &e) || e.Kind != perrors.KindReleased {
		t.Errorf("double free: expected released error, got %v", err)
	}

	other, _ := NewHeap(0).Alloc(16, 4)
	if err := h.Free(other); err == nil {
		t.Error("expected error freeing a foreign block")
	}

	c, _ := h.Alloc(16, 4)
	c.Size = 8
	if err := h.Free(c); err == nil {
		t.Error("expected error for size mismatch")
	}
	if st := h.Stats(); st.Frees != 1 {
		t.Errorf("frees: got %d, want 1", st.Frees)
	}
}

func TestHeap_InvalidRequests(t *testing.T) {
	h := NewHeap(0)
	tests := []struct {
		name        string
		size, align int
		kind        perrors.Kind
	}{
		{"negative_size", -1, 1, perrors.KindInvalidInput},
		{"zero_align", 8, 0, perrors.KindInvalidInput},
		{"odd_align", 8, 12, perrors.KindInvalidInput},
		{"slack_overflow", math.MaxInt, 2, perrors.KindAllocation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Alloc(tc.size, tc.align)
			var e *perrors.Error
			if !errors.As(err, &e) || e.Kind != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
		})
	}
}

func TestHeap_HugeRequest(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("needs 64-bit int")
	}
	h := NewHeap(0)
	_, err := h.Alloc(1<<62, 1)
	if !errors.Is(err, perrors.ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure, got %v", err)
	}
	if st := h.Stats(); st.Live != 0 {
		t.Errorf("failed allocation recorded: %+v", st)
	}
}

func TestHeap_ZeroSize(t *testing.T) {
	h := NewHeap(0)
	b, err := h.Alloc(0, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(b.Data) != 0 {
		t.Errorf("len: got %d", len(b.Data))
	}
	if err := h.Free(b); err != nil {
		t.Errorf("Free: %v", err)
	}
	if st := h.Stats(); st.Allocs != 0 {
		t.Errorf("zero-size block counted: %+v", st)
	}
}

func TestHeap_Concurrent(t *testing.T) {
	h := NewHeap(0)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b, err := h.Alloc(64, 16)
				if err != nil {
					t.Error(err)
					return
				}
				if err := h.Free(b); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if st := h.Stats(); st.Allocs != 800 || st.Frees != 800 || st.Live != 0 {
		t.Errorf("stats: %+v", st)
	}
}
