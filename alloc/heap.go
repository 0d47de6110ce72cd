package alloc

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/packed"
	"github.com/wippyai/packed/errors"
)

// Stats is a snapshot of an allocator's bookkeeping.
type Stats struct {
	InUse    int // bytes handed out and not yet freed
	Reserved int // raw bytes backing live blocks, including alignment slack
	Live     int // live blocks
	Allocs   int // successful allocations
	Frees    int // successful releases
}

// Heap allocates blocks from the Go heap. Safe for concurrent use.
type Heap struct {
	live  map[*byte]int
	stats Stats
	limit int
	mu    sync.Mutex
}

// NewHeap creates a heap allocator. A positive limit caps the bytes in use;
// 0 means unlimited.
func NewHeap(limit int) *Heap {
	return &Heap{
		live:  make(map[*byte]int),
		limit: limit,
	}
}

// Alloc returns a zeroed block of size bytes aligned to align.
func (h *Heap) Alloc(size, align int) (packed.Block, error) {
	raw, err := checkRequest(size, align, 1)
	if err != nil {
		return packed.Block{}, err
	}
	if size == 0 {
		return packed.Block{Size: 0, Align: align}, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.limit > 0 && size > h.limit-h.stats.InUse {
		Logger().Debug("heap limit reached",
			zap.Int("size", size),
			zap.Int("in_use", h.stats.InUse),
			zap.Int("limit", h.limit))
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}

	base, err := makeBytes(raw)
	if err != nil {
		return packed.Block{}, errors.AllocationFailed(size, align, err)
	}
	data := alignedSlice(base, size, align)
	if data == nil {
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}

	h.live[unsafe.SliceData(base)] = size
	h.stats.InUse += size
	h.stats.Reserved += raw
	h.stats.Live++
	h.stats.Allocs++

	return packed.Block{Data: data, Base: base, Size: size, Align: align}, nil
}

// Free releases a block returned by Alloc.
func (h *Heap) Free(b packed.Block) error {
	if b.Size == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := unsafe.SliceData(b.Base)
	size, ok := h.live[key]
	if !ok || size != b.Size {
		Logger().Warn("heap free of unknown block", zap.Int("size", b.Size), zap.Int("align", b.Align))
		return errors.Released(errors.PhaseRelease, "heap block")
	}
	delete(h.live, key)

	h.stats.InUse -= size
	h.stats.Reserved -= len(b.Base)
	h.stats.Live--
	h.stats.Frees++
	return nil
}

// Stats returns a snapshot of the allocator's counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// makeBytes turns the runtime's length panic into an error. Exhausting the
// process's memory remains fatal.
func makeBytes(n int) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return make([]byte, n), nil
}
