package alloc

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"modernc.org/memory"

	"github.com/wippyai/packed"
	"github.com/wippyai/packed/errors"
)

// mmapAlign is the alignment modernc.org/memory guarantees for every block.
const mmapAlign = int(2 * unsafe.Sizeof(uintptr(0)))

// Mmap allocates blocks outside the Go heap. Safe for concurrent use.
type Mmap struct {
	alloc  memory.Allocator
	live   map[*byte]int
	stats  Stats
	mu     sync.Mutex
	closed bool
}

// NewMmap creates an off-heap allocator. Close releases every mapping it
// still holds.
func NewMmap() *Mmap {
	return &Mmap{live: make(map[*byte]int)}
}

// Alloc returns a zeroed block of size bytes aligned to align.
func (m *Mmap) Alloc(size, align int) (packed.Block, error) {
	raw, err := checkRequest(size, align, mmapAlign)
	if err != nil {
		return packed.Block{}, err
	}
	if size == 0 {
		return packed.Block{Size: 0, Align: align}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return packed.Block{}, errors.Released(errors.PhaseAlloc, "mmap allocator")
	}

	base, err := m.alloc.Calloc(raw)
	if err != nil {
		return packed.Block{}, errors.AllocationFailed(size, align, err)
	}
	data := alignedSlice(base, size, align)
	if data == nil {
		if ferr := m.alloc.Free(base); ferr != nil {
			Logger().Warn("mmap free after misaligned allocation failed", zap.Error(ferr))
		}
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}

	m.live[unsafe.SliceData(base)] = size
	m.stats.InUse += size
	m.stats.Reserved += raw
	m.stats.Live++
	m.stats.Allocs++

	return packed.Block{Data: data, Base: base, Size: size, Align: align}, nil
}

// Free releases a block returned by Alloc.
func (m *Mmap) Free(b packed.Block) error {
	if b.Size == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.Released(errors.PhaseRelease, "mmap allocator")
	}
	// memory.Allocator.Free faults on anything it did not hand out.
	key := unsafe.SliceData(b.Base)
	size, ok := m.live[key]
	if len(b.Base) == 0 || !ok || size != b.Size {
		Logger().Warn("mmap free of unknown block", zap.Int("size", b.Size), zap.Int("align", b.Align))
		return errors.Released(errors.PhaseRelease, "mmap block")
	}
	if err := m.alloc.Free(b.Base); err != nil {
		return errors.New(errors.PhaseRelease, errors.KindAllocation).
			Cause(err).
			Detail("mmap free of %d bytes", b.Size).
			Build()
	}
	delete(m.live, key)

	m.stats.InUse -= b.Size
	m.stats.Reserved -= len(b.Base)
	m.stats.Live--
	m.stats.Frees++
	return nil
}

// Stats returns a snapshot of the allocator's counters.
func (m *Mmap) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Close unmaps all memory. Blocks still held by arenas become invalid.
func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	clear(m.live)
	if m.stats.Live > 0 {
		Logger().Warn("mmap allocator closed with live blocks",
			zap.Int("live", m.stats.Live),
			zap.Int("in_use", m.stats.InUse))
	}
	return m.alloc.Close()
}
