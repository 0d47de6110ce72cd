package alloc

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/packed"
	"github.com/wippyai/packed/errors"
)

// span is a free address range [start, end) of linear memory.
type span struct {
	start uint32
	end   uint32
}

// Linear places blocks inside a reserved range of a WebAssembly module's
// linear memory. The range must not be used by the guest's own allocator.
// Safe for concurrent use.
//
// Linear itself never grows the memory, but the guest or host may. Growing
// reallocates the memory unless the runtime reserves its full capacity
// (wazero.RuntimeConfig WithMemoryCapacityFromMax and a declared maximum),
// after which Block.Data of earlier blocks points at a stale copy. Valid
// reports whether a block is still attached.
type Linear struct {
	mem   api.Memory
	live  map[uint32]int
	free  []span // sorted by start, never adjacent
	stats Stats
	mu    sync.Mutex
}

// NewLinear manages [base, limit) of mem. A zero limit means the current end
// of memory. Address 0 is never handed out.
func NewLinear(mem api.Memory, base, limit uint32) (*Linear, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "nil linear memory")
	}
	if limit == 0 {
		limit = mem.Size()
	}
	if base == 0 {
		base = 1
	}
	if limit > mem.Size() || base >= limit {
		return nil, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("range [%d, %d) outside memory of %d bytes", base, limit, mem.Size()))
	}
	return &Linear{
		mem:  mem,
		live: make(map[uint32]int),
		free: []span{{start: base, end: limit}},
	}, nil
}

// Alloc returns a zeroed block of size bytes aligned to align.
func (l *Linear) Alloc(size, align int) (packed.Block, error) {
	if _, err := checkRequest(size, align, 1); err != nil {
		return packed.Block{}, err
	}
	if size == 0 {
		return packed.Block{Size: 0, Align: align}, nil
	}
	if uint64(size) > math.MaxUint32 || uint64(align) > math.MaxUint32/2+1 {
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.free {
		addr := (uint64(s.start) + uint64(align) - 1) &^ uint64(align-1)
		end := addr + uint64(size)
		if end > uint64(s.end) {
			continue
		}

		data, ok := l.mem.Read(uint32(addr), uint32(size))
		if !ok {
			return packed.Block{}, errors.AllocationFailed(size, align, nil)
		}
		clear(data)

		l.carve(i, uint32(addr), uint32(end))
		l.live[uint32(addr)] = size
		l.stats.InUse += size
		l.stats.Reserved += size
		l.stats.Live++
		l.stats.Allocs++

		return packed.Block{
			Data:  data[:size:size],
			Addr:  uint32(addr),
			Size:  size,
			Align: align,
		}, nil
	}

	Logger().Debug("linear range exhausted",
		zap.Int("size", size),
		zap.Int("align", align),
		zap.Int("in_use", l.stats.InUse))
	return packed.Block{}, errors.AllocationFailed(size, align, nil)
}

// carve removes [addr, end) from free span i, keeping any remainder.
func (l *Linear) carve(i int, addr, end uint32) {
	s := l.free[i]
	var rest []span
	if s.start < addr {
		rest = append(rest, span{start: s.start, end: addr})
	}
	if end < s.end {
		rest = append(rest, span{start: end, end: s.end})
	}
	l.free = append(l.free[:i], append(rest, l.free[i+1:]...)...)
}

// Free returns a block to the range and merges it with free neighbours.
func (l *Linear) Free(b packed.Block) error {
	if b.Size == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	size, ok := l.live[b.Addr]
	if !ok || size != b.Size {
		Logger().Warn("linear free of unknown block", zap.Uint32("addr", b.Addr), zap.Int("size", b.Size))
		return errors.Released(errors.PhaseRelease, "linear block")
	}
	delete(l.live, b.Addr)

	freed := span{start: b.Addr, end: b.Addr + uint32(size)}
	i := sort.Search(len(l.free), func(i int) bool { return l.free[i].start > freed.start })
	l.free = append(l.free, span{})
	copy(l.free[i+1:], l.free[i:])
	l.free[i] = freed

	if i+1 < len(l.free) && l.free[i].end == l.free[i+1].start {
		l.free[i].end = l.free[i+1].end
		l.free = append(l.free[:i+1], l.free[i+2:]...)
	}
	if i > 0 && l.free[i-1].end == l.free[i].start {
		l.free[i-1].end = l.free[i].end
		l.free = append(l.free[:i], l.free[i+1:]...)
	}

	l.stats.InUse -= size
	l.stats.Reserved -= size
	l.stats.Live--
	l.stats.Frees++
	return nil
}

// Valid reports whether b.Data still aliases linear memory at b.Addr.
func (l *Linear) Valid(b packed.Block) bool {
	return attached(l.mem, b)
}

// Stats returns a snapshot of the allocator's counters.
func (l *Linear) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Available returns the total free bytes in the managed range.
func (l *Linear) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.free {
		n += int(s.end - s.start)
	}
	return n
}
