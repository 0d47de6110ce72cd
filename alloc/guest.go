package alloc

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/packed"
	"github.com/wippyai/packed/errors"
)

// Guest allocates blocks through a module's exported cabi_realloc. Like any
// wazero function it must not be called concurrently.
//
// cabi_realloc may grow linear memory, which detaches host views of earlier
// blocks unless the runtime reserves the memory's full capacity
// (wazero.RuntimeConfig WithMemoryCapacityFromMax).
type Guest struct {
	ctx     context.Context
	mem     api.Memory
	realloc api.Function
}

// NewGuest wraps realloc, which must have the Canonical ABI signature
// (old_ptr, old_size, align, new_size) -> ptr.
func NewGuest(ctx context.Context, mem api.Memory, realloc api.Function) (*Guest, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "nil linear memory")
	}
	if realloc == nil {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "nil cabi_realloc function")
	}
	return &Guest{ctx: ctx, mem: mem, realloc: realloc}, nil
}

// Alloc returns a zeroed block of size bytes aligned to align.
func (g *Guest) Alloc(size, align int) (packed.Block, error) {
	if _, err := checkRequest(size, align, 1); err != nil {
		return packed.Block{}, err
	}
	if size == 0 {
		return packed.Block{Size: 0, Align: align}, nil
	}
	if uint64(size) > 1<<32-1 {
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}

	results, err := g.realloc.Call(g.ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return packed.Block{}, errors.AllocationFailed(size, align, err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}
	addr := uint32(results[0])

	block := packed.Block{Addr: addr, Size: size, Align: align}
	if addr%uint32(align) != 0 {
		g.release(block)
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}
	data, ok := g.mem.Read(addr, uint32(size))
	if !ok {
		g.release(block)
		return packed.Block{}, errors.AllocationFailed(size, align, nil)
	}
	clear(data)
	block.Data = data[:size:size]

	return block, nil
}

// Free hands the block back to cabi_realloc with its recorded size and
// alignment.
func (g *Guest) Free(b packed.Block) error {
	if b.Size == 0 {
		return nil
	}
	if b.Addr == 0 {
		return errors.Released(errors.PhaseRelease, "guest block")
	}
	if _, err := g.realloc.Call(g.ctx, uint64(b.Addr), uint64(b.Size), uint64(b.Align), 0); err != nil {
		return errors.New(errors.PhaseRelease, errors.KindAllocation).
			Cause(err).
			Value(b.Addr).
			Detail("cabi_realloc free of %d bytes", b.Size).
			Build()
	}
	return nil
}

// Valid reports whether b.Data still aliases linear memory at b.Addr.
func (g *Guest) Valid(b packed.Block) bool {
	return attached(g.mem, b)
}

func (g *Guest) release(b packed.Block) {
	if err := g.Free(b); err != nil {
		Logger().Warn("failed to return rejected guest block", zap.Uint32("addr", b.Addr), zap.Error(err))
	}
}
