package arena

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/packed"
	"github.com/wippyai/packed/alloc"
	"github.com/wippyai/packed/errors"
	"github.com/wippyai/packed/layout"
	"github.com/wippyai/packed/schema"
)

var defaultAllocator = alloc.NewHeap(0)

// Config holds configuration for arena construction
type Config struct {
	// Allocator supplies the buffer. nil means the shared Go heap allocator.
	Allocator packed.Allocator
}

// noCopy makes go vet report copies of an Arena value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Arena owns one packed buffer holding every field of a schema.
// Not thread-safe.
type Arena struct {
	_       noCopy
	alloc   packed.Allocator
	schema  *schema.Schema
	block   packed.Block
	plan    layout.Plan
	counts  schema.Counts
	borrows []bool
	live    bool
	moved   bool
}

// New allocates a zeroed arena for counts using the Go heap.
func New(s *schema.Schema, counts schema.Counts) (*Arena, error) {
	return NewWithConfig(s, counts, nil)
}

// NewWithConfig allocates a zeroed arena for counts. Either a fully
// allocated arena or an error is returned; nothing stays allocated on
// failure.
func NewWithConfig(s *schema.Schema, counts schema.Counts, cfg *Config) (*Arena, error) {
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseLayout, "nil schema")
	}

	plan, err := s.Plan(counts)
	if err != nil {
		return nil, err
	}

	allocator := packed.Allocator(defaultAllocator)
	if cfg != nil && cfg.Allocator != nil {
		allocator = cfg.Allocator
	}

	a := &Arena{
		alloc:   allocator,
		schema:  s,
		plan:    plan,
		counts:  append(schema.Counts(nil), counts...),
		borrows: make([]bool, s.Len()),
		live:    true,
	}
	if plan.Size == 0 {
		return a, nil
	}

	size, align := int(plan.Size), int(plan.Align)
	block, err := allocator.Alloc(size, align)
	if err != nil {
		if e, ok := err.(*errors.Error); !ok || !e.Is(errors.ErrAllocationFailure) {
			err = errors.AllocationFailed(size, align, err)
		}
		Logger().Debug("arena allocation failed",
			zap.String("schema", s.Name()),
			zap.Int("size", size),
			zap.Int("align", align),
			zap.Error(err))
		return nil, err
	}
	if len(block.Data) != size || block.Size != size || block.Align != align || !alloc.IsAligned(block.Data, align) {
		if ferr := allocator.Free(block); ferr != nil {
			Logger().Warn("failed to return unusable block", zap.Error(ferr))
		}
		return nil, errors.AllocationFailed(size, align, nil)
	}
	clear(block.Data)
	a.block = block

	Logger().Debug("arena allocated",
		zap.String("schema", s.Name()),
		zap.Int("size", size),
		zap.Int("align", align),
		zap.Int("padding", int(plan.Padding())),
		zap.Ints("counts", counts))

	return a, nil
}

// Size returns the buffer size in bytes.
func (a *Arena) Size() int {
	return int(a.plan.Size)
}

// Align returns the buffer alignment.
func (a *Arena) Align() int {
	return int(a.plan.Align)
}

// Plan returns the layout the buffer was allocated with.
func (a *Arena) Plan() layout.Plan {
	return a.plan
}

// Schema returns the arena's schema.
func (a *Arena) Schema() *schema.Schema {
	return a.schema
}

// Count returns the element count of field i.
func (a *Arena) Count(i int) int {
	return a.counts[i]
}

// Counts returns a copy of all field counts.
func (a *Arena) Counts() schema.Counts {
	return append(schema.Counts(nil), a.counts...)
}

// Released reports whether the arena no longer owns its buffer.
func (a *Arena) Released() bool {
	return !a.live
}

// Attached reports whether the buffer still aliases the allocator's memory.
// Blocks in a WebAssembly linear memory detach when the memory grows without
// reserved capacity; views taken before that keep pointing at a stale copy.
func (a *Arena) Attached() bool {
	if !a.live || a.plan.Size == 0 {
		return a.live
	}
	v, ok := a.alloc.(packed.Validator)
	return !ok || v.Valid(a.block)
}

// Bytes returns a read-only view of the whole buffer.
func (a *Arena) Bytes() ByteView {
	a.mustBeAttached()
	return ByteView{owner: a, data: a.block.Data}
}

// MutableBytes returns the whole buffer, clipped so appends reallocate.
func (a *Arena) MutableBytes() []byte {
	a.mustBeAttached()
	return a.block.Data[:len(a.block.Data):len(a.block.Data)]
}

// Pointer returns the address of the first byte, or nil for an empty buffer.
func (a *Arena) Pointer() unsafe.Pointer {
	a.mustBeAttached()
	if len(a.block.Data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(a.block.Data))
}

// Dispose releases the buffer with the size and alignment it was allocated
// with. Only the first call releases anything; later calls return a
// KindReleased error. Disposing a handle emptied by Transfer does nothing, so
// a deferred Dispose may stay in place.
func (a *Arena) Dispose() error {
	if a.moved {
		return nil
	}
	if !a.live {
		Logger().Warn("arena disposed twice", zap.String("schema", a.schema.Name()))
		return errors.Released(errors.PhaseRelease, "arena")
	}
	a.live = false

	block := a.block
	a.block = packed.Block{}
	if a.plan.Size == 0 {
		return nil
	}

	if err := a.alloc.Free(block); err != nil {
		Logger().Warn("arena release failed",
			zap.String("schema", a.schema.Name()),
			zap.Error(err))
		return err
	}

	Logger().Debug("arena disposed",
		zap.String("schema", a.schema.Name()),
		zap.Int("size", block.Size))
	return nil
}

// Transfer moves ownership of the buffer to a new handle. The receiver and
// every view taken from it become released; the buffer itself is untouched.
func (a *Arena) Transfer() *Arena {
	a.mustBeLive()
	moved := &Arena{
		alloc:   a.alloc,
		schema:  a.schema,
		block:   a.block,
		plan:    a.plan,
		counts:  a.counts,
		borrows: make([]bool, len(a.borrows)),
		live:    true,
	}
	a.live = false
	a.moved = true
	a.block = packed.Block{}
	return moved
}

func (a *Arena) mustBeLive() {
	if !a.live {
		panic(errors.Released(errors.PhaseAccess, "arena "+a.schema.Name()))
	}
}

func (a *Arena) mustBeAttached() {
	a.mustBeLive()
	if !a.Attached() {
		panic(errors.Detached(errors.PhaseAccess, "arena "+a.schema.Name()))
	}
}
