// Package alloc provides the allocators behind packed arenas.
//
// Every allocator returns zero-initialized blocks aligned as requested and
// records the exact size and alignment in the packed.Block, so the block is
// released with the parameters it was allocated with.
//
// # Heap
//
// Go heap memory, optionally capped by a byte limit:
//
//	h := alloc.NewHeap(64 << 20)
//	a, err := arena.NewWithConfig(s, counts, &arena.Config{Allocator: h})
//
// # Mmap
//
// Off-heap memory from modernc.org/memory. The garbage collector never sees
// these blocks, which is why schemas reject element types holding pointers:
//
//	m := alloc.NewMmap()
//	defer m.Close()
//
// # Linear and Guest
//
// Blocks inside a WebAssembly module's linear memory (wazero), so packed
// fields can be shared with guest code without copying. Linear manages a host
// reserved address range itself; Guest delegates to the module's exported
// cabi_realloc:
//
//	l, err := alloc.NewLinear(mod.ExportedMemory("memory"), 1024, 0)
//	g, err := alloc.NewGuest(ctx, mod.ExportedMemory("memory"), mod.ExportedFunction("cabi_realloc"))
//
// Host views over linear memory are invalidated when the memory grows unless
// its capacity is reserved up front (wazero.RuntimeConfig
// WithMemoryCapacityFromMax with a declared maximum). Linear never grows
// memory itself, but the guest or another host call may. Both allocators
// implement packed.Validator, and arenas refuse new views over a block whose
// memory has moved.
package alloc
