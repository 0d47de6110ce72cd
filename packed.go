package packed

// Block is one allocation handed out by an Allocator. It records everything
// needed to release the allocation with the same parameters it was made with.
type Block struct {
	// Data is the aligned region, len(Data) == Size.
	Data []byte
	// Base is the allocator's raw region when it differs from Data.
	Base []byte
	// Addr is the region's address in a linear memory, 0 for host memory.
	Addr  uint32
	Size  int
	Align int
}

// Allocator hands out zero-initialized, aligned blocks.
type Allocator interface {
	Alloc(size, align int) (Block, error)
	Free(b Block) error
}

// Validator is implemented by allocators whose blocks can be detached from
// the memory they describe after allocation, such as blocks in a WebAssembly
// linear memory that has since grown.
type Validator interface {
	Valid(b Block) bool
}
