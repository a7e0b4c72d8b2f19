package exec

// DefaultMaxCallStackDepth bounds the number of nested activation records
// a thread will allow before trapping with TrapCallStackExhausted.
const DefaultMaxCallStackDepth = 256

// DefaultMaxMemoryPages bounds how many 64KiB pages a memory may grow to
// when its declared maximum is absent or larger than this cap.
const DefaultMaxMemoryPages = 0x1000

// ExecutionPolicy bounds the resources a single Instantiate call is
// willing to commit to a module: how deep its call stack may nest and how
// large its memories may grow, independent of what the module itself
// declares.
type ExecutionPolicy struct {
	// MaxCallStackDepth caps nested function activations. Zero selects
	// DefaultMaxCallStackDepth.
	MaxCallStackDepth uint
	// MaxMemoryPages caps the maximum of a memory the module defines
	// itself, and so how far memory.grow can take it, in 64KiB pages. The
	// initial allocation and imported memories are not capped by it. Zero
	// selects DefaultMaxMemoryPages.
	MaxMemoryPages uint32
	// TranslationCache is accepted but not consulted by the interpreter:
	// whatever its value, each function body is decoded on its first call
	// and the decoded form is cached for later calls.
	TranslationCache bool
}

func (p ExecutionPolicy) maxCallStackDepth() uint {
	if p.MaxCallStackDepth == 0 {
		return DefaultMaxCallStackDepth
	}
	return p.MaxCallStackDepth
}

func (p ExecutionPolicy) maxMemoryPages() uint32 {
	if p.MaxMemoryPages == 0 {
		return DefaultMaxMemoryPages
	}
	return p.MaxMemoryPages
}
