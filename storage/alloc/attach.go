package alloc

// AttachMode determines the lifecycle of the file-region backing storage and
// whether footer/streaming-form conversion is permitted (spec.md §3).
type AttachMode int

const (
	AttachNone AttachMode = iota
	AttachOwnedBuffer
	AttachUsersBuffer
	AttachSharedFile
	AttachUnsharedFile
)

func (m AttachMode) String() string {
	switch m {
	case AttachOwnedBuffer:
		return "owned-buffer"
	case AttachUsersBuffer:
		return "users-buffer"
	case AttachSharedFile:
		return "shared-file"
	case AttachUnsharedFile:
		return "unshared-file"
	default:
		return "none"
	}
}

// DetachGuard guarantees an allocator is released on every exit path from an
// attach sequence: construct it right after a successful attach_*, then call
// Release() once the caller has finished wiring the allocator into whatever
// owns it long-term. If Release is never called, Close calls Detach.
type DetachGuard struct {
	a        *SlabAllocator
	released bool
}

// NewDetachGuard binds a to the guard.
func NewDetachGuard(a *SlabAllocator) *DetachGuard {
	return &DetachGuard{a: a}
}

// Release disarms the guard without detaching; ownership has transferred to
// whatever holds the allocator long-term.
func (g *DetachGuard) Release() {
	g.released = true
}

// Close detaches the bound allocator unless Release was already called.
func (g *DetachGuard) Close() error {
	if g.released || g.a == nil {
		return nil
	}
	g.released = true
	return g.a.Detach()
}
