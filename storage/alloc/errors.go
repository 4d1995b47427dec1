package alloc

import "errors"

// Sentinel errors returned by the allocator. Callers should use errors.Is
// against these rather than matching message text.
var (
	// ErrInvalidDatabase covers header/footer corruption: bad mnemonic,
	// unrecognized format version, magic-cookie mismatch, server-sync-mode
	// disagreement, buffer too short, or decryption failure.
	ErrInvalidDatabase = errors.New("alloc: invalid database file")

	// ErrFreeSpaceInvalid is returned by Alloc, Realloc and Free once a
	// prior allocation failure has left the free-space state Invalid.
	// GetFreeReadOnlySize does not check the state.
	ErrFreeSpaceInvalid = errors.New("alloc: free-space tracking invalidated by a prior failure")

	// ErrNotAttached is returned by operations that require an attached
	// backing file (Remap, ResizeFile, ReserveDiskSpace).
	ErrNotAttached = errors.New("alloc: allocator is not attached to a file")

	// ErrAlreadyAttached guards against calling an attach_* method twice;
	// spec treats double-attach as caller error, so this is defensive.
	ErrAlreadyAttached = errors.New("alloc: allocator is already attached")

	// ErrEncryptionUnsupported is returned by AttachFile when an encryption
	// key is supplied; at-rest encryption is outside this module's surface.
	ErrEncryptionUnsupported = errors.New("alloc: encrypted databases are not supported")

	// ErrOutOfMemory is returned when extending the slab sequence fails.
	ErrOutOfMemory = errors.New("alloc: out of memory while extending slab space")

	// ErrRefOutOfRange is returned by Translate when ref falls past the end
	// of the address space.
	ErrRefOutOfRange = errors.New("alloc: ref is past the end of the address space")
)
