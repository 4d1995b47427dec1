// Package alloc implements the ref address space and slab allocator: the
// storage engine's unified offset-to-pointer translation across an
// immutable memory-mapped file prefix and a sequence of dynamically grown
// heap slabs (spec.md §3-§4.1).
package alloc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"

	allocsys "github.com/nexuscore/tdbcore/storage/alloc/sys"
)

// Config tunes allocator behavior. Zero value is usable; see DefaultConfig.
type Config struct {
	// DisableSyncToDisk suppresses fsync calls in AttachFile's empty-file
	// initialization, ResizeFile and ReserveDiskSpace. It is scoped to the
	// allocator instance rather than held as package-level mutable state.
	DisableSyncToDisk bool
	// InitialSlabSize is the size of the first slab allocated once the
	// mutable free list runs dry.
	InitialSlabSize int
	// SlabGrowthFactor multiplies the previous slab's size (capped by
	// MaxSlabSize) each time a new slab is needed.
	SlabGrowthFactor float64
	// MaxSlabSize bounds how large a single new slab may be.
	MaxSlabSize int
}

// DefaultConfig returns the allocator's default tuning.
func DefaultConfig() Config {
	return Config{
		InitialSlabSize:  1 << 20, // 1 MiB
		SlabGrowthFactor: 2.0,
		MaxSlabSize:      1 << 28, // 256 MiB
	}
}

// AttachFileOptions configures AttachFile.
type AttachFileOptions struct {
	Shared         bool
	ReadOnly       bool
	NoCreate       bool
	SkipValidate   bool
	EncryptionKey  []byte
	ServerSyncMode bool
}

// SlabAllocator is the unified ref-address-space allocator described in
// spec.md §4.1. It is not safe for concurrent mutation: at most one writer
// operates on it at a time (spec.md §5); Translate is safe to call
// concurrently with other Translate calls while the free-space state is
// Clean.
type SlabAllocator struct {
	mu sync.Mutex

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
	cfg     Config

	mode AttachMode

	file   *os.File
	region *mmapRegion

	ownedBuffer  []byte
	usersBuffer  []byte
	bufferOwned  bool

	baseline Ref
	slabs    slabList

	mutableFree *freeList
	roFree      *freeList
	state       FreeSpaceState

	header         Header
	streamingForm  bool
	validated      bool
	serverSyncMode bool
}

// New constructs a detached allocator. logger, tracer, and metrics may be
// nil; nil logger falls back to slog.Default(), nil tracer/metrics make
// their reporting calls no-ops.
func New(logger *slog.Logger, tracer trace.Tracer, metrics *Metrics, cfg Config) *SlabAllocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlabAllocator{
		logger:      logger,
		tracer:      tracer,
		metrics:     metrics,
		cfg:         cfg,
		mutableFree: newFreeList(),
		roFree:      newFreeList(),
		state:       StateClean,
	}
}

func (a *SlabAllocator) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if a.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return a.tracer.Start(ctx, name)
}

// Mode returns the current attach mode.
func (a *SlabAllocator) Mode() AttachMode { return a.mode }

// Baseline returns the size in bytes of the attached file/buffer region.
func (a *SlabAllocator) Baseline() Ref { return a.baseline }

// FreeSpaceState returns the current free-space tracking state.
func (a *SlabAllocator) FreeSpaceState() FreeSpaceState { return a.state }

// IsStreamingForm reports whether the attached file was found in streaming
// form (top-ref in the footer rather than the header) at attach time.
func (a *SlabAllocator) IsStreamingForm() bool { return a.streamingForm }

// AttachEmpty attaches with no backing region; baseline is 0. Matches
// spec.md §4.1 attach_empty.
func (a *SlabAllocator) AttachEmpty() (Ref, error) {
	if a.mode != AttachNone {
		return 0, ErrAlreadyAttached
	}
	a.mode = AttachUsersBuffer
	a.baseline = 0
	a.resetFreeListsLocked()
	return 0, nil
}

// AttachBuffer attaches an in-memory buffer the caller retains ownership of
// until OwnBuffer transfers it. Matches spec.md §4.1 attach_buffer.
func (a *SlabAllocator) AttachBuffer(data []byte) (Ref, error) {
	if a.mode != AttachNone {
		return 0, ErrAlreadyAttached
	}
	top, streaming, version, err := ValidateHeader(data, a.serverSyncMode)
	if err != nil {
		return 0, err
	}
	a.mode = AttachUsersBuffer
	a.usersBuffer = data
	a.region = &mmapRegion{data: data}
	a.baseline = Ref(len(data))
	a.streamingForm = streaming
	a.validated = true
	a.header, _ = DecodeHeader(data)
	a.header.Version = version
	a.resetFreeListsLocked()
	a.logger.Debug("allocator attached to buffer", "baseline", a.baseline, "streaming_form", streaming)
	return top, nil
}

// OwnBuffer transfers ownership of the previously attached user buffer to
// the allocator, matching spec.md §9's own_buffer().
func (a *SlabAllocator) OwnBuffer() {
	if a.mode == AttachUsersBuffer && a.usersBuffer != nil {
		a.ownedBuffer = a.usersBuffer
		a.usersBuffer = nil
		a.mode = AttachOwnedBuffer
		a.bufferOwned = true
	}
}

// AttachFile opens path, validating the header (unless opts.SkipValidate)
// and mapping the file region. Matches spec.md §4.1 attach_file in full,
// including empty-file initialization and streaming-form detection.
func (a *SlabAllocator) AttachFile(ctx context.Context, path string, opts AttachFileOptions) (Ref, error) {
	if a.mode != AttachNone {
		return 0, ErrAlreadyAttached
	}
	ctx, span := a.startSpan(ctx, "alloc.AttachFile")
	defer span.End()

	if len(opts.EncryptionKey) > 0 {
		return 0, ErrEncryptionUnsupported
	}

	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}
	if !opts.ReadOnly && !opts.NoCreate {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return 0, fmt.Errorf("alloc: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("alloc: stat %s: %w", path, err)
	}

	if info.Size() == 0 && !opts.ReadOnly && !opts.NoCreate {
		h := EmptyHeader(opts.ServerSyncMode)
		if _, err := f.WriteAt(EncodeHeader(h), 0); err != nil {
			f.Close()
			return 0, fmt.Errorf("alloc: writing initial header: %w", err)
		}
		footer := EncodeFooter(Footer{TopRef: 0})
		if _, err := f.WriteAt(footer, HeaderSize); err != nil {
			f.Close()
			return 0, fmt.Errorf("alloc: writing initial footer: %w", err)
		}
		if !a.cfg.DisableSyncToDisk {
			if err := f.Sync(); err != nil {
				f.Close()
				return 0, fmt.Errorf("alloc: syncing initial file: %w", err)
			}
		}
		info, err = f.Stat()
		if err != nil {
			f.Close()
			return 0, fmt.Errorf("alloc: restat %s: %w", path, err)
		}
	}

	size := info.Size()
	buf := make([]byte, size)
	if size > 0 {
		if _, err := f.ReadAt(buf, 0); err != nil {
			f.Close()
			return 0, fmt.Errorf("alloc: reading header region: %w", err)
		}
	}

	var top Ref
	var streaming bool
	var version FormatVersion
	if !opts.SkipValidate {
		top, streaming, version, err = ValidateHeader(buf, opts.ServerSyncMode)
		if err != nil {
			f.Close()
			return 0, err
		}
	} else if size >= HeaderSize {
		h, derr := DecodeHeader(buf)
		if derr == nil {
			version = h.Version
			top = h.SelectedTopRef()
		}
	}

	region, err := mmapFile(f.Fd(), size, opts.ReadOnly)
	if err != nil {
		f.Close()
		return 0, err
	}

	a.file = f
	a.region = region
	a.mode = AttachSharedFile
	if !opts.Shared {
		a.mode = AttachUnsharedFile
	}
	a.baseline = Ref(size)
	a.streamingForm = streaming
	a.validated = !opts.SkipValidate
	a.serverSyncMode = opts.ServerSyncMode
	a.header.Version = version
	a.resetFreeListsLocked()

	a.logger.Info("attached database file", "path", path, "size", size, "top_ref", top, "streaming_form", streaming)
	return top, nil
}

// Detach is idempotent: releases the mapping and (if owned) the buffer, but
// does not reset free lists (spec.md §4.1).
func (a *SlabAllocator) Detach() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == AttachNone {
		return nil
	}
	var err error
	if a.region != nil {
		// A buffer-attached region wraps a plain Go slice rather than an
		// actual mmap mapping (see AttachBuffer); only file attachment
		// produced a real mapping that needs unmapping.
		if a.file != nil {
			err = a.region.unmap()
		}
		a.region = nil
	}
	if a.file != nil {
		if cerr := a.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		a.file = nil
	}
	a.ownedBuffer = nil
	a.usersBuffer = nil
	a.mode = AttachNone
	return err
}

func (a *SlabAllocator) resetFreeListsLocked() {
	a.mutableFree.reset(0, 0)
	a.roFree.reset(0, 0)
	a.state = StateClean
}

// resetFreeListScanThreshold is the slab count at or above which
// ResetFreeSpaceTracking computes each slab's whole-slab free chunk
// concurrently before inserting them in order; below it the per-chunk
// insert cost dominates and a plain loop is faster.
const resetFreeListScanThreshold = 64

// ResetFreeSpaceTracking clears both free lists, marks the entire slab
// space as one free chunk per slab, and resets state to Clean (spec.md
// §4.1).
func (a *SlabAllocator) ResetFreeSpaceTracking() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roFree.reset(0, 0)
	a.mutableFree.reset(0, 0)

	if len(a.slabs.slabs) < resetFreeListScanThreshold {
		start := a.baseline
		for _, s := range a.slabs.slabs {
			a.mutableFree.insert(FreeChunk{Ref: start, Size: s.Size()})
			start = s.RefEnd
		}
		a.state = StateClean
		return nil
	}

	chunks, err := scanSlabsConcurrently(a.slabs.slabs, a.baseline)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		a.mutableFree.insert(c)
	}
	a.state = StateClean
	return nil
}

// Alloc returns a chunk of at least size bytes, 8-aligned, via first-fit
// search of the mutable free list, extending the slab sequence if no chunk
// fits (spec.md §4.1).
func (a *SlabAllocator) Alloc(ctx context.Context, size int) (Ref, []byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateInvalid {
		return 0, nil, ErrFreeSpaceInvalid
	}
	size = alignUp(size)
	if size == 0 {
		size = Alignment
	}

	if ref, ok := a.mutableFree.firstFit(size); ok {
		a.state = StateDirty
		addr, err := a.translateLocked(ref)
		if err != nil {
			a.state = StateInvalid
			return 0, nil, err
		}
		a.metrics.recordAlloc(ctx, size)
		return ref, addr[:size], nil
	}

	if err := a.growSlabLocked(ctx, size); err != nil {
		a.state = StateInvalid
		return 0, nil, err
	}
	ref, ok := a.mutableFree.firstFit(size)
	if !ok {
		a.state = StateInvalid
		return 0, nil, ErrOutOfMemory
	}
	a.state = StateDirty
	addr, err := a.translateLocked(ref)
	if err != nil {
		a.state = StateInvalid
		return 0, nil, err
	}
	a.metrics.recordAlloc(ctx, size)
	return ref, addr[:size], nil
}

// growSlabLocked extends the slab sequence by one slab of at least
// minSize bytes, sized per Config's growth policy, and records the whole
// new slab as one free chunk.
func (a *SlabAllocator) growSlabLocked(ctx context.Context, minSize int) error {
	next := alignUp(a.cfg.InitialSlabSize)
	if last := len(a.slabs.slabs); last > 0 {
		prevSize := a.slabs.slabs[last-1].Size()
		grown := float64(prevSize) * a.cfg.SlabGrowthFactor
		if grown > float64(a.cfg.MaxSlabSize) {
			grown = float64(a.cfg.MaxSlabSize)
		}
		next = alignUp(int(grown))
	}
	if next < minSize {
		next = alignUp(minSize)
	}
	buf := make([]byte, next)
	start := a.slabs.end(a.baseline)
	slab := Slab{Start: start, RefEnd: start + Ref(next), Addr: buf}
	a.slabs.append(slab)
	a.mutableFree.insert(FreeChunk{Ref: start, Size: next})
	a.metrics.recordSlabGrowth(ctx)
	a.logger.Debug("grew slab space", "start", start, "size", next)
	return nil
}

// Realloc always allocates a fresh chunk, copies min(oldSize,newSize)
// bytes, and frees the old chunk; it never grows in place (spec.md §4.1).
func (a *SlabAllocator) Realloc(ctx context.Context, oldRef Ref, oldAddr []byte, oldSize, newSize int) (Ref, []byte, error) {
	newRef, newAddr, err := a.Alloc(ctx, newSize)
	if err != nil {
		return 0, nil, err
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	copy(newAddr[:n], oldAddr[:n])
	if err := a.Free(oldRef, oldSize); err != nil {
		return 0, nil, err
	}
	return newRef, newAddr, nil
}

// Free returns the chunk to the appropriate free list: a free in the file
// region targets the read-only free list (the on-disk copy may still be
// referenced by readers until a commit), a free in slab space targets the
// mutable free list (spec.md §4.1). Rejects a ref already present in the
// target free list rather than silently corrupting it with a duplicate
// chunk.
func (a *SlabAllocator) Free(ref Ref, size int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateInvalid {
		return ErrFreeSpaceInvalid
	}
	size = alignUp(size)
	if ref < a.baseline {
		if a.roFree.contains(ref) {
			return fmt.Errorf("alloc: double free of ref %d", ref)
		}
		a.roFree.insert(FreeChunk{Ref: ref, Size: size})
	} else {
		if a.mutableFree.contains(ref) {
			return fmt.Errorf("alloc: double free of ref %d", ref)
		}
		a.mutableFree.insert(FreeChunk{Ref: ref, Size: size})
		a.state = StateDirty
	}
	a.metrics.recordFree(context.Background(), size)
	return nil
}

// Translate resolves ref to its backing address: file region if
// ref < baseline, else a binary search over the slab sequence (spec.md
// §4.1).
func (a *SlabAllocator) Translate(ref Ref) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.translateLocked(ref)
}

func (a *SlabAllocator) translateLocked(ref Ref) ([]byte, error) {
	if ref < a.baseline {
		if a.region == nil {
			return nil, fmt.Errorf("alloc: ref %d in file region but no region attached", ref)
		}
		return a.region.data[ref:], nil
	}
	idx := a.slabs.find(ref)
	if idx < 0 {
		return nil, ErrRefOutOfRange
	}
	s := a.slabs.slabs[idx]
	return s.Addr[ref-s.Start:], nil
}

// Remap re-maps the file to newSize bytes. Fails with ErrNotAttached if not
// attached to a file; leaves baseline unchanged on failure (spec.md §4.1).
func (a *SlabAllocator) Remap(ctx context.Context, newSize int64) (moved bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil || a.region == nil {
		return false, ErrNotAttached
	}
	_, span := a.startSpan(ctx, "alloc.Remap")
	defer span.End()

	moved, err = a.region.remap(a.file.Fd(), newSize)
	if err != nil {
		return false, err
	}
	a.baseline = Ref(newSize)
	return moved, nil
}

// ResizeFile preallocates disk blocks for the file to be n bytes and,
// unless DisableSyncToDisk is set, fsyncs (spec.md §4.1).
func (a *SlabAllocator) ResizeFile(ctx context.Context, n int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return ErrNotAttached
	}
	_, span := a.startSpan(ctx, "alloc.ResizeFile")
	defer span.End()

	if err := a.file.Truncate(n); err != nil {
		return fmt.Errorf("alloc: truncate to %d: %w", n, err)
	}
	if err := allocsys.Preallocate(a.file, n); err != nil {
		a.logger.Debug("fallocate-style preallocation unavailable after resize", "error", err)
	}
	if !a.cfg.DisableSyncToDisk {
		if err := a.file.Sync(); err != nil {
			return fmt.Errorf("alloc: fsync after resize: %w", err)
		}
	}
	return nil
}

// ReserveDiskSpace preallocates n bytes of disk blocks without necessarily
// changing the visible file size, logging (not failing) if free space looks
// insufficient (spec.md §4.1).
func (a *SlabAllocator) ReserveDiskSpace(ctx context.Context, n int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return ErrNotAttached
	}
	_, span := a.startSpan(ctx, "alloc.ReserveDiskSpace")
	defer span.End()

	if ok, err := allocsys.CheckFreeSpace(a.file.Name(), n); err == nil && !ok {
		a.logger.Warn("reserving disk space may exceed available free space", "path", a.file.Name(), "requested", n)
	}

	if err := allocsys.Preallocate(a.file, n); err != nil {
		// Advisory only: fall back to a plain resize so the reservation
		// still happens, just without the KEEP_SIZE optimization. The file
		// is only ever grown here, never shrunk.
		a.logger.Debug("fallocate-style preallocation unavailable, falling back to truncate", "error", err)
		info, serr := a.file.Stat()
		if serr != nil {
			return fmt.Errorf("alloc: stat before reserve: %w", serr)
		}
		if info.Size() < n {
			if terr := a.file.Truncate(n); terr != nil {
				return fmt.Errorf("alloc: truncate to %d: %w", n, terr)
			}
		}
	}
	if !a.cfg.DisableSyncToDisk {
		if err := a.file.Sync(); err != nil {
			return fmt.Errorf("alloc: fsync after reserve: %w", err)
		}
	}
	return nil
}

// PrepareForUpdate promotes a streaming-form file's header in place: its
// first top-ref slot is rewritten to hold the footer's top-ref and the
// footer region is zeroed; the streaming-form flag is cleared. No-op
// otherwise, or when validation was skipped at attach time (spec.md §4.1).
func (a *SlabAllocator) PrepareForUpdate(ctx context.Context, mutableData []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.streamingForm || !a.validated {
		return nil
	}
	_, span := a.startSpan(ctx, "alloc.PrepareForUpdate")
	defer span.End()

	if len(mutableData) < HeaderSize+FooterSize {
		return fmt.Errorf("alloc: buffer too short to promote streaming form")
	}
	footer := mutableData[len(mutableData)-FooterSize:]
	top := footer[0:8]
	copy(mutableData[0:8], top)
	for i := range footer {
		footer[i] = 0
	}
	mutableData[23] &^= byte(flagSelectTopRef)
	a.streamingForm = false
	return nil
}

// GetFreeReadOnlySize returns the total size of chunks on the read-only
// free list (file-region chunks freed this session but still potentially
// referenced by readers until a commit runs).
func (a *SlabAllocator) GetFreeReadOnlySize() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roFree.totalSize()
}

// GetTotalSize returns baseline plus the size of every attached slab.
func (a *SlabAllocator) GetTotalSize() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(a.slabs.end(a.baseline))
}

// Verify walks slabs and both free lists reasserting invariants 1-2 from
// spec.md §3. Intended for tests, not the hot path.
func (a *SlabAllocator) Verify() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.slabs.verify(a.baseline); err != nil {
		return err
	}
	if err := a.roFree.verifyTiling(0, a.baseline); err != nil {
		return fmt.Errorf("alloc: read-only free list: %w", err)
	}
	end := a.slabs.end(a.baseline)
	if err := a.mutableFree.verifyTiling(a.baseline, end); err != nil {
		return fmt.Errorf("alloc: mutable free list: %w", err)
	}
	return nil
}
