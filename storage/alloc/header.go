package alloc

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of the file header (spec.md §6).
const HeaderSize = 24

// FooterSize is the fixed size of the streaming-form footer.
const FooterSize = 16

// mnemonic is the 4-byte magic string at header offset 16.
var mnemonic = [4]byte{'T', '-', 'D', 'B'}

// StreamingMagic is the 64-bit cookie that closes a streaming-form footer.
const StreamingMagic uint64 = 0x3034125237E526C8

// FormatVersion identifies the on-disk header layout.
type FormatVersion uint16

const (
	// FormatVersionNoNullStrings is the older layout without null-string
	// support in string columns.
	FormatVersionNoNullStrings FormatVersion = 2
	// FormatVersionNullStrings is the current layout.
	FormatVersionNullStrings FormatVersion = 3
)

func (v FormatVersion) supported() bool {
	return v == FormatVersionNoNullStrings || v == FormatVersionNullStrings
}

const (
	flagSelectTopRef  = 1 << 0
	flagServerSyncMode = 1 << 1
)

// Header is the bit-exact 24-byte file envelope described in spec.md §6.
type Header struct {
	TopRef        [2]Ref
	Version       FormatVersion
	ServerSync    bool
	SelectedSlot  int // 0 or 1, chosen by flags bit 0
}

// SelectedTopRef returns the top-ref named by the currently selected slot.
func (h Header) SelectedTopRef() Ref {
	return h.TopRef[h.SelectedSlot]
}

// Footer is the streaming-form trailer present only when the header's
// selected top-ref slot is zero.
type Footer struct {
	TopRef Ref
}

// EncodeHeader serializes h into the canonical 24-byte on-disk layout.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.TopRef[0]))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.TopRef[1]))
	copy(buf[16:20], mnemonic[:])
	binary.LittleEndian.PutUint16(buf[20:22], uint16(h.Version))
	buf[22] = 0
	var flags byte
	if h.SelectedSlot == 1 {
		flags |= flagSelectTopRef
	}
	if h.ServerSync {
		flags |= flagServerSyncMode
	}
	buf[23] = flags
	return buf
}

// EncodeFooter serializes f into the canonical 16-byte streaming-form
// trailer.
func EncodeFooter(f Footer) []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(f.TopRef))
	binary.LittleEndian.PutUint64(buf[8:16], StreamingMagic)
	return buf
}

// EmptyHeader returns the canonical header written into a freshly created,
// empty database file: no commits yet, slot 0 selected, top-ref 0 (which
// makes the file appear to be on streaming form until a real commit lands).
func EmptyHeader(serverSync bool) Header {
	return Header{Version: FormatVersionNullStrings, ServerSync: serverSync}
}

// ValidateHeader implements the header validation algorithm of spec.md §4.1:
// mnemonic and version checks, server-sync-mode agreement, and streaming-form
// footer resolution when the selected top-ref slot is zero. It returns the
// resolved top-ref, whether the file is on streaming form, and the format
// version found.
func ValidateHeader(data []byte, wantServerSync bool) (topRef Ref, streaming bool, version FormatVersion, err error) {
	if len(data) < HeaderSize {
		return 0, false, 0, fmt.Errorf("%w: buffer shorter than header (%d bytes)", ErrInvalidDatabase, len(data))
	}
	if string(data[16:20]) != string(mnemonic[:]) {
		return 0, false, 0, fmt.Errorf("%w: bad mnemonic", ErrInvalidDatabase)
	}
	version = FormatVersion(binary.LittleEndian.Uint16(data[20:22]))
	if !version.supported() {
		return 0, false, 0, fmt.Errorf("%w: unsupported format version %d", ErrInvalidDatabase, version)
	}
	flags := data[23]
	serverSync := flags&flagServerSyncMode != 0
	if serverSync != wantServerSync {
		return 0, false, 0, fmt.Errorf("%w: server-sync-mode mismatch", ErrInvalidDatabase)
	}
	slot := 0
	if flags&flagSelectTopRef != 0 {
		slot = 1
	}
	top := Ref(binary.LittleEndian.Uint64(data[slot*8 : slot*8+8]))
	if top != 0 {
		return top, false, version, nil
	}

	// Selected top-ref is zero: the file must be on streaming form, with
	// the real top-ref in the trailing footer.
	if len(data) < HeaderSize+FooterSize {
		return 0, false, 0, fmt.Errorf("%w: streaming form but buffer too short for footer", ErrInvalidDatabase)
	}
	footer := data[len(data)-FooterSize:]
	magic := binary.LittleEndian.Uint64(footer[8:16])
	if magic != StreamingMagic {
		return 0, false, 0, fmt.Errorf("%w: streaming footer magic mismatch", ErrInvalidDatabase)
	}
	top = Ref(binary.LittleEndian.Uint64(footer[0:8]))
	return top, true, version, nil
}

// DecodeHeader parses the fixed 24-byte header without resolving streaming
// form; used by AttachBuffer, and by AttachFile when validation is skipped.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: buffer shorter than header", ErrInvalidDatabase)
	}
	flags := data[23]
	h := Header{
		TopRef: [2]Ref{
			Ref(binary.LittleEndian.Uint64(data[0:8])),
			Ref(binary.LittleEndian.Uint64(data[8:16])),
		},
		Version:    FormatVersion(binary.LittleEndian.Uint16(data[20:22])),
		ServerSync: flags&flagServerSyncMode != 0,
	}
	if flags&flagSelectTopRef != 0 {
		h.SelectedSlot = 1
	}
	return h, nil
}
