// Package multiboot contains the structures of the Multiboot 0.6.96 boot
// protocol: the header an image embeds and the information passed to it.
package multiboot

import (
	"bytes"
	"encoding/binary"
)

const (
	// HeaderMagic identifies a Multiboot header inside an image.
	HeaderMagic uint32 = 0x1BADB002
	// BootloaderMagic is handed to the image in EAX.
	BootloaderMagic uint32 = 0x2BADB002

	// SearchLimit is the number of leading image bytes the header must be contained in.
	SearchLimit = 8192
	// HeaderAlign is the alignment of the header inside the image.
	HeaderAlign = 4
	// HeaderSize is the size of the header including the address and graphics fields.
	HeaderSize = 48

	// LoaderName is reported in the boot loader name field.
	LoaderName = "GOLDR/1.0"
)

// Header flags.
const (
	WantPageAlign    uint32 = 0x00001
	WantSimpleMemory uint32 = 0x00002
	WantGraphics     uint32 = 0x00004
	HasAddress       uint32 = 0x10000

	// RequiredMask selects the flags an image requires to be honored.
	RequiredMask uint32 = 0x0000FFFF
	// SupportedFlags are the required flags this loader can fulfil.
	SupportedFlags = WantPageAlign | WantSimpleMemory | WantGraphics
)

// Info flags.
const (
	InfoSimpleMemory uint32 = 0x0001
	InfoBootDevice   uint32 = 0x0002
	InfoCmdLine      uint32 = 0x0004
	InfoModules      uint32 = 0x0008
	InfoSymbols      uint32 = 0x0010
	InfoSections     uint32 = 0x0020
	InfoMemoryMap    uint32 = 0x0040
	InfoDrives       uint32 = 0x0080
	InfoConfig       uint32 = 0x0100
	InfoLoaderName   uint32 = 0x0200
	InfoAPM          uint32 = 0x0400
	InfoGraphics     uint32 = 0x0800
)

// Header is the Multiboot header as found in the image.
type Header struct {
	Magic    uint32
	Flags    uint32
	Checksum uint32

	// Valid if Flags&HasAddress.
	HeaderAddr  uint32
	LoadAddr    uint32
	LoadEndAddr uint32
	BssEndAddr  uint32
	EntryAddr   uint32

	// Valid if Flags&WantGraphics.
	ModeType uint32
	Width    uint32
	Height   uint32
	Depth    uint32
}

// Valid reports whether magic and checksum are correct.
func (h Header) Valid() bool {
	// Wrap-around is intended.
	return h.Magic == HeaderMagic && h.Magic+h.Flags+h.Checksum == 0
}

// Unsupported returns the required flags this loader cannot fulfil.
func (h Header) Unsupported() uint32 {
	return h.Flags & RequiredMask &^ SupportedFlags
}

// Wants reports whether all of flags are set in the header.
func (h Header) Wants(flags uint32) bool {
	return h.Flags&flags == flags
}

// FindHeader scans buf, which holds the first bytes of an image, for a valid
// Multiboot header on a 4 byte boundary within the first SearchLimit bytes.
// It returns the header and its offset inside buf.
// A header is only accepted if buf holds every field its flags announce.
func FindHeader(buf []byte) (Header, int, bool) {
	if len(buf) > SearchLimit {
		buf = buf[:SearchLimit]
	}

	for offset := 0; offset+12 <= len(buf); offset += HeaderAlign {
		if binary.LittleEndian.Uint32(buf[offset:]) != HeaderMagic {
			continue
		}

		raw := make([]byte, HeaderSize)
		copy(raw, buf[offset:])

		var h Header
		if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &h); err != nil {
			return Header{}, 0, false
		}
		if h.Valid() && offset+headerLength(h.Flags) <= len(buf) {
			return h, offset, true
		}
	}

	return Header{}, 0, false
}

// headerLength returns the number of header bytes an image with flags has to provide.
func headerLength(flags uint32) int {
	switch {
	case flags&WantGraphics != 0:
		return HeaderSize
	case flags&HasAddress != 0:
		return 32
	}
	return 12
}

// MemoryAvailable is the memory map type of usable RAM.
const MemoryAvailable = 1

// MemoryMapEntry is one descriptor of the firmware memory map.
type MemoryMapEntry struct {
	Base   uint64
	Length uint64
	Type   uint32
}

// MemoryInfo is what the firmware reports about installed memory.
type MemoryInfo struct {
	// HasSimple is set if Lower and Upper are valid.
	HasSimple bool
	// Lower is the amount of memory below 1 MiB in KiB.
	Lower uint32
	// Upper is the amount of memory above 1 MiB in KiB.
	Upper uint32

	Map []MemoryMapEntry
}

// Module describes a loaded boot module.
type Module struct {
	Start uint32
	End   uint32
	// String is the argument string of the module, empty if it has none.
	String string
}

// APMTable is the Advanced Power Management connection information.
type APMTable struct {
	Version   uint16
	CSeg      uint16
	Offset    uint32
	CSeg16    uint16
	DSeg      uint16
	Flags     uint16
	CSegLen   uint16
	CSeg16Len uint16
	DSegLen   uint16
}

// VBEInfo is the graphics information of the active VBE mode.
type VBEInfo struct {
	ControlInfo  [512]byte
	ModeInfo     [256]byte
	Mode         uint16
	InterfaceSeg uint16
	InterfaceOff uint16
	InterfaceLen uint16
}

// Info is the boot information passed to a Multiboot image.
type Info struct {
	Flags uint32

	MemLower uint32
	MemUpper uint32

	BootDevice uint32

	CmdLine string

	Modules []Module

	MemoryMap []MemoryMapEntry

	ConfigTable uint32

	BootLoaderName string

	APM *APMTable

	VBE *VBEInfo
}

// NewInfo creates the boot information from what the firmware reported.
func NewInfo(mem MemoryInfo) *Info {
	info := &Info{}
	if mem.HasSimple {
		info.MemLower = mem.Lower
		info.MemUpper = mem.Upper
		info.Flags |= InfoSimpleMemory
	}
	if len(mem.Map) > 0 {
		info.MemoryMap = append([]MemoryMapEntry(nil), mem.Map...)
		info.Flags |= InfoMemoryMap
	}
	return info
}

// Has reports whether all of flags are set.
func (i *Info) Has(flags uint32) bool {
	return i.Flags&flags == flags
}
