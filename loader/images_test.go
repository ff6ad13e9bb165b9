package loader

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"

	"github.com/aligator/goldr/multiboot"
)

// encode returns the little endian encoding of all values.
func encode(values ...interface{}) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

// put copies data to buf at off, growing buf as needed.
func put(buf []byte, off int, data []byte) []byte {
	if need := off + len(data); need > len(buf) {
		buf = append(buf, make([]byte, need-len(buf))...)
	}
	copy(buf[off:], data)
	return buf
}

// fill returns n bytes which differ for every seed.
func fill(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*13/5) + seed | 1
	}
	return data
}

type elfSegment struct {
	typ   elf.ProgType
	off   uint32
	vaddr uint32
	data  []byte
	memsz uint32
	align uint32
}

// load returns a loadable page aligned segment.
func load(off, vaddr uint32, data []byte, memsz uint32) elfSegment {
	return elfSegment{typ: elf.PT_LOAD, off: off, vaddr: vaddr, data: data, memsz: memsz, align: pageSize}
}

// elfImage builds a 32 bit x86 ELF executable.
func elfImage(entry uint32, segments ...elfSegment) []byte {
	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_386),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     52,
		Ehsize:    52,
		Phentsize: 32,
		Phnum:     uint16(len(segments)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	buf := encode(hdr)
	for i, s := range segments {
		ph := elf.Prog32{
			Type:   uint32(s.typ),
			Off:    s.off,
			Vaddr:  s.vaddr,
			Paddr:  s.vaddr,
			Filesz: uint32(len(s.data)),
			Memsz:  s.memsz,
			Flags:  uint32(elf.PF_R | elf.PF_X),
			Align:  s.align,
		}
		buf = put(buf, 52+i*32, encode(ph))
	}
	for _, s := range segments {
		buf = put(buf, int(s.off), s.data)
	}
	return buf
}

// multibootImage builds a flat image with a Multiboot header at offset,
// padded to size bytes with fill(size, 7).
func multibootImage(size, offset int, h multiboot.Header) []byte {
	return put(fill(size, 7), offset, encode(withChecksum(h)))
}

// withChecksum sets magic and checksum of h.
func withChecksum(h multiboot.Header) multiboot.Header {
	h.Magic = multiboot.HeaderMagic
	h.Checksum = -(h.Magic + h.Flags)
	return h
}

type coffSectionSpec struct {
	name    string
	vaddr   uint32
	vsize   uint32
	data    []byte
	ptr     uint32
	bss     bool
	rawSize uint32
}

// peImage builds a PE executable with image base base.
func peImage(base, entry uint32, sections ...coffSectionSpec) []byte {
	const sigOffset = 0x80
	buf := put(nil, 0, []byte("MZ"))
	buf = put(buf, peOffsetField, encode(uint32(sigOffset)))
	buf = put(buf, sigOffset, []byte(peSignature))
	return coffHeaders(buf, sigOffset+4, 224, entry, base, sections)
}

// legacyCOFFImage builds a legacy COFF executable.
func legacyCOFFImage(entry uint32, sections ...coffSectionSpec) []byte {
	return coffHeaders(nil, 0, coffOptionalSize, entry, 0, sections)
}

func coffHeaders(buf []byte, off int, optSize uint16, entry, base uint32, sections []coffSectionSpec) []byte {
	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: optSize,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
	}
	buf = put(buf, off, encode(fh))

	opt := coffOptionalHeader{Magic: pe32Magic, AddressOfEntryPoint: entry}
	buf = put(buf, off+fileHeaderSize, encode(opt))
	if optSize > coffOptionalSize {
		buf = put(buf, off+fileHeaderSize+coffOptionalSize, encode(base))
		buf = put(buf, off+fileHeaderSize+int(optSize)-1, []byte{0})
	}

	shOff := off + fileHeaderSize + int(optSize)
	for i, s := range sections {
		sh := pe.SectionHeader32{
			VirtualSize:      s.vsize,
			VirtualAddress:   s.vaddr,
			SizeOfRawData:    uint32(len(s.data)),
			PointerToRawData: s.ptr,
			Characteristics:  pe.IMAGE_SCN_CNT_CODE,
		}
		if s.rawSize != 0 {
			sh.SizeOfRawData = s.rawSize
		}
		if s.bss {
			sh.Characteristics = pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA
		}
		copy(sh.Name[:], s.name)
		buf = put(buf, shOff+i*sectionHeaderSize, encode(sh))
	}
	for _, s := range sections {
		buf = put(buf, int(s.ptr), s.data)
	}
	return buf
}

// bootsector returns a sector with or without boot signature.
func bootsector(signed bool) []byte {
	s := fill(512, 3)
	s[510], s[511] = 0, 0
	if signed {
		s[510], s[511] = 0x55, 0xAA
	}
	return s
}
