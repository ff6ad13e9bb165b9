package loader

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
)

const (
	peOffsetField = 0x3C
	peSignature   = "PE\x00\x00"
	pe32Magic     = 0x10b

	fileHeaderSize    = 20
	sectionHeaderSize = 40
	// coffOptionalSize is the size of the standard optional header fields.
	coffOptionalSize = 28
	// peOptionalSize adds the NT fields up to the data directories.
	peOptionalSize = coffOptionalSize + 68
)

// coffOptionalHeader holds the standard fields of the optional header shared
// by COFF and PE.
type coffOptionalHeader struct {
	Magic                   uint16
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	BaseOfData              uint32
}

// coffSection is a section as it is loaded.
type coffSection struct {
	Name    string
	Address uint64
	// Size is the size in memory, of which the first RawSize bytes are read
	// from Offset in the file.
	Size    uint64
	RawSize uint64
	Offset  int64
}

// coffImage is a parsed COFF or PE executable.
type coffImage struct {
	PE       bool
	Entry    uint64
	Sections []coffSection
}

// parseCOFF parses r as 32 bit x86 PE executable or as legacy COFF executable
// if it has no PE signature.
// The bool is false if r is neither.
func parseCOFF(r io.ReaderAt) (*coffImage, bool, error) {
	img := &coffImage{}

	offset := int64(0)
	var sigOffset uint32
	if err := binary.Read(io.NewSectionReader(r, peOffsetField, 4), binary.LittleEndian, &sigOffset); err == nil {
		sig := make([]byte, len(peSignature))
		if _, err := r.ReadAt(sig, int64(sigOffset)); err == nil && bytes.Equal(sig, []byte(peSignature)) {
			offset = int64(sigOffset) + int64(len(peSignature))
			img.PE = true
		}
	}

	var fh pe.FileHeader
	if err := binary.Read(io.NewSectionReader(r, offset, fileHeaderSize), binary.LittleEndian, &fh); err != nil {
		return nil, false, nil
	}
	if fh.Machine != pe.IMAGE_FILE_MACHINE_I386 {
		return nil, false, nil
	}

	if fh.Characteristics&pe.IMAGE_FILE_EXECUTABLE_IMAGE == 0 {
		return nil, true, notExecutable("COFF object file")
	}

	minOptional := uint16(coffOptionalSize)
	if img.PE {
		minOptional = peOptionalSize
	}
	if fh.SizeOfOptionalHeader < minOptional {
		return nil, true, checkpoint.Wrap(fmt.Errorf("optional header of %d bytes", fh.SizeOfOptionalHeader), errdefs.ErrCorruptData)
	}

	optOffset := offset + fileHeaderSize
	var oh coffOptionalHeader
	if err := binary.Read(io.NewSectionReader(r, optOffset, coffOptionalSize), binary.LittleEndian, &oh); err != nil {
		return nil, true, checkpoint.Wrap(err, errdefs.ErrCorruptData)
	}
	if oh.Magic != pe32Magic {
		return nil, true, checkpoint.Wrap(fmt.Errorf("optional header magic %#x", oh.Magic), errdefs.ErrCorruptData)
	}

	var imageBase uint32
	if img.PE {
		if err := binary.Read(io.NewSectionReader(r, optOffset+coffOptionalSize, 4), binary.LittleEndian, &imageBase); err != nil {
			return nil, true, checkpoint.Wrap(err, errdefs.ErrCorruptData)
		}
	}
	img.Entry = uint64(imageBase) + uint64(oh.AddressOfEntryPoint)

	headers := make([]pe.SectionHeader32, fh.NumberOfSections)
	sr := io.NewSectionReader(r, optOffset+int64(fh.SizeOfOptionalHeader), int64(len(headers))*sectionHeaderSize)
	if err := binary.Read(sr, binary.LittleEndian, headers); err != nil {
		return nil, true, checkpoint.Wrap(err, errdefs.ErrCorruptData)
	}

	for _, sh := range headers {
		sec := coffSection{
			Name:    string(bytes.TrimRight(sh.Name[:], "\x00")),
			Address: uint64(sh.VirtualAddress),
			Size:    uint64(sh.VirtualSize),
			RawSize: uint64(sh.SizeOfRawData),
			Offset:  int64(sh.PointerToRawData),
		}
		if img.PE {
			sec.Address += uint64(imageBase)
		} else {
			// Legacy COFF has no virtual size, uninitialized data has no raw data.
			sec.Size = sec.RawSize
			if sh.Characteristics&pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA != 0 {
				sec.RawSize = 0
			}
		}
		if sec.RawSize > sec.Size {
			sec.RawSize = sec.Size
		}
		img.Sections = append(img.Sections, sec)
	}

	return img, true, nil
}

// loadCOFF loads every section of a PE or COFF executable at its address.
func loadCOFF(s *session) Result {
	img, ok, err := parseCOFF(s.reader())
	if !ok {
		return notApplicable()
	}
	if err != nil {
		return failed(err)
	}

	heap := s.file.Device.Heap()
	for _, sec := range img.Sections {
		if sec.Size == 0 {
			continue
		}

		addr, err := s.mem.Allocate(sec.Address, sec.Size, 0)
		if err != nil {
			return failed(err)
		}
		log.Debugf("loader: section %s of %#x bytes at %#x", sec.Name, sec.Size, addr)

		src := io.NewSectionReader(s.reader(), sec.Offset, int64(sec.RawSize))
		if err := s.place(heap, addr, src, sec.RawSize, sec.Size); err != nil {
			s.mem.Free(addr, sec.Size)
			return failed(err)
		}
	}

	return s.transfer(img.Entry)
}
