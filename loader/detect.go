package loader

import (
	"io"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/multiboot"
)

// Format is an executable format.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPE
	FormatCOFF
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "ELF"
	case FormatPE:
		return "PE"
	case FormatCOFF:
		return "COFF"
	}
	return "unknown"
}

// Detection is what Detect found out about a file.
type Detection struct {
	// Header is the Multiboot header, nil if the file has none.
	Header       *multiboot.Header
	HeaderOffset int

	Format Format
	// Entry is the entry point of an ELF, PE or COFF executable.
	Entry uint64
	// Err is set if the file is in Format but cannot be loaded.
	Err error
}

// Detect inspects f like Load does without loading anything.
// It returns an error only if f cannot be read.
func Detect(f device.File) (Detection, error) {
	var d Detection
	r := fileReaderAt{f}

	size := f.Size()
	if size > multiboot.SearchLimit {
		size = multiboot.SearchLimit
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return d, checkpoint.From(err)
	}
	if h, offset, ok := multiboot.FindHeader(buf); ok {
		d.Header, d.HeaderOffset = &h, offset
	}

	if ef, ok, err := parseELF(r); ok {
		d.Format, d.Err = FormatELF, err
		if err == nil {
			d.Entry = ef.Entry
		}
		return d, nil
	}

	if img, ok, err := parseCOFF(r); ok {
		d.Format, d.Err = FormatCOFF, err
		if err == nil {
			d.Entry = img.Entry
			if img.PE {
				d.Format = FormatPE
			}
		}
	}
	return d, nil
}
