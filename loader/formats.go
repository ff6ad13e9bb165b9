package loader

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/multiboot"
)

// loadMultiboot loads the image with the addresses of its Multiboot header.
// Images without header or without address fields are not applicable.
func loadMultiboot(s *session) Result {
	h := s.header
	if !s.hasHeader || !h.Wants(multiboot.HasAddress) {
		return notApplicable()
	}

	if h.LoadAddr > h.HeaderAddr || uint64(h.HeaderAddr-h.LoadAddr) > uint64(s.headerOffset) {
		return failed(checkpoint.Wrap(fmt.Errorf("header at %#x, load address %#x, file offset %d", h.HeaderAddr, h.LoadAddr, s.headerOffset), errdefs.ErrCorruptData))
	}

	// offset is the file position of LoadAddr.
	offset := uint64(s.headerOffset) - uint64(h.HeaderAddr-h.LoadAddr)
	available := uint64(s.file.Size()) - offset

	loadEnd := uint64(h.LoadEndAddr)
	switch {
	case loadEnd == 0:
		loadEnd = uint64(h.LoadAddr) + available
	case loadEnd < uint64(h.LoadAddr):
		return failed(checkpoint.Wrap(fmt.Errorf("load end %#x before load address %#x", loadEnd, h.LoadAddr), errdefs.ErrCorruptData))
	}

	bssEnd := uint64(h.BssEndAddr)
	switch {
	case bssEnd == 0:
		bssEnd = loadEnd
	case bssEnd < loadEnd:
		return failed(checkpoint.Wrap(fmt.Errorf("bss end %#x before load end %#x", bssEnd, loadEnd), errdefs.ErrCorruptData))
	}

	n := loadEnd - uint64(h.LoadAddr)
	if n > available {
		n = available
	}
	total := bssEnd - uint64(h.LoadAddr)

	addr, err := s.mem.Allocate(uint64(h.LoadAddr), total, 0)
	if err != nil {
		return failed(err)
	}
	log.Debugf("loader: loading %d bytes from offset %d to %#x, %d bytes in total", n, offset, addr, total)

	src := io.NewSectionReader(s.reader(), int64(offset), int64(n))
	if err := s.place(s.file.Device.Heap(), addr, src, n, total); err != nil {
		s.mem.Free(addr, total)
		return failed(err)
	}

	return s.transfer(uint64(h.EntryAddr))
}

// loadBinary loads the whole file to the address of the image and starts it
// there. Images without address are not applicable.
func loadBinary(s *session) Result {
	if s.img.Address == 0 {
		return notApplicable()
	}

	size := uint64(s.file.Size())
	addr, err := s.mem.Allocate(s.img.Address, size, 0)
	if err != nil {
		return failed(err)
	}

	src := io.NewSectionReader(s.reader(), 0, int64(size))
	if err := s.place(s.file.Device.Heap(), addr, src, size, size); err != nil {
		s.mem.Free(addr, size)
		return failed(err)
	}

	return s.transfer(addr)
}
