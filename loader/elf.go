package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
)

// notExecutable reports an image of a known format this machine cannot run.
func notExecutable(format string, args ...interface{}) error {
	return checkpoint.Wrap(checkpoint.Wrap(fmt.Errorf(format, args...), ErrNotExecutable), errdefs.ErrUnknownFileType)
}

// parseELF parses r as 32 bit x86 ELF executable.
// The bool is false if r is no ELF file at all.
func parseELF(r io.ReaderAt) (*elf.File, bool, error) {
	var ident [len(elf.ELFMAG)]byte
	if _, err := r.ReadAt(ident[:], 0); err != nil || !bytes.Equal(ident[:], []byte(elf.ELFMAG)) {
		return nil, false, nil
	}

	f, err := elf.NewFile(r)
	if err != nil {
		return nil, true, checkpoint.Wrap(err, errdefs.ErrCorruptData)
	}

	if f.Class != elf.ELFCLASS32 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_386 || f.Type != elf.ET_EXEC {
		return nil, true, notExecutable("%s %s %s for %s", f.Class, f.Data, f.Type, f.Machine)
	}

	loadable := false
	for i, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Align != pageSize || p.Off%pageSize != p.Vaddr%pageSize || p.Filesz > p.Memsz {
			return nil, true, checkpoint.Wrap(fmt.Errorf("segment %d: offset %#x, address %#x, alignment %#x, size %#x in file, %#x in memory",
				i, p.Off, p.Vaddr, p.Align, p.Filesz, p.Memsz), errdefs.ErrCorruptData)
		}
		loadable = true
	}
	if !loadable {
		return nil, true, checkpoint.Wrap(fmt.Errorf("no loadable segment"), errdefs.ErrCorruptData)
	}

	return f, true, nil
}

// loadELF loads every loadable segment of an ELF executable at its virtual
// address.
func loadELF(s *session) Result {
	f, ok, err := parseELF(s.reader())
	if !ok {
		return notApplicable()
	}
	if err != nil {
		return failed(err)
	}

	heap := s.file.Device.Heap()
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}

		addr, err := s.mem.Allocate(p.Vaddr, p.Memsz, 0)
		if err != nil {
			return failed(err)
		}
		log.Debugf("loader: ELF segment of %#x bytes at %#x", p.Memsz, addr)

		if err := s.place(heap, addr, p.Open(), p.Filesz, p.Memsz); err != nil {
			s.mem.Free(addr, p.Memsz)
			return failed(err)
		}
	}

	return s.transfer(f.Entry)
}
