package loader

import (
	"fmt"
	"io"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/multiboot"
)

// loadModules loads the modules of the image into free memory and lists them
// in the boot information. Modules which cannot be loaded are dropped.
func (s *session) loadModules() {
	pageAlign := s.hasHeader && s.header.Wants(multiboot.WantPageAlign)

	kept := make([]Module, 0, len(s.img.Modules))
	loaded := make([]multiboot.Module, 0, len(s.img.Modules))
	for _, m := range s.img.Modules {
		mod, err := s.loadModule(m, pageAlign)
		if err != nil {
			log.Warnf("loader: dropping module %q: %v", m.Command, err)
			continue
		}
		log.Debugf("loader: module %q at [%#x-%#x)", m.Command, mod.Start, mod.End)
		kept = append(kept, m)
		loaded = append(loaded, mod)
	}

	s.img.Modules = kept
	s.info.Modules = loaded
	s.info.Flags |= multiboot.InfoModules
}

func (s *session) loadModule(m Module, pageAlign bool) (multiboot.Module, error) {
	path, args := splitCommand(m.Command)
	h, err := s.devices.Open(path)
	if err != nil {
		return multiboot.Module{}, err
	}
	defer h.Close()

	size := uint64(h.Size())
	if size > math.MaxUint32 {
		return multiboot.Module{}, checkpoint.Wrap(fmt.Errorf("module of %d bytes", size), errdefs.ErrValueOutOfRange)
	}

	align := uint64(0)
	if pageAlign {
		align = pageSize
	}
	addr, err := s.mem.Allocate(0, size, align)
	if err != nil {
		return multiboot.Module{}, err
	}

	src := io.NewSectionReader(fileReaderAt{h}, 0, int64(size))
	if err := s.place(h.Device.Heap(), addr, src, size, size); err != nil {
		s.mem.Free(addr, size)
		return multiboot.Module{}, err
	}

	return multiboot.Module{
		Start:  uint32(addr),
		End:    uint32(addr + size),
		String: args,
	}, nil
}
