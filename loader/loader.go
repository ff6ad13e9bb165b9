// Package loader loads boot images into physical memory and starts them.
//
// An image is a bootsector, a Multiboot kernel carrying its load addresses,
// an ELF32 or PE/COFF executable or a raw binary loaded to a fixed address.
// The format is detected by trying one probe after the other. A probe either
// does not recognize the file, fails on a file it recognized, or transfers
// control and never comes back.
package loader

import (
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/multiboot"
	"github.com/aligator/goldr/phys"
)

// These errors may occur while loading an image.
var (
	ErrUnsupportedRequirements = errors.New("image has requirements that are not supported")
	ErrWrongHardware           = errors.New("hardware does not meet the image requirements")
	ErrA20                     = errors.New("cannot enable the A20 gate")
	ErrNoTransfer              = errors.New("control was not transferred to the image")
	ErrNotExecutable           = errors.New("image cannot be executed on this machine")
)

// Type is the declared type of an image.
type Type int

const (
	// Auto tries Multiboot, ELF, PE/COFF and binary in this order.
	Auto Type = iota
	Bootsector
	Multiboot
	// Relocatable tries ELF and PE/COFF.
	Relocatable
	Binary
)

var typeNames = []string{"Auto", "Bootsector", "Multiboot", "Relocatable", "Binary"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType returns the type named s, ignoring case.
func ParseType(s string) (Type, bool) {
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return Type(i), true
		}
	}
	return Auto, false
}

// NoDrive is the Drive of images which boot from the drive they are stored on.
const NoDrive = 0xFFFFFFFF

// BootsectorAddress is where a bootsector is loaded and started.
const BootsectorAddress = 0x7C00

const pageSize = 0x1000

// Module is an additional file loaded along with an image.
type Module struct {
	// Command is the path of the module, optionally followed by a space and its arguments.
	Command string
}

// Image describes a bootable image.
type Image struct {
	Name string
	// Command is the path of the image, optionally followed by a space and the
	// command line arguments.
	Command string
	Type    Type
	// Address is the load address of Binary images.
	Address uint64
	// Drive is passed to bootsectors instead of the drive they were read from.
	Drive   uint32
	Modules []Module
}

// Path returns the path part of the command.
func (img *Image) Path() string {
	path, _ := splitCommand(img.Command)
	return path
}

// splitCommand splits a command into the path and the arguments after the
// first space.
func splitCommand(cmd string) (string, string) {
	sp := strings.IndexByte(cmd, ' ')
	if sp < 0 {
		return cmd, ""
	}
	return cmd[:sp], strings.TrimLeft(cmd[sp+1:], " ")
}

// Platform is the machine an image is started on.
type Platform interface {
	// MemoryInfo returns what the firmware reports about the installed memory.
	MemoryInfo() (multiboot.MemoryInfo, error)
	// ConfigTable returns the address of the firmware configuration table.
	ConfigTable() (uint32, bool)
	APM() (*multiboot.APMTable, error)
	// VBE switches to the video mode closest to the one the header requests
	// and returns the information of the active mode.
	VBE(mode multiboot.Header) (*multiboot.VBEInfo, error)
	EnableA20() error

	// BootSector starts the bootsector at addr with drive in DL.
	BootSector(drive uint8, addr uint64) error
	// Multiboot starts the image at entry with the Multiboot boot information.
	Multiboot(entry uint64, info *multiboot.Info) error
}

// Memory is the physical memory images are loaded into.
type Memory interface {
	io.WriterAt
}

// Loader loads images from the devices of a Manager.
type Loader struct {
	devices  *device.Manager
	mem      *phys.Allocator
	platform Platform
	memory   Memory
	info     *multiboot.Info
}

// New creates a loader. info is the boot information handed to the images,
// the loader adds to it.
func New(devices *device.Manager, mem *phys.Allocator, platform Platform, memory Memory, info *multiboot.Info) *Loader {
	return &Loader{
		devices:  devices,
		mem:      mem,
		platform: platform,
		memory:   memory,
		info:     info,
	}
}

// Info returns the boot information passed to images.
func (l *Loader) Info() *multiboot.Info {
	return l.info
}

// session is the state of loading one image.
type session struct {
	*Loader
	img  *Image
	file *device.Handle

	header       multiboot.Header
	headerOffset int
	hasHeader    bool
}

func (s *session) reader() io.ReaderAt {
	return fileReaderAt{s.file}
}

// Load loads img and transfers control to it.
//
// On real hardware Load only returns on failure. It returns nil if the
// Platform jumped to the image and returned without error.
func (l *Loader) Load(img *Image) error {
	path, _ := splitCommand(img.Command)
	h, err := l.devices.Open(path)
	if err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("open image %q", img.Name))
	}
	defer h.Close()

	s := &session{Loader: l, img: img, file: h}
	if h.IsDevice() || img.Type == Bootsector {
		return s.loadBootsector()
	}

	if err := s.readHeader(); err != nil {
		return err
	}

	l.info.BootDevice = uint32(h.Device.ID)
	l.info.CmdLine = img.Command
	l.info.BootLoaderName = multiboot.LoaderName
	l.info.Flags |= multiboot.InfoBootDevice | multiboot.InfoCmdLine | multiboot.InfoLoaderName

	if s.hasHeader {
		if flags := s.header.Unsupported(); flags != 0 {
			return checkpoint.Wrap(fmt.Errorf("flags %#x", flags), ErrUnsupportedRequirements)
		}

		s.systemInformation()
		if s.header.Wants(multiboot.WantGraphics) && !l.info.Has(multiboot.InfoGraphics) {
			return checkpoint.Wrap(fmt.Errorf("no graphics mode"), ErrWrongHardware)
		}
		if s.header.Wants(multiboot.WantSimpleMemory) && !l.info.Has(multiboot.InfoSimpleMemory) {
			return checkpoint.Wrap(fmt.Errorf("no memory information"), ErrWrongHardware)
		}
	}

	if err := l.platform.EnableA20(); err != nil {
		return checkpoint.Wrap(err, ErrA20)
	}

	for _, p := range probesFor(img.Type) {
		res := p.load(s)
		log.Debugf("loader: %s probe of %q: %s", p.name, path, res)
		switch res.Outcome {
		case Committed:
			return nil
		case Failed:
			return checkpoint.Wrap(res.Err, fmt.Errorf("load %s image %q", p.name, img.Name))
		}
	}

	return checkpoint.Wrap(fmt.Errorf("%q is no %s image", path, img.Type), errdefs.ErrUnknownFileType)
}

// readHeader looks for a Multiboot header in the leading bytes of the file.
func (s *session) readHeader() error {
	size := s.file.Size()
	if size > multiboot.SearchLimit {
		size = multiboot.SearchLimit
	}

	buf := make([]byte, size)
	if _, err := s.reader().ReadAt(buf, 0); err != nil && err != io.EOF {
		return checkpoint.Wrap(err, fmt.Errorf("read Multiboot header"))
	}

	s.header, s.headerOffset, s.hasHeader = multiboot.FindHeader(buf)
	if s.hasHeader {
		log.Debugf("loader: Multiboot header with flags %#x at %d", s.header.Flags, s.headerOffset)
	}
	return nil
}

// systemInformation adds the configuration table, APM and, if requested,
// graphics information to the boot information.
func (s *session) systemInformation() {
	info := s.info
	if addr, ok := s.platform.ConfigTable(); ok {
		info.ConfigTable = addr
		info.Flags |= multiboot.InfoConfig
	}

	if apm, err := s.platform.APM(); err == nil && apm != nil {
		info.APM = apm
		info.Flags |= multiboot.InfoAPM
	} else if err != nil {
		log.Debugf("loader: no APM: %v", err)
	}

	if s.header.Wants(multiboot.WantGraphics) {
		vbe, err := s.platform.VBE(s.header)
		if err != nil {
			log.Debugf("loader: no VBE: %v", err)
			return
		}
		info.VBE = vbe
		info.Flags |= multiboot.InfoGraphics
	}
}

// loadBootsector reads the first sector of the file or device to
// BootsectorAddress and starts it.
func (s *session) loadBootsector() error {
	drive := s.img.Drive
	if drive == NoDrive || s.file.IsDevice() {
		drive = uint32(s.file.Device.ID.Drive())
	}

	bps := s.file.Device.SectorSize()
	size := s.file.Size()
	if s.file.IsDevice() {
		size = int64(bps)
	}
	if size != int64(bps) {
		return checkpoint.Wrap(fmt.Errorf("bootsector of %d bytes, want %d", size, bps), errdefs.ErrCorruptData)
	}

	heap := s.file.Device.Heap()
	buf := heap.Alloc(bps)
	if buf == nil {
		return checkpoint.Wrap(fmt.Errorf("no scratch memory for a sector"), errdefs.ErrOutOfMemory)
	}
	defer heap.Free(buf)

	if _, err := io.ReadFull(s.file, buf); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("read bootsector"))
	}
	if buf[bps-2] != 0x55 || buf[bps-1] != 0xAA {
		return checkpoint.Wrap(fmt.Errorf("no boot signature"), errdefs.ErrCorruptData)
	}

	if _, err := s.memory.WriteAt(buf, BootsectorAddress); err != nil {
		return checkpoint.Wrap(err, errdefs.ErrIO)
	}

	log.Infof("loader: starting bootsector of %s with drive %#x", s.file.Device.ID, drive)
	if err := s.platform.BootSector(uint8(drive), BootsectorAddress); err != nil {
		return checkpoint.Wrap(err, ErrNoTransfer)
	}
	return nil
}

// transfer loads the modules and starts the image at entry.
func (s *session) transfer(entry uint64) Result {
	s.loadModules()

	log.Infof("loader: starting %q at %#x", s.img.Name, entry)
	if err := s.platform.Multiboot(entry, s.info); err != nil {
		return failed(checkpoint.Wrap(err, ErrNoTransfer))
	}
	return committed()
}
