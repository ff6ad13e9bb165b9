// Package emu emulates the machine an image is booted on: the firmware disk
// services on top of image files, what the firmware reports about the
// hardware and the physical memory images are loaded into.
//
// Starting an image does not execute it. The Machine records a Handoff
// with everything the image would have been started with instead.
package emu

import (
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/multiboot"
)

var (
	ErrNoAPM     = errors.New("no APM BIOS")
	ErrNoVBE     = errors.New("no matching VBE mode")
	ErrA20Locked = errors.New("A20 gate cannot be enabled")
)

// apmTable is what the emulated APM 1.2 BIOS reports.
var apmTable = multiboot.APMTable{
	Version:   0x0102,
	CSeg:      0xF000,
	Offset:    0x9A40,
	CSeg16:    0xF000,
	DSeg:      0x0040,
	Flags:     0x0003,
	CSegLen:   0xFFFF,
	CSeg16Len: 0xFFFF,
	DSegLen:   0x0100,
}

// HandoffKind tells how control was transferred.
type HandoffKind int

const (
	BootsectorHandoff HandoffKind = iota + 1
	MultibootHandoff
)

func (k HandoffKind) String() string {
	switch k {
	case BootsectorHandoff:
		return "bootsector"
	case MultibootHandoff:
		return "multiboot"
	}
	return fmt.Sprintf("HandoffKind(%d)", int(k))
}

// Handoff is a recorded transfer of control to an image.
type Handoff struct {
	Kind  HandoffKind
	Entry uint64
	// Drive is passed to bootsectors.
	Drive uint8
	// Info is a copy of the boot information passed to Multiboot images.
	Info *multiboot.Info
	// A20 is the state of the A20 gate at the time of the jump.
	A20 bool
}

// Machine is an emulated PC.
type Machine struct {
	*disk.Images

	spec   Spec
	memory afero.File
	a20    bool
	mode   *multiboot.VBEMode

	handoffs []Handoff
}

// New creates a machine from spec, reading the drive images from fs.
func New(fs afero.Fs, spec Spec) (*Machine, error) {
	images := disk.NewImages()
	for _, d := range spec.Drives {
		if err := images.AttachFile(fs, d.Number, d.Image, d.SectorSize); err != nil {
			images.Close()
			return nil, checkpoint.Wrap(err, fmt.Errorf("drive %#x", d.Number))
		}
	}

	memory, err := afero.NewMemMapFs().Create("/memory")
	if err != nil {
		images.Close()
		return nil, checkpoint.From(err)
	}

	return &Machine{
		Images: images,
		spec:   spec,
		memory: memory,
	}, nil
}

// Close detaches all drives.
func (m *Machine) Close() error {
	m.memory.Close()
	return m.Images.Close()
}

// BootDevice returns the device the machine booted from.
func (m *Machine) BootDevice() (device.ID, error) {
	if m.spec.Boot == "" {
		drives := m.Drives()
		if len(drives) == 0 {
			return 0, checkpoint.From(fmt.Errorf("no drives"))
		}
		return device.MakeID(drives[0], device.NoPartition), nil
	}

	id, rest, err := device.ParsePath(m.spec.Boot, 0)
	if err != nil {
		return 0, checkpoint.Wrap(err, fmt.Errorf("boot device %q", m.spec.Boot))
	}
	if rest != "" {
		return 0, checkpoint.From(fmt.Errorf("boot device %q contains a path", m.spec.Boot))
	}
	return id, nil
}

// Handoffs returns all recorded transfers of control.
func (m *Machine) Handoffs() []Handoff {
	return append([]Handoff(nil), m.handoffs...)
}

// LastHandoff returns the last transfer of control.
func (m *Machine) LastHandoff() (Handoff, bool) {
	if len(m.handoffs) == 0 {
		return Handoff{}, false
	}
	return m.handoffs[len(m.handoffs)-1], true
}

// Mode returns the video mode set by VBE.
func (m *Machine) Mode() (multiboot.VBEMode, bool) {
	if m.mode == nil {
		return multiboot.VBEMode{}, false
	}
	return *m.mode, true
}

// WriteAt writes to physical memory.
func (m *Machine) WriteAt(p []byte, addr int64) (int, error) {
	return m.memory.WriteAt(p, addr)
}

// ReadAt reads physical memory. Memory never written reads as zero.
func (m *Machine) ReadAt(p []byte, addr int64) (int, error) {
	for i := range p {
		p[i] = 0
	}
	n, err := m.memory.ReadAt(p, addr)
	if n < len(p) {
		// Past the highest address written.
		return len(p), nil
	}
	return n, err
}

func (m *Machine) MemoryInfo() (multiboot.MemoryInfo, error) {
	return m.spec.Memory.MemoryInfo(), nil
}

func (m *Machine) ConfigTable() (uint32, bool) {
	return m.spec.ConfigTable, m.spec.ConfigTable != 0
}

func (m *Machine) APM() (*multiboot.APMTable, error) {
	if !m.spec.APM {
		return nil, ErrNoAPM
	}
	apm := apmTable
	return &apm, nil
}

// VBE sets the offered mode closest to the one h requests.
func (m *Machine) VBE(h multiboot.Header) (*multiboot.VBEInfo, error) {
	modes := make([]multiboot.VBEMode, 0, len(m.spec.VBE))
	for _, s := range m.spec.VBE {
		modes = append(modes, s.mode())
	}

	mode, ok := multiboot.BestMode(modes, h)
	if !ok {
		return nil, checkpoint.Wrap(fmt.Errorf("%dx%dx%d of type %d", h.Width, h.Height, h.Depth, h.ModeType), ErrNoVBE)
	}
	m.mode = &mode
	log.Debugf("emu: VBE mode %#x: %dx%dx%d", mode.Number, mode.Width, mode.Height, mode.BitsPerPixel)

	info := &multiboot.VBEInfo{Mode: mode.Number}
	if mode.Attributes&multiboot.VBEModeLinear != 0 {
		info.Mode |= multiboot.VBELinearFrameBuffer
	}
	copy(info.ControlInfo[:], "VESA")
	binary.LittleEndian.PutUint16(info.ControlInfo[4:], 0x0200)

	// Mode information block: attributes, resolution and depth.
	binary.LittleEndian.PutUint16(info.ModeInfo[0x00:], mode.Attributes)
	binary.LittleEndian.PutUint16(info.ModeInfo[0x12:], mode.Width)
	binary.LittleEndian.PutUint16(info.ModeInfo[0x14:], mode.Height)
	info.ModeInfo[0x19] = mode.BitsPerPixel
	return info, nil
}

func (m *Machine) EnableA20() error {
	if m.spec.A20 != nil && !*m.spec.A20 {
		return ErrA20Locked
	}
	m.a20 = true
	return nil
}

// BootSector records the start of a bootsector.
func (m *Machine) BootSector(drive uint8, addr uint64) error {
	log.Infof("emu: jump to bootsector at %#x with drive %#x", addr, drive)
	m.handoffs = append(m.handoffs, Handoff{
		Kind:  BootsectorHandoff,
		Entry: addr,
		Drive: drive,
		A20:   m.a20,
	})
	return nil
}

// Multiboot records the start of a Multiboot image.
func (m *Machine) Multiboot(entry uint64, info *multiboot.Info) error {
	log.Infof("emu: jump to %#x with EAX=%#x", entry, multiboot.BootloaderMagic)
	cp := *info
	cp.Modules = append([]multiboot.Module(nil), info.Modules...)
	cp.MemoryMap = append([]multiboot.MemoryMapEntry(nil), info.MemoryMap...)
	m.handoffs = append(m.handoffs, Handoff{
		Kind:  MultibootHandoff,
		Entry: entry,
		Info:  &cp,
		A20:   m.a20,
	})
	return nil
}
