package emu

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/multiboot"
)

// Spec describes an emulated machine.
//
//  boot: hd0,0
//  drives:
//    - number: 0x80
//      image: disk.img
//  memory:
//    lower: 639
//    upper: 65536
//    map:
//      - {base: 0x100000, length: 0x4000000, type: 1}
//  apm: true
//  vbe:
//    - {number: 0x115, width: 800, height: 600, depth: 24}
type Spec struct {
	// Boot is the device path '/' resolves to. It defaults to the whole
	// first attached drive.
	Boot   string      `yaml:"boot"`
	Drives []DriveSpec `yaml:"drives"`
	Memory MemorySpec  `yaml:"memory"`

	// ConfigTable is the address of the firmware configuration table, 0 for none.
	ConfigTable uint32        `yaml:"config_table"`
	APM         bool          `yaml:"apm"`
	VBE         []VBEModeSpec `yaml:"vbe"`
	// A20 tells whether the A20 gate can be enabled, the default is yes.
	A20 *bool `yaml:"a20"`
}

// DriveSpec attaches a disk image or block device as firmware drive.
type DriveSpec struct {
	Number uint8 `yaml:"number"`
	// Image is relative to the directory of the machine description.
	Image      string `yaml:"image"`
	SectorSize uint16 `yaml:"sector_size"`
}

// MemorySpec is the memory the firmware reports.
type MemorySpec struct {
	// Lower and Upper are in KiB. The simple memory information is reported
	// if either is set.
	Lower uint32       `yaml:"lower"`
	Upper uint32       `yaml:"upper"`
	Map   []RegionSpec `yaml:"map"`
}

// RegionSpec is a memory map entry. Type 1 is usable memory.
type RegionSpec struct {
	Base   uint64 `yaml:"base"`
	Length uint64 `yaml:"length"`
	Type   uint32 `yaml:"type"`
}

// VBEModeSpec is a video mode the emulated graphics card offers.
type VBEModeSpec struct {
	Number uint16 `yaml:"number"`
	Width  uint16 `yaml:"width"`
	Height uint16 `yaml:"height"`
	Depth  uint8  `yaml:"depth"`
	Text   bool   `yaml:"text"`
}

// mode returns the mode as reported by the VBE BIOS.
func (m VBEModeSpec) mode() multiboot.VBEMode {
	attrs := multiboot.VBEModeSupported
	if !m.Text {
		attrs |= multiboot.VBEModeGraphics | multiboot.VBEModeLinear
	}
	return multiboot.VBEMode{
		Number:       m.Number,
		Attributes:   attrs,
		Width:        m.Width,
		Height:       m.Height,
		BitsPerPixel: m.Depth,
	}
}

// MemoryInfo returns the memory information the firmware reports.
func (s MemorySpec) MemoryInfo() multiboot.MemoryInfo {
	info := multiboot.MemoryInfo{
		HasSimple: s.Lower != 0 || s.Upper != 0,
		Lower:     s.Lower,
		Upper:     s.Upper,
	}
	for _, r := range s.Map {
		info.Map = append(info.Map, multiboot.MemoryMapEntry{Base: r.Base, Length: r.Length, Type: r.Type})
	}
	return info
}

// ParseSpec parses a YAML machine description.
func ParseSpec(data []byte) (Spec, error) {
	var spec Spec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return Spec{}, checkpoint.Wrap(err, errdefs.ErrCorruptData)
	}
	if len(spec.Drives) == 0 {
		return Spec{}, checkpoint.Wrap(fmt.Errorf("machine has no drives"), errdefs.ErrCorruptData)
	}
	return spec, nil
}

// LoadSpec reads the machine description at path. Relative image paths
// are resolved against the directory of path.
func LoadSpec(fs afero.Fs, path string) (Spec, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Spec{}, checkpoint.From(err)
	}

	spec, err := ParseSpec(data)
	if err != nil {
		return Spec{}, checkpoint.Wrap(err, fmt.Errorf("machine %q", path))
	}

	dir := filepath.Dir(path)
	for i, d := range spec.Drives {
		if d.Image != "" && !filepath.IsAbs(d.Image) {
			spec.Drives[i].Image = filepath.Join(dir, d.Image)
		}
	}
	return spec, nil
}
