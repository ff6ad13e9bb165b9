// Package fat is a read-only FAT12/16/32 driver on top of device.Device.
package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/errdefs"
)

// DriverName is the name the driver registers with.
const DriverName = "fat"

// Type is the width of the FAT entries.
type Type uint8

const (
	FAT12 Type = 12
	FAT16 Type = 16
	FAT32 Type = 32
)

func (t Type) String() string {
	return fmt.Sprintf("FAT%d", uint8(t))
}

// supportedVersion is the only FAT32 version (major 0, minor 0) understood.
const supportedVersion = 0x0000

// Cluster count limits of FAT12 and FAT16 and the first end-of-chain value of every width.
const (
	maxFAT12Clusters = 4085
	maxFAT16Clusters = 65525

	endFAT12 = 0x00000FF7
	endFAT16 = 0x0000FFF7
	endFAT32 = 0x0FFFFFF7

	fat32Mask = 0x0FFFFFFF
)

// ErrNotFAT is returned by Mount for devices without a FAT filesystem.
var ErrNotFAT = fmt.Errorf("no FAT filesystem: %w", errdefs.ErrUnsupportedFilesystem)

// Info contains all information about the whole filesystem, in sectors relative to the device.
type Info struct {
	Type              Type
	SectorsPerCluster uint32
	BytesPerSector    uint32
	BytesPerCluster   uint32
	TotalSectors      uint32
	DataSectors       uint32
	Clusters          uint32
	FATStart          uint32
	RootDirStart      uint32
	RootEntries       uint32
	RootCluster       uint32
	DataStart         uint32
	// EndCluster is the lowest cluster value ending a chain.
	EndCluster uint32
}

// Fs is a FAT filesystem mounted on a device. It is immutable after Mount.
type Fs struct {
	dev   *device.Device
	bpb   BPB
	info  Info
	label string
}

// Driver mounts FAT filesystems for a device.Manager.
type Driver struct{}

func (Driver) Name() string {
	return DriverName
}

func (Driver) Mount(dev *device.Device) (device.Filesystem, error) {
	return Mount(dev)
}

func reject(format string, args ...interface{}) error {
	return checkpoint.Wrap(fmt.Errorf(format, args...), ErrNotFAT)
}

// Mount validates the boot sector of dev and returns the filesystem on it.
func Mount(dev *device.Device) (*Fs, error) {
	sector := make([]byte, dev.SectorSize())
	if _, err := dev.ReadSectors(0, sector); err != nil {
		return nil, checkpoint.Wrap(err, ErrNotFAT)
	}

	fs := &Fs{dev: dev}
	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &fs.bpb); err != nil {
		return nil, checkpoint.Wrap(err, ErrNotFAT)
	}
	bpb := &fs.bpb

	switch bpb.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, reject("invalid sector size %d", bpb.BytesPerSector)
	}
	if int(bpb.BytesPerSector) != dev.SectorSize() {
		return nil, reject("sector size %d does not match the drive sector size %d", bpb.BytesPerSector, dev.SectorSize())
	}

	// Sectors per cluster has to be a power of two up to 128, the whole cluster not more than 32K.
	spc := bpb.SectorsPerCluster
	if spc == 0 || spc&(spc-1) != 0 {
		return nil, reject("invalid sectors per cluster %d", spc)
	}
	if uint32(spc)*uint32(bpb.BytesPerSector) > 32*1024 {
		return nil, reject("cluster size %d exceeds 32K", uint32(spc)*uint32(bpb.BytesPerSector))
	}
	if bpb.ReservedSectorCount == 0 {
		return nil, reject("invalid reserved sector count")
	}

	// More than one reserved sector or no root entries means FAT32.
	fat32 := bpb.ReservedSectorCount > 1 || bpb.RootEntryCount == 0
	if fat32 && bpb.RootEntryCount != 0 {
		return nil, reject("FAT32 with %d root entries", bpb.RootEntryCount)
	}

	var ext32 FAT32SpecificData
	var ext16 FAT16SpecificData
	if err := binary.Read(bytes.NewReader(bpb.FATSpecificData[:]), binary.LittleEndian, &ext32); err != nil {
		return nil, checkpoint.Wrap(err, ErrNotFAT)
	}
	if err := binary.Read(bytes.NewReader(bpb.FATSpecificData[:]), binary.LittleEndian, &ext16); err != nil {
		return nil, checkpoint.Wrap(err, ErrNotFAT)
	}

	switch {
	case bpb.TotalSectors16 == 0 && bpb.TotalSectors32 == 0:
		return nil, reject("no total sector count")
	case fat32 && bpb.TotalSectors16 != 0:
		return nil, reject("FAT32 with a 16 bit total sector count")
	case bpb.Media < 0xF8 && bpb.Media != 0xF0:
		return nil, reject("invalid media value %#x", bpb.Media)
	case (bpb.FATSize16 == 0) != fat32:
		return nil, reject("16 bit FAT size %d does not match the FAT width", bpb.FATSize16)
	case fat32 && ext32.FATSize == 0:
		return nil, reject("FAT32 without FAT size")
	case fat32 && ext32.FSVersion != supportedVersion:
		return nil, reject("unsupported FAT32 version %#04x", ext32.FSVersion)
	}

	info := Info{
		SectorsPerCluster: uint32(spc),
		BytesPerSector:    uint32(bpb.BytesPerSector),
		BytesPerCluster:   uint32(spc) * uint32(bpb.BytesPerSector),
		RootEntries:       uint32(bpb.RootEntryCount),
		TotalSectors:      uint32(bpb.TotalSectors16),
	}
	if info.TotalSectors == 0 {
		info.TotalSectors = bpb.TotalSectors32
	}
	fatSize := uint32(bpb.FATSize16)
	if fatSize == 0 {
		fatSize = ext32.FATSize
	}

	rootDirSectors := (info.RootEntries*entrySize + info.BytesPerSector - 1) / info.BytesPerSector
	meta := uint64(bpb.ReservedSectorCount) + uint64(bpb.NumFATs)*uint64(fatSize) + uint64(rootDirSectors)
	if meta >= uint64(info.TotalSectors) {
		return nil, reject("%d metadata sectors leave no data sectors of %d", meta, info.TotalSectors)
	}
	if uint64(info.TotalSectors) > dev.Sectors {
		return nil, reject("%d sectors do not fit on %s", info.TotalSectors, dev)
	}

	info.DataSectors = info.TotalSectors - uint32(meta)
	info.Clusters = info.DataSectors / info.SectorsPerCluster
	info.FATStart = uint32(bpb.ReservedSectorCount)
	info.RootDirStart = info.FATStart + uint32(bpb.NumFATs)*fatSize
	info.DataStart = info.RootDirStart + rootDirSectors

	switch {
	case info.Clusters < maxFAT12Clusters:
		info.Type, info.EndCluster = FAT12, endFAT12
	case info.Clusters < maxFAT16Clusters:
		info.Type, info.EndCluster = FAT16, endFAT16
	default:
		if !fat32 {
			return nil, reject("%d clusters need FAT32 but the boot sector is no FAT32 one", info.Clusters)
		}
		info.Type, info.EndCluster = FAT32, endFAT32
	}

	label := ext16.BSVolumeLabel
	if fat32 {
		label = ext32.BSVolumeLabel
		info.RootCluster = ext32.RootCluster & fat32Mask
	}
	fs.label = strings.TrimRight(string(label[:]), " ")
	fs.info = info

	log.Debugf("fat: mounted %s on %s: %d clusters of %d bytes, data at sector %d", info.Type, dev.ID, info.Clusters, info.BytesPerCluster, info.DataStart)
	return fs, nil
}

// Info returns the layout of the filesystem.
func (fs *Fs) Info() Info {
	return fs.info
}

func (fs *Fs) FSType() Type {
	return fs.info.Type
}

// Label returns the volume label of the boot sector.
func (fs *Fs) Label() string {
	return fs.label
}

func (fs *Fs) Device() *device.Device {
	return fs.dev
}

// Release implements device.Filesystem. Nothing is held besides the boot sector.
func (fs *Fs) Release() {}

// validCluster reports whether c addresses a data cluster.
func (fs *Fs) validCluster(c uint32) bool {
	return c >= 2 && c < fs.info.EndCluster
}

// clusterSector returns the device sector the data cluster c starts at.
func (fs *Fs) clusterSector(c uint32) uint64 {
	return uint64(fs.info.DataStart) + uint64(c-2)*uint64(fs.info.SectorsPerCluster)
}

// readSector reads one device sector into a scratch buffer which the caller has to free.
func (fs *Fs) readSector(sector uint64) ([]byte, error) {
	heap := fs.dev.Heap()
	buf := heap.Alloc(int(fs.info.BytesPerSector))
	if buf == nil {
		return nil, checkpoint.Wrap(fmt.Errorf("no scratch memory for a sector"), errdefs.ErrOutOfMemory)
	}
	if _, err := fs.dev.ReadSectors(sector, buf); err != nil {
		heap.Free(buf)
		return nil, err
	}
	return buf, nil
}

// nextCluster returns the FAT entry of cluster c.
func (fs *Fs) nextCluster(c uint32) (uint32, error) {
	var offset uint64
	switch fs.info.Type {
	case FAT12:
		offset = uint64(c) + uint64(c)/2
	case FAT16:
		offset = uint64(c) * 2
	default:
		offset = uint64(c) * 4
	}

	bps := uint64(fs.info.BytesPerSector)
	sector := uint64(fs.info.FATStart) + offset/bps
	offset %= bps

	buf, err := fs.readSector(sector)
	if err != nil {
		return 0, err
	}
	defer fs.dev.Heap().Free(buf)

	switch fs.info.Type {
	case FAT12:
		var v uint32
		if offset == bps-1 {
			// The entry spans two sectors.
			v = uint32(buf[offset])
			next, err := fs.readSector(sector + 1)
			if err != nil {
				return 0, err
			}
			v |= uint32(next[0]) << 8
			fs.dev.Heap().Free(next)
		} else {
			v = uint32(binary.LittleEndian.Uint16(buf[offset:]))
		}
		if c&1 == 1 {
			return v >> 4, nil
		}
		return v & 0xFFF, nil
	case FAT16:
		return uint32(binary.LittleEndian.Uint16(buf[offset:])), nil
	default:
		return binary.LittleEndian.Uint32(buf[offset:]) & fat32Mask, nil
	}
}

// Open implements device.Filesystem. Only regular files can be opened.
func (fs *Fs) Open(path string) (device.File, error) {
	f, err := fs.OpenFile(path)
	if err != nil {
		return nil, err
	}
	if f.entry.kind() != 0 {
		return nil, checkpoint.Wrap(fmt.Errorf("%q is no regular file", path), errdefs.ErrNotFound)
	}
	return f, nil
}

// OpenFile opens the file or directory at path, which has to start with a '/'.
func (fs *Fs) OpenFile(path string) (*File, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, checkpoint.Wrap(fmt.Errorf("%q is not absolute", path), errdefs.ErrNotFound)
	}

	if strings.Trim(path, "/") == "" {
		return fs.rootFile(path), nil
	}

	trailing := strings.HasSuffix(path, "/")
	components := strings.Split(strings.TrimSuffix(path[1:], "/"), "/")

	cluster := fs.rootDirCluster()
	var entry ExtendedEntryHeader
	for i, name := range components {
		var err error
		entry, err = fs.find(cluster, name)
		if err != nil {
			return nil, checkpoint.Wrap(err, fmt.Errorf("open %q", path))
		}
		if i < len(components)-1 && !entry.IsDir() {
			return nil, checkpoint.Wrap(fmt.Errorf("%q in %q is no directory", name, path), errdefs.ErrNotFound)
		}
		cluster = fs.firstCluster(entry.EntryHeader)
	}

	if entry.Attribute&AttrVolumeID != 0 || (trailing && !entry.IsDir()) {
		return nil, checkpoint.Wrap(fmt.Errorf("%q is no file or directory", path), errdefs.ErrNotFound)
	}
	return fs.newFile(path, entry), nil
}

// firstCluster returns the first cluster of an entry. The high half only exists on FAT32.
func (fs *Fs) firstCluster(h EntryHeader) uint32 {
	c := uint32(h.FirstClusterLO)
	if fs.info.Type == FAT32 {
		c |= uint32(h.FirstClusterHI) << 16
		c &= fat32Mask
	}
	return c
}

// rootDirCluster is the cluster directory scans of the root start at.
// It is 0 for the fixed root directory region of FAT12 and FAT16.
func (fs *Fs) rootDirCluster() uint32 {
	if fs.info.Type == FAT32 {
		return fs.info.RootCluster
	}
	return 0
}
