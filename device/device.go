// Package device turns device paths like "hd0,1/boot/kernel" into opened
// files: it resolves drives and partitions, binds filesystem drivers to the
// resulting devices and serves their sector reads through a cache.
package device

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/cache"
	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/scratch"
)

// MaxReadTries is how often a drive read is attempted before it fails.
const MaxReadTries = 8

// NoPartition marks an unused partition byte of an ID.
const NoPartition = 0xFF

// ID identifies a device in the Multiboot boot device format: the BIOS drive
// number in the top byte followed by three partition levels.
type ID uint32

// MakeID returns the ID of partition part on drive.
// Pass NoPartition to address the whole drive.
func MakeID(drive uint8, part uint8) ID {
	return ID(drive)<<24 | ID(part)<<16 | 0xFFFF
}

func (id ID) Drive() uint8     { return uint8(id >> 24) }
func (id ID) Partition() uint8 { return uint8(id >> 16) }
func (id ID) SubPartitions() (uint8, uint8) {
	return uint8(id >> 8), uint8(id)
}

// String formats the ID in path syntax.
func (id ID) String() string {
	drive := id.Drive()
	if drive&disk.HardDisk == 0 {
		return fmt.Sprintf("fd%d", drive)
	}
	if id.Partition() == NoPartition {
		return fmt.Sprintf("hd%d", drive&^disk.HardDisk)
	}
	return fmt.Sprintf("hd%d,%d", drive&^disk.HardDisk, id.Partition())
}

// File is an opened file or whole device.
type File interface {
	io.Reader
	io.Seeker
	// Tell returns the current position.
	Tell() int64
	// Size returns the size in bytes.
	Size() int64
	Close() error
}

// Filesystem is a filesystem instance mounted on a device.
type Filesystem interface {
	// Open opens the file at path, which starts with a '/'.
	Open(path string) (File, error)
	// Release drops all state of the instance.
	Release()
}

// Driver probes devices for a filesystem it understands.
type Driver interface {
	Name() string
	// Mount returns an error if the device does not hold a filesystem of this driver.
	Mount(dev *Device) (Filesystem, error)
}

// Device is an addressable extent of a drive: a whole drive or one partition.
type Device struct {
	ID          ID
	StartSector uint64
	Sectors     uint64
	// Mounted is set for devices opened to access files on them rather than the raw sectors.
	Mounted bool
	Params  disk.Parameters

	drive  disk.Drive
	heap   scratch.Heap
	cache  *cache.Cache
	fs     Filesystem
	fsName string
}

// SectorSize returns the number of bytes per sector.
func (d *Device) SectorSize() int {
	return int(d.Params.BytesPerSector)
}

// Size returns the size of the device in bytes.
func (d *Device) Size() int64 {
	return int64(d.Sectors) * int64(d.Params.BytesPerSector)
}

// Heap returns the scratch heap transient buffers are taken from.
func (d *Device) Heap() scratch.Heap {
	return d.heap
}

// Filesystem returns the bound filesystem instance.
func (d *Device) Filesystem() Filesystem {
	return d.fs
}

// FilesystemName returns the name of the driver bound to the device.
func (d *Device) FilesystemName() string {
	return d.fsName
}

// Cache returns the sector cache of the device.
func (d *Device) Cache() *cache.Cache {
	return d.cache
}

func (d *Device) String() string {
	return fmt.Sprintf("%s [%d+%d]", d.ID, d.StartSector, d.Sectors)
}

// ReadSectors reads len(buf)/SectorSize() sectors starting at the device
// relative sector and returns the number of sectors read.
//
// Cached sectors are copied from the cache. Runs of uncached sectors are read
// from the drive in one request, using a scratch buffer that is halved until
// the heap can serve it. Every sector read from the drive is cached.
func (d *Device) ReadSectors(sector uint64, buf []byte) (int, error) {
	bps := d.SectorSize()
	if bps == 0 || len(buf)%bps != 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("%d bytes are no multiple of the sector size %d", len(buf), bps), errdefs.ErrIO)
	}

	count := uint64(len(buf) / bps)
	if sector+count < sector || sector+count > d.Sectors {
		return 0, checkpoint.Wrap(fmt.Errorf("sectors %d-%d are outside of %s", sector, sector+count, d), errdefs.ErrIO)
	}

	done := uint64(0)
	for done < count {
		cur := sector + done
		if data, ok := d.cache.Lookup(cur); ok {
			copy(buf[done*uint64(bps):], data)
			done++
			continue
		}

		// Lookup stamps the cached sector ending the run.
		run := uint64(1)
		for done+run < count {
			if _, ok := d.cache.Lookup(cur + run); ok {
				break
			}
			run++
		}

		tmp, got := scratch.AllocHalving(d.heap, int(run), bps)
		if got == 0 {
			return int(done), checkpoint.Wrap(fmt.Errorf("no scratch memory for a sector of %s", d), errdefs.ErrOutOfMemory)
		}

		if err := d.readDrive(cur, tmp); err != nil {
			d.heap.Free(tmp)
			return int(done), err
		}

		for i := 0; i < got; i++ {
			d.cache.Insert(cur+uint64(i), tmp[i*bps:(i+1)*bps])
		}
		copy(buf[done*uint64(bps):], tmp)
		d.heap.Free(tmp)
		done += uint64(got)
	}

	return int(done), nil
}

// readDrive reads buf from the drive, resetting and retrying on failure.
func (d *Device) readDrive(sector uint64, buf []byte) error {
	drive := d.ID.Drive()
	want := len(buf) / d.SectorSize()

	var lastErr error
	for try := 0; try < MaxReadTries; try++ {
		n, err := d.drive.ReadSectors(drive, d.StartSector+sector, buf)
		if err == nil && n == want {
			return nil
		}
		if err == nil {
			err = fmt.Errorf("read %d of %d sectors", n, want)
		}
		lastErr = err
		log.Debugf("device: read of %d sectors at %d from %s failed (try %d): %v", want, sector, d.ID, try+1, err)

		if err := d.drive.Reset(drive); err != nil {
			log.Debugf("device: reset of drive %#x failed: %v", drive, err)
		}
	}

	return checkpoint.Wrap(lastErr, errdefs.ErrIO)
}

// Handle is a file opened through a Manager.
type Handle struct {
	File
	Device *Device

	whole bool
}

// IsDevice reports whether the handle reads the whole device rather than a file on it.
func (h *Handle) IsDevice() bool {
	return h.whole
}
