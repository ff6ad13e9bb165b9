// Package disk is the lowest storage layer: the firmware disk services a
// loader reads sectors with, and their implementations on top of disk images
// and block devices.
package disk

import (
	"errors"
)

// HardDisk is or'ed into a drive number to address hard disks.
const HardDisk uint8 = 0x80

// DefaultSectorSize is the sector size assumed when a drive reports none.
const DefaultSectorSize = 512

var (
	ErrNoDrive      = errors.New("no such drive")
	ErrOutOfBounds  = errors.New("sector out of bounds")
	ErrShortRead    = errors.New("short sector read")
	ErrSectorLength = errors.New("buffer is not a multiple of the sector size")
)

// Parameters describe a drive.
type Parameters struct {
	BytesPerSector  uint16
	Cylinders       uint32
	Heads           uint32
	SectorsPerTrack uint32
	TotalSectors    uint64
	// ExtendedRead reports whether the firmware reads by LBA.
	ExtendedRead    bool
}

// Drive is the interface of the firmware disk services.
//
// Generated mock using mockgen:
//  mockgen -source=disk.go -destination=mock_drive.go -package disk
type Drive interface {
	// Reset resets the drive controller after a failed read.
	Reset(drive uint8) error
	// ReadSectors reads len(buf)/BytesPerSector sectors starting at sector
	// and returns the number of sectors read.
	ReadSectors(drive uint8, sector uint64, buf []byte) (int, error)
	// Parameters returns the geometry of the drive.
	Parameters(drive uint8) (Parameters, error)
}

// Geometry derives a CHS geometry from a sector count the way firmware
// translating large disks reports it.
func Geometry(totalSectors uint64, bytesPerSector uint16) Parameters {
	const (
		heads           = 255
		sectorsPerTrack = 63
	)
	p := Parameters{
		BytesPerSector:  bytesPerSector,
		Heads:           heads,
		SectorsPerTrack: sectorsPerTrack,
		TotalSectors:    totalSectors,
		ExtendedRead:    true,
	}
	cylinders := totalSectors / (heads * sectorsPerTrack)
	if cylinders > 1024 {
		cylinders = 1024
	}
	p.Cylinders = uint32(cylinders)
	return p
}
