// Package testdisk builds disk images for tests: partition tables, extended
// boot record chains and FAT volumes, all backed by an in-memory afero file.
package testdisk

import (
	"os"
	"testing"

	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/diskfs/go-diskfs/util"
	"github.com/spf13/afero"

	"github.com/aligator/goldr/disk"
)

// SectorSize is the sector size of all images built by this package.
const SectorSize = 512

// Disk is a disk image in memory.
type Disk struct {
	Fs      afero.Fs
	Path    string
	File    afero.File
	Sectors int64
}

// Pattern is the byte New stores at offset i of sector.
func Pattern(sector int64, i int) byte {
	return byte(sector*7 + int64(i)*3)
}

// New creates an image of the given number of sectors, each filled with Pattern.
func New(t testing.TB, sectors int64) *Disk {
	t.Helper()

	fs := afero.NewMemMapFs()
	f, err := fs.OpenFile("/disk.img", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}

	buf := make([]byte, SectorSize)
	for s := int64(0); s < sectors; s++ {
		for i := range buf {
			buf[i] = Pattern(s, i)
		}
		if _, err := f.WriteAt(buf, s*SectorSize); err != nil {
			t.Fatalf("fill sector %d: %v", s, err)
		}
	}

	return &Disk{Fs: fs, Path: "/disk.img", File: f, Sectors: sectors}
}

// Bytes returns n bytes of the image starting at byte offset off.
func (d *Disk) Bytes(t testing.TB, off int64, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := d.File.ReadAt(buf, off); err != nil {
		t.Fatalf("read image at %d: %v", off, err)
	}
	return buf
}

// WriteAt writes p at byte offset off of the image.
func (d *Disk) WriteAt(t testing.TB, p []byte, off int64) {
	t.Helper()
	if _, err := d.File.WriteAt(p, off); err != nil {
		t.Fatalf("write image at %d: %v", off, err)
	}
}

// Window returns a view of the image starting at sector.
func (d *Disk) Window(sector int64) util.File {
	return &window{f: d.File, base: sector * SectorSize}
}

// Entry returns a partition table entry. Start is relative to the table
// holding it, as usual for extended boot records.
func Entry(typ mbr.Type, start, size uint32) *mbr.Partition {
	return &mbr.Partition{Type: typ, Start: start, Size: size}
}

// Unused is an empty partition table slot.
func Unused() *mbr.Partition {
	return &mbr.Partition{Type: mbr.Empty}
}

// WriteTable writes a partition table with up to four entries and the boot
// signature into sector.
func (d *Disk) WriteTable(t testing.TB, sector int64, entries ...*mbr.Partition) {
	t.Helper()
	for len(entries) < 4 {
		entries = append(entries, Unused())
	}
	table := &mbr.Table{
		Partitions:         entries,
		LogicalSectorSize:  SectorSize,
		PhysicalSectorSize: SectorSize,
	}
	if err := table.Write(d.Window(sector), SectorSize); err != nil {
		t.Fatalf("write partition table at %d: %v", sector, err)
	}
}

// Attach attaches the image as drive of images.
func (d *Disk) Attach(t testing.TB, images *disk.Images, drive uint8) {
	t.Helper()
	if err := images.AttachFile(d.Fs, drive, d.Path, SectorSize); err != nil {
		t.Fatalf("attach image: %v", err)
	}
}

// Drive returns a drive set holding only this image as drive.
func (d *Disk) Drive(t testing.TB, drive uint8) *disk.Images {
	t.Helper()
	images := disk.NewImages()
	d.Attach(t, images, drive)
	t.Cleanup(func() { images.Close() })
	return images
}

// FormatFAT32 formats sectors sectors starting at sector as FAT32 using
// go-diskfs and stores files on it. Directories in the paths are created.
// The volume needs at least 70000 sectors to have enough clusters for FAT32.
func (d *Disk) FormatFAT32(t testing.TB, sector, sectors int64, label string, files map[string][]byte) {
	t.Helper()

	fs, err := fat32.Create(d.File, sectors*SectorSize, sector*SectorSize, SectorSize, label)
	if err != nil {
		t.Fatalf("format FAT32: %v", err)
	}

	for name, data := range files {
		if dir := parentDir(name); dir != "/" {
			if err := fs.Mkdir(dir); err != nil {
				t.Fatalf("mkdir %s: %v", dir, err)
			}
		}
		f, err := fs.OpenFile(name, os.O_CREATE|os.O_RDWR)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func parentDir(p string) string {
	for i := len(p) - 1; i > 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return "/"
}

type window struct {
	f    afero.File
	base int64
}

func (w *window) ReadAt(p []byte, off int64) (int, error) {
	return w.f.ReadAt(p, w.base+off)
}

func (w *window) WriteAt(p []byte, off int64) (int, error) {
	return w.f.WriteAt(p, w.base+off)
}

func (w *window) Seek(offset int64, whence int) (int64, error) {
	return w.f.Seek(offset, whence)
}
