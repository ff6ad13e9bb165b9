package disk

import (
	"fmt"
	"io"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/aligator/goldr/checkpoint"
)

type image struct {
	r      io.ReaderAt
	closer io.Closer
	params Parameters
	name   string
}

// Images emulates the firmware disk services on top of disk image files.
type Images struct {
	drives map[uint8]*image
}

// NewImages creates an empty drive set.
func NewImages() *Images {
	return &Images{drives: make(map[uint8]*image)}
}

// Attach makes size bytes of r available as drive.
func (d *Images) Attach(drive uint8, r io.ReaderAt, size int64, bytesPerSector uint16) error {
	if bytesPerSector == 0 {
		bytesPerSector = DefaultSectorSize
	}
	if size < 0 {
		return checkpoint.From(fmt.Errorf("invalid size %d for drive %#x", size, drive))
	}
	if _, ok := d.drives[drive]; ok {
		return checkpoint.From(fmt.Errorf("drive %#x is already attached", drive))
	}

	d.drives[drive] = &image{
		r:      r,
		params: Geometry(uint64(size)/uint64(bytesPerSector), bytesPerSector),
		name:   fmt.Sprintf("drive %#x", drive),
	}
	log.Debugf("disk: attached %d sectors of %d bytes as drive %#x", uint64(size)/uint64(bytesPerSector), bytesPerSector, drive)
	return nil
}

// AttachFile opens path on fs and attaches it as drive.
// On Linux block devices report their logical sector size, image files use bytesPerSector.
func (d *Images) AttachFile(fs afero.Fs, drive uint8, path string, bytesPerSector uint16) error {
	f, err := fs.Open(path)
	if err != nil {
		return checkpoint.From(err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return checkpoint.From(err)
	}

	if osFile, ok := f.(*os.File); ok {
		if ssz, ok := blockDeviceSectorSize(osFile); ok {
			bytesPerSector = ssz
		}
	}

	if err := d.Attach(drive, f, size, bytesPerSector); err != nil {
		f.Close()
		return err
	}
	d.drives[drive].closer = f
	d.drives[drive].name = path
	return nil
}

// Drives returns the attached drive numbers in ascending order.
func (d *Images) Drives() []uint8 {
	drives := make([]uint8, 0, len(d.drives))
	for n := range d.drives {
		drives = append(drives, n)
	}
	sort.Slice(drives, func(i, j int) bool { return drives[i] < drives[j] })
	return drives
}

// Close closes all files opened by AttachFile.
func (d *Images) Close() error {
	var first error
	for n, img := range d.drives {
		if img.closer != nil {
			if err := img.closer.Close(); err != nil && first == nil {
				first = checkpoint.From(err)
			}
		}
		delete(d.drives, n)
	}
	return first
}

func (d *Images) lookup(drive uint8) (*image, error) {
	img, ok := d.drives[drive]
	if !ok {
		return nil, checkpoint.Wrap(fmt.Errorf("drive %#x", drive), ErrNoDrive)
	}
	return img, nil
}

func (d *Images) Reset(drive uint8) error {
	_, err := d.lookup(drive)
	return err
}

func (d *Images) Parameters(drive uint8) (Parameters, error) {
	img, err := d.lookup(drive)
	if err != nil {
		return Parameters{}, err
	}
	return img.params, nil
}

func (d *Images) ReadSectors(drive uint8, sector uint64, buf []byte) (int, error) {
	img, err := d.lookup(drive)
	if err != nil {
		return 0, err
	}

	bps := int(img.params.BytesPerSector)
	if len(buf)%bps != 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("%d bytes", len(buf)), ErrSectorLength)
	}
	count := uint64(len(buf) / bps)
	if sector+count > img.params.TotalSectors || sector+count < sector {
		return 0, checkpoint.Wrap(fmt.Errorf("sectors %d-%d of %s", sector, sector+count, img.name), ErrOutOfBounds)
	}

	n, err := img.r.ReadAt(buf, int64(sector)*int64(bps))
	if n == len(buf) {
		return int(count), nil
	}
	if err == nil || err == io.EOF {
		err = ErrShortRead
	}
	return n / bps, checkpoint.Wrap(err, ErrShortRead)
}
