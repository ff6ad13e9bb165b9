package device

import (
	"fmt"
	"io"
	"syscall"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/scratch"
)

// RawDriverName is the name of the driver bound to devices without filesystem.
const RawDriverName = "raw"

// rawFs exposes the whole device as a single file.
// It is bound to devices opened for raw access and to those no driver accepted.
type rawFs struct {
	dev *Device
}

func (fs *rawFs) Open(path string) (File, error) {
	if path != "" {
		return nil, checkpoint.Wrap(fmt.Errorf("cannot resolve %q on %s", path, fs.dev.ID), errdefs.ErrUnsupportedFilesystem)
	}
	return &rawFile{dev: fs.dev}, nil
}

func (fs *rawFs) Release() {}

// rawFile reads a device as one file.
type rawFile struct {
	dev    *Device
	cursor int64
}

func (f *rawFile) Size() int64 {
	return f.dev.Size()
}

func (f *rawFile) Tell() int64 {
	return f.cursor
}

func (f *rawFile) Close() error {
	f.dev = nil
	return nil
}

// Read reads whole sectors into a scratch buffer, halving the request until
// the heap can serve it, and copies the requested part.
func (f *rawFile) Read(p []byte) (int, error) {
	if f.dev == nil {
		return 0, checkpoint.From(syscall.EBADF)
	}

	size := f.Size()
	if f.cursor >= size {
		return 0, io.EOF
	}
	if int64(len(p)) > size-f.cursor {
		p = p[:size-f.cursor]
	}

	bps := int64(f.dev.SectorSize())
	read := 0
	for read < len(p) {
		offset := f.cursor % bps
		sectors := (offset + int64(len(p)-read) + bps - 1) / bps

		buf, got := scratch.AllocHalving(f.dev.heap, int(sectors), int(bps))
		if got == 0 {
			return read, checkpoint.Wrap(fmt.Errorf("no scratch memory to read %s", f.dev.ID), errdefs.ErrOutOfMemory)
		}

		n, err := f.dev.ReadSectors(uint64(f.cursor/bps), buf)
		if err != nil {
			f.dev.heap.Free(buf)
			return read, err
		}

		chunk := copy(p[read:], buf[offset:int64(n)*bps])
		f.dev.heap.Free(buf)

		read += chunk
		f.cursor += int64(chunk)
	}

	return read, nil
}

// Seek moves the cursor. Positions outside of [0, Size()) are rejected,
// except 0 which is always valid.
func (f *rawFile) Seek(offset int64, whence int) (int64, error) {
	target, err := SeekTarget(f.cursor, f.Size(), offset, whence)
	if err != nil {
		return f.cursor, err
	}
	f.cursor = target
	return target, nil
}

// SeekTarget computes the position a seek from cursor moves to in a file of
// size bytes. Positions outside of [0, size) are rejected, except 0.
func SeekTarget(cursor, size, offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += cursor
	case io.SeekEnd:
		offset += size
	default:
		return 0, checkpoint.Wrap(syscall.EINVAL, fmt.Errorf("invalid whence %d", whence))
	}

	if offset != 0 && (offset < 0 || offset >= size) {
		return 0, checkpoint.Wrap(fmt.Errorf("offset %d outside of [0, %d)", offset, size), errdefs.ErrValueOutOfRange)
	}
	return offset, nil
}
