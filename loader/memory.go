package loader

import (
	"fmt"
	"io"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/scratch"
)

// copyUnit is the granularity of the buffer data is copied into memory through.
const copyUnit = 4096

// fileReaderAt reads a device.File at offsets by seeking it.
type fileReaderAt struct {
	f device.File
}

func (r fileReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.f.Size() {
		return 0, io.EOF
	}
	if _, err := r.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	n, err := io.ReadFull(r.f, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// place writes n bytes of src to addr and zeroes the following total-n bytes.
// A src holding less than n bytes is corrupt.
func (l *Loader) place(heap scratch.Heap, addr uint64, src io.Reader, n, total uint64) error {
	buf, units := scratch.AllocHalving(heap, 16, copyUnit)
	if units == 0 {
		return checkpoint.Wrap(fmt.Errorf("no scratch memory to copy through"), errdefs.ErrOutOfMemory)
	}
	defer heap.Free(buf)

	w := io.NewOffsetWriter(l.memory, int64(addr))
	copied, err := io.CopyBuffer(w, io.LimitReader(src, int64(n)), buf)
	if err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("copy to %#x", addr))
	}
	if uint64(copied) < n {
		return checkpoint.Wrap(fmt.Errorf("only %d of %d bytes for %#x", copied, n, addr), errdefs.ErrCorruptData)
	}

	for i := range buf {
		buf[i] = 0
	}
	for left := total - n; left > 0; {
		chunk := uint64(len(buf))
		if chunk > left {
			chunk = left
		}
		if _, err := w.Write(buf[:chunk]); err != nil {
			return checkpoint.Wrap(err, fmt.Errorf("clear %#x", addr))
		}
		left -= chunk
	}
	return nil
}
