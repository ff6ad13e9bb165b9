package fat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/scratch"
)

// These errors may occur while processing a file.
var (
	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
	ErrReadDir  = errors.New("could not read the directory")
)

// maxRun is the most bytes a single read of contiguous clusters covers.
const maxRun = 64 * 1024

// File is an opened file or directory. It implements device.File and, being
// read only, the reading half of afero.File.
type File struct {
	fs   *Fs
	path string

	entry ExtendedEntryHeader
	root  bool

	cursor int64
	// cluster contains the byte at cursor.
	cluster uint32

	// dirOffset is the number of entries Readdir returned so far.
	dirOffset int
}

func (fs *Fs) newFile(path string, entry ExtendedEntryHeader) *File {
	return &File{
		fs:      fs,
		path:    path,
		entry:   entry,
		cluster: fs.firstCluster(entry.EntryHeader),
	}
}

func (fs *Fs) rootFile(path string) *File {
	f := &File{
		fs:   fs,
		path: path,
		root: true,
	}
	f.entry.Attribute = AttrDirectory
	f.entry.Name = [shortNameLength]byte{'/', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	return f
}

func (f *File) firstCluster() uint32 {
	if f.root {
		return f.fs.rootDirCluster()
	}
	return f.fs.firstCluster(f.entry.EntryHeader)
}

func (f *File) isDirectory() bool {
	return f.root || f.entry.IsDir()
}

// Size returns the size from the directory entry. It is 0 for directories.
func (f *File) Size() int64 {
	return int64(f.entry.FileSize)
}

func (f *File) Tell() int64 {
	return f.cursor
}

// Close resets the file. Any later call fails with syscall.EBADF.
func (f *File) Close() error {
	*f = File{}
	return nil
}

// Read reads up to len(p) bytes from the cursor, never past the end of the file.
//
// Every device read covers a run of physically contiguous clusters. The run
// is bounded by the bytes requested and maxRun, and halved while the scratch
// heap cannot hold it.
func (f *File) Read(p []byte) (int, error) {
	if f.fs == nil {
		return 0, checkpoint.Wrap(syscall.EBADF, ErrReadFile)
	}
	if f.isDirectory() {
		return 0, checkpoint.Wrap(syscall.EISDIR, ErrReadFile)
	}

	size := f.Size()
	if f.cursor >= size {
		return 0, io.EOF
	}
	if int64(len(p)) > size-f.cursor {
		p = p[:size-f.cursor]
	}

	fs := f.fs
	heap := fs.dev.Heap()
	bpc := int64(fs.info.BytesPerCluster)
	limit := maxRun / bpc
	if limit < 1 {
		limit = 1
	}

	read := 0
	for read < len(p) {
		if !fs.validCluster(f.cluster) {
			return read, checkpoint.Wrap(fmt.Errorf("chain of %q ends at cluster %#x before %d bytes", f.path, f.cluster, size), errdefs.ErrCorruptData)
		}

		offset := f.cursor % bpc
		want := (offset + int64(len(p)-read) + bpc - 1) / bpc
		if want > limit {
			want = limit
		}

		run, next, err := fs.contiguousRun(f.cluster, uint32(want))
		if err != nil {
			return read, checkpoint.Wrap(err, ErrReadFile)
		}

		buf, got := scratch.AllocHalving(heap, int(run), int(bpc))
		if got == 0 {
			return read, checkpoint.Wrap(fmt.Errorf("no scratch memory for a cluster"), errdefs.ErrOutOfMemory)
		}

		if _, err := fs.dev.ReadSectors(fs.clusterSector(f.cluster), buf); err != nil {
			heap.Free(buf)
			return read, checkpoint.Wrap(err, ErrReadFile)
		}
		n := copy(p[read:], buf[offset:])
		heap.Free(buf)

		passed := (f.cursor+int64(n))/bpc - f.cursor/bpc
		read += n
		f.cursor += int64(n)
		if uint32(passed) == run {
			f.cluster = next
		} else {
			f.cluster += uint32(passed)
		}
	}

	return read, nil
}

// contiguousRun counts the clusters following start directly on disk, up to max.
// It returns the count and the cluster the chain continues with after them.
func (fs *Fs) contiguousRun(start, max uint32) (uint32, uint32, error) {
	run := uint32(1)
	cur := start
	for {
		next, err := fs.nextCluster(cur)
		if err != nil {
			return 0, 0, err
		}
		if run >= max || next != cur+1 || !fs.validCluster(next) {
			return run, next, nil
		}
		run++
		cur = next
	}
}

// ReadAt reads from off without moving the cursor.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.fs == nil {
		return 0, checkpoint.Wrap(syscall.EBADF, ErrReadFile)
	}
	if off >= f.Size() {
		return 0, io.EOF
	}

	tmp := *f
	if _, err := tmp.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	read := 0
	for read < len(p) {
		n, err := tmp.Read(p[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// Seek moves the cursor. Positions outside of [0, Size()) fail and leave the
// file unchanged, except 0 which is always valid.
// Seeking backwards walks the chain again from the first cluster.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.fs == nil {
		return 0, checkpoint.Wrap(syscall.EBADF, ErrSeekFile)
	}

	return f.seek(offset, whence, f.Size())
}

// seek moves the cursor to a position below limit.
func (f *File) seek(offset int64, whence int, limit int64) (int64, error) {
	target, err := device.SeekTarget(f.cursor, limit, offset, whence)
	if err != nil {
		return f.cursor, checkpoint.Wrap(err, ErrSeekFile)
	}
	if err := f.moveTo(target); err != nil {
		return f.cursor, checkpoint.Wrap(err, ErrSeekFile)
	}
	return target, nil
}

// moveTo sets the cursor to target and finds the cluster containing it.
func (f *File) moveTo(target int64) error {
	bpc := int64(f.fs.info.BytesPerCluster)

	pos := f.cursor - f.cursor%bpc
	cluster := f.cluster
	if target < pos {
		pos = 0
		cluster = f.firstCluster()
	}

	for pos+bpc <= target {
		if !f.fs.validCluster(cluster) {
			return checkpoint.Wrap(fmt.Errorf("chain of %q ends at cluster %#x before offset %d", f.path, cluster, target), errdefs.ErrCorruptData)
		}
		next, err := f.fs.nextCluster(cluster)
		if err != nil {
			return err
		}
		cluster = next
		pos += bpc
	}

	f.cursor = target
	f.cluster = cluster
	return nil
}

func (f *File) Write(p []byte) (int, error) {
	return 0, checkpoint.From(syscall.EROFS)
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return 0, checkpoint.From(syscall.EROFS)
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *File) Sync() error {
	return nil
}

func (f *File) Truncate(size int64) error {
	return checkpoint.From(syscall.EROFS)
}

func (f *File) Name() string {
	return f.path
}

// Readdir reads the contents of a directory.
// count <= 0 returns all remaining entries, otherwise at most count entries
// and io.EOF once the end is reached.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if f.fs == nil {
		return nil, checkpoint.Wrap(syscall.EBADF, ErrReadDir)
	}
	if !f.isDirectory() {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	content, err := f.fs.readDir(f.firstCluster())
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	if f.dirOffset > len(content) {
		f.dirOffset = len(content)
	}
	content = content[f.dirOffset:]

	if count > 0 {
		if len(content) == 0 {
			return nil, io.EOF
		}
		if count < len(content) {
			content = content[:count]
		}
	}
	f.dirOffset += len(content)

	result := make([]os.FileInfo, len(content))
	for i := range content {
		result[i] = content[i].FileInfo()
	}
	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}
	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.fs == nil {
		return nil, checkpoint.From(syscall.EBADF)
	}
	return f.entry.FileInfo(), nil
}
