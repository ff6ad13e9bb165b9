package fat

import (
	"io"
	"os"
	"path"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
)

// AferoFs exposes a mounted volume as read only afero.Fs.
// Names are resolved from the root, with or without a leading '/'.
type AferoFs struct {
	fs *Fs
}

var _ afero.Fs = AferoFs{}

// NewAferoFs returns the afero face of fs. Use afero.NewIOFS to get an io/fs.FS.
func NewAferoFs(fs *Fs) AferoFs {
	return AferoFs{fs: fs}
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: syscall.EROFS}
}

func (a AferoFs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (a AferoFs) Mkdir(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (a AferoFs) MkdirAll(path string, perm os.FileMode) error {
	return readOnly("mkdirall", path)
}

func (a AferoFs) Open(name string) (afero.File, error) {
	f, err := a.fs.OpenFile(path.Clean("/" + name))
	if err != nil {
		if errdefs.IsNotFound(err) {
			err = checkpoint.Wrap(err, os.ErrNotExist)
		}
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	return &aferoFile{File: f}, nil
}

// OpenFile only supports opening for reading.
func (a AferoFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, readOnly("open", name)
	}
	return a.Open(name)
}

func (a AferoFs) Remove(name string) error {
	return readOnly("remove", name)
}

func (a AferoFs) RemoveAll(path string) error {
	return readOnly("removeall", path)
}

func (a AferoFs) Rename(oldname, newname string) error {
	return readOnly("rename", oldname)
}

func (a AferoFs) Stat(name string) (os.FileInfo, error) {
	f, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Stat()
}

func (a AferoFs) Name() string {
	return "fat"
}

func (a AferoFs) Chmod(name string, mode os.FileMode) error {
	return readOnly("chmod", name)
}

func (a AferoFs) Chown(name string, uid, gid int) error {
	return readOnly("chown", name)
}

func (a AferoFs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return readOnly("chtimes", name)
}

// aferoFile allows seeking to the end of the file, as io.Seeker users expect.
type aferoFile struct {
	*File
}

func (f *aferoFile) Seek(offset int64, whence int) (int64, error) {
	if f.fs == nil {
		return 0, checkpoint.Wrap(syscall.EBADF, ErrSeekFile)
	}
	if whence == io.SeekEnd {
		offset += f.Size()
		whence = io.SeekStart
	}
	return f.seek(offset, whence, f.Size()+1)
}
