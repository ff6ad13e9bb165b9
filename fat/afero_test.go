package fat

import (
	"errors"
	"io"
	"os"
	"syscall"
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/internal/testdisk"
)

// TestIOFS tests the use with the afero.IOFS compatibility layer to io.FS.
func TestIOFS(t *testing.T) {
	tests := []struct {
		name string
		spec testdisk.FATSpec
	}{
		{name: "FAT12", spec: fat12Spec},
		{name: "FAT16", spec: fat16Spec},
		{name: "FAT32", spec: fat32Spec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := fatImage(t, tt.spec, testFiles()...)
			iofs := afero.NewIOFS(NewAferoFs(mountImage(t, d)))
			if err := fstest.TestFS(iofs, "HelloWorldThisIsALoongFileName.txt", "README.TXT", "boot/kernel.elf", "boot/grub/menu.lst", "empty.bin"); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestIOFS_GoDiskfs(t *testing.T) {
	d := testdisk.New(t, 72000)
	d.FormatFAT32(t, 0, 72000, "DISKFS", map[string][]byte{
		"/kernel.elf":    content(5000, 3),
		"/boot/menu.lst": []byte("default 0\n"),
	})

	iofs := afero.NewIOFS(NewAferoFs(mountImage(t, d)))
	if err := fstest.TestFS(iofs, "kernel.elf", "boot/menu.lst"); err != nil {
		t.Fatal(err)
	}
}

func TestAferoFs_ReadOnly(t *testing.T) {
	d, _ := fatImage(t, fat12Spec, testFiles()...)
	fs := NewAferoFs(mountImage(t, d))

	_, err := fs.Create("/new")
	assert.ErrorIs(t, err, syscall.EROFS)
	_, err = fs.OpenFile("/README.TXT", os.O_RDWR, 0)
	assert.ErrorIs(t, err, syscall.EROFS)
	assert.ErrorIs(t, fs.Mkdir("/dir", 0755), syscall.EROFS)
	assert.ErrorIs(t, fs.MkdirAll("/dir/sub", 0755), syscall.EROFS)
	assert.ErrorIs(t, fs.Remove("/README.TXT"), syscall.EROFS)
	assert.ErrorIs(t, fs.RemoveAll("/boot"), syscall.EROFS)
	assert.ErrorIs(t, fs.Rename("/README.TXT", "/x"), syscall.EROFS)
	assert.ErrorIs(t, fs.Chmod("/README.TXT", 0644), syscall.EROFS)
	assert.ErrorIs(t, fs.Chown("/README.TXT", 1, 1), syscall.EROFS)

	f, err := fs.OpenFile("/README.TXT", os.O_RDONLY, 0)
	require.NoError(t, err)
	data, err := afero.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "read me\n", string(data))
}

func TestAferoFs_Open(t *testing.T) {
	d, _ := fatImage(t, fat16Spec, testFiles()...)
	fs := NewAferoFs(mountImage(t, d))

	info, err := fs.Stat("boot/kernel.elf")
	require.NoError(t, err)
	assert.Equal(t, "kernel.elf", info.Name())
	assert.Equal(t, int64(10000), info.Size())
	assert.Equal(t, os.FileMode(0444), info.Mode())
	assert.True(t, testdisk.DefaultModTime.Equal(info.ModTime()))

	info, err = fs.Stat("/boot/../boot/grub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.ModeDir|0555, info.Mode())

	_, err = fs.Open("/missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, errdefs.IsNotFound(err))
	var pathErr *os.PathError
	assert.True(t, errors.As(err, &pathErr))

	exists, err := afero.Exists(fs, "/README.TXT")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAferoFile_SeekToEnd(t *testing.T) {
	d, _ := fatImage(t, fat16Spec, testFiles()...)
	fs := NewAferoFs(mountImage(t, d))

	f, err := fs.Open("/HelloWorldThisIsALoongFileName.txt")
	require.NoError(t, err)

	pos, err := f.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), pos)

	n, err := f.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	pos, err = f.Seek(-100, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(2900), pos)

	_, err = f.Seek(1, io.SeekEnd)
	assert.True(t, errdefs.IsValueOutOfRange(err), "got %v", err)
}
