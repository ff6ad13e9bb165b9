package disk

import (
	"os"

	"golang.org/x/sys/unix"
)

// blockDeviceSectorSize returns the logical sector size of f if it is a block device.
func blockDeviceSectorSize(f *os.File) (uint16, bool) {
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeDevice == 0 || info.Mode()&os.ModeCharDevice != 0 {
		return 0, false
	}

	ssz, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil || ssz <= 0 || ssz > 0xFFFF {
		return 0, false
	}
	return uint16(ssz), true
}
