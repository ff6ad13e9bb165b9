//go:build !linux
// +build !linux

package disk

import "os"

func blockDeviceSectorSize(f *os.File) (uint16, bool) {
	return 0, false
}
