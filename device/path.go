package device

import (
	"fmt"
	"strconv"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/errdefs"
)

// ParsePath splits a path into the device it addresses and the remaining
// path on that device.
//
// The grammar is:
//  /path        the boot device
//  fdN[/path]   floppy drive N
//  hdN[/path]   hard disk N as a whole
//  hdN,P[/path] partition P of hard disk N
// Drive numbers go up to 127, partition numbers up to 254; 0-3 are the
// primary partitions and 4 and above the logical ones.
// The returned path is empty if the whole device is addressed.
func ParsePath(path string, boot ID) (ID, string, error) {
	if len(path) > 0 && path[0] == '/' {
		return boot, path, nil
	}

	if len(path) < 2 || (path[0] != 'f' && path[0] != 'h') || path[1] != 'd' {
		return 0, "", checkpoint.Wrap(fmt.Errorf("%q has no fd or hd prefix", path), errdefs.ErrNoSuchDevice)
	}
	floppy := path[0] == 'f'

	drive, rest, err := parseNumber(path[2:])
	if err != nil {
		return 0, "", checkpoint.Wrap(err, errdefs.ErrNoSuchDevice)
	}
	if drive > 0x7F {
		return 0, "", checkpoint.Wrap(fmt.Errorf("drive number %d of %q is too large", drive, path), errdefs.ErrNoSuchDevice)
	}

	driveNum := uint8(drive)
	part := uint64(NoPartition)
	if !floppy {
		driveNum |= disk.HardDisk

		if len(rest) > 0 && rest[0] == ',' {
			part, rest, err = parseNumber(rest[1:])
			if err != nil {
				return 0, "", checkpoint.Wrap(err, errdefs.ErrNoSuchPartition)
			}
			if part > 254 {
				return 0, "", checkpoint.Wrap(fmt.Errorf("partition number %d of %q is too large", part, path), errdefs.ErrNoSuchPartition)
			}
		}
	}

	if len(rest) > 0 && rest[0] != '/' {
		return 0, "", checkpoint.Wrap(fmt.Errorf("unexpected %q after device in %q", rest, path), errdefs.ErrNotFound)
	}

	return MakeID(driveNum, uint8(part)), rest, nil
}

// parseNumber parses the leading decimal digits of s.
func parseNumber(s string) (uint64, string, error) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, s, fmt.Errorf("missing number in %q", s)
	}

	n, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0, s, checkpoint.Wrap(err, errdefs.ErrValueOutOfRange)
	}
	return n, s[end:], nil
}
