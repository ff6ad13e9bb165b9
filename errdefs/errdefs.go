// Package errdefs defines the error kinds shared by every layer of the loader.
//
// Errors returned by the packages of this module can be compared with
// errors.Is against these kinds, however deep they were wrapped.
package errdefs

import (
	"errors"
)

var (
	ErrOutOfMemory           = errors.New("not enough memory")
	ErrNotFound              = errors.New("file not found")
	ErrValueOutOfRange       = errors.New("value too big")
	ErrUnknown               = errors.New("unknown error")
	ErrNoSuchDevice          = errors.New("device not found")
	ErrNoSuchPartition       = errors.New("partition not found")
	ErrUnsupportedFilesystem = errors.New("unknown filesystem")
	ErrIO                    = errors.New("i/o error")
	ErrCorruptData           = errors.New("file is corrupt")
	ErrUnknownFileType       = errors.New("unknown file type")
)

// kinds is ordered by precedence: the first kind found in a chain wins.
var kinds = []error{
	ErrOutOfMemory,
	ErrNotFound,
	ErrValueOutOfRange,
	ErrNoSuchDevice,
	ErrNoSuchPartition,
	ErrUnsupportedFilesystem,
	ErrIO,
	ErrCorruptData,
	ErrUnknownFileType,
	ErrUnknown,
}

// Kind returns the kind err belongs to.
// nil is returned for nil, ErrUnknown for errors without a kind.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnknown
}

// Message returns the user visible message for the kind of err.
func Message(err error) string {
	k := Kind(err)
	if k == nil {
		return "No error"
	}
	msg := k.Error()
	if msg == "i/o error" {
		return "I/O error"
	}
	return string(msg[0]-'a'+'A') + msg[1:]
}

func IsOutOfMemory(err error) bool           { return errors.Is(err, ErrOutOfMemory) }
func IsNotFound(err error) bool              { return errors.Is(err, ErrNotFound) }
func IsValueOutOfRange(err error) bool       { return errors.Is(err, ErrValueOutOfRange) }
func IsNoSuchDevice(err error) bool          { return errors.Is(err, ErrNoSuchDevice) }
func IsNoSuchPartition(err error) bool       { return errors.Is(err, ErrNoSuchPartition) }
func IsUnsupportedFilesystem(err error) bool { return errors.Is(err, ErrUnsupportedFilesystem) }
func IsIO(err error) bool                    { return errors.Is(err, ErrIO) }
func IsCorruptData(err error) bool           { return errors.Is(err, ErrCorruptData) }
func IsUnknownFileType(err error) bool       { return errors.Is(err, ErrUnknownFileType) }
