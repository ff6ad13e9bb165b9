package fat

import (
	"os"
	"strings"
	"time"
)

// Case bits of the NT reserved byte. Short names are stored in upper case and
// these mark the parts shown in lower case.
const (
	ntLowerBase = 0x08
	ntLowerExt  = 0x10
)

func (h *ExtendedEntryHeader) FileInfo() os.FileInfo {
	return entryFileInfo{*h}
}

type entryFileInfo struct {
	entry ExtendedEntryHeader
}

func (e entryFileInfo) Name() string {
	if e.entry.ExtendedName != "" {
		return e.entry.ExtendedName
	}
	if e.entry.Name[0] == '/' {
		return "/"
	}

	name := strings.TrimRight(string(e.entry.Name[:8]), " ")
	ext := strings.TrimRight(string(e.entry.Name[8:11]), " ")
	if e.entry.NTReserved&ntLowerBase != 0 {
		name = strings.ToLower(name)
	}
	if e.entry.NTReserved&ntLowerExt != 0 {
		ext = strings.ToLower(ext)
	}

	if ext != "" {
		name += "."
	}
	return name + ext
}

func (e entryFileInfo) Size() int64 {
	return int64(e.entry.FileSize)
}

// Mode is read only for everybody, directories are also searchable.
func (e entryFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

func (e entryFileInfo) ModTime() time.Time {
	return timestamp(e.entry.WriteDate, e.entry.WriteTime)
}

func (e entryFileInfo) IsDir() bool {
	return e.entry.Attribute&AttrDirectory == AttrDirectory
}

func (e entryFileInfo) Sys() interface{} {
	return e.entry
}
