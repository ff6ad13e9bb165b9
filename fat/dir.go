package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
)

const (
	entryEnd     = 0x00
	entryDeleted = 0xE5
	// entryKanji stands for a leading 0xE5 in a name.
	entryKanji = 0x05

	lastLongEntry   = 0x40
	maxLongOrdinal  = 0x3F
	maxLongName     = 255
	longNameChars   = 13
	shortNameLength = 11
)

// trimName removes leading spaces and trailing spaces and periods.
func trimName(name string) string {
	name = strings.TrimLeft(name, " ")
	return strings.TrimRight(name, " .")
}

// validName reports whether name has at most 255 characters and none of the
// characters FAT forbids in names.
func validName(name string) bool {
	if utf8.RuneCountInString(name) > maxLongName {
		return false
	}
	for _, r := range name {
		if r < 32 || strings.ContainsRune(`\/:*?"<>|`, r) {
			return false
		}
	}
	return true
}

// shortNameChar reports whether the uppercase ASCII character c may appear in a short name.
func shortNameChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("$%'-_@~`!(){}^#&", c) >= 0
}

// shortName converts name to the padded 11 character form of an 8.3 entry.
// It fails for names which have no such form.
func shortName(name string) ([shortNameLength]byte, bool) {
	var out [shortNameLength]byte
	for i := range out {
		out[i] = ' '
	}

	base, ext := name, ""
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
	}
	if len(base) > 8 || len(ext) > 3 {
		return out, false
	}

	for i, part := range []string{base, ext} {
		for j := 0; j < len(part); j++ {
			c := part[j]
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			if !shortNameChar(c) {
				return out, false
			}
			out[i*8+j] = c
		}
	}
	return out, true
}

// checksum is the checksum long name entries carry of their short entry.
func checksum(name [shortNameLength]byte) byte {
	var sum byte
	for _, c := range name {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}

// longName assembles a long name from the fragments preceding a short entry.
type longName struct {
	last  byte // ordinal of the first fragment, 0 if no name is pending
	next  byte // ordinal expected next
	sum   byte
	units [maxLongOrdinal * longNameChars]uint16
	size  int
}

func (l *longName) reset() {
	l.last, l.next = 0, 0
}

// add takes the next fragment. Fragments out of order or with another
// checksum drop the pending name.
func (l *longName) add(e LongFilenameEntry) {
	first := e.Sequence&lastLongEntry != 0
	if (l.next != l.last) != first {
		if l.last == 0 {
			l.last = e.Sequence &^ lastLongEntry
			l.next = l.last
			l.sum = e.Checksum
		}

		ord := e.Sequence &^ lastLongEntry
		if l.next > 0 && l.next <= maxLongOrdinal && ord == l.next &&
			e.Cluster == 0 && e.EntryType == 0 && e.Checksum == l.sum {
			l.next--
			pos := int(l.next) * longNameChars
			n := copy(l.units[pos:], e.First[:])
			n += copy(l.units[pos+n:], e.Second[:])
			copy(l.units[pos+n:], e.Third[:])

			if l.next == l.last-1 {
				l.size = int(l.last) * longNameChars
				if l.size > maxLongName {
					l.size = maxLongName
				}
			}
			return
		}
	}
	l.reset()
}

// complete returns the assembled name if it belongs to the short entry h.
func (l *longName) complete(h EntryHeader) (string, bool) {
	if l.last == 0 || l.next != 0 || checksum(h.Name) != l.sum {
		return "", false
	}

	units := l.units[:l.size]
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units)), true
}

// scanDir calls visit for every short entry of the directory starting at
// cluster, together with its long name. Cluster 0 on FAT12 and FAT16 is the
// root directory region. Scanning stops when visit returns true.
func (fs *Fs) scanDir(cluster uint32, visit func(e ExtendedEntryHeader, hasLong bool) bool) error {
	if cluster < 2 && fs.info.Type == FAT32 {
		cluster = fs.info.RootCluster
	}

	heap := fs.dev.Heap()
	bpc := fs.info.BytesPerCluster
	buf := heap.Alloc(int(bpc))
	if buf == nil {
		return checkpoint.Wrap(fmt.Errorf("no scratch memory for a directory cluster"), errdefs.ErrOutOfMemory)
	}
	defer heap.Free(buf)

	root := cluster < 2
	sector := uint64(fs.info.RootDirStart)
	rootEntries := uint32(0)

	var long longName
	for root || fs.validCluster(cluster) {
		if !root {
			sector = fs.clusterSector(cluster)
		}
		if _, err := fs.dev.ReadSectors(sector, buf); err != nil {
			return checkpoint.Wrap(err, ErrReadDir)
		}

		for off := uint32(0); off < bpc; off, rootEntries = off+entrySize, rootEntries+1 {
			if root && rootEntries >= fs.info.RootEntries {
				return nil
			}

			raw := buf[off : off+entrySize]
			switch raw[0] {
			case entryEnd:
				return nil
			case entryDeleted:
				continue
			}

			if raw[11]&attrLongNameMask == attrLongName {
				var e LongFilenameEntry
				if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &e); err != nil {
					return checkpoint.From(err)
				}
				long.add(e)
				continue
			}

			var e ExtendedEntryHeader
			if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &e.EntryHeader); err != nil {
				return checkpoint.From(err)
			}
			if e.Name[0] == entryKanji {
				e.Name[0] = entryDeleted
			}

			var hasLong bool
			e.ExtendedName, hasLong = long.complete(e.EntryHeader)
			long.reset()

			if visit(e, hasLong) {
				return nil
			}
		}

		if root {
			sector += uint64(fs.info.SectorsPerCluster)
			continue
		}
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return checkpoint.Wrap(err, ErrReadDir)
		}
		cluster = next
	}
	return nil
}

// find looks up name in the directory starting at cluster.
//
// An entry with a valid long name matches if the long name equals name
// ignoring case. Entries without one match if their short name equals the
// short form of name.
func (fs *Fs) find(cluster uint32, name string) (ExtendedEntryHeader, error) {
	name = trimName(name)
	if name == "" || !validName(name) {
		return ExtendedEntryHeader{}, checkpoint.Wrap(fmt.Errorf("invalid name %q", name), errdefs.ErrNotFound)
	}
	short, hasShort := shortName(name)

	var found ExtendedEntryHeader
	var ok bool
	err := fs.scanDir(cluster, func(e ExtendedEntryHeader, hasLong bool) bool {
		if hasLong {
			ok = strings.EqualFold(e.ExtendedName, name)
		} else {
			ok = hasShort && e.Name == short
		}
		if ok {
			found = e
		}
		return ok
	})
	if err != nil {
		return ExtendedEntryHeader{}, err
	}
	if !ok {
		return ExtendedEntryHeader{}, checkpoint.Wrap(fmt.Errorf("%q", name), errdefs.ErrNotFound)
	}
	return found, nil
}

// readDir lists the directory starting at cluster without the "." and ".."
// entries and volume labels.
func (fs *Fs) readDir(cluster uint32) ([]ExtendedEntryHeader, error) {
	var entries []ExtendedEntryHeader
	err := fs.scanDir(cluster, func(e ExtendedEntryHeader, hasLong bool) bool {
		if e.Attribute&AttrVolumeID != 0 || e.Name[0] == '.' {
			return false
		}
		if !hasLong {
			e.ExtendedName = ""
		}
		entries = append(entries, e)
		return false
	})
	return entries, err
}
