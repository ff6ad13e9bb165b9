package testdisk

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf16"
)

// DefaultModTime is the timestamp of files without an explicit ModTime.
var DefaultModTime = time.Date(2021, time.June, 15, 12, 30, 44, 0, time.UTC)

// FATSpec describes the volume FormatFAT creates.
type FATSpec struct {
	// Width is 12, 16 or 32. The number of sectors has to match it.
	Width             int
	Sectors           uint32
	SectorsPerCluster uint8
	// RootEntries defaults to 224 for FAT12 and 512 for FAT16.
	RootEntries uint16
	Label       string
	// DirtyHighBits sets the reserved top bits of all FAT32 entries.
	DirtyHighBits bool
}

// FATFile is a file or directory stored by FormatFAT.
type FATFile struct {
	Path string
	Data []byte
	Dir  bool
	// ShortName overrides the generated 8.3 name, e.g. "KERNEL~1.ELF".
	ShortName  string
	NoLongName bool
	// Fragmented leaves a free cluster between all clusters of the file.
	Fragmented bool
	ModTime    time.Time
}

// FATLayout reports where FormatFAT placed things, in sectors relative to the volume.
type FATLayout struct {
	Width           int
	FATStart        uint32
	FATSize         uint32
	RootDirStart    uint32
	DataStart       uint32
	Clusters        uint32
	BytesPerCluster uint32
	RootCluster     uint32
	// Chains holds the cluster chain of every path, the root directory is "/".
	Chains map[string][]uint32
}

const (
	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20
	attrLongName  = 0x0F
)

type rawEntry struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

type rawLongEntry struct {
	Sequence  byte
	First     [5]uint16
	Attribute byte
	EntryType byte
	Checksum  byte
	Second    [6]uint16
	Cluster   uint16
	Third     [2]uint16
}

type fatNode struct {
	FATFile
	name     string
	path     string
	parent   *fatNode
	children []*fatNode
	short    [11]byte
	long     bool
	chain    []uint32
}

type fatBuilder struct {
	t      testing.TB
	spec   FATSpec
	layout *FATLayout
	root   *fatNode
	fat    []uint32
	next   uint32
	img    []byte
	bps    uint32
	spc    uint32
	rsvd   uint32
	rootN  uint32
}

// FormatFAT writes a FAT volume of spec.Sectors sectors at sector and stores files on it.
func (d *Disk) FormatFAT(t testing.TB, sector int64, spec FATSpec, files ...FATFile) *FATLayout {
	t.Helper()

	b := newFATBuilder(t, spec)
	for _, f := range files {
		b.add(f)
	}
	b.build(uint32(sector))

	d.WriteAt(t, b.img, sector*SectorSize)
	return b.layout
}

func newFATBuilder(t testing.TB, spec FATSpec) *fatBuilder {
	b := &fatBuilder{
		t:    t,
		spec: spec,
		bps:  SectorSize,
		spc:  uint32(spec.SectorsPerCluster),
		rsvd: 1,
		root: &fatNode{FATFile: FATFile{Dir: true}, path: "/"},
	}
	if b.spc == 0 {
		b.spc = 1
	}

	switch spec.Width {
	case 12, 16:
		b.rootN = uint32(spec.RootEntries)
		if b.rootN == 0 {
			b.rootN = 512
			if spec.Width == 12 {
				b.rootN = 224
			}
		}
	case 32:
		b.rsvd = 32
	default:
		t.Fatalf("unsupported FAT width %d", spec.Width)
	}

	rootDirSectors := (b.rootN*32 + b.bps - 1) / b.bps
	estimate := (spec.Sectors - b.rsvd - rootDirSectors) / b.spc
	fatBytes := (estimate+2)*uint32(spec.Width)/8 + 1
	fatSize := (fatBytes + b.bps - 1) / b.bps

	l := &FATLayout{
		Width:           spec.Width,
		FATStart:        b.rsvd,
		FATSize:         fatSize,
		RootDirStart:    b.rsvd + 2*fatSize,
		BytesPerCluster: b.bps * b.spc,
		Chains:          make(map[string][]uint32),
	}
	l.DataStart = l.RootDirStart + rootDirSectors
	l.Clusters = (spec.Sectors - l.DataStart) / b.spc

	switch {
	case spec.Width == 12 && l.Clusters >= 4085,
		spec.Width == 16 && (l.Clusters < 4085 || l.Clusters >= 65525),
		spec.Width == 32 && l.Clusters < 65525:
		t.Fatalf("%d sectors give %d clusters which is no FAT%d", spec.Sectors, l.Clusters, spec.Width)
	}

	b.layout = l
	b.fat = make([]uint32, l.Clusters+2)
	b.fat[0] = b.eoc()&^0xFF | 0xF8
	b.fat[1] = b.eoc()
	b.next = 2
	b.img = make([]byte, spec.Sectors*b.bps)
	return b
}

func (b *fatBuilder) eoc() uint32 {
	switch b.spec.Width {
	case 12:
		return 0xFFF
	case 16:
		return 0xFFFF
	}
	return 0x0FFFFFFF
}

func (b *fatBuilder) add(f FATFile) {
	parts := strings.Split(strings.Trim(f.Path, "/"), "/")
	dir := b.root
	for i, name := range parts {
		var child *fatNode
		for _, c := range dir.children {
			if c.name == name {
				child = c
			}
		}

		last := i == len(parts)-1
		if child == nil {
			child = &fatNode{
				FATFile: FATFile{Dir: true},
				name:    name,
				path:    dir.pathTo(name),
				parent:  dir,
			}
			dir.children = append(dir.children, child)
		}
		if last {
			child.FATFile = f
		}
		dir = child
	}
}

func (n *fatNode) pathTo(name string) string {
	if n.path == "/" {
		return "/" + name
	}
	return n.path + "/" + name
}

func (b *fatBuilder) build(hidden uint32) {
	b.assignNames(b.root)
	b.allocate(b.root)
	b.writeDir(b.root)
	b.writeFAT()
	b.writeBootSector(hidden)
}

func (b *fatBuilder) assignNames(dir *fatNode) {
	used := make(map[[11]byte]bool)
	for _, c := range dir.children {
		switch {
		case c.ShortName != "":
			c.short = packShort(c.ShortName)
			c.long = !c.NoLongName && c.name != c.ShortName
		default:
			if short, ok := fitsShort(c.name); ok && !used[short] {
				c.short = short
				c.long = !c.NoLongName && c.name != strings.ToUpper(c.name)
				break
			}
			c.short = b.generateShort(c.name, used)
			c.long = !c.NoLongName
		}
		used[c.short] = true
		if c.Dir {
			b.assignNames(c)
		}
	}
}

func packShort(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 && strings.Trim(name, ".") != "" {
		base, ext = name[:dot], name[dot+1:]
	}
	copy(out[:8], base)
	copy(out[8:], ext)
	return out
}

func padLabel(label string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:], label)
	return out
}

func shortChar(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.IndexByte("$%'-_@~`!(){}^#&", c) >= 0
}

func fitsShort(name string) ([11]byte, bool) {
	upper := strings.ToUpper(name)
	base, ext := upper, ""
	if dot := strings.IndexByte(upper, '.'); dot >= 0 {
		base, ext = upper[:dot], upper[dot+1:]
	}
	if base == "" || len(base) > 8 || len(ext) > 3 {
		return [11]byte{}, false
	}
	for i := 0; i < len(base); i++ {
		if !shortChar(base[i]) {
			return [11]byte{}, false
		}
	}
	for i := 0; i < len(ext); i++ {
		if !shortChar(ext[i]) {
			return [11]byte{}, false
		}
	}
	return packShort(upper), true
}

func (b *fatBuilder) generateShort(name string, used map[[11]byte]bool) [11]byte {
	upper := strings.ToUpper(name)
	ext := ""
	if dot := strings.LastIndexByte(upper, '.'); dot > 0 {
		upper, ext = upper[:dot], upper[dot+1:]
	}
	clean := func(s string, max int) string {
		var out []byte
		for i := 0; i < len(s) && len(out) < max; i++ {
			if shortChar(s[i]) {
				out = append(out, s[i])
			}
		}
		return string(out)
	}
	base := clean(upper, 6)
	ext = clean(ext, 3)

	for n := 1; n < 10; n++ {
		short := packShort(base + "~" + strconv.Itoa(n) + "." + ext)
		if !used[short] {
			return short
		}
	}
	b.t.Fatalf("no free short name for %q", name)
	return [11]byte{}
}

func (n *fatNode) entryCount() uint32 {
	count := uint32(0)
	if n.parent != nil {
		count += 2
	}
	for _, c := range n.children {
		count++
		if c.long {
			count += uint32((len(utf16.Encode([]rune(c.name))) + 12) / 13)
		}
	}
	return count
}

func (b *fatBuilder) allocate(n *fatNode) {
	bpc := b.layout.BytesPerCluster

	var count uint32
	switch {
	case n.parent == nil && b.spec.Width != 32:
		// Fixed root directory region.
		if n.entryCount()+1 > b.rootN {
			b.t.Fatalf("root directory holds %d entries, too many for %d slots", n.entryCount(), b.rootN)
		}
	case n.Dir:
		count = (n.entryCount()*32 + 32 + bpc - 1) / bpc
	default:
		count = (uint32(len(n.Data)) + bpc - 1) / bpc
	}

	for i := uint32(0); i < count; i++ {
		if b.next >= uint32(len(b.fat)) {
			b.t.Fatalf("volume is full while storing %s", n.path)
		}
		n.chain = append(n.chain, b.next)
		b.next++
		if n.Fragmented {
			b.next++
		}
	}
	for i, c := range n.chain {
		if i+1 < len(n.chain) {
			b.fat[c] = n.chain[i+1]
		} else {
			b.fat[c] = b.eoc()
		}
	}
	if len(n.chain) > 0 {
		b.layout.Chains[n.path] = n.chain
	}
	if n.parent == nil && b.spec.Width == 32 {
		b.layout.RootCluster = n.chain[0]
	}

	if !n.Dir {
		b.writeClusters(n.chain, n.Data)
		return
	}
	for _, c := range n.children {
		b.allocate(c)
	}
}

func (b *fatBuilder) clusterOffset(c uint32) uint32 {
	return (b.layout.DataStart + (c-2)*b.spc) * b.bps
}

func (b *fatBuilder) writeClusters(chain []uint32, data []byte) {
	bpc := b.layout.BytesPerCluster
	for i, c := range chain {
		start := uint32(i) * bpc
		end := start + bpc
		if end > uint32(len(data)) {
			end = uint32(len(data))
		}
		off := b.clusterOffset(c)
		chunk := b.img[off : off+bpc]
		for j := range chunk {
			chunk[j] = 0
		}
		copy(chunk, data[start:end])
	}
}

func (n *fatNode) firstCluster() uint32 {
	if len(n.chain) == 0 {
		return 0
	}
	return n.chain[0]
}

func encodeTimestamp(t time.Time) (uint16, uint16) {
	date := uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm := uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tm
}

// Checksum is the checksum of a short name stored in its long name entries.
func Checksum(short [11]byte) byte {
	var sum byte
	for _, c := range short {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}

func (b *fatBuilder) shortEntry(name [11]byte, attr byte, cluster, size uint32, mod time.Time) rawEntry {
	if mod.IsZero() {
		mod = DefaultModTime
	}
	date, tm := encodeTimestamp(mod)
	e := rawEntry{
		Name:           name,
		Attribute:      attr,
		CreateTime:     tm,
		CreateDate:     date,
		LastAccessDate: date,
		WriteTime:      tm,
		WriteDate:      date,
		FirstClusterLO: uint16(cluster),
		FileSize:       size,
	}
	if b.spec.Width == 32 {
		e.FirstClusterHI = uint16(cluster >> 16)
	}
	return e
}

// LongEntries returns the long name entries of name in on-disk order.
func LongEntries(name string, short [11]byte) [][32]byte {
	units := utf16.Encode([]rune(name))
	if len(units)%13 != 0 {
		units = append(units, 0)
		for len(units)%13 != 0 {
			units = append(units, 0xFFFF)
		}
	}

	sum := Checksum(short)
	n := len(units) / 13
	out := make([][32]byte, 0, n)
	for ord := n; ord >= 1; ord-- {
		part := units[(ord-1)*13 : ord*13]
		e := rawLongEntry{
			Sequence:  byte(ord),
			Attribute: attrLongName,
			Checksum:  sum,
		}
		if ord == n {
			e.Sequence |= 0x40
		}
		copy(e.First[:], part[0:5])
		copy(e.Second[:], part[5:11])
		copy(e.Third[:], part[11:13])
		out = append(out, encode(e))
	}
	return out
}

func encode(v interface{}) [32]byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	var out [32]byte
	copy(out[:], buf.Bytes())
	return out
}

func (b *fatBuilder) writeDir(n *fatNode) {
	var entries [][32]byte

	if n.parent == nil {
		if b.spec.Label != "" {
			entries = append(entries, encode(b.shortEntry(padLabel(b.spec.Label), attrVolumeID, 0, 0, n.ModTime)))
		}
	} else {
		parent := n.parent.firstCluster()
		if n.parent.parent == nil {
			parent = 0
		}
		entries = append(entries,
			encode(b.shortEntry(packShort("."), attrDirectory, n.firstCluster(), 0, n.ModTime)),
			encode(b.shortEntry(packShort(".."), attrDirectory, parent, 0, n.ModTime)),
		)
	}

	for _, c := range n.children {
		if c.long {
			entries = append(entries, LongEntries(c.name, c.short)...)
		}
		attr := byte(attrArchive)
		size := uint32(len(c.Data))
		if c.Dir {
			attr, size = attrDirectory, 0
		}
		entries = append(entries, encode(b.shortEntry(c.short, attr, c.firstCluster(), size, c.ModTime)))
	}

	data := make([]byte, 0, len(entries)*32)
	for _, e := range entries {
		data = append(data, e[:]...)
	}

	if n.parent == nil && b.spec.Width != 32 {
		copy(b.img[b.layout.RootDirStart*b.bps:], data)
	} else {
		b.writeClusters(n.chain, data)
	}

	for _, c := range n.children {
		if c.Dir {
			b.writeDir(c)
		}
	}
}

func (b *fatBuilder) writeFAT() {
	size := b.layout.FATSize * b.bps
	table := make([]byte, size)

	for n, v := range b.fat {
		switch b.spec.Width {
		case 12:
			off := n + n/2
			if n%2 == 0 {
				table[off] = byte(v)
				table[off+1] = table[off+1]&0xF0 | byte(v>>8)&0x0F
			} else {
				table[off] = table[off]&0x0F | byte(v<<4)
				table[off+1] = byte(v >> 4)
			}
		case 16:
			binary.LittleEndian.PutUint16(table[n*2:], uint16(v))
		case 32:
			if b.spec.DirtyHighBits {
				v |= 0xF0000000
			}
			binary.LittleEndian.PutUint32(table[n*4:], v)
		}
	}

	for i := uint32(0); i < 2; i++ {
		copy(b.img[(b.layout.FATStart+i*b.layout.FATSize)*b.bps:], table)
	}
}

func (b *fatBuilder) writeBootSector(hidden uint32) {
	s := b.img[:b.bps]
	le := binary.LittleEndian

	copy(s[0:], []byte{0xEB, 0x3C, 0x90})
	copy(s[3:], "GOLDRFMT")
	le.PutUint16(s[11:], uint16(b.bps))
	s[13] = byte(b.spc)
	le.PutUint16(s[14:], uint16(b.rsvd))
	s[16] = 2
	le.PutUint16(s[17:], uint16(b.rootN))
	if b.spec.Width != 32 && b.spec.Sectors < 0x10000 {
		le.PutUint16(s[19:], uint16(b.spec.Sectors))
	} else {
		le.PutUint32(s[32:], b.spec.Sectors)
	}
	s[21] = 0xF8
	le.PutUint16(s[24:], 63)
	le.PutUint16(s[26:], 255)
	le.PutUint32(s[28:], hidden)

	label := padLabel(b.spec.Label)
	if b.spec.Label == "" {
		label = padLabel("NO NAME")
	}

	ext := s[36:]
	if b.spec.Width == 32 {
		s[1] = 0x58
		le.PutUint32(s[36:], b.layout.FATSize)
		le.PutUint32(s[44:], b.layout.RootCluster)
		le.PutUint16(s[48:], 1)
		le.PutUint16(s[50:], 6)
		ext = s[64:]
	} else {
		le.PutUint16(s[22:], uint16(b.layout.FATSize))
	}

	ext[0] = 0x80
	ext[2] = 0x29
	le.PutUint32(ext[3:], 0x1234ABCD)
	copy(ext[7:18], label[:])
	copy(ext[18:26], "FAT"+strconv.Itoa(b.spec.Width)+"   ")

	s[510], s[511] = 0x55, 0xAA
}
