package loader

import (
	"debug/elf"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/fat"
	"github.com/aligator/goldr/internal/testdisk"
	"github.com/aligator/goldr/multiboot"
	"github.com/aligator/goldr/phys"
)

const (
	hd0 = disk.HardDisk

	freeStart = 0x100000
	freeSize  = 0x400000
)

type testEnv struct {
	platform *MockPlatform
	devices  *device.Manager
	mem      *phys.Allocator
	memory   afero.File
	info     *multiboot.Info
	loader   *Loader
}

// newEnv boots from a FAT16 volume holding files with 4 MiB free memory at 1 MiB.
func newEnv(t *testing.T, files ...testdisk.FATFile) *testEnv {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	d := testdisk.New(t, 20480)
	d.FormatFAT(t, 0, testdisk.FATSpec{Width: 16, Sectors: 20480, SectorsPerCluster: 4}, files...)

	memory, err := afero.NewMemMapFs().Create("/memory")
	require.NoError(t, err)

	env := &testEnv{
		platform: NewMockPlatform(ctrl),
		devices:  device.NewManager(d.Drive(t, hd0), device.MakeID(hd0, device.NoPartition), device.WithDrivers(fat.Driver{})),
		mem:      phys.New(phys.Region{Address: freeStart, Size: freeSize}),
		memory:   memory,
		info:     multiboot.NewInfo(multiboot.MemoryInfo{HasSimple: true, Lower: 639, Upper: 4096}),
	}
	env.loader = New(env.devices, env.mem, env.platform, env.memory, env.info)
	return env
}

// read returns n bytes of physical memory at addr.
func (e *testEnv) read(t *testing.T, addr int64, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := e.memory.ReadAt(buf, addr)
	require.NoError(t, err)
	return buf
}

// expectStart expects the image to be started at entry.
func (e *testEnv) expectStart(entry uint64) *gomock.Call {
	return e.platform.EXPECT().Multiboot(entry, e.info).Return(nil)
}

// expectSystemInformation expects the queries done for images with Multiboot header.
func (e *testEnv) expectSystemInformation() {
	e.platform.EXPECT().ConfigTable().Return(uint32(0xF0000), true)
	e.platform.EXPECT().APM().Return(nil, errors.New("no APM"))
}

func TestLoader_Load_ELF(t *testing.T) {
	text := fill(0x300, 1)
	data := fill(0x80, 2)
	kernel := elfImage(0x100010,
		load(0x1000, 0x100000, text, 0x300),
		elfSegment{typ: elf.PT_NOTE, off: 0x40, vaddr: 0, align: 4},
		load(0x2010, 0x180010, data, 0x1000),
	)

	env := newEnv(t,
		testdisk.FATFile{Path: "/boot/kernel.elf", Data: kernel, Fragmented: true},
		testdisk.FATFile{Path: "/boot/initrd.img", Data: fill(5000, 3)},
	)
	env.platform.EXPECT().EnableA20().Return(nil)
	env.expectStart(0x100010)

	img := &Image{
		Name:    "Kernel",
		Command: "/boot/kernel.elf root=/dev/hda1",
		Drive:   NoDrive,
		Modules: []Module{
			{Command: "/boot/initrd.img  ramdisk"},
			{Command: "/boot/missing.img"},
		},
	}
	require.NoError(t, env.loader.Load(img))

	assert.Equal(t, text, env.read(t, 0x100000, 0x300))
	assert.Equal(t, data, env.read(t, 0x180010, 0x80))
	assert.Equal(t, make([]byte, 0x1000-0x80), env.read(t, 0x180090, 0x1000-0x80))

	assert.Equal(t, "/boot/kernel.elf root=/dev/hda1", env.info.CmdLine)
	assert.Equal(t, multiboot.LoaderName, env.info.BootLoaderName)
	assert.Equal(t, uint32(device.MakeID(hd0, device.NoPartition)), env.info.BootDevice)
	assert.True(t, env.info.Has(multiboot.InfoCmdLine|multiboot.InfoBootDevice|multiboot.InfoModules|multiboot.InfoLoaderName))

	require.Len(t, env.info.Modules, 1)
	mod := env.info.Modules[0]
	assert.Equal(t, "ramdisk", mod.String)
	assert.Equal(t, uint32(5000), mod.End-mod.Start)
	assert.Equal(t, fill(5000, 3), env.read(t, int64(mod.Start), 5000))
	assert.Equal(t, []Module{{Command: "/boot/initrd.img  ramdisk"}}, img.Modules)
}

func TestLoader_Load_Multiboot(t *testing.T) {
	const (
		size   = 0x2345
		offset = 0x40
	)
	h := multiboot.Header{
		Flags:      multiboot.HasAddress | multiboot.WantPageAlign | multiboot.WantSimpleMemory,
		HeaderAddr: 0x200040,
		LoadAddr:   0x200000,
		BssEndAddr: 0x200000 + size + 0x800,
		EntryAddr:  0x200100,
	}
	kernel := multibootImage(size, offset, h)

	env := newEnv(t,
		testdisk.FATFile{Path: "/kernel", Data: kernel},
		testdisk.FATFile{Path: "/mod1", Data: fill(100, 4)},
		testdisk.FATFile{Path: "/mod2", Data: fill(3000, 5)},
	)
	env.expectSystemInformation()
	env.platform.EXPECT().EnableA20().Return(nil)
	env.expectStart(0x200100)

	img := &Image{Name: "MB", Command: "/kernel", Type: Multiboot, Modules: []Module{{Command: "/mod1"}, {Command: "/mod2 x=1"}}}
	require.NoError(t, env.loader.Load(img))

	assert.Equal(t, kernel, env.read(t, 0x200000, size))
	assert.Equal(t, make([]byte, 0x800), env.read(t, 0x200000+size, 0x800))

	assert.True(t, env.info.Has(multiboot.InfoConfig))
	assert.False(t, env.info.Has(multiboot.InfoAPM))
	assert.Equal(t, uint32(0xF0000), env.info.ConfigTable)

	require.Len(t, env.info.Modules, 2)
	for _, m := range env.info.Modules {
		assert.Zero(t, m.Start%pageSize, "module at %#x", m.Start)
	}
	assert.Equal(t, "", env.info.Modules[0].String)
	assert.Equal(t, "x=1", env.info.Modules[1].String)
	assert.Equal(t, fill(3000, 5), env.read(t, int64(env.info.Modules[1].Start), 3000))
}

func TestLoader_Load_MultibootHeaderAddresses(t *testing.T) {
	tests := []struct {
		name    string
		header  multiboot.Header
		wantErr bool
		// wantLoad is the number of file bytes expected at 0x200000.
		wantLoad  int
		wantTotal uint64
	}{
		{
			name:      "defaults to the whole file",
			header:    multiboot.Header{HeaderAddr: 0x200100, LoadAddr: 0x200000, EntryAddr: 0x200000},
			wantLoad:  0x1000,
			wantTotal: 0x1000,
		},
		{
			name:      "load end shortens the copy",
			header:    multiboot.Header{HeaderAddr: 0x200100, LoadAddr: 0x200000, LoadEndAddr: 0x200800, BssEndAddr: 0x202000, EntryAddr: 0x200000},
			wantLoad:  0x800,
			wantTotal: 0x2000,
		},
		{
			name:    "header before load address",
			header:  multiboot.Header{HeaderAddr: 0x1FFF00, LoadAddr: 0x200000},
			wantErr: true,
		},
		{
			name:    "header beyond its file offset",
			header:  multiboot.Header{HeaderAddr: 0x200200, LoadAddr: 0x200000},
			wantErr: true,
		},
		{
			name:    "load end before load address",
			header:  multiboot.Header{HeaderAddr: 0x200100, LoadAddr: 0x200000, LoadEndAddr: 0x100000},
			wantErr: true,
		},
		{
			name:    "bss end before load end",
			header:  multiboot.Header{HeaderAddr: 0x200100, LoadAddr: 0x200000, LoadEndAddr: 0x200800, BssEndAddr: 0x200400},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.header.Flags = multiboot.HasAddress
			kernel := multibootImage(0x1000, 0x100, tt.header)

			env := newEnv(t, testdisk.FATFile{Path: "/kernel", Data: kernel})
			env.expectSystemInformation()
			env.platform.EXPECT().EnableA20().Return(nil)

			if tt.wantErr {
				err := env.loader.Load(&Image{Command: "/kernel"})
				assert.True(t, errdefs.IsCorruptData(err), "got %v", err)
				assert.Equal(t, uint64(freeSize), env.mem.Available())
				return
			}

			env.expectStart(0x200000)
			require.NoError(t, env.loader.Load(&Image{Command: "/kernel"}))
			assert.Equal(t, kernel[:tt.wantLoad], env.read(t, 0x200000, tt.wantLoad))
			assert.Equal(t, uint64(freeSize)-tt.wantTotal, env.mem.Available())
		})
	}
}

func TestLoader_Load_PE(t *testing.T) {
	text := fill(0x200, 6)
	kernel := peImage(0x200000, 0x1000,
		coffSectionSpec{name: ".text", vaddr: 0x1000, vsize: 0x300, data: text, ptr: 0x400},
		coffSectionSpec{name: ".bss", vaddr: 0x2000, vsize: 0x100},
		coffSectionSpec{name: ".rdata", vaddr: 0x3000, vsize: 0x10, data: fill(0x200, 8), ptr: 0x600},
	)

	env := newEnv(t, testdisk.FATFile{Path: "/KERNEL.EXE", Data: kernel})
	env.platform.EXPECT().EnableA20().Return(nil)
	env.expectStart(0x201000)

	require.NoError(t, env.loader.Load(&Image{Command: "/kernel.exe", Type: Relocatable}))

	assert.Equal(t, text, env.read(t, 0x201000, 0x200))
	assert.Equal(t, make([]byte, 0x100), env.read(t, 0x201200, 0x100))
	assert.Equal(t, make([]byte, 0x100), env.read(t, 0x202000, 0x100))
	// Raw data beyond the virtual size is not copied.
	assert.Equal(t, fill(0x200, 8)[:0x10], env.read(t, 0x203000, 0x10))
	assert.Equal(t, uint64(freeSize-0x300-0x100-0x10), env.mem.Available())
}

func TestLoader_Load_LegacyCOFF(t *testing.T) {
	text := fill(0x100, 9)
	kernel := legacyCOFFImage(0x300000,
		coffSectionSpec{name: ".text", vaddr: 0x300000, data: text, ptr: 0x200},
		coffSectionSpec{name: ".bss", vaddr: 0x301000, bss: true, rawSize: 0x80, ptr: 0x300},
	)

	env := newEnv(t, testdisk.FATFile{Path: "/kernel.cof", Data: kernel})
	env.platform.EXPECT().EnableA20().Return(nil)
	env.expectStart(0x300000)

	require.NoError(t, env.loader.Load(&Image{Command: "/kernel.cof"}))

	assert.Equal(t, text, env.read(t, 0x300000, 0x100))
	assert.Equal(t, make([]byte, 0x80), env.read(t, 0x301000, 0x80))
	assert.Equal(t, uint64(freeSize-0x100-0x80), env.mem.Available())
}

func TestLoader_Load_Binary(t *testing.T) {
	kernel := fill(1234, 10)
	env := newEnv(t, testdisk.FATFile{Path: "/kernel.bin", Data: kernel})
	env.platform.EXPECT().EnableA20().Return(nil)
	env.expectStart(0x180000)

	require.NoError(t, env.loader.Load(&Image{Command: "/kernel.bin", Type: Binary, Address: 0x180000}))
	assert.Equal(t, kernel, env.read(t, 0x180000, len(kernel)))
}

func TestLoader_Load_Types(t *testing.T) {
	elfKernel := elfImage(0x100000, load(0x1000, 0x100000, fill(0x100, 1), 0x100))
	peKernel := peImage(0x200000, 0x1000, coffSectionSpec{name: ".text", vaddr: 0x1000, vsize: 0x100, data: fill(0x100, 2), ptr: 0x400})

	tests := []struct {
		name      string
		file      []byte
		img       Image
		wantEntry uint64
		wantErr   error
	}{
		{name: "auto finds ELF", file: elfKernel, img: Image{}, wantEntry: 0x100000},
		{name: "auto finds PE", file: peKernel, img: Image{}, wantEntry: 0x201000},
		{name: "relocatable finds ELF", file: elfKernel, img: Image{Type: Relocatable}, wantEntry: 0x100000},
		{name: "auto falls back to binary", file: fill(100, 3), img: Image{Address: 0x110000}, wantEntry: 0x110000},
		{name: "binary ignores ELF header", file: elfKernel, img: Image{Type: Binary, Address: 0x300000}, wantEntry: 0x300000},
		{name: "binary without address", file: elfKernel, img: Image{Type: Binary}, wantErr: errdefs.ErrUnknownFileType},
		{name: "multiboot without header", file: elfKernel, img: Image{Type: Multiboot}, wantErr: errdefs.ErrUnknownFileType},
		{name: "relocatable text file", file: []byte("hello world\n"), img: Image{Type: Relocatable, Address: 0x110000}, wantErr: errdefs.ErrUnknownFileType},
		{name: "unknown text file", file: []byte("hello world\n"), img: Image{}, wantErr: errdefs.ErrUnknownFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, testdisk.FATFile{Path: "/image", Data: tt.file})
			env.platform.EXPECT().EnableA20().Return(nil)
			if tt.wantErr == nil {
				env.expectStart(tt.wantEntry)
			}

			tt.img.Command = "/image"
			err := env.loader.Load(&tt.img)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, []phys.Region{{Address: freeStart, Size: freeSize}}, env.mem.Regions())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoader_Load_CorruptELF(t *testing.T) {
	tests := []struct {
		name     string
		segments []elfSegment
		wantErr  error
	}{
		{
			name:     "file size above memory size",
			segments: []elfSegment{load(0x1000, 0x100000, fill(0x200, 1), 0x100)},
			wantErr:  errdefs.ErrCorruptData,
		},
		{
			name:     "misaligned offset",
			segments: []elfSegment{load(0x1010, 0x100000, fill(0x200, 1), 0x200)},
			wantErr:  errdefs.ErrCorruptData,
		},
		{
			name:     "no page alignment",
			segments: []elfSegment{{typ: elf.PT_LOAD, off: 0x1000, vaddr: 0x100000, data: fill(0x10, 1), memsz: 0x10, align: 0x10}},
			wantErr:  errdefs.ErrCorruptData,
		},
		{
			name:     "nothing to load",
			segments: []elfSegment{{typ: elf.PT_NOTE, off: 0x40, align: 4}},
			wantErr:  errdefs.ErrCorruptData,
		},
		{
			name:     "segment outside of free memory",
			segments: []elfSegment{load(0x1000, 0x800000, fill(0x200, 1), 0x200)},
			wantErr:  errdefs.ErrOutOfMemory,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, testdisk.FATFile{Path: "/kernel", Data: elfImage(0x100000, tt.segments...)})
			env.platform.EXPECT().EnableA20().Return(nil)

			err := env.loader.Load(&Image{Command: "/kernel"})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, uint64(freeSize), env.mem.Available())
		})
	}
}

func TestLoader_Load_NotExecutable(t *testing.T) {
	kernel := elfImage(0x100000, load(0x1000, 0x100000, fill(0x100, 1), 0x100))
	kernel[18] = byte(elf.EM_X86_64)

	env := newEnv(t, testdisk.FATFile{Path: "/kernel", Data: kernel})
	env.platform.EXPECT().EnableA20().Return(nil)

	err := env.loader.Load(&Image{Command: "/kernel", Address: 0x100000})
	assert.ErrorIs(t, err, ErrNotExecutable)
	assert.True(t, errdefs.IsUnknownFileType(err))
}

// A failing segment only gives back its own memory.
func TestLoader_Load_RollsBackLastAllocation(t *testing.T) {
	kernel := elfImage(0x100000,
		load(0x1000, 0x100000, fill(0x400, 1), 0x400),
		load(0x2000, 0x200000, fill(0x400, 2), 0x400),
	)
	// Cut the data of the second segment.
	kernel = kernel[:0x2100]

	env := newEnv(t, testdisk.FATFile{Path: "/kernel", Data: kernel})
	env.platform.EXPECT().EnableA20().Return(nil)

	err := env.loader.Load(&Image{Command: "/kernel"})
	assert.True(t, errdefs.IsCorruptData(err), "got %v", err)
	assert.Equal(t, uint64(freeSize-0x400), env.mem.Available())
	assert.Equal(t, []phys.Region{{Address: 0x100400, Size: freeSize - 0x400}}, env.mem.Regions())
}

func TestLoader_Load_Requirements(t *testing.T) {
	tests := []struct {
		name    string
		flags   uint32
		info    multiboot.MemoryInfo
		prepare func(p *MockPlatform)
		wantErr error
	}{
		{
			name:    "unsupported flag",
			flags:   multiboot.WantPageAlign | 0x8,
			info:    multiboot.MemoryInfo{HasSimple: true},
			wantErr: ErrUnsupportedRequirements,
		},
		{
			name:  "no graphics",
			flags: multiboot.WantGraphics,
			info:  multiboot.MemoryInfo{HasSimple: true},
			prepare: func(p *MockPlatform) {
				p.EXPECT().VBE(gomock.Any()).Return(nil, errors.New("no VBE"))
			},
			wantErr: ErrWrongHardware,
		},
		{
			name:    "no simple memory information",
			flags:   multiboot.WantSimpleMemory,
			info:    multiboot.MemoryInfo{Map: []multiboot.MemoryMapEntry{{Base: 0x100000, Length: 0x100000, Type: multiboot.MemoryAvailable}}},
			wantErr: ErrWrongHardware,
		},
		{
			name:  "no A20",
			flags: multiboot.WantSimpleMemory,
			info:  multiboot.MemoryInfo{HasSimple: true},
			prepare: func(p *MockPlatform) {
				p.EXPECT().EnableA20().Return(errors.New("keyboard controller timeout"))
			},
			wantErr: ErrA20,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kernel := multibootImage(0x1000, 0, multiboot.Header{Flags: tt.flags})
			env := newEnv(t, testdisk.FATFile{Path: "/kernel", Data: kernel})
			*env.info = *multiboot.NewInfo(tt.info)

			if (multiboot.Header{Flags: tt.flags}).Unsupported() == 0 {
				env.expectSystemInformation()
			}
			if tt.prepare != nil {
				tt.prepare(env.platform)
			}

			err := env.loader.Load(&Image{Command: "/kernel"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoader_Load_Graphics(t *testing.T) {
	h := withChecksum(multiboot.Header{Flags: multiboot.WantGraphics, ModeType: multiboot.ModeLinearGraphics, Width: 800, Height: 600, Depth: 32})
	kernel := put(elfImage(0x100000, load(0x1000, 0x100000, fill(0x100, 1), 0x100)), 0x100, encode(h))

	env := newEnv(t, testdisk.FATFile{Path: "/kernel", Data: kernel})
	env.expectSystemInformation()
	vbe := &multiboot.VBEInfo{Mode: 0x115}
	env.platform.EXPECT().VBE(gomock.Any()).DoAndReturn(func(mode multiboot.Header) (*multiboot.VBEInfo, error) {
		assert.Equal(t, uint32(800), mode.Width)
		return vbe, nil
	})
	env.platform.EXPECT().EnableA20().Return(nil)
	env.expectStart(0x100000)

	require.NoError(t, env.loader.Load(&Image{Command: "/kernel"}))
	assert.True(t, env.info.Has(multiboot.InfoGraphics))
	assert.Same(t, vbe, env.info.VBE)
}

func TestLoader_Load_NoTransfer(t *testing.T) {
	env := newEnv(t, testdisk.FATFile{Path: "/kernel.bin", Data: fill(100, 1)})
	env.platform.EXPECT().EnableA20().Return(nil)
	env.platform.EXPECT().Multiboot(uint64(0x180000), gomock.Any()).Return(errors.New("returned"))

	err := env.loader.Load(&Image{Command: "/kernel.bin", Address: 0x180000})
	assert.ErrorIs(t, err, ErrNoTransfer)
}

func TestLoader_Load_Bootsector(t *testing.T) {
	tests := []struct {
		name      string
		file      []byte
		img       Image
		wantDrive uint8
		wantErr   error
	}{
		{name: "file", file: bootsector(true), img: Image{Command: "/boot.bin", Type: Bootsector, Drive: NoDrive}, wantDrive: hd0},
		{name: "file with drive", file: bootsector(true), img: Image{Command: "/boot.bin", Type: Bootsector, Drive: 0x81}, wantDrive: 0x81},
		{name: "whole device ignores the drive", img: Image{Command: "hd0", Drive: 0x81}, wantDrive: hd0},
		{name: "no signature", file: bootsector(false), img: Image{Command: "/boot.bin", Type: Bootsector, Drive: NoDrive}, wantErr: errdefs.ErrCorruptData},
		{name: "too large", file: append(bootsector(true), 0), img: Image{Command: "/boot.bin", Type: Bootsector, Drive: NoDrive}, wantErr: errdefs.ErrCorruptData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, testdisk.FATFile{Path: "/boot.bin", Data: tt.file})
			if tt.wantErr != nil {
				err := env.loader.Load(&tt.img)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			env.platform.EXPECT().BootSector(tt.wantDrive, uint64(BootsectorAddress)).Return(nil)
			require.NoError(t, env.loader.Load(&tt.img))

			sector := env.read(t, BootsectorAddress, 512)
			assert.Equal(t, []byte{0x55, 0xAA}, sector[510:])
			if tt.file != nil {
				assert.Equal(t, tt.file, sector)
			}
		})
	}
}

func TestLoader_Load_Missing(t *testing.T) {
	env := newEnv(t)
	err := env.loader.Load(&Image{Command: "/kernel"})
	assert.True(t, errdefs.IsNotFound(err), "got %v", err)

	err = env.loader.Load(&Image{Command: "hd5,0/kernel"})
	assert.True(t, errdefs.IsNoSuchDevice(err), "got %v", err)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in     string
		want   Type
		wantOk bool
	}{
		{in: "binary", want: Binary, wantOk: true},
		{in: "MultiBoot", want: Multiboot, wantOk: true},
		{in: "Bootsector", want: Bootsector, wantOk: true},
		{in: "relocatable", want: Relocatable, wantOk: true},
		{in: "auto", want: Auto, wantOk: true},
		{in: "exe", want: Auto, wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}

func Test_splitCommand(t *testing.T) {
	tests := []struct {
		cmd      string
		wantPath string
		wantArgs string
	}{
		{cmd: "/boot/kernel", wantPath: "/boot/kernel"},
		{cmd: "/boot/kernel root=/dev/hda1 quiet", wantPath: "/boot/kernel", wantArgs: "root=/dev/hda1 quiet"},
		{cmd: "hd0,1/mod   arg", wantPath: "hd0,1/mod", wantArgs: "arg"},
		{cmd: "/mod ", wantPath: "/mod"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			path, args := splitCommand(tt.cmd)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
