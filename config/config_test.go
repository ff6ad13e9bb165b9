package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/fat"
	"github.com/aligator/goldr/internal/testdisk"
	"github.com/aligator/goldr/loader"
)

const bootIni = `; boot menu
Timeout = 0x0A

[Linux]
Command = /boot/vmlinuz root=/dev/hda1 ro
module  = /boot/initrd.img ; the ramdisk
MODULE  = hd0,1/extra.mod  verbose

[ DOS ]
Command = hd0,0
Type    = bootsector
Drive   = 0x81
Default = Yes

[Raw]
Command = /raw.bin
Type    = Binary
Address = 0x100000
Drive   = 300
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(bootIni))
	require.NoError(t, err)

	want := []*loader.Image{
		{
			Name:    "Linux",
			Command: "/boot/vmlinuz root=/dev/hda1 ro",
			Type:    loader.Auto,
			Drive:   loader.NoDrive,
			Modules: []loader.Module{{Command: "/boot/initrd.img"}, {Command: "hd0,1/extra.mod  verbose"}},
		},
		{Name: "DOS", Command: "hd0,0", Type: loader.Bootsector, Drive: 0x81},
		{Name: "Raw", Command: "/raw.bin", Type: loader.Binary, Address: 0x100000, Drive: loader.NoDrive},
	}
	if diff := cmp.Diff(want, c.Images); diff != "" {
		t.Errorf("Parse() images mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.Same(t, c.Images[1], c.Default)
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse(strings.NewReader("[First]\r\nCommand=/a\r\n[Second]\rCommand=/b\x00\r"))
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, c.Timeout)
	require.Len(t, c.Images, 2)
	assert.Same(t, c.Images[0], c.Default)
	assert.Equal(t, "/b", c.Images[1].Command)
}

func TestParse_Default(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		wantDefault bool
	}{
		{name: "yes", value: "yes", wantDefault: true},
		{name: "number", value: "2", wantDefault: true},
		{name: "zero", value: "0", wantDefault: false},
		{name: "no", value: "No", wantDefault: false},
		{name: "garbage", value: "maybe", wantDefault: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(strings.NewReader("[A]\nCommand=/a\n[B]\nCommand=/b\nDefault=" + tt.value + "\n"))
			require.NoError(t, err)

			want := c.Images[0]
			if tt.wantDefault {
				want = c.Images[1]
			}
			assert.Same(t, want, c.Default)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrNoImages},
		{name: "only timeout", input: "Timeout=3\n", wantErr: ErrNoImages},
		{name: "directive outside of section", input: "Command=/a\n[A]\nCommand=/a\n", wantErr: ErrOutsideSection},
		{name: "timeout inside of section", input: "[A]\nCommand=/a\nTimeout=3\n", wantErr: ErrInsideSection},
		{name: "invalid timeout", input: "Timeout=soon\n[A]\nCommand=/a\n", wantErr: ErrInvalidInteger},
		{name: "empty timeout", input: "Timeout=\n[A]\nCommand=/a\n", wantErr: ErrInvalidInteger},
		{name: "missing command", input: "[A]\nType=Multiboot\n", wantErr: ErrMissingProperty},
		{name: "binary without address", input: "[A]\nCommand=/a\nType=Binary\nAddress=none\n", wantErr: ErrMissingProperty},
		{name: "two defaults", input: "[A]\nCommand=/a\nDefault=Yes\n[B]\nCommand=/b\nDefault=1\n", wantErr: ErrMultipleDefaults},
		{name: "line without value", input: "[A]\nCommand\n", wantErr: ErrSyntax},
		{name: "unclosed section", input: "[A\nCommand=/a\n", wantErr: ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(strings.NewReader(tt.input))
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errdefs.IsCorruptData(err), "got %v", err)
		})
	}
}

func TestParse_SectionNames(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantNames   []string
		wantDefault string
	}{
		{
			name:        "spaces",
			input:       "[ Linux ]\nCommand=/a\n",
			wantNames:   []string{"Linux"},
			wantDefault: "Linux",
		},
		{
			name:        "tabs and trailing spaces",
			input:       "[\tLinux\t  ]\nCommand=/a\n[DOS   ]\nCommand=hd0,0\n",
			wantNames:   []string{"Linux", "DOS"},
			wantDefault: "Linux",
		},
		{
			name:        "padded default",
			input:       "[Linux]\nCommand=/a\n[ \tDOS ]\nCommand=hd0,0\nDefault=Yes\n",
			wantNames:   []string{"Linux", "DOS"},
			wantDefault: "DOS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)

			var names []string
			for _, img := range c.Images {
				names = append(names, img.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantDefault, c.Default.Name)
		})
	}
}

func TestParse_UnknownType(t *testing.T) {
	c, err := Parse(strings.NewReader("[A]\nType=Multiboot\nType=Floppy\nCommand=/a\n"))
	require.NoError(t, err)
	assert.Equal(t, loader.Multiboot, c.Images[0].Type)
}

func TestLoad(t *testing.T) {
	d := testdisk.New(t, 8192)
	d.FormatFAT(t, 0, testdisk.FATSpec{Width: 12, Sectors: 8192, SectorsPerCluster: 4},
		testdisk.FATFile{Path: "/boot.ini", Data: []byte(bootIni)})

	devices := device.NewManager(d.Drive(t, disk.HardDisk), device.MakeID(disk.HardDisk, device.NoPartition), device.WithDrivers(fat.Driver{}))
	h, err := devices.Open(DefaultPath)
	require.NoError(t, err)
	defer h.Close()

	c, err := Load(h)
	require.NoError(t, err)
	assert.Len(t, c.Images, 3)
	assert.Equal(t, "DOS", c.Default.Name)
}

func Test_parseUint(t *testing.T) {
	tests := []struct {
		s      string
		base   int
		want   uint64
		wantOk bool
	}{
		{s: "42", base: 0, want: 42, wantOk: true},
		{s: "0x1F", base: 0, want: 0x1F, wantOk: true},
		{s: "017", base: 0, want: 017, wantOk: true},
		{s: "0", base: 0, want: 0, wantOk: true},
		{s: "0x", base: 0, want: 0, wantOk: true},
		{s: "12abc", base: 0, want: 12, wantOk: true},
		{s: "  7", base: 0, want: 7, wantOk: true},
		{s: "0x10", base: 10, want: 0, wantOk: true},
		{s: "99999999999", base: 10, want: 0xFFFFFFFF, wantOk: true},
		{s: "", base: 0, wantOk: false},
		{s: "yes", base: 10, wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got, ok := parseUint(tt.s, tt.base)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
