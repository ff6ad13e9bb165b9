// Package goldr boots Multiboot kernels, ELF and PE executables, binaries
// and bootsectors from the FAT volumes of the firmware drives.
//
// A Context ties together what one boot attempt needs: the free physical
// memory, the opened devices with their caches and mounts and the loader.
//
//	ctx, err := goldr.New(drive, platform, memory, bootDevice)
//	if err != nil {
//		return err
//	}
//	defer ctx.Close()
//	img, err := ctx.BootDefault(config.DefaultPath)
package goldr

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/config"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/fat"
	"github.com/aligator/goldr/loader"
	"github.com/aligator/goldr/multiboot"
	"github.com/aligator/goldr/phys"
)

// ErrNoMemoryInfo is returned if the firmware reports neither the simple
// memory counts nor a memory map.
var ErrNoMemoryInfo = errors.New("no memory information")

// Context is the state of one boot attempt.
type Context struct {
	Devices *device.Manager
	Memory  *phys.Allocator
	Loader  *loader.Loader
}

// New creates a boot context reading from drive, with '/' on the boot device.
// The FAT driver is always registered, opts may add more drivers, a heap
// or a cache size.
func New(drive disk.Drive, platform loader.Platform, memory loader.Memory, boot device.ID, opts ...device.Option) (*Context, error) {
	mem, err := platform.MemoryInfo()
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrNoMemoryInfo)
	}
	if !mem.HasSimple && len(mem.Map) == 0 {
		return nil, checkpoint.From(ErrNoMemoryInfo)
	}

	alloc := phys.FromMemoryInfo(mem)
	log.Debugf("goldr: %d bytes of free memory in %v", alloc.Available(), alloc.Regions())

	opts = append([]device.Option{device.WithDrivers(fat.Driver{})}, opts...)
	devices := device.NewManager(drive, boot, opts...)

	return &Context{
		Devices: devices,
		Memory:  alloc,
		Loader:  loader.New(devices, alloc, platform, memory, multiboot.NewInfo(mem)),
	}, nil
}

// Close releases all devices.
func (c *Context) Close() {
	c.Devices.Release()
}

// Open opens a file or a whole device.
func (c *Context) Open(path string) (*device.Handle, error) {
	return c.Devices.Open(path)
}

// LoadConfig reads the boot configuration at path.
func (c *Context) LoadConfig(path string) (*config.Config, error) {
	h, err := c.Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	cfg, err := config.Load(h)
	if err != nil {
		return nil, checkpoint.Wrap(err, fmt.Errorf("config %q", path))
	}
	return cfg, nil
}

// Boot loads img and transfers control to it.
func (c *Context) Boot(img *loader.Image) error {
	log.Infof("goldr: booting %q", img.Name)
	if err := c.Loader.Load(img); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("boot %q", img.Name))
	}
	return nil
}

// BootDefault boots the default image of the configuration at configPath
// and returns it.
func (c *Context) BootDefault(configPath string) (*loader.Image, error) {
	cfg, err := c.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cfg.Default, c.Boot(cfg.Default)
}
