package device

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/cache"
	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/scratch"
)

// Option configures a Manager.
type Option func(*Manager)

// WithDrivers sets the filesystem drivers in the order they are probed.
func WithDrivers(drivers ...Driver) Option {
	return func(m *Manager) {
		m.drivers = append(m.drivers, drivers...)
	}
}

// WithHeap sets the scratch heap of all devices.
func WithHeap(h scratch.Heap) Option {
	return func(m *Manager) {
		m.heap = h
	}
}

// WithCacheCapacity sets the number of sectors every device caches.
func WithCacheCapacity(n int) Option {
	return func(m *Manager) {
		m.cacheCapacity = n
	}
}

// Manager opens devices and keeps every device it opened, so that opening
// the same device again returns the same instance, cache and mount included.
type Manager struct {
	drive         disk.Drive
	boot          ID
	heap          scratch.Heap
	drivers       []Driver
	cacheCapacity int

	devices []*Device
}

// NewManager creates a manager reading from drive.
// Paths starting with '/' resolve to the boot device.
func NewManager(drive disk.Drive, boot ID, opts ...Option) *Manager {
	m := &Manager{
		drive:         drive,
		boot:          boot,
		cacheCapacity: cache.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.heap == nil {
		m.heap = scratch.NewLimited(scratch.DefaultLimit)
	}
	return m
}

// BootDevice returns the ID '/' resolves to.
func (m *Manager) BootDevice() ID {
	return m.boot
}

// Devices returns the devices opened so far.
func (m *Manager) Devices() []*Device {
	return append([]*Device(nil), m.devices...)
}

// Release releases all mounted filesystems and forgets all devices.
func (m *Manager) Release() {
	for _, d := range m.devices {
		if d.fs != nil {
			d.fs.Release()
		}
	}
	m.devices = nil
}

// Resolve returns the device path addresses and the path remaining on it.
// The device is mounted if the remaining path is not empty.
func (m *Manager) Resolve(path string) (*Device, string, error) {
	id, rest, err := ParsePath(path, m.boot)
	if err != nil {
		return nil, "", err
	}

	dev, err := m.OpenDevice(id, rest != "")
	if err != nil {
		return nil, "", err
	}
	return dev, rest, nil
}

// Open opens the file or whole device at path.
func (m *Manager) Open(path string) (*Handle, error) {
	dev, rest, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := dev.fs.Open(rest)
	if err != nil {
		return nil, checkpoint.Wrap(err, fmt.Errorf("open %q", path))
	}

	log.Debugf("device: opened %q on %s (%s)", rest, dev.ID, dev.fsName)
	return &Handle{
		File:   f,
		Device: dev,
		whole:  rest == "",
	}, nil
}

// OpenDevice returns the device with the given ID, opening it on first use.
// Devices opened for file access and for raw access are distinct.
func (m *Manager) OpenDevice(id ID, mount bool) (*Device, error) {
	for _, d := range m.devices {
		if d.ID == id && d.Mounted == mount {
			return d, nil
		}
	}

	if p2, p3 := id.SubPartitions(); p2 != NoPartition || p3 != NoPartition {
		return nil, checkpoint.Wrap(fmt.Errorf("sub partitions of %s", id), errdefs.ErrNoSuchPartition)
	}

	params, err := m.drive.Parameters(id.Drive())
	if err != nil {
		if errors.Is(err, disk.ErrNoDrive) {
			return nil, checkpoint.Wrap(err, errdefs.ErrNoSuchDevice)
		}
		return nil, checkpoint.Wrap(err, errdefs.ErrIO)
	}
	if params.BytesPerSector == 0 {
		params.BytesPerSector = disk.DefaultSectorSize
	}

	dev := m.newDevice(id, params, 0, params.TotalSectors)
	if part := id.Partition(); part != NoPartition {
		whole := m.newDevice(MakeID(id.Drive(), NoPartition), params, 0, params.TotalSectors)
		start, size, err := findPartition(whole, part)
		if err != nil {
			return nil, err
		}
		if start+size < start || start+size > params.TotalSectors {
			return nil, checkpoint.Wrap(fmt.Errorf("%s spans sectors %d-%d of %d", id, start, start+size, params.TotalSectors), errdefs.ErrNoSuchPartition)
		}
		dev.StartSector = start
		dev.Sectors = size
	}

	dev.Mounted = mount
	if mount {
		m.mount(dev)
	} else {
		dev.fs, dev.fsName = &rawFs{dev: dev}, RawDriverName
	}

	log.Debugf("device: opened %s with %s", dev, dev.fsName)
	m.devices = append(m.devices, dev)
	return dev, nil
}

func (m *Manager) newDevice(id ID, params disk.Parameters, start, sectors uint64) *Device {
	return &Device{
		ID:          id,
		StartSector: start,
		Sectors:     sectors,
		Params:      params,
		drive:       m.drive,
		heap:        m.heap,
		cache:       cache.New(m.cacheCapacity),
	}
}

// mount binds the first driver accepting dev, or the raw driver if none does.
func (m *Manager) mount(dev *Device) {
	for _, drv := range m.drivers {
		fs, err := drv.Mount(dev)
		if err == nil {
			dev.fs, dev.fsName = fs, drv.Name()
			return
		}
		log.Debugf("device: %s rejected %s: %v", drv.Name(), dev.ID, err)
	}

	log.Warnf("device: no filesystem found on %s, using it as raw device", dev.ID)
	dev.fs, dev.fsName = &rawFs{dev: dev}, RawDriverName
}
