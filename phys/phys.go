// Package phys manages the free physical memory above 1 MiB that images and
// modules are loaded into.
package phys

import (
	"fmt"
	"math"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/multiboot"
)

// LowMemoryLimit is the first address the allocator manages.
// Everything below belongs to the loader and the firmware.
const LowMemoryLimit = 0x100000

// Region is a free interval [Address, Address+Size).
type Region struct {
	Address uint64
	Size    uint64
}

// End returns the first address after the region.
func (r Region) End() uint64 {
	return r.Address + r.Size
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x-%#x)", r.Address, r.End())
}

// Allocator keeps the free physical regions in list order.
// New regions are put in front of the list.
// The zero value is an allocator without free memory.
type Allocator struct {
	regions []Region
}

// New creates an allocator managing the given free regions.
func New(free ...Region) *Allocator {
	a := &Allocator{}
	for _, r := range free {
		a.Add(r.Address, r.Size)
	}
	return a
}

// FromMemoryInfo creates an allocator from the available entries of the
// firmware memory map and the simple upper memory count.
func FromMemoryInfo(mem multiboot.MemoryInfo) *Allocator {
	a := &Allocator{}
	for _, e := range mem.Map {
		if e.Type == multiboot.MemoryAvailable {
			a.Add(e.Base, e.Length)
		}
	}
	if mem.HasSimple {
		a.Add(LowMemoryLimit, uint64(mem.Upper)*1024)
	}
	return a
}

// Regions returns a copy of the free regions in list order.
func (a *Allocator) Regions() []Region {
	return append([]Region(nil), a.regions...)
}

// Available returns the total amount of free memory.
func (a *Allocator) Available() uint64 {
	var total uint64
	for _, r := range a.regions {
		total += r.Size
	}
	return total
}

// Add marks [start, start+length) as free.
// Parts below LowMemoryLimit are dropped.
func (a *Allocator) Add(start, length uint64) {
	end := start + length
	if end < start {
		end = math.MaxUint64
	}
	if length == 0 || end <= LowMemoryLimit {
		return
	}
	if start < LowMemoryLimit {
		start = LowMemoryLimit
	}

	for i := range a.regions {
		r := &a.regions[i]
		switch {
		case start >= r.Address && start <= r.End():
			// Start inside the region.
			if end > r.End() {
				r.Size = end - r.Address
			}
		case end >= r.Address && end <= r.End():
			// End inside the region.
			r.Size = r.End() - start
			r.Address = start
		case start < r.Address && end > r.End():
			// Covers the region.
			r.Address = start
			r.Size = end - start
		default:
			continue
		}

		a.coalesce(i)
		return
	}

	a.regions = append([]Region{{Address: start, Size: end - start}}, a.regions...)
}

// coalesce folds every region touching the region at index i into it.
func (a *Allocator) coalesce(i int) {
	for merged := true; merged; {
		merged = false
		for j := range a.regions {
			t, o := a.regions[i], a.regions[j]
			if j == i || o.Address > t.End() || t.Address > o.End() {
				continue
			}

			start, end := t.Address, t.End()
			if o.Address < start {
				start = o.Address
			}
			if o.End() > end {
				end = o.End()
			}
			a.regions[i] = Region{Address: start, Size: end - start}
			a.regions = append(a.regions[:j], a.regions[j+1:]...)
			if j < i {
				i--
			}
			merged = true
			break
		}
	}
}

// Free returns [address, address+size) to the allocator.
// size is rounded the same way Allocate rounds it.
func (a *Allocator) Free(address, size uint64) {
	a.Add(address, roundSize(size))
}

func roundSize(size uint64) uint64 {
	return (size + 3) &^ 3
}

// Allocate takes size bytes out of the free regions and returns their address.
//
// With start != 0 the memory must be available exactly at start, otherwise
// the first region in list order that holds size bytes at an address aligned
// to align is used. size is rounded up to a multiple of 4, align 0 means 1.
func (a *Allocator) Allocate(start, size, align uint64) (uint64, error) {
	if align == 0 {
		align = 1
	}
	size = roundSize(size)
	if size == 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("zero sized allocation"), errdefs.ErrOutOfMemory)
	}

	for i, r := range a.regions {
		addr := start
		if addr == 0 {
			addr = (r.Address + align - 1) / align * align
		}
		if addr < r.Address || addr+size < addr || addr+size > r.End() {
			continue
		}

		before := addr - r.Address
		after := r.End() - (addr + size)
		switch {
		case before != 0:
			a.regions[i].Size = before
			if after != 0 {
				a.Add(addr+size, after)
			}
		case after != 0:
			a.regions[i] = Region{Address: addr + size, Size: after}
		default:
			a.regions = append(a.regions[:i], a.regions[i+1:]...)
		}
		return addr, nil
	}

	if start != 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("%#x bytes at %#x are not free", size, start), errdefs.ErrOutOfMemory)
	}
	return 0, checkpoint.Wrap(fmt.Errorf("no free region holds %#x bytes", size), errdefs.ErrOutOfMemory)
}
