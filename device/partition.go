package device

import (
	"bytes"
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/errdefs"
)

const (
	partitionTableOffset = 0x1BE

	partitionUnused      = 0x00
	partitionExtended    = 0x05
	partitionExtendedLBA = 0x0F

	firstLogicalPartition = 4
)

type partitionEntry struct {
	Status   uint8
	StartCHS [3]byte
	Type     uint8
	EndCHS   [3]byte
	StartLBA uint32
	Sectors  uint32
}

func (p partitionEntry) unused() bool {
	return p.Type == partitionUnused
}

func (p partitionEntry) extended() bool {
	return p.Type == partitionExtended || p.Type == partitionExtendedLBA
}

// readPartitionTable reads the four entries of the partition table in sector.
func readPartitionTable(whole *Device, sector uint64) ([4]partitionEntry, error) {
	var table [4]partitionEntry

	buf := make([]byte, whole.SectorSize())
	if _, err := whole.ReadSectors(sector, buf); err != nil {
		return table, err
	}

	err := binary.Read(bytes.NewReader(buf[partitionTableOffset:]), binary.LittleEndian, &table)
	return table, checkpoint.From(err)
}

// findPartition returns the extent of partition part on the whole drive.
//
// Partitions 0-3 are the entries of the MBR. Logical partitions are found by
// walking the chain of extended boot records inside the single extended
// partition of the MBR: the first entry of every record is the logical
// partition, relative to the record, the second links to the next record,
// relative to the start of the extended partition.
func findPartition(whole *Device, part uint8) (uint64, uint64, error) {
	notFound := func(format string, args ...interface{}) (uint64, uint64, error) {
		return 0, 0, checkpoint.Wrap(fmt.Errorf("partition %d: "+format, append([]interface{}{part}, args...)...), errdefs.ErrNoSuchPartition)
	}

	mbr, err := readPartitionTable(whole, 0)
	if err != nil {
		return 0, 0, err
	}

	var found *partitionEntry
	for i := range mbr {
		e := &mbr[i]
		switch {
		case e.unused():
		case e.extended():
			if int(part) == i {
				return notFound("is an extended partition")
			}
			if part >= firstLogicalPartition {
				if found != nil {
					return notFound("table has two extended partitions")
				}
				found = e
			}
		case int(part) == i:
			found = e
		}
	}
	if found == nil {
		return notFound("does not exist")
	}

	if part < firstLogicalPartition {
		return uint64(found.StartLBA), uint64(found.Sectors), nil
	}

	extStart := uint64(found.StartLBA)
	ebr := extStart
	for i := firstLogicalPartition; i <= int(part); i++ {
		log.Debugf("device: reading extended boot record for partition %d at sector %d", i, ebr)
		table, err := readPartitionTable(whole, ebr)
		if err != nil {
			return 0, 0, err
		}

		if table[0].extended() {
			return notFound("extended boot record at %d starts with an extended entry", ebr)
		}
		if i == int(part) {
			if table[0].unused() {
				return notFound("extended boot record at %d is empty", ebr)
			}
			return ebr + uint64(table[0].StartLBA), uint64(table[0].Sectors), nil
		}

		if table[1].unused() || !table[1].extended() {
			break
		}
		ebr = extStart + uint64(table[1].StartLBA)
	}

	return notFound("is beyond the end of the extended partition chain")
}
