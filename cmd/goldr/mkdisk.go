package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	diskpkg "github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/aligator/goldr/checkpoint"
)

const (
	sectorSize = 512
	// partitionStart leaves the first track free as usual.
	partitionStart = 2048
	// minFAT32Sectors holds enough single sector clusters to make a FAT32 volume.
	minFAT32Sectors = 70000
)

func mkdiskCommand() *cli.Command {
	return &cli.Command{
		Name:      "mkdisk",
		Usage:     "create a disk image with one FAT32 partition",
		ArgsUsage: "OUT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "size",
				Usage: "size of the image",
				Value: "64MiB",
			},
			&cli.StringFlag{
				Name:  "label",
				Usage: "volume label",
				Value: "GOLDR",
			},
			&cli.StringSliceFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "copy local file SRC to DST on the volume, as SRC:DST",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("missing output image")
			}
			out := c.Args().Get(0)

			size, err := humanize.ParseBytes(c.String("size"))
			if err != nil {
				return err
			}
			size -= size % sectorSize
			if size/sectorSize < partitionStart+minFAT32Sectors {
				return fmt.Errorf("image size %s is too small", humanize.IBytes(size))
			}

			d, err := diskfs.Create(out, int64(size), diskfs.Raw, diskfs.SectorSizeDefault)
			if err != nil {
				return checkpoint.From(err)
			}
			defer d.File.Close()

			table := &mbr.Table{
				LogicalSectorSize:  sectorSize,
				PhysicalSectorSize: sectorSize,
				Partitions: []*mbr.Partition{{
					Bootable: true,
					Type:     mbr.Fat32LBA,
					Start:    partitionStart,
					Size:     uint32(size/sectorSize - partitionStart),
				}},
			}
			if err := d.Partition(table); err != nil {
				return checkpoint.From(err)
			}

			fs, err := d.CreateFilesystem(diskpkg.FilesystemSpec{
				Partition:   1,
				FSType:      filesystem.TypeFat32,
				VolumeLabel: c.String("label"),
			})
			if err != nil {
				return checkpoint.From(err)
			}

			for _, spec := range c.StringSlice("file") {
				if err := copyToVolume(fs, spec); err != nil {
					return err
				}
			}

			fmt.Fprintf(c.App.Writer, "%s: %s, FAT32 partition hd0,0\n", out, humanize.IBytes(size))
			return nil
		},
	}
}

// copyToVolume copies a local file to the volume. spec is SRC:DST, DST
// defaults to the base name of SRC in the root directory.
func copyToVolume(fs filesystem.FileSystem, spec string) error {
	src, dst := spec, ""
	if i := strings.LastIndexByte(spec, ':'); i >= 0 {
		src, dst = spec[:i], spec[i+1:]
	}
	if dst == "" {
		dst = path.Base(src)
	}
	dst = path.Clean("/" + dst)

	data, err := os.ReadFile(src)
	if err != nil {
		return checkpoint.From(err)
	}

	if dir := path.Dir(dst); dir != "/" {
		if err := fs.Mkdir(dir); err != nil {
			return checkpoint.Wrap(err, fmt.Errorf("mkdir %q", dir))
		}
	}

	f, err := fs.OpenFile(dst, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("create %q", dst))
	}
	if _, err := f.Write(data); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("write %q", dst))
	}

	log.Debugf("mkdisk: %s -> %s (%s)", src, dst, humanize.IBytes(uint64(len(data))))
	return nil
}
