package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/disk"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/fat"
	"github.com/aligator/goldr/loader"
)

func driveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "boot",
			Usage: "device '/' resolves to",
			Value: "hd0",
		},
		&cli.UintFlag{
			Name:  "sector-size",
			Usage: "sector size of image files, block devices report their own",
			Value: disk.DefaultSectorSize,
		},
	}
}

// openDevices attaches the disk image or block device of the first argument
// as first hard disk.
func openDevices(c *cli.Context) (*device.Manager, func(), error) {
	if c.NArg() < 1 {
		return nil, nil, fmt.Errorf("missing disk image")
	}

	images := disk.NewImages()
	if err := images.AttachFile(afero.NewOsFs(), disk.HardDisk, c.Args().Get(0), uint16(c.Uint("sector-size"))); err != nil {
		return nil, nil, err
	}

	boot, rest, err := device.ParsePath(c.String("boot"), 0)
	if err != nil {
		images.Close()
		return nil, nil, err
	}
	if rest != "" {
		images.Close()
		return nil, nil, fmt.Errorf("boot device %q contains a path", c.String("boot"))
	}

	m := device.NewManager(images, boot, device.WithDrivers(fat.Driver{}))
	return m, func() {
		m.Release()
		images.Close()
	}, nil
}

// pathArg returns the argument at i, def if it is missing.
func pathArg(c *cli.Context, i int, def string) string {
	if c.NArg() <= i {
		return def
	}
	return c.Args().Get(i)
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "list a directory of a FAT volume",
		ArgsUsage: "IMAGE [PATH]",
		Flags:     driveFlags(),
		Action: func(c *cli.Context) error {
			devices, closeAll, err := openDevices(c)
			if err != nil {
				return err
			}
			defer closeAll()

			path := pathArg(c, 1, "/")
			dev, rest, err := devices.Resolve(path)
			if err != nil {
				return err
			}
			fsys, ok := dev.Filesystem().(*fat.Fs)
			if !ok {
				return checkpoint.Wrap(fmt.Errorf("%s has no FAT volume", dev.ID), errdefs.ErrUnsupportedFilesystem)
			}

			entries, err := afero.ReadDir(fat.NewAferoFs(fsys), rest)
			if err != nil {
				return err
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

			w := c.App.Writer
			fmt.Fprintf(w, "%s: %s volume %q\n", dev.ID, fsys.FSType(), fsys.Label())
			for _, e := range entries {
				size := humanize.IBytes(uint64(e.Size()))
				if e.IsDir() {
					size = "-"
				}
				fmt.Fprintf(w, "%s %9s %s %s\n", e.Mode(), size, e.ModTime().Format("2006-01-02 15:04"), e.Name())
			}
			return nil
		},
	}
}

func catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "print a file or device",
		ArgsUsage: "IMAGE PATH",
		Flags:     driveFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("missing path")
			}
			devices, closeAll, err := openDevices(c)
			if err != nil {
				return err
			}
			defer closeAll()

			h, err := devices.Open(c.Args().Get(1))
			if err != nil {
				return err
			}
			defer h.Close()

			_, err = io.Copy(c.App.Writer, h)
			return checkpoint.From(err)
		},
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "tell how an image would be loaded",
		ArgsUsage: "IMAGE PATH",
		Flags:     driveFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("missing path")
			}
			devices, closeAll, err := openDevices(c)
			if err != nil {
				return err
			}
			defer closeAll()

			path := c.Args().Get(1)
			h, err := devices.Open(path)
			if err != nil {
				return err
			}
			defer h.Close()

			d, err := loader.Detect(h)
			if err != nil {
				return err
			}

			w := c.App.Writer
			fmt.Fprintf(w, "%s: %s on %s (%s)\n", path, humanize.IBytes(uint64(h.Size())), h.Device.ID, h.Device.FilesystemName())
			if d.Header != nil {
				hd := d.Header
				fmt.Fprintf(w, "  Multiboot header at %d, flags %#x\n", d.HeaderOffset, hd.Flags)
				if hd.Unsupported() != 0 {
					fmt.Fprintf(w, "  unsupported requirements %#x\n", hd.Unsupported())
				}
			}
			switch {
			case d.Format == loader.FormatUnknown:
				fmt.Fprintf(w, "  no executable format\n")
			case d.Err != nil:
				fmt.Fprintf(w, "  %s, cannot be loaded: %v\n", d.Format, d.Err)
			default:
				fmt.Fprintf(w, "  %s, entry %#x\n", d.Format, d.Entry)
			}
			return nil
		},
	}
}
