package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/aligator/goldr"
	"github.com/aligator/goldr/config"
	"github.com/aligator/goldr/emu"
	"github.com/aligator/goldr/loader"
	"github.com/aligator/goldr/multiboot"
)

func bootCommand() *cli.Command {
	return &cli.Command{
		Name:  "boot",
		Usage: "boot an image of the configuration on an emulated machine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "machine",
				Aliases:  []string{"m"},
				Usage:    "YAML description of the machine",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path of the boot configuration",
				Value:   config.DefaultPath,
			},
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "name of the image to boot instead of the default",
			},
		},
		Action: func(c *cli.Context) error {
			fs := afero.NewOsFs()
			spec, err := emu.LoadSpec(fs, c.String("machine"))
			if err != nil {
				return err
			}

			m, err := emu.New(fs, spec)
			if err != nil {
				return err
			}
			defer m.Close()

			boot, err := m.BootDevice()
			if err != nil {
				return err
			}

			ctx, err := goldr.New(m, m, m, boot)
			if err != nil {
				return err
			}
			defer ctx.Close()

			cfg, err := ctx.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}

			img, err := pickImage(cfg, c.String("image"))
			if err != nil {
				return err
			}
			if err := ctx.Boot(img); err != nil {
				return err
			}

			handoff, ok := m.LastHandoff()
			if !ok {
				return fmt.Errorf("%q did not start", img.Name)
			}
			printHandoff(c.App.Writer, img, handoff)
			return nil
		},
	}
}

// pickImage returns the image called name, the default if name is empty.
func pickImage(cfg *config.Config, name string) (*loader.Image, error) {
	if name == "" {
		return cfg.Default, nil
	}
	for _, img := range cfg.Images {
		if strings.EqualFold(img.Name, name) {
			return img, nil
		}
	}
	return nil, fmt.Errorf("no image %q in the configuration", name)
}

func printHandoff(w io.Writer, img *loader.Image, h emu.Handoff) {
	fmt.Fprintf(w, "%s: %s jump to %#x", img.Name, h.Kind, h.Entry)
	if h.Kind == emu.BootsectorHandoff {
		fmt.Fprintf(w, " with drive %#x\n", h.Drive)
		return
	}
	fmt.Fprintf(w, " with A20 %v\n", h.A20)

	info := h.Info
	fmt.Fprintf(w, "  flags        %#x\n", info.Flags)
	if info.Has(multiboot.InfoSimpleMemory) {
		fmt.Fprintf(w, "  memory       %s lower, %s upper\n", humanize.IBytes(uint64(info.MemLower)*1024), humanize.IBytes(uint64(info.MemUpper)*1024))
	}
	if info.Has(multiboot.InfoBootDevice) {
		fmt.Fprintf(w, "  boot device  %#08x\n", info.BootDevice)
	}
	if info.Has(multiboot.InfoCmdLine) {
		fmt.Fprintf(w, "  command line %q\n", info.CmdLine)
	}
	for _, mod := range info.Modules {
		fmt.Fprintf(w, "  module       [%#x-%#x) %s %q\n", mod.Start, mod.End, humanize.IBytes(uint64(mod.End-mod.Start)), mod.String)
	}
	for _, e := range info.MemoryMap {
		fmt.Fprintf(w, "  memory map   [%#x-%#x) %s type %d\n", e.Base, e.Base+e.Length, humanize.IBytes(e.Length), e.Type)
	}
	if info.Has(multiboot.InfoGraphics) {
		fmt.Fprintf(w, "  video mode   %#x\n", info.VBE.Mode)
	}
}
