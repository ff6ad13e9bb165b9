// Command goldr boots images on an emulated machine and inspects the FAT
// volumes of disk images and block devices the way the loader sees them.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/aligator/goldr/errdefs"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "goldr",
		Usage:   "Multiboot loader for FAT volumes",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "print debug output",
			},
		},
		Before: func(c *cli.Context) error {
			log.SetOutput(os.Stderr)
			if c.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			bootCommand(),
			lsCommand(),
			catCommand(),
			probeCommand(),
			mkdiskCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Debugf("%+v", err)
		fmt.Fprintf(os.Stderr, "goldr: %s: %v\n", errdefs.Message(err), err)
		os.Exit(1)
	}
}
