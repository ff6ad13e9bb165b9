// Package config reads the boot.ini file which lists the images to boot.
//
//  Timeout = 10              ; seconds until the default image is booted
//
//  [Linux]
//  Command = /boot/vmlinuz root=/dev/hda1
//  Module  = /boot/initrd.img
//  Default = Yes
//
//  [DOS]
//  Command = hd0,0
//  Type    = Bootsector
//
// Every section describes one image named after the section. Only Timeout
// may appear before the first section and only there. Names of directives
// and types are case insensitive, everything after a ';' is a comment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/aligator/goldr/checkpoint"
	"github.com/aligator/goldr/device"
	"github.com/aligator/goldr/errdefs"
	"github.com/aligator/goldr/loader"
)

// DefaultPath is where the configuration is read from on the boot device.
const DefaultPath = "/boot.ini"

// DefaultTimeout is used if the file has no Timeout directive.
const DefaultTimeout = 120 * time.Second

// These errors describe an invalid configuration. They are all also
// errdefs.ErrCorruptData.
var (
	ErrSyntax           = errors.New("syntax error")
	ErrOutsideSection   = errors.New("directive outside of an image section")
	ErrInsideSection    = errors.New("directive inside of an image section")
	ErrInvalidInteger   = errors.New("invalid integer")
	ErrMissingProperty  = errors.New("missing property")
	ErrMultipleDefaults = errors.New("more than one default image")
	ErrNoImages         = errors.New("no images")
)

// Config is a parsed boot.ini.
type Config struct {
	// Timeout is the time the boot menu waits before booting Default.
	Timeout time.Duration
	// Images in the order of the file.
	Images  []*loader.Image
	Default *loader.Image
}

// invalid returns an error of kind wrapping a description.
func invalid(kind error, format string, args ...interface{}) error {
	return checkpoint.Wrap(checkpoint.Wrap(fmt.Errorf(format, args...), kind), errdefs.ErrCorruptData)
}

// Load reads the configuration from an open file.
func Load(h *device.Handle) (*Config, error) {
	return Parse(h)
}

// Parse reads a configuration.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, checkpoint.Wrap(err, errdefs.ErrIO)
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:        true,
		AllowShadows:           true,
		AllowNonUniqueSections: true,
		IgnoreInlineComment:    true,
		IgnoreContinuation:     true,
		KeyValueDelimiters:     "=",
		// Values are taken as written, a Command may well contain quotes.
		PreserveSurroundedQuote: true,
	}, normalize(data))
	if err != nil {
		return nil, invalid(ErrSyntax, "%v", err)
	}

	c := &Config{Timeout: DefaultTimeout}
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			if err := c.global(sec); err != nil {
				return nil, err
			}
			continue
		}

		img, err := c.image(sec)
		if err != nil {
			return nil, err
		}
		c.Images = append(c.Images, img)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	log.Debugf("config: %d images, default %q, timeout %v", len(c.Images), c.Default.Name, c.Timeout)
	return c, nil
}

// normalize removes NUL bytes and comments and unifies line endings.
func normalize(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte{0}, nil)
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))

	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		if sc := bytes.IndexByte(line, ';'); sc >= 0 {
			lines[i] = line[:sc]
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

// values returns every value given for key, including empty ones.
func values(key *ini.Key) []string {
	if v := key.ValueWithShadows(); len(v) > 0 {
		return v
	}
	return []string{""}
}

func (c *Config) global(sec *ini.Section) error {
	for _, key := range sec.Keys() {
		if key.Name() != "timeout" {
			return invalid(ErrOutsideSection, "%s", key.Name())
		}
		for _, v := range values(key) {
			n, ok := parseUint(v, 0)
			if !ok {
				return invalid(ErrInvalidInteger, "%s = %q", key.Name(), v)
			}
			c.Timeout = time.Duration(n) * time.Second
		}
	}
	return nil
}

func (c *Config) image(sec *ini.Section) (*loader.Image, error) {
	img := &loader.Image{
		Name:  strings.TrimSpace(sec.Name()),
		Type:  loader.Auto,
		Drive: loader.NoDrive,
	}

	for _, key := range sec.Keys() {
		for _, v := range values(key) {
			if err := c.directive(img, key.Name(), v); err != nil {
				return nil, err
			}
		}
	}
	return img, nil
}

func (c *Config) directive(img *loader.Image, name, value string) error {
	switch name {
	case "timeout":
		return invalid(ErrInsideSection, "%s in [%s]", name, img.Name)

	case "command":
		img.Command = value

	case "address":
		// An invalid address leaves the image without one.
		img.Address, _ = parseUint(value, 0)

	case "drive":
		drive, ok := parseUint(value, 0)
		if !ok || drive > 0xFF {
			drive = loader.NoDrive
		}
		img.Drive = uint32(drive)

	case "module":
		img.Modules = append(img.Modules, loader.Module{Command: value})

	case "type":
		if t, ok := loader.ParseType(value); ok && t != loader.Auto {
			img.Type = t
		} else if !ok {
			log.Warnf("config: unknown type %q of [%s]", value, img.Name)
		}

	case "default":
		n, ok := parseUint(value, 10)
		if !ok && strings.EqualFold(value, "Yes") {
			n = 1
		}
		if n != 0 {
			if c.Default != nil {
				return invalid(ErrMultipleDefaults, "[%s] and [%s]", c.Default.Name, img.Name)
			}
			c.Default = img
		}

	default:
		log.Warnf("config: ignoring unknown directive %q of [%s]", name, img.Name)
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Images) == 0 {
		return invalid(ErrNoImages, "no image sections")
	}

	for _, img := range c.Images {
		if img.Command == "" {
			return invalid(ErrMissingProperty, "[%s] has no Command", img.Name)
		}
		if img.Type == loader.Binary && img.Address == 0 {
			return invalid(ErrMissingProperty, "[%s] has no Address", img.Name)
		}
	}

	if c.Default == nil {
		c.Default = c.Images[0]
	}
	return nil
}

// parseUint parses the leading number of s. Base 0 accepts a 0x prefix for
// hexadecimal and a leading 0 for octal numbers. Values above 32 bits are
// clamped. The bool is false if s does not start with a digit.
func parseUint(s string, base int) (uint64, bool) {
	s = strings.TrimLeft(s, " \t")
	if base == 0 {
		switch {
		case len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") && digitValue(s[2]) < 16:
			base, s = 16, s[2:]
		case len(s) > 1 && s[0] == '0':
			base = 8
		default:
			base = 10
		}
	}

	var n uint64
	i := 0
	for ; i < len(s); i++ {
		d := digitValue(s[i])
		if d >= base {
			break
		}
		n = n*uint64(base) + uint64(d)
		if n > 0xFFFFFFFF {
			n = 0xFFFFFFFF
		}
	}
	return n, i > 0
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return 36
}
