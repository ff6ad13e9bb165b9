// Package checkpoint decorates errors with the location they passed through on
// their way up, which results in something similar to a stacktrace.
// Every error attached to a checkpoint can still be checked by errors.Is and
// retrieved by errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps err by a checkpoint holding the caller location.
// It returns nil if err == nil.
func From(err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(nil, err)
}

// Wrap adds a checkpoint to prev which is further described by err.
// Returns nil if prev == nil, so it can be used directly on call results:
//  var (
//  	ErrCorruptData = errors.New("corrupt data")
//  )
//  func mount() error {
//  	err := readBootSector()
//  	return checkpoint.Wrap(err, ErrCorruptData)
//  }
// Both errors.Is(err, ErrCorruptData) and errors.Is(err, <error of readBootSector>)
// hold for the result.
func Wrap(prev, err error) error {
	if prev == nil || prev == io.EOF {
		return prev
	}

	return newCheckpoint(err, prev)
}

// New creates a checkpoint for err which has no previous error.
// Unlike From it also decorates io.EOF.
func New(err error) error {
	if err == nil {
		return nil
	}
	return newCheckpoint(nil, err)
}

func newCheckpoint(err, prev error) *checkpoint {
	// Skip newCheckpoint and the exported caller.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) location() string {
	if !e.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

// Error renders the chain on one line, outermost description first:
//  device.go:120: no such partition: io.go:80: i/o error
func (e *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString(e.location())
	b.WriteString(": ")
	if e.err != nil {
		b.WriteString(e.err.Error())
		b.WriteString(": ")
	}
	b.WriteString(e.prev.Error())
	return b.String()
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return e.err != nil && errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return e.err != nil && errors.As(e.err, target)
}

// Frames lists the locations recorded in the chain of err, outermost first.
func Frames(err error) []string {
	var frames []string
	for err != nil {
		var c *checkpoint
		if !errors.As(err, &c) {
			break
		}
		frames = append(frames, c.location())
		err = c.prev
	}
	return frames
}

// Cause returns the innermost error that is not a checkpoint.
func Cause(err error) error {
	for {
		c, ok := err.(*checkpoint)
		if !ok {
			return err
		}
		err = c.prev
	}
}
