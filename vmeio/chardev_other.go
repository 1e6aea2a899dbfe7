//go:build !linux
// +build !linux

package vmeio

import (
	"errors"
	"runtime"
)

// CharDev dials the kernel driver's character device nodes.
// The driver only exists for Linux.
type CharDev struct{}

// Dial always fails off Linux
func (CharDev) Dial(path string) (Conn, error) {
	return nil, errors.New("vmeio: character devices unsupported on " + runtime.GOOS)
}
