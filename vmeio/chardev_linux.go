//go:build linux
// +build linux

package vmeio

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// CharDev dials the kernel driver's character device nodes
type CharDev struct{}

// Dial opens path read/write
func (CharDev) Dial(path string) (Conn, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &charConn{fd: fd, path: path}, nil
}

type charConn struct {
	fd   int
	path string
}

func (c *charConn) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (c *charConn) getLong(req uintptr) (int64, error) {
	var v int64
	err := c.ioctl(req, unsafe.Pointer(&v))
	return v, err
}

func (c *charConn) setLong(req uintptr, v int64) error {
	return c.ioctl(req, unsafe.Pointer(&v))
}

func (c *charConn) Window() (Window, error) {
	var gw getWindow
	if err := c.ioctl(ioctlGetDevice, unsafe.Pointer(&gw)); err != nil {
		return Window{}, err
	}
	return Window{
		LUN:    int(gw.lun),
		Level:  int(gw.lvl),
		Vector: int(gw.vec),
		VME:    [2]uint32{gw.vme1, gw.vme2},
		AM:     [2]int{int(gw.amd1), int(gw.amd2)},
		Width:  [2]int{int(gw.dwd1), int(gw.dwd2)},
		Size:   [2]int{int(gw.win1), int(gw.win2)},
		NoMap:  int(gw.nmap),
		ISRC:   int(gw.isrc),
	}, nil
}

func (c *charConn) transfer(req uintptr, r Request) error {
	if len(r.Buf) == 0 {
		return unix.EINVAL
	}
	cb := riob{
		winum:  int32(r.Window),
		offset: int32(r.Offset),
		bsize:  int32(len(r.Buf)),
		buffer: uintptr(unsafe.Pointer(&r.Buf[0])),
	}
	err := c.ioctl(req, unsafe.Pointer(&cb))
	runtime.KeepAlive(r.Buf)
	return err
}

func (c *charConn) RawRead(r Request) error  { return c.transfer(ioctlRawRead, r) }
func (c *charConn) RawWrite(r Request) error { return c.transfer(ioctlRawWrite, r) }
func (c *charConn) DMARead(r Request) error  { return c.transfer(ioctlRawReadDMA, r) }
func (c *charConn) DMAWrite(r Request) error { return c.transfer(ioctlRawWriteDMA, r) }

func (c *charConn) Timeout() (int, error) {
	v, err := c.getLong(ioctlGetTimeout)
	return int(v), err
}

func (c *charConn) SetTimeout(ms int) error {
	return c.setLong(ioctlSetTimeout, int64(ms))
}

func (c *charConn) Debug() (int, error) {
	v, err := c.getLong(ioctlGetDebug)
	return int(v), err
}

func (c *charConn) SetDebug(level int) error {
	return c.setLong(ioctlSetDebug, int64(level))
}

func (c *charConn) Version() (int64, error) {
	return c.getLong(ioctlGetVersion)
}

func (c *charConn) ReadEvent() (Event, error) {
	var rb readBuf
	p := (*[unsafe.Sizeof(readBuf{})]byte)(unsafe.Pointer(&rb))[:]
	n, err := unix.Read(c.fd, p)
	if err == unix.ETIME {
		return Event{}, ErrDriverTimeout
	}
	if err != nil {
		return Event{}, err
	}
	if n < len(p) {
		return Event{}, fmt.Errorf("short event read from %s: %d of %d bytes", c.path, n, len(p))
	}
	return Event{LUN: int(rb.logicalUnit), Mask: uint32(rb.interruptMask)}, nil
}

func (c *charConn) Interrupt(mask uint32) error {
	m := int32(mask)
	p := (*[4]byte)(unsafe.Pointer(&m))[:]
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return err
	}
	if n < len(p) {
		return fmt.Errorf("short interrupt write to %s: %d of %d bytes", c.path, n, len(p))
	}
	return nil
}

func (c *charConn) Close() error {
	return unix.Close(c.fd)
}
