// Package sim is an in-memory stand-in for a vmeio kernel driver.
//
// A Device holds the memory of each window in driver byte order.  Raw and DMA
// requests both read and write that memory directly, so a buffer written by
// DMA and read back by DMA is returned exactly as the driver saw it.
// Conns dialed from the same Device share its memory, as connections to the
// same hardware would.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
)

// DefaultSize is the byte size of a window whose descriptor gives no size
const DefaultSize = 0x80000

// Op names a driver call in the request log
type Op string

// the calls a Device logs
const (
	OpRawRead  Op = "raw-read"
	OpRawWrite Op = "raw-write"
	OpDMARead  Op = "dma-read"
	OpDMAWrite Op = "dma-write"
)

// Logged is one entry of the request log
type Logged struct {
	Op     Op
	Window int
	Offset int
	Size   int
}

// Device simulates the hardware and driver state behind a logical unit
type Device struct {
	mu      sync.Mutex
	win     vmeio.Window
	mem     [vmeio.Windows][]byte
	timeout int
	debug   int
	version int64
	log     []Logged
	events  chan vmeio.Event

	// WindowErr, if non-nil, is returned by GET_WINDOW
	WindowErr error

	// DialErr, if non-nil, is returned by Dial
	DialErr error

	// Fail, if non-nil, is called before every transfer; a non-nil return
	// fails the call with that error
	Fail func(Logged) error
}

// New creates a Device described by win.  The event timeout starts at 1 s.
func New(win vmeio.Window) *Device {
	d := &Device{
		win:     win,
		timeout: 1000,
		version: time.Date(2010, 10, 19, 0, 0, 0, 0, time.UTC).Unix(),
		events:  make(chan vmeio.Event, 64),
	}
	for i := range d.mem {
		sz := win.Size[i]
		if sz <= 0 {
			sz = DefaultSize
		}
		d.mem[i] = make([]byte, sz)
	}
	return d
}

// Standard returns a Device shaped like a single CVORA: window 1 is 4 bytes
// wide, window 2 is unmapped
func Standard(lun int) *Device {
	return New(vmeio.Window{
		LUN:    lun,
		Level:  2,
		Vector: 0xB8,
		VME:    [2]uint32{0x300000, 0},
		AM:     [2]int{0x39, 0},
		Width:  [2]int{4, 0},
		Size:   [2]int{DefaultSize, 0},
	})
}

// Dial implements vmeio.Dialer.  The path is not checked.
func (d *Device) Dial(path string) (vmeio.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return &conn{dev: d, done: make(chan struct{})}, nil
}

// Peek copies n bytes of window memory at offset, in driver order
func (d *Device) Peek(window, offset, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	copy(out, d.mem[window-1][offset:offset+n])
	return out
}

// Poke writes b into window memory at offset, in driver order
func (d *Device) Poke(window, offset int, b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.mem[window-1][offset:], b)
}

// Log returns a copy of the request log
func (d *Device) Log() []Logged {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Logged(nil), d.log...)
}

// Raise queues an interrupt event as if the hardware fired
func (d *Device) Raise(mask uint32) {
	d.events <- vmeio.Event{LUN: d.win.LUN, Mask: mask}
}

func (d *Device) transfer(op Op, r vmeio.Request, write bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := Logged{Op: op, Window: r.Window, Offset: r.Offset, Size: len(r.Buf)}
	d.log = append(d.log, entry)
	if d.Fail != nil {
		if err := d.Fail(entry); err != nil {
			return err
		}
	}
	if r.Window < 1 || r.Window > vmeio.Windows || d.win.Width[r.Window-1] == 0 {
		return syscall.EINVAL
	}
	mem := d.mem[r.Window-1]
	if r.Offset < 0 || r.Offset+len(r.Buf) > len(mem) {
		return syscall.EFAULT
	}
	if write {
		copy(mem[r.Offset:], r.Buf)
	} else {
		copy(r.Buf, mem[r.Offset:])
	}
	return nil
}

type conn struct {
	dev  *Device
	once sync.Once
	done chan struct{}
}

var errClosed = errors.New("sim: connection closed")

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) Window() (vmeio.Window, error) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.dev.WindowErr != nil {
		return vmeio.Window{}, c.dev.WindowErr
	}
	return c.dev.win, nil
}

func (c *conn) RawRead(r vmeio.Request) error  { return c.do(OpRawRead, r, false) }
func (c *conn) RawWrite(r vmeio.Request) error { return c.do(OpRawWrite, r, true) }
func (c *conn) DMARead(r vmeio.Request) error  { return c.do(OpDMARead, r, false) }
func (c *conn) DMAWrite(r vmeio.Request) error { return c.do(OpDMAWrite, r, true) }

func (c *conn) do(op Op, r vmeio.Request, write bool) error {
	if c.closed() {
		return errClosed
	}
	return c.dev.transfer(op, r, write)
}

func (c *conn) Timeout() (int, error) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.timeout, nil
}

func (c *conn) SetTimeout(ms int) error {
	if ms < 0 {
		return syscall.EINVAL
	}
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.dev.timeout = ms
	return nil
}

func (c *conn) Debug() (int, error) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.debug, nil
}

func (c *conn) SetDebug(level int) error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.dev.debug = level
	return nil
}

func (c *conn) Version() (int64, error) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.version, nil
}

// ReadEvent waits for a raised event.  A zero timeout waits forever.
func (c *conn) ReadEvent() (vmeio.Event, error) {
	if c.closed() {
		return vmeio.Event{}, errClosed
	}
	ms, _ := c.Timeout()
	var expired <-chan time.Time
	if ms > 0 {
		t := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer t.Stop()
		expired = t.C
	}
	select {
	case ev := <-c.dev.events:
		return ev, nil
	case <-expired:
		return vmeio.Event{}, vmeio.ErrDriverTimeout
	case <-c.done:
		return vmeio.Event{}, errClosed
	}
}

func (c *conn) Interrupt(mask uint32) error {
	if c.closed() {
		return errClosed
	}
	select {
	case c.dev.events <- vmeio.Event{LUN: c.dev.win.LUN, Mask: mask}:
		return nil
	default:
		return fmt.Errorf("sim: event queue full")
	}
}

func (c *conn) Close() error {
	err := errClosed
	c.once.Do(func() {
		close(c.done)
		err = nil
	})
	return err
}
