package vmeio

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
)

var (
	// BuildTime is the library build identifier reported by Handle.Version.
	// Typically injected via ldflags
	BuildTime = "0"
)

// Mode selects the transfer path used by register access and Transfer
type Mode int

const (
	// Raw is immediate memory-mapped I/O
	Raw Mode = iota

	// DMA is scatter-gather transfer
	DMA
)

func (m Mode) String() string {
	switch m {
	case Raw:
		return "raw"
	case DMA:
		return "dma"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultDevDir is where drivers create their device nodes
const DefaultDevDir = "/dev"

// Config holds the parameters Open needs to reach a driver
type Config struct {
	// Driver is the driver name, the device node for a logical unit n is
	// DevDir/Driver.n
	Driver string

	// DevDir is the directory holding device nodes, default /dev
	DevDir string

	// FallbackWidth, when 1, 2, or 4, lets Open succeed even if the window
	// query fails, with both windows assumed to be this wide.  When zero a
	// failed window query is an OpenFailure.
	FallbackWidth int

	// Dialer opens the device node.  nil means CharDev
	Dialer Dialer
}

// DefaultConfig returns a Config for driver with device nodes under /dev
func DefaultConfig(driver string) Config {
	return Config{Driver: driver, DevDir: DefaultDevDir}
}

// Path returns the device node path of a logical unit
func (c Config) Path(lun int) string {
	dir := c.DevDir
	if dir == "" {
		dir = DefaultDevDir
	}
	return filepath.Join(dir, c.Driver+"."+strconv.Itoa(lun))
}

// Handle is one open connection to a logical unit.
//
// A Handle is not safe for concurrent use.  Configure, SetOffset, and the
// transfers that depend on them must be serialized by the caller.  Close may
// be called while a WaitEvent is pending.  Distinct handles are independent.
type Handle struct {
	conn   Conn
	lun    int
	window Window

	winum  int
	mode   Mode
	swap   bool
	offset int

	closed int32 // atomic
}

// Open connects to logical unit lun and queries its window descriptor.
// The handle starts on window 1, in Raw mode, unswapped, at offset 0.
func Open(cfg Config, lun int) (*Handle, error) {
	const op = "open"
	if cfg.Driver == "" {
		return nil, invalid(op, "no driver name configured")
	}
	if lun < 0 {
		return nil, invalid(op, "logical unit %d is negative", lun)
	}
	d := cfg.Dialer
	if d == nil {
		d = CharDev{}
	}
	path := cfg.Path(lun)
	conn, err := d.Dial(path)
	if err != nil {
		return nil, &Error{Kind: OpenFailure, Op: op, Err: pkgerrors.Wrapf(err, "can't open %s for read/write", path)}
	}
	h := &Handle{conn: conn, lun: lun, winum: 1, mode: Raw}
	win, err := conn.Window()
	if err != nil {
		switch cfg.FallbackWidth {
		case 1, 2, 4:
			log.Printf("vmeio: window query on %s failed (%v), assuming %d byte windows\n", path, err, cfg.FallbackWidth)
			win = Window{LUN: lun, Width: [2]int{cfg.FallbackWidth, cfg.FallbackWidth}}
		default:
			conn.Close()
			return nil, &Error{Kind: OpenFailure, Op: op, Err: pkgerrors.Wrapf(err, "can't get window descriptor of %s", path)}
		}
	}
	h.window = win
	return h, nil
}

// Close releases the connection.  The handle is unusable afterwards.
func (h *Handle) Close() error {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return &Error{Kind: DriverCallFailure, Op: "close", Err: ErrClosed}
	}
	return driverErr("close", h.conn.Close())
}

func (h *Handle) check(op string) error {
	if h == nil || atomic.LoadInt32(&h.closed) != 0 {
		return &Error{Kind: DriverCallFailure, Op: op, Err: ErrClosed}
	}
	return nil
}

// LUN returns the logical unit number the handle was opened on
func (h *Handle) LUN() int {
	return h.lun
}

// Window returns the window descriptor obtained at open time
func (h *Handle) Window() Window {
	return h.window
}

// ActiveWindow returns the window used by register access
func (h *Handle) ActiveWindow() int {
	return h.winum
}

// Mode returns the current transfer mode
func (h *Handle) Mode() Mode {
	return h.mode
}

// Swap returns true if DMA transfers are byte-swap corrected
func (h *Handle) Swap() bool {
	return h.swap
}

// Width returns the data width of window n in bytes
func (h *Handle) Width(n int) (int, error) {
	w, ok := h.window.DataWidth(n)
	if !ok {
		return 0, invalid("width", "window %d is not described for lun %d", n, h.lun)
	}
	return w, nil
}

// Configure sets the active window, transfer mode, and swap flag together.
// Nothing changes if any of them is invalid.  The block offset is untouched.
func (h *Handle) Configure(window int, mode Mode, swap bool) error {
	const op = "configure"
	if err := h.check(op); err != nil {
		return err
	}
	if _, ok := h.window.DataWidth(window); !ok {
		return invalid(op, "window %d is not described for lun %d", window, h.lun)
	}
	if mode != Raw && mode != DMA {
		return invalid(op, "unknown transfer mode %v", mode)
	}
	h.winum, h.mode, h.swap = window, mode, swap
	return nil
}

// SetOffset sets the block offset added to every address
func (h *Handle) SetOffset(offset int) {
	h.offset = offset
}

// Offset returns the block offset
func (h *Handle) Offset() int {
	return h.offset
}

// Timeout returns the driver's event timeout in milliseconds
func (h *Handle) Timeout() (int, error) {
	if err := h.check("get timeout"); err != nil {
		return 0, err
	}
	ms, err := h.conn.Timeout()
	return ms, driverErr("get timeout", err)
}

// SetTimeout sets the driver's event timeout in milliseconds
func (h *Handle) SetTimeout(ms int) error {
	if err := h.check("set timeout"); err != nil {
		return err
	}
	return driverErr("set timeout", h.conn.SetTimeout(ms))
}

// Debug returns the driver debug level
func (h *Handle) Debug() (int, error) {
	if err := h.check("get debug"); err != nil {
		return 0, err
	}
	lvl, err := h.conn.Debug()
	return lvl, driverErr("get debug", err)
}

// SetDebug sets the driver debug level
func (h *Handle) SetDebug(level int) error {
	if err := h.check("set debug"); err != nil {
		return err
	}
	return driverErr("set debug", h.conn.SetDebug(level))
}

// Version returns the driver and library build identifiers
func (h *Handle) Version() (Version, error) {
	if err := h.check("get version"); err != nil {
		return Version{}, err
	}
	drv, err := h.conn.Version()
	if err != nil {
		return Version{}, driverErr("get version", err)
	}
	lib, _ := strconv.ParseInt(BuildTime, 10, 64)
	return Version{Driver: drv, Library: lib}, nil
}

// Interrupt asks the driver to raise a software interrupt carrying mask
func (h *Handle) Interrupt(mask uint32) error {
	if err := h.check("interrupt"); err != nil {
		return err
	}
	return driverErr("interrupt", h.conn.Interrupt(mask))
}
