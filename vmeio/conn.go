package vmeio

// Direction is the sense of a transfer, from the host's point of view
type Direction int

const (
	// Read moves data from the module into the host buffer
	Read Direction = iota

	// Write moves data from the host buffer onto the module
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Request is a transfer descriptor handed to the driver.  It is built fresh
// for each call and never retained.  Offset is the final driver offset, the
// block offset has already been applied.
type Request struct {
	Window int
	Offset int
	Buf    []byte
}

// Window describes the address windows of one logical unit, as reported by
// the driver's GET_WINDOW control call.  Index 0 of the arrays is window 1.
type Window struct {
	LUN    int
	Level  int
	Vector int

	// VME holds the base bus address of each window
	VME [2]uint32

	// AM holds the address modifier of each window
	AM [2]int

	// Width holds the data width in bytes of each window, 0 if unmapped
	Width [2]int

	// Size holds the byte size of each window
	Size [2]int

	NoMap int
	ISRC  int
}

// Windows is the number of windows a unit may describe
const Windows = 2

// DataWidth returns the data width of window n (1-based) and true if n is a
// window described by w with a supported width
func (w Window) DataWidth(n int) (int, bool) {
	if n < 1 || n > Windows {
		return 0, false
	}
	dw := w.Width[n-1]
	switch dw {
	case 1, 2, 4:
		return dw, true
	}
	return 0, false
}

// Event is an interrupt notification from the driver.
//
// A Mask of zero is ambiguous by construction: the driver reports an elapsed
// timeout as an event with mask 0, and an interrupt may also carry mask 0.
// TimedOut is set only when the timeout condition was observed directly.
type Event struct {
	LUN      int
	Mask     uint32
	TimedOut bool
}

// Version holds the build identifiers of the driver and of this library
type Version struct {
	Driver  int64
	Library int64
}

// Conn is the driver collaborator for one open device node.
// Every method is exactly one driver call.
type Conn interface {
	// Window issues GET_WINDOW
	Window() (Window, error)

	// RawRead and RawWrite do mapped I/O
	RawRead(Request) error
	RawWrite(Request) error

	// DMARead and DMAWrite do scatter-gather I/O, in driver byte order
	DMARead(Request) error
	DMAWrite(Request) error

	Timeout() (int, error)
	SetTimeout(ms int) error
	Debug() (int, error)
	SetDebug(level int) error
	Version() (int64, error)

	// ReadEvent blocks for one event record.  It returns ErrDriverTimeout
	// when the driver's timeout elapsed with nothing to report.
	ReadEvent() (Event, error)

	// Interrupt makes the driver raise a software interrupt with mask
	Interrupt(mask uint32) error

	Close() error
}

// Dialer opens a Conn on a device node path
type Dialer interface {
	Dial(path string) (Conn, error)
}

// DialerFunc adapts a function to a Dialer
type DialerFunc func(path string) (Conn, error)

// Dial calls f(path)
func (f DialerFunc) Dial(path string) (Conn, error) {
	return f(path)
}
