package vmeio

import (
	"fmt"
	"sort"
	"strings"
)

// Access is the I/O direction a register allows
type Access int

const (
	// RO registers may only be read
	RO Access = iota + 1

	// WO registers may only be written
	WO

	// RW registers may be read and written
	RW
)

func (a Access) String() string {
	switch a {
	case RO:
		return "ro"
	case WO:
		return "wo"
	case RW:
		return "rw"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

// Readable is true for RO and RW
func (a Access) Readable() bool { return a == RO || a == RW }

// Writable is true for WO and RW
func (a Access) Writable() bool { return a == WO || a == RW }

// Register is one named register of a module's address map
type Register struct {
	Name string

	// Offset is the byte offset in the window
	Offset int

	// Width is the register's true width in bytes
	Width int

	Access Access
}

// Map is a declarative description of a module's registers.
// Two registers may share an offset if their directions differ, as with a
// write-only control register overlaying a read-only status register.
type Map struct {
	// Name of the module, e.g. cvora
	Name string

	// Version marks the capability level of the map.  Bump it when the
	// register set changes in a way clients should notice.
	Version int

	// Window the registers live in, 1 or 2
	Window int

	Registers []Register
}

// Validate checks the map is self consistent
func (m Map) Validate() error {
	const op = "validate map"
	if m.Window < 1 || m.Window > Windows {
		return invalid(op, "%s: window %d out of range", m.Name, m.Window)
	}
	seen := map[string]bool{}
	for _, r := range m.Registers {
		key := strings.ToLower(r.Name)
		if key == "" {
			return invalid(op, "%s: register at 0x%x has no name", m.Name, r.Offset)
		}
		if seen[key] {
			return invalid(op, "%s: duplicate register %q", m.Name, r.Name)
		}
		seen[key] = true
		switch r.Width {
		case 1, 2, 4:
		default:
			return invalid(op, "%s: register %q width %d not in {1,2,4}", m.Name, r.Name, r.Width)
		}
		if r.Offset < 0 || r.Offset%r.Width != 0 {
			return invalid(op, "%s: register %q offset 0x%x not aligned to %d", m.Name, r.Name, r.Offset, r.Width)
		}
		if !r.Access.Readable() && !r.Access.Writable() {
			return invalid(op, "%s: register %q has unknown access %v", m.Name, r.Name, r.Access)
		}
	}
	return nil
}

// Lookup finds a register by name, case insensitive
func (m Map) Lookup(name string) (Register, bool) {
	for _, r := range m.Registers {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Register{}, false
}

// Names returns the register names, sorted
func (m Map) Names() []string {
	out := make([]string, 0, len(m.Registers))
	for _, r := range m.Registers {
		out = append(out, r.Name)
	}
	sort.Strings(out)
	return out
}

// Bank binds a Map to a Handle.  It is the one register access interface
// module packages build on, in place of a function per register.
type Bank struct {
	H   *Handle
	Map Map
}

// NewBank validates m and binds it to h
func NewBank(h *Handle, m Map) (*Bank, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Bank{H: h, Map: m}, nil
}

// size returns the transfer size for r, its width rounded up to a whole
// number of window words
func (b *Bank) size(op string, r Register) (int, error) {
	ww, err := b.H.Width(b.Map.Window)
	if err != nil {
		return 0, err
	}
	if r.Offset%ww != 0 {
		return 0, invalid(op, "register %q at 0x%x is not aligned to the %d byte window", r.Name, r.Offset, ww)
	}
	n := (r.Width + ww - 1) / ww * ww
	return n, nil
}

// Get reads the named register
func (b *Bank) Get(name string) (uint32, error) {
	const op = "get register"
	r, ok := b.Map.Lookup(name)
	if !ok {
		return 0, invalid(op, "%s has no register %q", b.Map.Name, name)
	}
	if !r.Access.Readable() {
		return 0, invalid(op, "register %q is write only", r.Name)
	}
	n, err := b.size(op, r)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, n)
	if err := b.H.Transfer(b.Map.Window, r.Offset, buf, Read); err != nil {
		return 0, err
	}
	return decode(buf[:r.Width]), nil
}

// Set writes the named register.  Bits above the register width are dropped.
func (b *Bank) Set(name string, v uint32) error {
	const op = "set register"
	r, ok := b.Map.Lookup(name)
	if !ok {
		return invalid(op, "%s has no register %q", b.Map.Name, name)
	}
	if !r.Access.Writable() {
		return invalid(op, "register %q is read only", r.Name)
	}
	n, err := b.size(op, r)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	encode(buf[:r.Width], v)
	return b.H.Transfer(b.Map.Window, r.Offset, buf, Write)
}
