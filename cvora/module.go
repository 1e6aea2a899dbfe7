package cvora

import (
	"fmt"
	"sync"

	"github.jpl.nasa.gov/bdube/golab-vme/util"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
)

// Options configures a Module at open time
type Options struct {
	// DMA routes register access through the DMA path instead of mapped I/O.
	// Sample memory is always read by DMA.
	DMA bool

	// Swap corrects DMA transferred words to host order
	Swap bool

	// Offset is the block offset of the register map
	Offset int

	// Timeout is the driver event timeout in milliseconds, 0 leaves the
	// driver's setting alone
	Timeout int
}

// Module is a CVORA on one logical unit.  It is safe for concurrent use;
// the underlying vmeio.Handle is not, so all access is serialized here.
type Module struct {
	mu   sync.Mutex
	h    *vmeio.Handle
	bank *vmeio.Bank
}

// Open opens logical unit lun and applies opts
func Open(cfg vmeio.Config, lun int, opts Options) (*Module, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverName
	}
	h, err := vmeio.Open(cfg, lun)
	if err != nil {
		return nil, err
	}
	m, err := New(h, opts)
	if err != nil {
		h.Close()
		return nil, err
	}
	return m, nil
}

// New wraps an already open handle
func New(h *vmeio.Handle, opts Options) (*Module, error) {
	mode := vmeio.Raw
	if opts.DMA {
		mode = vmeio.DMA
	}
	if err := h.Configure(Registers.Window, mode, opts.Swap); err != nil {
		return nil, err
	}
	h.SetOffset(opts.Offset)
	if opts.Timeout > 0 {
		if err := h.SetTimeout(opts.Timeout); err != nil {
			return nil, err
		}
	}
	bank, err := vmeio.NewBank(h, Registers)
	if err != nil {
		return nil, err
	}
	return &Module{h: h, bank: bank}, nil
}

// Close releases the logical unit
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Close()
}

// LUN returns the logical unit number
func (m *Module) LUN() int {
	return m.h.LUN()
}

// Window returns the driver's window descriptor
func (m *Module) Window() vmeio.Window {
	return m.h.Window()
}

// Handle returns the underlying handle.  Calls on it bypass the module's
// lock and must not race with the module's own methods.
func (m *Module) Handle() *vmeio.Handle {
	return m.h
}

// Register reads a register by name, see Registers
func (m *Module) Register(name string) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bank.Get(name)
}

// SetRegister writes a register by name
func (m *Module) SetRegister(name string, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bank.Set(name, v)
}

// statusOnly are the status register bits that must not be echoed into the
// control register.  0x20 reads as busy but writes as the memory pointer
// reset, and the start/stop commands latch.
const statusOnly = StatusBusy | 1<<BitCounterOverflow | 1<<BitRAMOverflow | 1<<BitSoftStart | 1<<BitSoftStop

// controlWord reads the status register and strips the bits that are not
// persistent control settings.  The caller holds m.mu.
func (m *Module) controlWord() (uint32, error) {
	v, err := m.bank.Get(RegStatus)
	if err != nil {
		return 0, err
	}
	return v &^ statusOnly, nil
}

// setControlBit does a read-modify-write of one control bit, reading the
// current value back through the status register
func (m *Module) setControlBit(bit uint, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.controlWord()
	if err != nil {
		return err
	}
	return m.bank.Set(RegControl, util.SetBit32(v, bit, on))
}

func (m *Module) statusBit(bit uint) (bool, error) {
	v, err := m.Register(RegStatus)
	if err != nil {
		return false, err
	}
	return util.GetBit32(v, bit), nil
}

// Version returns the firmware version from the top half of the status register
func (m *Module) Version() (int, error) {
	v, err := m.Register(RegStatus)
	if err != nil {
		return 0, err
	}
	return int(v >> VersionShift), nil
}

// DriverVersion returns the driver and library build identifiers
func (m *Module) DriverVersion() (vmeio.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Version()
}

// SetPolarity sets the counted pulse polarity, Positive or Negative
func (m *Module) SetPolarity(p int) error {
	if p != Positive && p != Negative {
		return fmt.Errorf("polarity %d is not 0 (negative) or 1 (positive): %w", p, vmeio.ErrInvalid)
	}
	return m.setControlBit(BitPolarity, p == Positive)
}

// Polarity returns the counted pulse polarity
func (m *Module) Polarity() (int, error) {
	b, err := m.statusBit(BitPolarity)
	if b {
		return Positive, err
	}
	return Negative, err
}

// SetModuleEnabled enables or disables the module
func (m *Module) SetModuleEnabled(on bool) error {
	return m.setControlBit(BitModuleEnable, on)
}

// ModuleEnabled returns true if the module is enabled
func (m *Module) ModuleEnabled() (bool, error) {
	return m.statusBit(BitModuleEnable)
}

// SetIRQEnabled enables or disables interrupts
func (m *Module) SetIRQEnabled(on bool) error {
	return m.setControlBit(BitIRQEnable, on)
}

// IRQEnabled returns true if interrupts are enabled
func (m *Module) IRQEnabled() (bool, error) {
	return m.statusBit(BitIRQEnable)
}

// SetIRQVector programs the interrupt vector, 0~255
func (m *Module) SetIRQVector(vec int) error {
	if vec < 0 || vec > 0xff {
		return fmt.Errorf("interrupt vector %d out of range 0~255: %w", vec, vmeio.ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.controlWord()
	if err != nil {
		return err
	}
	v = v&^VectorMask | uint32(vec)<<VectorShift
	return m.bank.Set(RegControl, v)
}

// IRQVector returns the interrupt vector
func (m *Module) IRQVector() (int, error) {
	v, err := m.Register(RegStatus)
	if err != nil {
		return 0, err
	}
	return int(v&VectorMask) >> VectorShift, nil
}

// HardwareStatus reads and decodes the status register
func (m *Module) HardwareStatus() (Status, error) {
	v, err := m.Register(RegStatus)
	if err != nil {
		return Status{}, err
	}
	return DecodeStatus(v), nil
}

// SetMode selects the input mode
func (m *Module) SetMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("cvora mode %d out of range %d~%d: %w", mode, OneOptical, SerialP2, vmeio.ErrInvalid)
	}
	return m.SetRegister(RegMode, uint32(mode))
}

// Mode returns the input mode, held in the low bits of the module ID register
func (m *Module) Mode() (Mode, error) {
	v, err := m.Register(RegModuleID)
	if err != nil {
		return 0, err
	}
	return Mode(v & modeMask), nil
}

// ModuleID returns the module ID register
func (m *Module) ModuleID() (uint32, error) {
	return m.Register(RegModuleID)
}

// SoftStart starts an acquisition
func (m *Module) SoftStart() error {
	return m.setControlBit(BitSoftStart, true)
}

// SoftStop stops an acquisition
func (m *Module) SoftStop() error {
	return m.setControlBit(BitSoftStop, true)
}

// DAC returns the DAC register
func (m *Module) DAC() (uint32, error) {
	return m.Register(RegDAC)
}

// ClockFrequency returns the clock frequency register
func (m *Module) ClockFrequency() (uint32, error) {
	return m.Register(RegFrequency)
}

// SetPlotInput routes P2 channel ch, 1~32, to the output DAC
func (m *Module) SetPlotInput(ch int) error {
	if ch < 1 || ch > 32 {
		return fmt.Errorf("plot input %d out of range 1~32: %w", ch, vmeio.ErrInvalid)
	}
	return m.SetRegister(RegPlot, uint32(ch))
}

// ChannelsMask returns the enabled parallel channels
func (m *Module) ChannelsMask() (uint32, error) {
	return m.Register(RegChannels)
}

// SetChannelsMask sets the enabled parallel channels
func (m *Module) SetChannelsMask(mask uint32) error {
	return m.SetRegister(RegChannels, mask)
}

// MemPointer returns the sample memory write pointer
func (m *Module) MemPointer() (uint32, error) {
	return m.Register(RegMemPointer)
}

// SampleSize returns the number of bytes of sample memory filled
func (m *Module) SampleSize() (int, error) {
	p, err := m.MemPointer()
	if err != nil {
		return 0, err
	}
	if p < MemMin || p > MemMax {
		return 0, fmt.Errorf("memory pointer 0x%x outside 0x%x~0x%x: %w", p, MemMin, MemMax, vmeio.ErrInvalid)
	}
	return int(p - MemMin), nil
}

// ReadSamples reads up to max bytes of filled sample memory by DMA and
// returns them as 32 bit words in host order (when the module was opened
// with Swap).  max is rounded down to whole words.
func (m *Module) ReadSamples(max int) ([]uint32, error) {
	size, err := m.SampleSize()
	if err != nil {
		return nil, err
	}
	if size > max {
		size = max
	}
	size -= size % 4
	if size <= 0 {
		return []uint32{}, nil
	}
	buf := make([]byte, size)
	m.mu.Lock()
	err = m.h.DMA(Registers.Window, MemMin, buf, vmeio.Read)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	order := vmeio.HostOrder()
	out := make([]uint32, size/4)
	for i := range out {
		out[i] = order.Uint32(buf[i*4:])
	}
	return out, nil
}

// Wait blocks for the end-of-sample interrupt or the driver timeout.
// A timeout yields an event with a zero mask, see vmeio.Handle.WaitEvent.
// The module lock is not held while waiting, so Close may end a pending wait.
func (m *Module) Wait() (vmeio.Event, error) {
	return m.h.WaitEvent()
}

// Interrupt raises a software interrupt, for testing the event path
func (m *Module) Interrupt(mask uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Interrupt(mask)
}

// Offset returns the block offset
func (m *Module) Offset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Offset()
}

// SetOffset relocates the register map by a block offset
func (m *Module) SetOffset(off int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.h.SetOffset(off)
}

// Timeout returns the driver event timeout in milliseconds
func (m *Module) Timeout() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Timeout()
}

// SetTimeout sets the driver event timeout in milliseconds
func (m *Module) SetTimeout(ms int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.SetTimeout(ms)
}

// Debug returns the driver debug level
func (m *Module) Debug() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Debug()
}

// SetDebug sets the driver debug level
func (m *Module) SetDebug(lvl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.SetDebug(lvl)
}
