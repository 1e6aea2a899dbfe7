/*Package cvora provides an interface to CVORA VME counter/acquisition modules.

The CVORA counts pulses or samples serial/parallel inputs into an on-board
memory, raising an interrupt at the end of a sample cycle.  Its registers are
4 bytes wide on window 1 of the vmeio driver.  Several registers share an
offset and differ by direction; control (write) overlays status (read),
mode (write) overlays module ID (read), plot input (write) overlays clock
frequency (read).

Basic usage:

	m, err := cvora.Open(vmeio.DefaultConfig(cvora.DriverName), 0, cvora.Options{Swap: true})
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()
	m.SetMode(cvora.Parallel)
	m.SoftStart()
	ev, _ := m.Wait()
	if ev.Mask != 0 {
		samples, _ := m.ReadSamples(cvora.MemSize)
		...
	}
*/
package cvora

import (
	"fmt"

	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
)

// DriverName is the name the CVORA driver registers its device nodes under
const DriverName = "cvora"

// register names in Registers
const (
	RegControl    = "control"
	RegStatus     = "status"
	RegMemPointer = "mem_pointer"
	RegMode       = "mode"
	RegModuleID   = "module_id"
	RegChannels   = "channels"
	RegFrequency  = "frequency"
	RegPlot       = "plot"
	RegDAC        = "dac"
	RegMemory     = "memory"
)

// Registers is the CVORA address map
var Registers = vmeio.Map{
	Name:    DriverName,
	Version: 1,
	Window:  1,
	Registers: []vmeio.Register{
		{Name: RegControl, Offset: 0x00, Width: 4, Access: vmeio.WO},
		{Name: RegStatus, Offset: 0x00, Width: 4, Access: vmeio.RO},
		{Name: RegMemPointer, Offset: 0x04, Width: 4, Access: vmeio.RW},
		{Name: RegMode, Offset: 0x08, Width: 4, Access: vmeio.WO},
		{Name: RegModuleID, Offset: 0x08, Width: 4, Access: vmeio.RO},
		{Name: RegChannels, Offset: 0x0C, Width: 4, Access: vmeio.RW},
		{Name: RegFrequency, Offset: 0x10, Width: 4, Access: vmeio.RO},
		{Name: RegPlot, Offset: 0x10, Width: 4, Access: vmeio.WO},
		{Name: RegDAC, Offset: 0x14, Width: 4, Access: vmeio.RO},
		{Name: RegMemory, Offset: 0x20, Width: 4, Access: vmeio.RW},
	},
}

// bit positions in the control/status register
const (
	BitPolarity        = 0
	BitModuleEnable    = 1
	BitIRQEnable       = 2
	BitSoftStart       = 3
	BitSoftStop        = 4
	BitSoftRearm       = 5
	BitCounterOverflow = 6
	BitRAMOverflow     = 7

	VectorShift  = 8
	VectorMask   = 0xff << VectorShift
	VersionShift = 16
	VersionMask  = 0xffff << VersionShift

	// StatusBusy is set while an acquisition is running
	StatusBusy = 0x20

	modeMask = 0x7
)

// Polarity of the counted pulses
const (
	Negative = 0
	Positive = 1
)

// sample memory bounds, as byte offsets in window 1
const (
	MemMin  = 0x20
	MemMax  = 0x7FFFC
	MemSize = MemMax - MemMin
)

// Mode is the input mode of the module
type Mode int

// the seven input modes
const (
	OneOptical Mode = iota + 1
	OneCopper
	BTrain
	Parallel
	TwoOptical
	TwoCopper
	SerialP2
)

var modeNames = map[Mode]string{
	OneOptical: "one-optical-16",
	OneCopper:  "one-copper-16",
	BTrain:     "btrain-counter",
	Parallel:   "parallel",
	TwoOptical: "two-optical-16",
	TwoCopper:  "two-copper-16",
	SerialP2:   "serial-p2-32",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid is true for the seven defined modes
func (m Mode) Valid() bool {
	return m >= OneOptical && m <= SerialP2
}

// ParseMode accepts either a mode name or its number
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && Mode(n).Valid() {
		return Mode(n), nil
	}
	return 0, fmt.Errorf("unknown cvora mode %q: %w", s, vmeio.ErrInvalid)
}

// Status is the decoded status register
type Status struct {
	Raw             uint32 `json:"raw"`
	Polarity        int    `json:"polarity"`
	Enabled         bool   `json:"enabled"`
	IRQEnabled      bool   `json:"irqEnabled"`
	Busy            bool   `json:"busy"`
	CounterOverflow bool   `json:"counterOverflow"`
	RAMOverflow     bool   `json:"ramOverflow"`
	Vector          int    `json:"vector"`
	Version         int    `json:"version"`
}

// DecodeStatus unpacks a status register value
func DecodeStatus(v uint32) Status {
	return Status{
		Raw:             v,
		Polarity:        int(v>>BitPolarity) & 1,
		Enabled:         v&(1<<BitModuleEnable) != 0,
		IRQEnabled:      v&(1<<BitIRQEnable) != 0,
		Busy:            v&StatusBusy != 0,
		CounterOverflow: v&(1<<BitCounterOverflow) != 0,
		RAMOverflow:     v&(1<<BitRAMOverflow) != 0,
		Vector:          int(v&VectorMask) >> VectorShift,
		Version:         int(v&VersionMask) >> VersionShift,
	}
}
