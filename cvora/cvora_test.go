package cvora_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/google/go-cmp/cmp"
	"github.jpl.nasa.gov/bdube/golab-vme/cvora"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio/sim"
)

func openSim(t *testing.T, opts cvora.Options) (*cvora.Module, *sim.Device) {
	t.Helper()
	dev := sim.Standard(0)
	cfg := vmeio.DefaultConfig(cvora.DriverName)
	cfg.Dialer = dev
	m, err := cvora.Open(cfg, 0, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return m, dev
}

func word(v uint32) []byte {
	b := make([]byte, 4)
	vmeio.HostOrder().PutUint32(b, v)
	return b
}

func TestRegisterMapIsValid(t *testing.T) {
	if err := cvora.Registers.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"parallel", "4"} {
		m, err := cvora.ParseMode(in)
		if err != nil || m != cvora.Parallel {
			t.Errorf("%q: expected parallel, got %v %v", in, m, err)
		}
	}
	for _, in := range []string{"0", "8", "analog"} {
		if _, err := cvora.ParseMode(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestSetModeRange(t *testing.T) {
	m, dev := openSim(t, cvora.Options{})
	defer m.Close()
	if err := m.SetMode(cvora.TwoCopper); err != nil {
		t.Fatal(err)
	}
	if got := dev.Peek(1, 0x8, 4); !cmp.Equal(got, word(6)) {
		t.Errorf("expected mode 6 written at 0x8, got % x", got)
	}
	mode, err := m.Mode()
	if err != nil {
		t.Fatal(err)
	}
	if mode != cvora.TwoCopper {
		t.Errorf("expected two-copper, got %v", mode)
	}
	for _, bad := range []cvora.Mode{0, 8} {
		if err := m.SetMode(bad); !errors.Is(err, vmeio.ErrInvalid) {
			t.Errorf("mode %d: expected invalid argument, got %v", bad, err)
		}
	}
}

func TestControlBits(t *testing.T) {
	m, dev := openSim(t, cvora.Options{})
	defer m.Close()
	dev.Poke(1, 0, word(0x00030000))
	if err := m.SetModuleEnabled(true); err != nil {
		t.Fatal(err)
	}
	if err := m.SetIRQEnabled(true); err != nil {
		t.Fatal(err)
	}
	if err := m.SetPolarity(cvora.Positive); err != nil {
		t.Fatal(err)
	}
	if err := m.SetIRQVector(0xB8); err != nil {
		t.Fatal(err)
	}
	st, err := m.HardwareStatus()
	if err != nil {
		t.Fatal(err)
	}
	expected := cvora.Status{
		Raw:        0x0003B807,
		Polarity:   cvora.Positive,
		Enabled:    true,
		IRQEnabled: true,
		Vector:     0xB8,
		Version:    3,
	}
	if diff := cmp.Diff(expected, st); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if v, _ := m.IRQVector(); v != 0xB8 {
		t.Errorf("expected vector 0xb8, got 0x%x", v)
	}
	if v, _ := m.Version(); v != 3 {
		t.Errorf("expected firmware version 3, got %d", v)
	}
	if err := m.SetModuleEnabled(false); err != nil {
		t.Fatal(err)
	}
	if on, _ := m.ModuleEnabled(); on {
		t.Errorf("expected module disabled")
	}
	if on, _ := m.IRQEnabled(); !on {
		t.Errorf("disabling the module cleared the interrupt enable")
	}
}

func TestControlWriteDropsStatusOnlyBits(t *testing.T) {
	m, dev := openSim(t, cvora.Options{})
	defer m.Close()
	// busy and enabled; busy shares its bit with the memory pointer reset
	dev.Poke(1, 0, word(0x22))
	if err := m.SetPolarity(cvora.Positive); err != nil {
		t.Fatal(err)
	}
	if got := dev.Peek(1, 0, 4); !cmp.Equal(got, word(0x03)) {
		t.Errorf("expected control word 0x03, got % x", got)
	}

	// busy, both overflows, latched start and stop, irq enabled
	dev.Poke(1, 0, word(0x000300FC))
	if err := m.SetIRQVector(0x10); err != nil {
		t.Fatal(err)
	}
	if got := dev.Peek(1, 0, 4); !cmp.Equal(got, word(0x00031004)) {
		t.Errorf("expected control word 0x00031004, got % x", got)
	}

	dev.Poke(1, 0, word(0x20))
	if err := m.SoftStart(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Peek(1, 0, 4); !cmp.Equal(got, word(1<<cvora.BitSoftStart)) {
		t.Errorf("expected only the start command, got % x", got)
	}
}

func TestCloseEndsPendingWait(t *testing.T) {
	m, _ := openSim(t, cvora.Options{Timeout: 5000})
	done := make(chan error, 1)
	go func() {
		_, err := m.Wait()
		done <- err
	}()
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error from a wait on a closed module")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close did not end the pending wait")
	}
	if err := m.Close(); !errors.Is(err, vmeio.ErrClosed) {
		t.Errorf("second close: expected closed error, got %v", err)
	}
}

func TestArgumentRanges(t *testing.T) {
	m, _ := openSim(t, cvora.Options{})
	defer m.Close()
	if err := m.SetIRQVector(256); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("vector 256: expected invalid argument, got %v", err)
	}
	if err := m.SetPlotInput(33); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("plot 33: expected invalid argument, got %v", err)
	}
	if err := m.SetPolarity(2); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("polarity 2: expected invalid argument, got %v", err)
	}
	if err := m.SetRegister(cvora.RegDAC, 1); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("write to read only dac: expected invalid argument, got %v", err)
	}
}

func TestSampleSize(t *testing.T) {
	m, dev := openSim(t, cvora.Options{})
	defer m.Close()
	dev.Poke(1, 0x4, word(0x20+40))
	n, err := m.SampleSize()
	if err != nil {
		t.Fatal(err)
	}
	if n != 40 {
		t.Errorf("expected 40 bytes, got %d", n)
	}
	dev.Poke(1, 0x4, word(0x10))
	if _, err := m.SampleSize(); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("pointer below memory: expected invalid argument, got %v", err)
	}
}

func TestReadSamplesSwapsDMAWords(t *testing.T) {
	m, dev := openSim(t, cvora.Options{Swap: true})
	defer m.Close()
	samples := []uint32{1, 0x01020304, 0xFFFF0000}
	bus := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.BigEndian.PutUint32(bus[i*4:], s)
	}
	// the bus is big endian; swapping only recovers the value on a
	// little endian host
	if vmeio.HostOrder() != binary.LittleEndian {
		t.Skip("host is not little endian")
	}
	dev.Poke(1, cvora.MemMin, bus)
	dev.Poke(1, 0x4, word(cvora.MemMin+uint32(len(bus))))
	got, err := m.ReadSamples(cvora.MemSize)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(samples, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	last := dev.Log()[len(dev.Log())-1]
	if last.Op != sim.OpDMARead || last.Offset != cvora.MemMin {
		t.Errorf("expected a dma read at 0x20, got %+v", last)
	}
}

func TestReadSamplesClipsToMax(t *testing.T) {
	m, dev := openSim(t, cvora.Options{})
	defer m.Close()
	dev.Poke(1, 0x4, word(cvora.MemMin+64))
	got, err := m.ReadSamples(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 10 bytes to round down to 2 words, got %d", len(got))
	}
	got, err = m.ReadSamples(0)
	if err != nil || len(got) != 0 {
		t.Errorf("expected no samples and no error, got %d %v", len(got), err)
	}
}

func TestOffsetRelocatesModule(t *testing.T) {
	m, dev := openSim(t, cvora.Options{Offset: 0x1000})
	defer m.Close()
	if err := m.SetChannelsMask(0xF0F0); err != nil {
		t.Fatal(err)
	}
	if got := dev.Peek(1, 0x100C, 4); !cmp.Equal(got, word(0xF0F0)) {
		t.Errorf("expected channels at 0x100c, got % x", got)
	}
}

func TestWaitTimesOutWithZeroMask(t *testing.T) {
	m, _ := openSim(t, cvora.Options{Timeout: 5})
	defer m.Close()
	ev, err := m.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Mask != 0 || !ev.TimedOut {
		t.Errorf("expected timed out zero mask event, got %+v", ev)
	}
}

func TestChecksumTracksData(t *testing.T) {
	samples := []uint32{0x31323334, 0x35363738}
	a := cvora.Checksum(samples)
	b := cvora.Checksum([]uint32{0x31323334, 0x35363739})
	if a == b {
		t.Errorf("checksum did not change with the data")
	}
	if cvora.Checksum(samples) != a {
		t.Errorf("checksum not deterministic")
	}
}

func TestWriteFits(t *testing.T) {
	var buf bytes.Buffer
	meta := []fitsio.Card{{Name: "LUN", Value: 0}}
	err := cvora.WriteFits(&buf, meta, []uint32{0, 1, 0xFFFFFFFF})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("SIMPLE")) {
		t.Errorf("output does not start with a FITS primary header")
	}
	if buf.Len()%2880 != 0 {
		t.Errorf("FITS output of %d bytes is not a whole number of 2880 byte blocks", buf.Len())
	}
	if err := cvora.WriteFits(&buf, nil, nil); err == nil {
		t.Errorf("expected an error for no samples")
	}
}
