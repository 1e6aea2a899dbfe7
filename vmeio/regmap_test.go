package vmeio_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio/sim"
)

var testMap = vmeio.Map{
	Name:    "test",
	Version: 1,
	Window:  1,
	Registers: []vmeio.Register{
		{Name: "control", Offset: 0x0, Width: 4, Access: vmeio.WO},
		{Name: "status", Offset: 0x0, Width: 4, Access: vmeio.RO},
		{Name: "pointer", Offset: 0x4, Width: 4, Access: vmeio.RW},
		{Name: "short", Offset: 0x8, Width: 2, Access: vmeio.RW},
	},
}

func TestMapValidate(t *testing.T) {
	if err := testMap.Validate(); err != nil {
		t.Fatalf("valid map rejected: %v", err)
	}
	bad := []vmeio.Map{
		{Name: "window", Window: 3},
		{Name: "dup", Window: 1, Registers: []vmeio.Register{
			{Name: "a", Width: 4, Access: vmeio.RW},
			{Name: "A", Offset: 4, Width: 4, Access: vmeio.RW},
		}},
		{Name: "width", Window: 1, Registers: []vmeio.Register{{Name: "a", Width: 3, Access: vmeio.RW}}},
		{Name: "align", Window: 1, Registers: []vmeio.Register{{Name: "a", Offset: 2, Width: 4, Access: vmeio.RW}}},
		{Name: "access", Window: 1, Registers: []vmeio.Register{{Name: "a", Width: 4}}},
	}
	for _, m := range bad {
		if err := m.Validate(); !errors.Is(err, vmeio.ErrInvalid) {
			t.Errorf("map %q: expected invalid argument, got %v", m.Name, err)
		}
	}
}

func TestMapNames(t *testing.T) {
	expected := []string{"control", "pointer", "short", "status"}
	if diff := cmp.Diff(expected, testMap.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestBankGetSet(t *testing.T) {
	dev := sim.Standard(0)
	h := open(t, dev, 0)
	defer h.Close()
	b, err := vmeio.NewBank(h, testMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Set("pointer", 0x1F0); err != nil {
		t.Fatal(err)
	}
	v, err := b.Get("POINTER")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x1F0 {
		t.Errorf("expected 0x1f0, got 0x%x", v)
	}
}

func TestBankHonoursDirection(t *testing.T) {
	h := open(t, sim.Standard(0), 0)
	defer h.Close()
	b, _ := vmeio.NewBank(h, testMap)
	if _, err := b.Get("control"); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("expected reading a write only register to fail, got %v", err)
	}
	if err := b.Set("status", 1); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("expected writing a read only register to fail, got %v", err)
	}
	if _, err := b.Get("nope"); !errors.Is(err, vmeio.ErrInvalid) {
		t.Errorf("expected unknown register to fail, got %v", err)
	}
}

func TestBankNarrowRegisterOnWideWindow(t *testing.T) {
	dev := sim.Standard(0)
	h := open(t, dev, 0)
	defer h.Close()
	b, _ := vmeio.NewBank(h, testMap)
	if err := b.Set("short", 0xABCDEF); err != nil {
		t.Fatal(err)
	}
	v, err := b.Get("short")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xCDEF {
		t.Errorf("expected value truncated to 16 bits 0xcdef, got 0x%x", v)
	}
	if got := dev.Log()[0].Size; got != 4 {
		t.Errorf("expected a full 4 byte window transfer, got %d", got)
	}
}

func TestBankFollowsBlockOffset(t *testing.T) {
	dev := sim.Standard(0)
	h := open(t, dev, 0)
	defer h.Close()
	b, _ := vmeio.NewBank(h, testMap)
	h.SetOffset(0x100)
	if err := b.Set("pointer", 7); err != nil {
		t.Fatal(err)
	}
	if got := dev.Log()[0].Offset; got != 0x104 {
		t.Errorf("expected driver offset 0x104, got 0x%x", got)
	}
}
