package util_test

import (
	"fmt"
	"testing"

	"github.jpl.nasa.gov/bdube/golab-vme/util"
)

func ExampleSetBit32_msb() {
	out := util.SetBit32(0, 31, true)
	fmt.Printf("%032b\n", out)
	// Output: 10000000000000000000000000000000
}

func ExampleSetBit32_lsb() {
	out := util.SetBit32(255, 0, false)
	fmt.Printf("%08b\n", out)
	// Output: 11111110
}

func TestGetBit32(t *testing.T) {
	w := uint32(0x8000_0005)
	for bit, expected := range map[uint]bool{0: true, 1: false, 2: true, 31: true, 30: false} {
		if got := util.GetBit32(w, bit); got != expected {
			t.Errorf("bit %d of 0x%x: expected %v got %v", bit, w, expected, got)
		}
	}
}

func TestSetBit32RoundTrip(t *testing.T) {
	for bit := uint(0); bit < 32; bit++ {
		w := util.SetBit32(0, bit, true)
		if !util.GetBit32(w, bit) {
			t.Errorf("bit %d not set in 0x%x", bit, w)
		}
		if util.SetBit32(w, bit, false) != 0 {
			t.Errorf("bit %d not cleared", bit)
		}
	}
}

func TestIntSliceToCSV(t *testing.T) {
	inp := []int{1, 2, 3}
	expected := "1,2,3"
	out := util.IntSliceToCSV(inp)
	if expected != out {
		t.Errorf("expected %s got %s", expected, out)
	}
}

func TestParseWord(t *testing.T) {
	cases := map[string]uint32{
		" 0xFFFFFFFF": 0xFFFFFFFF,
		"0b101":       5,
		"0x1234":      0x1234,
		"12":          12,
	}
	for in, expected := range cases {
		out, err := util.ParseWord(in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if out != expected {
			t.Errorf("%q: expected %d got %d", in, expected, out)
		}
	}
	if _, err := util.ParseWord("0x1_0000_0000"); err == nil {
		t.Errorf("expected 33 bit value to be rejected")
	}
}
