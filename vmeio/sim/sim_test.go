package sim

import (
	"errors"
	"syscall"
	"testing"

	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
)

func TestTransferBounds(t *testing.T) {
	d := Standard(0)
	c, _ := d.Dial("")
	buf := make([]byte, 4)
	if err := c.RawRead(vmeio.Request{Window: 2, Buf: buf}); !errors.Is(err, syscall.EINVAL) {
		t.Errorf("unmapped window: expected EINVAL, got %v", err)
	}
	if err := c.RawRead(vmeio.Request{Window: 1, Offset: DefaultSize - 2, Buf: buf}); !errors.Is(err, syscall.EFAULT) {
		t.Errorf("past the end: expected EFAULT, got %v", err)
	}
}

func TestPokeThenDMARead(t *testing.T) {
	d := Standard(0)
	c, _ := d.Dial("")
	d.Poke(1, 0x40, []byte{1, 2, 3, 4})
	buf := make([]byte, 4)
	if err := c.DMARead(vmeio.Request{Window: 1, Offset: 0x40, Buf: buf}); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 1 || buf[3] != 4 {
		t.Errorf("sim must not reorder bytes, got % x", buf)
	}
	if log := d.Log(); len(log) != 1 || log[0].Op != OpDMARead {
		t.Errorf("unexpected log %+v", log)
	}
}

func TestRaiseDeliversToReader(t *testing.T) {
	d := Standard(4)
	c, _ := d.Dial("")
	d.Raise(0x80)
	ev, err := c.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if ev.LUN != 4 || ev.Mask != 0x80 {
		t.Errorf("expected lun 4 mask 0x80, got %+v", ev)
	}
}

func TestCloseUnblocksReader(t *testing.T) {
	d := Standard(0)
	c, _ := d.Dial("")
	c.SetTimeout(0)
	done := make(chan error)
	go func() {
		_, err := c.ReadEvent()
		done <- err
	}()
	c.Close()
	if err := <-done; err == nil {
		t.Error("expected an error from a read on a closed connection")
	}
	if err := c.Close(); err == nil {
		t.Error("expected a second close to fail")
	}
}
