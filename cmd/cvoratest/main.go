// cvoratest is a bench check of one CVORA: it prints the window
// descriptor, versions, and registers, optionally writes a register, and
// optionally runs a software interrupt through the event path.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/theckman/yacspin"

	"github.jpl.nasa.gov/bdube/golab-vme/cvora"
	"github.jpl.nasa.gov/bdube/golab-vme/util"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
)

var (
	lun      = flag.Int("lun", 0, "logical unit number")
	driver   = flag.String("driver", cvora.DriverName, "driver name")
	devdir   = flag.String("dev", vmeio.DefaultDevDir, "device node directory")
	fallback = flag.Int("fallback", 0, "window width to assume if the driver cannot describe the windows (0 = fail)")
	swap     = flag.Bool("swap", true, "swap DMA words to host order")
	dma      = flag.Bool("dma", false, "access registers by DMA")
	timeout  = flag.Int("timeout", 1000, "event timeout, ms")
	set      = flag.String("set", "", "write a register first, name=value")
	irq      = flag.Bool("irq", false, "run a software interrupt round trip")
	mask     = flag.Uint("mask", 0x1, "interrupt mask for -irq")
)

func pass(format string, args ...interface{}) {
	color.Green("PASS  "+format, args...)
}

func fail(format string, args ...interface{}) {
	color.Red("FAIL  "+format, args...)
}

func printWindow(w vmeio.Window) {
	fmt.Printf("lun %d, level %d, vector 0x%02x, isrc %d, nomap %v\n", w.LUN, w.Level, w.Vector, w.ISRC, w.NoMap)
	for i := 0; i < vmeio.Windows; i++ {
		fmt.Printf("window %d: vme 0x%08x am 0x%02x size 0x%x ", i+1, w.VME[i], w.AM[i], w.Size[i])
		if _, ok := w.DataWidth(i + 1); !ok {
			fmt.Println("(unmapped)")
			continue
		}
		fmt.Println()
	}
	fmt.Printf("data widths: %s\n", util.IntSliceToCSV(w.Width[:]))
}

func printRegisters(m *cvora.Module) int {
	failures := 0
	for _, name := range cvora.Registers.Names() {
		reg, _ := cvora.Registers.Lookup(name)
		if !reg.Access.Readable() {
			continue
		}
		v, err := m.Register(name)
		if err != nil {
			fail("read %s: %v", name, err)
			failures++
			continue
		}
		fmt.Printf("%-12s @0x%02x = 0x%08x\n", name, reg.Offset, v)
	}
	st, err := m.HardwareStatus()
	if err == nil {
		fmt.Printf("status: %+v\n", st)
	}
	if mode, err := m.Mode(); err == nil {
		fmt.Printf("mode: %v\n", mode)
	}
	return failures
}

func writeRegister(m *cvora.Module, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("-set %q is not name=value", assignment)
	}
	v, err := util.ParseWord(parts[1])
	if err != nil {
		return err
	}
	return m.SetRegister(parts[0], v)
}

func interruptRoundTrip(m *cvora.Module, mask uint32) error {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " waiting for interrupt",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return err
	}
	if err := m.Interrupt(mask); err != nil {
		return err
	}
	spinner.Start()
	ev, err := m.Wait()
	if err != nil {
		spinner.StopFail()
		return err
	}
	if ev.TimedOut {
		spinner.StopFail()
		return errors.New("timed out waiting for the interrupt")
	}
	spinner.Stop()
	if ev.Mask != mask || ev.LUN != m.LUN() {
		return fmt.Errorf("expected mask 0x%x on lun %d, got 0x%x on lun %d", mask, m.LUN(), ev.Mask, ev.LUN)
	}
	return nil
}

func main() {
	flag.Parse()
	cfg := vmeio.DefaultConfig(*driver)
	cfg.DevDir = *devdir
	cfg.FallbackWidth = *fallback
	log.Printf("opening %s\n", cfg.Path(*lun))
	m, err := cvora.Open(cfg, *lun, cvora.Options{DMA: *dma, Swap: *swap, Timeout: *timeout})
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	failures := 0
	printWindow(m.Window())
	if v, err := m.DriverVersion(); err != nil {
		fail("driver version: %v", err)
		failures++
	} else {
		fmt.Printf("driver %s, library %s\n",
			time.Unix(v.Driver, 0).UTC().Format(time.RFC3339),
			time.Unix(v.Library, 0).UTC().Format(time.RFC3339))
	}
	if *set != "" {
		if err := writeRegister(m, *set); err != nil {
			fail("write: %v", err)
			failures++
		} else {
			pass("wrote %s", *set)
		}
	}
	failures += printRegisters(m)
	if *irq {
		if err := interruptRoundTrip(m, uint32(*mask)); err != nil {
			fail("interrupt: %v", err)
			failures++
		} else {
			pass("interrupt 0x%x delivered", *mask)
		}
	}
	if failures > 0 {
		m.Close()
		os.Exit(1)
	}
}
