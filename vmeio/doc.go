/*Package vmeio is the support layer for VME modules served by the vmeio
family of kernel drivers.

Each logical unit (LUN) of a module is a character device node, e.g.
/dev/cvora.0.  The driver exposes one or two address windows per unit, each
with its own data width, and moves data either by memory-mapped I/O ("raw")
or by scatter-gather DMA.  Words moved by DMA arrive in bus order and may
need swapping to host order; Handle does that when asked.

Typical use:

	h, err := vmeio.Open(vmeio.DefaultConfig("cvora"), 0)
	if err != nil {
		log.Fatal(err)
	}
	defer h.Close()
	// registers are 4 bytes wide on window 1, so register 2 is at 0x8
	v, err := h.ReadRegister(2)
	...
	// bulk data by DMA, corrected to host order
	h.Configure(1, vmeio.DMA, true)
	buf := make([]byte, 1024)
	err = h.Read(1, 0x20, buf)

The block offset (SetOffset) is added to every address, so one handle can
reach several copies of a register map placed at different bases.

Nothing here retries, caches, or buffers.  Every call is one driver call plus
at most a byte-swap pass.  Handles are not safe for concurrent use.

Register maps are declared as data (Map) and accessed by name through a Bank;
module packages such as cvora are built on that.
*/
package vmeio
