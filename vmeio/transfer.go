package vmeio

// Transfer moves buf to or from window at byte offset, using the path
// selected by the handle's mode.  The handle's block offset is added to
// offset before the request reaches the driver.
//
// In DMA mode with swap enabled, buf is corrected to host order after a
// read.  Before a write it is put in driver order for the duration of the
// call and restored afterwards, so the caller's data is left as it was.
func (h *Handle) Transfer(window, offset int, buf []byte, dir Direction) error {
	if h.mode == DMA {
		return h.DMA(window, offset, buf, dir)
	}
	return h.Raw(window, offset, buf, dir)
}

// Read fills buf from window at offset, see Transfer
func (h *Handle) Read(window, offset int, buf []byte) error {
	return h.Transfer(window, offset, buf, Read)
}

// Write sends buf to window at offset, see Transfer
func (h *Handle) Write(window, offset int, buf []byte) error {
	return h.Transfer(window, offset, buf, Write)
}

// Raw does a mapped I/O transfer regardless of the handle's mode.
// Raw transfers are already in driver-native order and are never swapped.
func (h *Handle) Raw(window, offset int, buf []byte, dir Direction) error {
	op := "raw " + dir.String()
	req, _, err := h.request(op, window, offset, buf)
	if err != nil {
		return err
	}
	if dir == Write {
		return driverErr(op, h.conn.RawWrite(req))
	}
	return driverErr(op, h.conn.RawRead(req))
}

// DMA does a scatter-gather transfer regardless of the handle's mode,
// applying byte-swap correction when the handle's swap flag is set
func (h *Handle) DMA(window, offset int, buf []byte, dir Direction) error {
	op := "dma " + dir.String()
	req, width, err := h.request(op, window, offset, buf)
	if err != nil {
		return err
	}
	if dir == Write {
		if h.swap {
			Swap(buf, width)
			defer Swap(buf, width)
		}
		return driverErr(op, h.conn.DMAWrite(req))
	}
	if err := h.conn.DMARead(req); err != nil {
		return driverErr(op, err)
	}
	if h.swap {
		Swap(buf, width)
	}
	return nil
}

// request validates a transfer and builds its driver descriptor.
// The width of the window is returned for the swap pass.
func (h *Handle) request(op string, window, offset int, buf []byte) (Request, int, error) {
	if err := h.check(op); err != nil {
		return Request{}, 0, err
	}
	width, ok := h.window.DataWidth(window)
	if !ok {
		return Request{}, 0, invalid(op, "window %d is not described for lun %d", window, h.lun)
	}
	if len(buf) == 0 {
		return Request{}, 0, invalid(op, "empty buffer")
	}
	if len(buf)%width != 0 {
		return Request{}, 0, invalid(op, "size %d is not a multiple of window %d data width %d", len(buf), window, width)
	}
	abs := offset + h.offset
	if abs < 0 {
		return Request{}, 0, invalid(op, "offset %d with block offset %d is negative", offset, h.offset)
	}
	return Request{Window: window, Offset: abs, Buf: buf}, width, nil
}
