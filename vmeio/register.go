package vmeio

import (
	"encoding/binary"
	"unsafe"
)

// hostOrder is the byte order of the host, register values cross the driver
// boundary in it
var hostOrder binary.ByteOrder = func() binary.ByteOrder {
	x := uint16(1)
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// HostOrder returns the byte order register values are encoded in
func HostOrder() binary.ByteOrder {
	return hostOrder
}

// ReadRegister reads register index of the active window.  The register lives
// at byte offset index*width, plus the block offset.
func (h *Handle) ReadRegister(index int) (uint32, error) {
	off, width, err := h.registerOffset("read register", index)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, width)
	if err := h.Transfer(h.winum, off, buf, Read); err != nil {
		return 0, err
	}
	return decode(buf), nil
}

// WriteRegister writes value to register index of the active window.
// Bits above the window's data width are dropped.
func (h *Handle) WriteRegister(index int, value uint32) error {
	off, width, err := h.registerOffset("write register", index)
	if err != nil {
		return err
	}
	buf := make([]byte, width)
	encode(buf, value)
	return h.Transfer(h.winum, off, buf, Write)
}

func (h *Handle) registerOffset(op string, index int) (int, int, error) {
	if err := h.check(op); err != nil {
		return 0, 0, err
	}
	if index < 0 {
		return 0, 0, invalid(op, "register index %d is negative", index)
	}
	width, err := h.Width(h.winum)
	if err != nil {
		return 0, 0, err
	}
	return index * width, width, nil
}

// decode reads a 1, 2, or 4 byte value in host order
func decode(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(hostOrder.Uint16(b))
	default:
		return hostOrder.Uint32(b)
	}
}

// encode writes the low len(b) bytes of v into b in host order
func encode(b []byte, v uint32) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		hostOrder.PutUint16(b, uint16(v))
	default:
		hostOrder.PutUint32(b, v)
	}
}
