//go:build linux
// +build linux

package vmeio

import "unsafe"

// ioctl number encoding, asm-generic layout:
//
//	bits 0-7:   number
//	bits 8-15:  type
//	bits 16-29: size
//	bits 30-31: direction
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func ior(typ, nr, size uintptr) uintptr  { return ioc(iocRead, typ, nr, size) }
func iow(typ, nr, size uintptr) uintptr  { return ioc(iocWrite, typ, nr, size) }
func iowr(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }

// kernel struct mirrors, see vmeio.h in the driver tree

type riob struct {
	winum  int32
	offset int32
	bsize  int32
	buffer uintptr
}

type getWindow struct {
	lun  int32
	lvl  int32
	vec  int32
	vme1 uint32
	vme2 uint32
	amd1 int32
	amd2 int32
	dwd1 int32
	dwd2 int32
	win1 int32
	win2 int32
	nmap int32
	isrc int32
}

type readBuf struct {
	logicalUnit   int32
	interruptMask int32
}

const vmeioMagic = 'V'

// control codes, these must agree with the installed driver
var (
	ioctlGetDebug    = ior(vmeioMagic, 1, unsafe.Sizeof(int64(0)))
	ioctlSetDebug    = iow(vmeioMagic, 2, unsafe.Sizeof(int64(0)))
	ioctlGetVersion  = ior(vmeioMagic, 3, unsafe.Sizeof(int64(0)))
	ioctlGetTimeout  = ior(vmeioMagic, 4, unsafe.Sizeof(int64(0)))
	ioctlSetTimeout  = iow(vmeioMagic, 5, unsafe.Sizeof(int64(0)))
	ioctlGetDevice   = ior(vmeioMagic, 6, unsafe.Sizeof(getWindow{}))
	ioctlRawRead     = iowr(vmeioMagic, 7, unsafe.Sizeof(riob{}))
	ioctlRawWrite    = iowr(vmeioMagic, 8, unsafe.Sizeof(riob{}))
	ioctlRawReadDMA  = iowr(vmeioMagic, 9, unsafe.Sizeof(riob{}))
	ioctlRawWriteDMA = iowr(vmeioMagic, 10, unsafe.Sizeof(riob{}))
)
