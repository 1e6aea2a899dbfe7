package cvora

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/astrogo/fitsio"
	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.XMODEM)

// Checksum computes the XMODEM CRC16 of samples, serialized big endian
func Checksum(samples []uint32) uint16 {
	buf := make([]byte, 4)
	c := crcTable.InitCrc()
	for _, s := range samples {
		binary.BigEndian.PutUint32(buf, s)
		c = crcTable.UpdateCrc(c, buf)
	}
	return crcTable.CRC16(c)
}

// WriteFits streams samples to w as a one dimensional 32 bit FITS image.
// FITS has no unsigned 32 bit type, so the data are offset by 2^31 and
// BZERO records the offset.  A SAMPCRC card holds Checksum(samples).
func WriteFits(w io.Writer, metadata []fitsio.Card, samples []uint32) error {
	if len(samples) == 0 {
		return errors.New("no samples to write")
	}
	metadata = append(metadata,
		fitsio.Card{Name: "BZERO", Value: 2147483648.0},
		fitsio.Card{Name: "BSCALE", Value: 1.0},
		fitsio.Card{Name: "SAMPCRC", Value: int(Checksum(samples)), Comment: "XMODEM CRC16 of big endian samples"})
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(32, []int{len(samples)})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}
	ints := make([]int32, len(samples))
	for i, s := range samples {
		ints[i] = int32(s ^ 0x80000000)
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
