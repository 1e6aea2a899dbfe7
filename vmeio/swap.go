package vmeio

// Swap corrects the byte order of buf in place, treating it as a sequence of
// width byte elements.  Width 1 is a no-op, width 2 exchanges the bytes of
// each pair, width 4 reverses each word.  Applying Swap twice with the same
// width restores buf.
func Swap(buf []byte, width int) error {
	switch width {
	case 1, 2, 4:
	default:
		return invalid("swap", "element width %d not in {1,2,4}", width)
	}
	if len(buf)%width != 0 {
		return invalid("swap", "buffer of %d bytes is not a whole number of %d byte elements", len(buf), width)
	}
	switch width {
	case 2:
		for i := 0; i < len(buf); i += 2 {
			buf[i], buf[i+1] = buf[i+1], buf[i]
		}
	case 4:
		for i := 0; i < len(buf); i += 4 {
			buf[i], buf[i+3] = buf[i+3], buf[i]
			buf[i+1], buf[i+2] = buf[i+2], buf[i+1]
		}
	}
	return nil
}
