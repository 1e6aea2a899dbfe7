// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// GetBit32 returns the value of a given bit in a word
func GetBit32(w uint32, bitIndex uint) bool {
	return w&(1<<bitIndex) != 0
}

// SetBit32 returns w with bit bitIndex set or cleared
func SetBit32(w uint32, bitIndex uint, on bool) uint32 {
	if on {
		return w | 1<<bitIndex
	}
	return w &^ (1 << bitIndex)
}

// ParseWord parses a 32 bit register value in decimal, 0x hex, 0o/0 octal,
// or 0b binary
func ParseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	return uint32(v), err
}
