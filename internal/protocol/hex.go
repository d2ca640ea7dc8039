package protocol

import (
	"errors"
	"strings"
)

var (
	// ErrOddHexDigits is returned when a hex string ends on a dangling nibble.
	ErrOddHexDigits = errors.New("odd number of hex digits")

	// ErrEmptyHex is returned when a hex string decodes to zero bytes.
	ErrEmptyHex = errors.New("no hex bytes")
)

const hexDigits = "0123456789ABCDEF"

// hexValue returns the value of a hex digit, or -1 for any other character.
func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// ParseHex decodes a separator-tolerant hex string such as "AA BB", "aa,bb"
// or "AA:BB:CC". Spaces, commas, colons and every other non-hex character are
// skipped, so pairs may also be written back to back.
func ParseHex(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)/2)
	high := -1

	for i := 0; i < len(s); i++ {
		v := hexValue(s[i])
		if v < 0 {
			continue
		}
		if high < 0 {
			high = v
			continue
		}
		out = append(out, byte(high<<4|v))
		high = -1
	}

	if high >= 0 {
		return nil, ErrOddHexDigits
	}
	if len(out) == 0 {
		return nil, ErrEmptyHex
	}
	return out, nil
}

// FormatHex encodes data as uppercase byte pairs separated by single spaces.
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(data)*3 - 1)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(hexDigits[b>>4])
		sb.WriteByte(hexDigits[b&0x0F])
	}
	return sb.String()
}
