package bitcoin

import "fmt"

// TargetFromBits expands Bitcoin's 32-bit compact "nBits" encoding into a
// 32-byte big-endian target (most-significant byte at index 0).
//
// nBits layout: the high byte is the exponent, the low three bytes are the
// mantissa; bit 23 of the mantissa is a sign bit that must be zero for any
// valid difficulty target. The value is mantissa * 256^(exponent-3).
//
// The teacher's targetFromBits used the exponent directly as a byte index
// into the 32-byte buffer; the correct placement is 32-exponent (counting
// from the most-significant byte), which is what this implements.
func TargetFromBits(nbits uint32) ([32]byte, error) {
	var target [32]byte

	exponent := nbits >> 24
	mantissa := nbits & 0x007fffff
	signBit := nbits & 0x00800000

	if signBit != 0 {
		return target, fmt.Errorf("bitcoin: negative compact target not allowed: %#08x", nbits)
	}
	if exponent > 32 {
		return target, fmt.Errorf("bitcoin: compact target exponent out of range: %d", exponent)
	}

	mantissaBytes := []byte{
		byte(mantissa >> 16),
		byte(mantissa >> 8),
		byte(mantissa),
	}

	// mantissa * 256^(exponent-3): the mantissa's most-significant byte
	// lands at offset (32-exponent) from the start of the buffer.
	switch {
	case exponent >= 3:
		start := 32 - int(exponent)
		if start < 0 || start+3 > 32 {
			return target, fmt.Errorf("bitcoin: compact target exponent out of range: %d", exponent)
		}
		copy(target[start:start+3], mantissaBytes)
	default:
		// exponent < 3 shifts the mantissa right by 8*(3-exponent) bits,
		// dropping the low bytes instead of padding with zeros after it.
		shift := 3 - int(exponent)
		if shift > 3 {
			return target, nil
		}
		copy(target[32-3+shift:], mantissaBytes[:3-shift])
	}

	return target, nil
}

// HashMeetsTarget reports whether a little-endian double-SHA-256 digest
// satisfies a big-endian target: reversed(hash) <= target, compared
// lexicographically from the most-significant byte.
func HashMeetsTarget(hash [32]byte, target [32]byte) bool {
	for i := 0; i < 32; i++ {
		h := hash[32-1-i]
		t := target[i]
		switch {
		case h < t:
			return true
		case h > t:
			return false
		}
	}
	return true
}
