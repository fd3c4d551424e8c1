package bitcoin

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

func TestTargetFromBits_GenesisTarget(t *testing.T) {
	target, err := TargetFromBits(0x1d00ffff)
	if err != nil {
		t.Fatalf("TargetFromBits: %v", err)
	}

	want := mustHex(t, "00000000ffff0000000000000000000000000000000000000000000000000000")
	if !bytes.Equal(target[:], want) {
		t.Errorf("genesis target = %x, want %x", target, want)
	}
}

func TestTargetFromBits_RejectsSignBit(t *testing.T) {
	if _, err := TargetFromBits(0x01800000); err == nil {
		t.Fatal("expected error for set sign bit")
	}
}

func TestTargetFromBits_Monotonic(t *testing.T) {
	const mantissa = 0x00123456
	var prev [32]byte
	for exp := uint32(3); exp <= 32; exp++ {
		nbits := (exp << 24) | mantissa
		target, err := TargetFromBits(nbits)
		if err != nil {
			t.Fatalf("exponent %d: %v", exp, err)
		}
		if bytes.Compare(target[:], prev[:]) < 0 {
			t.Errorf("exponent %d: target %x is less than previous %x", exp, target, prev)
		}
		prev = target
	}
}

func TestHashMeetsTarget(t *testing.T) {
	var target [32]byte
	target[0] = 0x00
	target[1] = 0x00
	target[2] = 0xff

	tests := []struct {
		name string
		hash [32]byte // little-endian digest as produced by DoubleSHA256
		want bool
	}{
		{
			name: "well under target",
			hash: reverseFixture("0000000000000000000000000000000000000000000000000000000000000001"),
			want: true,
		},
		{
			name: "above target",
			hash: reverseFixture("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HashMeetsTarget(tt.hash, target); got != tt.want {
				t.Errorf("HashMeetsTarget() = %v, want %v", got, tt.want)
			}
		})
	}
}

// reverseFixture decodes a big-endian hex fixture and returns it reversed,
// i.e. in the little-endian form HashMeetsTarget expects as input.
func reverseFixture(s string) [32]byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	var out [32]byte
	for i := range b {
		out[31-i] = b[i]
	}
	return out
}
