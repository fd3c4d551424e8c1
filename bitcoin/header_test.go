package bitcoin

import (
	"encoding/hex"
	"testing"
)

func decodeBE32(t *testing.T, s string) [32]byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	var out [32]byte
	for i := range b {
		out[31-i] = b[i]
	}
	return out
}

// TestBuildHeader_Block125552 reproduces the well-known Bitcoin block
// 125552 header hash from its human-readable (big-endian display) fields.
func TestBuildHeader_Block125552(t *testing.T) {
	prevHash := decodeBE32(t, "00000000000008a3a41b85b8b29ad444def299fee21793cd8b9e567eab02cd81")
	merkleRoot := decodeBE32(t, "2b12fcf1b09288fcaff797d71e950e71ae42b91e8bdb2304758dfcffc2b620e3")

	header := BuildHeader(HeaderFields{
		Version:    1,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		Ntime:      0x4dd7f5c7,
		NBits:      0x1a44b9f2,
		Nonce:      0x9546a142,
	})

	if len(header) != HeaderSize {
		t.Fatalf("header length = %d, want %d", len(header), HeaderSize)
	}

	digest := DoubleSHA256(header[:])
	var reversed [32]byte
	for i := range digest {
		reversed[31-i] = digest[i]
	}

	got := hex.EncodeToString(reversed[:])
	want := "00000000000000001e8d6829a8a21adc5d38d0a473b144b6765798e61f98bd1d"
	if got != want {
		t.Errorf("block hash = %s, want %s", got, want)
	}
}

func TestBuildHeader_FieldOffsets(t *testing.T) {
	f := HeaderFields{
		Version:    0x01020304,
		Ntime:      0x11223344,
		NBits:      0x55667788,
		Nonce:      0x99aabbcc,
	}
	for i := range f.PrevHash {
		f.PrevHash[i] = byte(i)
	}
	for i := range f.MerkleRoot {
		f.MerkleRoot[i] = byte(0x80 + i)
	}

	header := BuildHeader(f)

	if header[0] != 0x04 || header[3] != 0x01 {
		t.Errorf("version not little-endian at offset 0: %x", header[0:4])
	}
	for i := 0; i < 32; i++ {
		if header[4+i] != byte(i) {
			t.Errorf("prev_hash byte %d = %x, want %x", i, header[4+i], byte(i))
		}
	}
	for i := 0; i < 32; i++ {
		if header[36+i] != byte(0x80+i) {
			t.Errorf("merkle_root byte %d mismatch", i)
		}
	}
	if header[68] != 0x44 || header[71] != 0x11 {
		t.Errorf("ntime not little-endian at offset 68: %x", header[68:72])
	}
	if header[72] != 0x88 || header[75] != 0x55 {
		t.Errorf("nbits not little-endian at offset 72: %x", header[72:76])
	}
	if header[76] != 0xcc || header[79] != 0x99 {
		t.Errorf("nonce not little-endian at offset 76: %x", header[76:80])
	}
}

func TestMerkleRoot_Linear(t *testing.T) {
	coinbase := []byte("coinbase-bytes")
	branch := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")[:32]

	root := MerkleRoot(coinbase, [][]byte{branch}, DoubleSHA256)

	h := DoubleSHA256(coinbase)
	buf := append(append([]byte{}, h...), branch...)
	want := DoubleSHA256(buf)

	if hex.EncodeToString(root[:]) != hex.EncodeToString(want) {
		t.Errorf("merkle root = %x, want %x", root, want)
	}
}

func TestSwapPrevHashWordOrder(t *testing.T) {
	var in [32]byte
	for i := range in {
		in[i] = byte(i)
	}

	out := SwapPrevHashWordOrder(in)

	for w := 0; w < 8; w++ {
		base := w * 4
		if out[base] != in[base+3] || out[base+1] != in[base+2] ||
			out[base+2] != in[base+1] || out[base+3] != in[base] {
			t.Errorf("word %d not byte-swapped in place: in=%x out=%x",
				w, in[base:base+4], out[base:base+4])
		}
	}
}
