package bitcoin

import "encoding/binary"

// HeaderSize is the fixed wire size of a Bitcoin block header.
const HeaderSize = 80

// BuildCoinbase concatenates the coinbase transaction's fixed halves
// around the pool-assigned extranonce1 and the client-chosen extranonce2,
// per the Stratum coinbase-construction rule: coinb1 || extranonce1 ||
// extranonce2 || coinb2.
func BuildCoinbase(coinb1, extranonce1, extranonce2, coinb2 []byte) []byte {
	out := make([]byte, 0, len(coinb1)+len(extranonce1)+len(extranonce2)+len(coinb2))
	out = append(out, coinb1...)
	out = append(out, extranonce1...)
	out = append(out, extranonce2...)
	out = append(out, coinb2...)
	return out
}

// MerkleRoot folds the coinbase hash through the authenticated merkle
// branch path. Folding is linear (current, branch), not tree-shaped: the
// branches already encode the sibling path from the coinbase leaf to the
// root.
func MerkleRoot(coinbase []byte, branches [][]byte, hash HashFunc) [32]byte {
	var root [32]byte
	copy(root[:], hash(coinbase))

	for _, branch := range branches {
		buf := make([]byte, 0, 64)
		buf = append(buf, root[:]...)
		buf = append(buf, branch...)
		copy(root[:], hash(buf))
	}

	return root
}

// HeaderFields holds the values BuildHeader assembles into 80 bytes. All
// four-byte scalar fields are little-endian in the final header regardless
// of their Stratum wire representation.
type HeaderFields struct {
	Version    uint32
	PrevHash   [32]byte // already in canonical (swapped) byte order
	MerkleRoot [32]byte
	Ntime      uint32
	NBits      uint32
	Nonce      uint32
}

// BuildHeader assembles the 80-byte block header:
// version(4) || prev_hash(32) || merkle_root(32) || ntime(4) || nbits(4) || nonce(4).
func BuildHeader(f HeaderFields) [HeaderSize]byte {
	var header [HeaderSize]byte

	binary.LittleEndian.PutUint32(header[0:4], f.Version)
	copy(header[4:36], f.PrevHash[:])
	copy(header[36:68], f.MerkleRoot[:])
	binary.LittleEndian.PutUint32(header[68:72], f.Ntime)
	binary.LittleEndian.PutUint32(header[72:76], f.NBits)
	binary.LittleEndian.PutUint32(header[76:80], f.Nonce)

	return header
}

// SwapPrevHashWordOrder performs the 32-bit-word byte swap the pool's
// wire-order prev_hash requires before insertion into the header: the
// pool sends prev_hash as 8 big-endian 32-bit words; each word's byte
// order is reversed in place (word order is unchanged) to produce the
// canonical form the header expects.
func SwapPrevHashWordOrder(prevHash [32]byte) [32]byte {
	var swapped [32]byte
	for i := 0; i < 32; i += 4 {
		swapped[i] = prevHash[i+3]
		swapped[i+1] = prevHash[i+2]
		swapped[i+2] = prevHash[i+1]
		swapped[i+3] = prevHash[i]
	}
	return swapped
}
