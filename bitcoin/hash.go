// Package bitcoin implements the leaf-level primitives the mining core
// depends on: proof-of-work hashing, compact-target expansion, and block
// header assembly.
package bitcoin

import (
	"crypto/sha256"
	"errors"

	x11 "gitlab.com/samli88/go-x11-hash"
	"golang.org/x/crypto/scrypt"
)

// HashFunc is a proof-of-work hashing primitive: header/coinbase bytes in,
// digest bytes out.
type HashFunc func([]byte) []byte

// Algorithm identifies a proof-of-work hash function usable behind the
// same Stratum session/engine plumbing.
type Algorithm string

const (
	// SHA256d is Bitcoin's double-SHA-256. This is the only algorithm the
	// core specification targets.
	SHA256d Algorithm = "sha256d"
	// Scrypt is the Litecoin-family scrypt(1024,1,1,32) KDF used as PoW.
	Scrypt Algorithm = "scrypt"
	// X11 is the chained 11-hash-function PoW used by Dash-family coins.
	X11 Algorithm = "x11"
)

func (a Algorithm) String() string {
	return string(a)
}

// HashFunc returns the hashing primitive for the algorithm.
func (a Algorithm) HashFunc() HashFunc {
	switch a {
	case SHA256d:
		return DoubleSHA256
	case Scrypt:
		return scryptHash
	case X11:
		return x11Hash
	}
	panic("bitcoin: algorithm hash function not defined: " + string(a))
}

// ParseAlgorithm parses a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case SHA256d:
		return SHA256d, nil
	case Scrypt:
		return Scrypt, nil
	case X11:
		return X11, nil
	}
	return "", errors.New("bitcoin: unknown algorithm: " + s)
}

// DoubleSHA256 computes SHA256(SHA256(data)), Bitcoin's block and
// transaction hash primitive.
func DoubleSHA256(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}

// scryptHash is the Litecoin proof-of-work function: N=1024, r=1, p=1,
// salt equal to the input, 256-bit output.
func scryptHash(data []byte) []byte {
	digest, err := scrypt.Key(data, data, 1024, 1, 1, 32)
	if err != nil {
		panic(err)
	}
	return digest
}

func x11Hash(data []byte) []byte {
	out := make([]byte, 32)
	x11.New().Hash(data, out)
	return out
}
