package engine

import (
	"encoding/hex"
	"fmt"
)

// Share is a candidate solution ready for mining.submit. JobID is the
// pool's opaque job id; Ntime is the job's 8-character ntime string as the
// pool sent it; ExtraNonce2 and Nonce are lowercase, fixed-width hex.
type Share struct {
	JobID       string
	ExtraNonce2 string
	Ntime       string
	Nonce       string
}

// newShare converts the binary fields a worker found into the hex strings
// mining.submit requires. Nonce and ntime follow the same big-endian wire
// convention as the rest of the job's scalar fields; extranonce2 is
// hex-encoded directly since it is already in its wire byte order.
func newShare(jobID string, extranonce2 []byte, ntimeHex string, nonce uint32) Share {
	return Share{
		JobID:       jobID,
		ExtraNonce2: hex.EncodeToString(extranonce2),
		Ntime:       ntimeHex,
		Nonce:       fmt.Sprintf("%08x", nonce),
	}
}
