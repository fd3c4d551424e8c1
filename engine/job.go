// Package engine implements the mining engine: nonce-space search across a
// pool of worker goroutines, preemption on new work, and hashrate
// accounting. It consumes Job snapshots and the shared extranonce1 the
// Stratum session assigns, and produces Share solutions back to it.
package engine

import (
	"encoding/hex"
	"fmt"

	"github.com/boomstarternetwork/btcminer/bitcoin"
)

// maxMerkleBranches bounds the merkle branch path length to a sane,
// practically-unbounded limit so a malformed notify can't allocate
// unbounded memory.
const maxMerkleBranches = 64

// Job is an immutable snapshot of one unit of work handed out by
// mining.notify. A Job is frozen once constructed; workers hold shared
// read-only references to it and never mutate it.
type Job struct {
	ID string

	prevHash       [32]byte
	coinb1         []byte
	coinb2         []byte
	merkleBranches [][]byte

	version uint32
	nbits   uint32
	ntime   uint32

	// ntimeHex preserves the wire representation verbatim so submissions
	// echo back the exact string the pool sent.
	ntimeHex string

	CleanJobs bool
}

// ParseNotify validates and parses a mining.notify params array into a
// Job. It accepts only params of length >= 9 with the documented element
// types; any mismatch returns an error rather than panicking, so a single
// malformed line never takes down the session.
func ParseNotify(params []interface{}) (*Job, error) {
	if len(params) < 9 {
		return nil, fmt.Errorf("engine: mining.notify expected >=9 params, got %d", len(params))
	}

	jobID, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify job_id not a string")
	}

	prevHashHex, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify prev_hash not a string")
	}
	prevHashBytes, err := hex.DecodeString(prevHashHex)
	if err != nil || len(prevHashBytes) != 32 {
		return nil, fmt.Errorf("engine: mining.notify prev_hash invalid: %v", err)
	}

	coinb1Hex, ok := params[2].(string)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify coinb1 not a string")
	}
	coinb1, err := hex.DecodeString(coinb1Hex)
	if err != nil {
		return nil, fmt.Errorf("engine: mining.notify coinb1 invalid hex: %v", err)
	}

	coinb2Hex, ok := params[3].(string)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify coinb2 not a string")
	}
	coinb2, err := hex.DecodeString(coinb2Hex)
	if err != nil {
		return nil, fmt.Errorf("engine: mining.notify coinb2 invalid hex: %v", err)
	}

	branchesRaw, ok := params[4].([]interface{})
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify merkle_branches not an array")
	}
	if len(branchesRaw) > maxMerkleBranches {
		return nil, fmt.Errorf("engine: mining.notify merkle_branches too long: %d", len(branchesRaw))
	}
	branches := make([][]byte, 0, len(branchesRaw))
	for _, b := range branchesRaw {
		s, ok := b.(string)
		if !ok {
			return nil, fmt.Errorf("engine: mining.notify merkle branch not a string")
		}
		branch, err := hex.DecodeString(s)
		if err != nil || len(branch) != 32 {
			return nil, fmt.Errorf("engine: mining.notify merkle branch invalid: %v", err)
		}
		branches = append(branches, branch)
	}

	versionHex, ok := params[5].(string)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify version not a string")
	}
	version, err := parseHexUint32(versionHex)
	if err != nil {
		return nil, fmt.Errorf("engine: mining.notify version invalid: %v", err)
	}

	nbitsHex, ok := params[6].(string)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify nbits not a string")
	}
	nbits, err := parseHexUint32(nbitsHex)
	if err != nil {
		return nil, fmt.Errorf("engine: mining.notify nbits invalid: %v", err)
	}

	ntimeHex, ok := params[7].(string)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify ntime not a string")
	}
	ntime, err := parseHexUint32(ntimeHex)
	if err != nil {
		return nil, fmt.Errorf("engine: mining.notify ntime invalid: %v", err)
	}

	cleanJobs, ok := params[8].(bool)
	if !ok {
		return nil, fmt.Errorf("engine: mining.notify clean_jobs not a bool")
	}

	var prevHashArr [32]byte
	copy(prevHashArr[:], prevHashBytes)

	return &Job{
		ID:             jobID,
		prevHash:       bitcoin.SwapPrevHashWordOrder(prevHashArr),
		coinb1:         coinb1,
		coinb2:         coinb2,
		merkleBranches: branches,
		version:        version,
		nbits:          nbits,
		ntime:          ntime,
		ntimeHex:       ntimeHex,
		CleanJobs:      cleanJobs,
	}, nil
}

func parseHexUint32(s string) (uint32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("expected 4 bytes, got %d", len(b))
	}
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v, nil
}

// buildCoinbase assembles the coinbase transaction bytes for a given
// extranonce1/extranonce2 pair.
func (j *Job) buildCoinbase(extranonce1, extranonce2 []byte) []byte {
	return bitcoin.BuildCoinbase(j.coinb1, extranonce1, extranonce2, j.coinb2)
}

// staticHeaderFields returns the nonce-independent header fields for a
// given coinbase, ready for bitcoin.BuildHeader once a nonce is chosen.
func (j *Job) staticHeaderFields(coinbase []byte, hash bitcoin.HashFunc) bitcoin.HeaderFields {
	merkleRoot := bitcoin.MerkleRoot(coinbase, j.merkleBranches, hash)
	return bitcoin.HeaderFields{
		Version:    j.version,
		PrevHash:   j.prevHash,
		MerkleRoot: merkleRoot,
		Ntime:      j.ntime,
		NBits:      j.nbits,
	}
}

// NBits returns the job's compact target encoding.
func (j *Job) NBits() uint32 {
	return j.nbits
}

// NtimeHex returns the exact wire-format ntime string, preserved
// byte-for-byte for round-tripping into mining.submit.
func (j *Job) NtimeHex() string {
	return j.ntimeHex
}
