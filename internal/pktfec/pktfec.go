// Package pktfec implements packet-level forward error correction for OP
// fragment groups using systematic Reed-Solomon erasure coding: shares
// 0..k-1 carry the original fragment data unchanged, shares k..n-1 carry
// parity computed over them, and any k of the n shares suffice to recover
// the rest.
package pktfec

import (
	"errors"

	"github.com/klauspost/reedsolomon"
)

// ErrNotEnoughShares is returned when fewer than k shares are available.
var ErrNotEnoughShares = errors.New("pktfec: fewer than k shares available")

// Recover reconstructs all k data shards from whatever subset of the n
// total shares is present in shares (keyed by absolute share index
// 0..n-1). shardLen is the padded length every share was encoded at; a
// share shorter than shardLen is zero-padded before decoding. It returns
// the k data shards, reconstructed as needed.
func Recover(k, n, shardLen int, shares map[int][]byte) ([][]byte, error) {
	if len(shares) < k {
		return nil, ErrNotEnoughShares
	}
	enc, err := reedsolomon.New(k, n-k)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, n)
	for idx, payload := range shares {
		if idx < 0 || idx >= n {
			continue
		}
		padded := make([]byte, shardLen)
		copy(padded, payload)
		shards[idx] = padded
	}

	if err := enc.Reconstruct(shards); err != nil {
		return nil, err
	}
	return shards[:k], nil
}
