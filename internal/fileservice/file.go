package fileservice

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-outernet/receiver/internal/ldpc"
	"github.com/go-outernet/receiver/internal/metrics"
)

// inProgress tracks one file's blocks as they arrive off the carousel.
type inProgress struct {
	desc     Descriptor
	blocks   [][]byte // nil entries are missing blocks
	fec      [][]byte // nil entries are missing parity blocks
	matrix   [][]int  // built lazily, once FEC params and block count are known
	received int
}

func newInProgress(desc Descriptor) *inProgress {
	blocks := int((desc.Size + int64(desc.BlockSize) - 1) / int64(desc.BlockSize))
	return &inProgress{
		desc:   desc,
		blocks: make([][]byte, blocks),
	}
}

// pushBlock stores a data block at n, returning an error if the slot was
// already filled (the carousel is not expected to repeat a block number
// within one pass).
func (f *inProgress) pushBlock(n int, data []byte) error {
	if n < 0 || n >= len(f.blocks) {
		return fmt.Errorf("fileservice: block %d out of range (have %d blocks)", n, len(f.blocks))
	}
	if f.blocks[n] != nil {
		return fmt.Errorf("fileservice: block %d already received", n)
	}
	f.blocks[n] = data
	f.received++
	return nil
}

// pushFEC stores a parity block at n, growing the parity slice on demand
// since the total parity count isn't known until the descriptor's fec
// parameter is read.
func (f *inProgress) pushFEC(n int, data []byte) error {
	if n < 0 {
		return fmt.Errorf("fileservice: negative fec block index %d", n)
	}
	if n >= len(f.fec) {
		grown := make([][]byte, n+1)
		copy(grown, f.fec)
		f.fec = grown
	}
	if f.fec[n] != nil {
		return fmt.Errorf("fileservice: fec block %d already received", n)
	}
	f.fec[n] = data
	return nil
}

// complete reports whether every data block has arrived.
func (f *inProgress) complete() bool {
	return f.received == len(f.blocks)
}

// maybeReconstructable reports whether enough data and parity blocks have
// arrived to plausibly cover every data slot — either every data block is
// already in hand, or enough FEC blocks have arrived alongside the data
// blocks received so far to cover the shortfall.
func (f *inProgress) maybeReconstructable() bool {
	if f.complete() {
		return true
	}
	if f.desc.FEC == nil {
		return false
	}
	fecCount := 0
	for _, b := range f.fec {
		if b != nil {
			fecCount++
		}
	}
	return f.received+fecCount >= len(f.blocks)
}

// reconstruct assembles the file contents, attempting LDPC repair of any
// missing blocks first when the descriptor declares an FEC scheme. It
// returns the assembled bytes, or an error describing why reconstruction
// could not proceed (missing blocks it couldn't repair, size mismatch, or
// hash mismatch).
func (f *inProgress) reconstruct() ([]byte, error) {
	if !f.complete() {
		if f.desc.FEC == nil {
			return nil, fmt.Errorf("fileservice: %d of %d blocks missing, no fec scheme", len(f.blocks)-f.received, len(f.blocks))
		}
		if err := f.repair(); err != nil {
			return nil, fmt.Errorf("fileservice: ldpc repair: %w", err)
		}
	}

	var buf bytes.Buffer
	for i, b := range f.blocks {
		if b == nil {
			return nil, fmt.Errorf("fileservice: block %d still missing after repair", i)
		}
		buf.Write(b)
	}

	contents := buf.Bytes()
	if int64(len(contents)) < f.desc.Size {
		return nil, fmt.Errorf("fileservice: reconstructed %d bytes, want %d", len(contents), f.desc.Size)
	}
	contents = contents[:f.desc.Size]

	sum := sha256.Sum256(contents)
	if hex.EncodeToString(sum[:]) != f.desc.Hash {
		return nil, fmt.Errorf("fileservice: sha256 mismatch for %s", f.desc.Path)
	}
	return contents, nil
}

// repair runs the LDPC iterative single-erasure pass over padded copies of
// the data and parity blocks. The final data block and any parity blocks
// shorter than a full block are padded with 0xFF before repair and the
// padding is left in place on the recovered copies that stay within the
// declared block_size grid; truncation back to desc.Size happens once in
// reconstruct.
func (f *inProgress) repair() error {
	fec := f.desc.FEC
	if f.matrix == nil {
		f.matrix = ldpc.BuildMatrix(fec.K, fec.N, fec.N1, fec.Seed)
	}

	padded := make([][]byte, len(f.blocks))
	for i, b := range f.blocks {
		if b == nil {
			continue
		}
		padded[i] = padBlock(b, f.desc.BlockSize)
	}
	paddedFEC := make([][]byte, len(f.fec))
	for i, b := range f.fec {
		if b == nil {
			continue
		}
		paddedFEC[i] = padBlock(b, f.desc.BlockSize)
	}

	metrics.IncLDPCRepairRound()
	repaired, err := ldpc.Repair(f.matrix, padded, paddedFEC, f.desc.BlockSize)
	if err != nil {
		metrics.IncLDPCRepairFailure()
		return err
	}
	for i, b := range repaired {
		if f.blocks[i] == nil {
			f.blocks[i] = b
		}
	}
	return nil
}

// padBlock pads b up to size with 0xFF, the carousel's convention for short
// terminal blocks (the last data block of a file is usually shorter than
// block_size, but LDPC repair requires uniform-length blocks).
func padBlock(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	for i := len(b); i < size; i++ {
		out[i] = 0xff
	}
	return out
}
