package fileservice

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/go-outernet/receiver/internal/ldpc"
)

func makeDescriptor(contents []byte, blockSize int, fec *FECParams) Descriptor {
	sum := sha256.Sum256(contents)
	return Descriptor{
		ID:        1,
		Path:      "f",
		Hash:      hex.EncodeToString(sum[:]),
		Size:      int64(len(contents)),
		BlockSize: blockSize,
		FEC:       fec,
	}
}

func splitBlocks(contents []byte, blockSize int) [][]byte {
	var blocks [][]byte
	for off := 0; off < len(contents); off += blockSize {
		end := off + blockSize
		if end > len(contents) {
			end = len(contents)
		}
		blocks = append(blocks, contents[off:end])
	}
	return blocks
}

func TestReconstructWithoutFEC(t *testing.T) {
	contents := []byte("the quick brown fox jumps over the lazy dog")
	desc := makeDescriptor(contents, 8, nil)
	f := newInProgress(desc)
	for i, b := range splitBlocks(contents, 8) {
		if err := f.pushBlock(i, b); err != nil {
			t.Fatalf("pushBlock %d: %v", i, err)
		}
	}
	got, err := f.reconstruct()
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if !bytes.Equal(got, contents) {
		t.Fatalf("got %q, want %q", got, contents)
	}
}

func TestReconstructFailsOnHashMismatch(t *testing.T) {
	contents := []byte("abcdefgh")
	desc := makeDescriptor(contents, 4, nil)
	desc.Hash = "not-a-real-hash"
	f := newInProgress(desc)
	for i, b := range splitBlocks(contents, 4) {
		f.pushBlock(i, b)
	}
	if _, err := f.reconstruct(); err == nil {
		t.Fatal("expected hash mismatch error")
	}
}

func TestReconstructWithFECRepairsMissingBlock(t *testing.T) {
	const blockSize = 8
	contents := []byte("0123456789abcdef") // exactly 2 blocks
	blocks := splitBlocks(contents, blockSize)
	k, n, n1, seed := len(blocks), len(blocks)+2, 2, 777
	matrix := ldpc.BuildMatrix(k, n, n1, int64(seed))

	padded := make([][]byte, k)
	copy(padded, blocks)
	fecBlocks := make([][]byte, n-k)
	for row, cols := range matrix {
		p := make([]byte, blockSize)
		for _, col := range cols {
			for i := range p {
				p[i] ^= padded[col][i]
			}
		}
		fecBlocks[row] = p
	}

	desc := makeDescriptor(contents, blockSize, &FECParams{K: k, N: n, N1: n1, Seed: int64(seed)})
	f := newInProgress(desc)
	// lose block 0, supply all fec blocks.
	f.pushBlock(1, blocks[1])
	for i, fb := range fecBlocks {
		f.pushFEC(i, fb)
	}

	got, err := f.reconstruct()
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if !bytes.Equal(got, contents) {
		t.Fatalf("got %q, want %q", got, contents)
	}
}

func TestReconstructPendingWhenFECInsufficient(t *testing.T) {
	contents := []byte("0123456789abcdef")
	desc := makeDescriptor(contents, 8, &FECParams{K: 2, N: 3, N1: 2, Seed: 1})
	f := newInProgress(desc)
	f.pushBlock(1, contents[8:])
	// no fec blocks supplied at all.
	if _, err := f.reconstruct(); err == nil {
		t.Fatal("expected error when fec blocks are insufficient")
	}
}
