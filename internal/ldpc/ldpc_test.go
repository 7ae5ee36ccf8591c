package ldpc

import (
	"bytes"
	"testing"
)

func computeParity(matrix [][]int, blocks [][]byte, blockSize int) [][]byte {
	fec := make([][]byte, len(matrix))
	for row, cols := range matrix {
		p := make([]byte, blockSize)
		for _, col := range cols {
			xorInto(p, blocks[col])
		}
		fec[row] = p
	}
	return fec
}

func sampleBlocks(k, blockSize int) [][]byte {
	blocks := make([][]byte, k)
	for i := range blocks {
		b := make([]byte, blockSize)
		for j := range b {
			b[j] = byte((i*31 + j*7) % 251)
		}
		blocks[i] = b
	}
	return blocks
}

func TestBuildMatrixEveryRowHasAtLeastTwoOnes(t *testing.T) {
	m := BuildMatrix(10, 14, 3, 1000)
	for i, row := range m {
		if len(row) < 2 {
			t.Fatalf("row %d has only %d entries, want >= 2", i, len(row))
		}
	}
}

func TestBuildMatrixDeterministic(t *testing.T) {
	a := BuildMatrix(10, 14, 3, 1000)
	b := BuildMatrix(10, 14, 3, 1000)
	if len(a) != len(b) {
		t.Fatalf("row count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !equalInts(a[i], b[i]) {
			t.Fatalf("row %d differs between runs", i)
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRepairSingleErasurePerRow(t *testing.T) {
	const k, parity, blockSize = 10, 4, 16
	n := k + parity
	matrix := BuildMatrix(k, n, 3, 1000)
	original := sampleBlocks(k, blockSize)
	fec := computeParity(matrix, original, blockSize)

	blocks := make([][]byte, k)
	copy(blocks, original)
	blocks[3] = nil
	blocks[7] = nil

	got, err := Repair(matrix, blocks, fec, blockSize)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	for i := range original {
		if !bytes.Equal(got[i], original[i]) {
			t.Fatalf("block %d mismatch after repair", i)
		}
	}
}

func TestRepairFailsWhenUnderdetermined(t *testing.T) {
	const k, parity, blockSize = 6, 2, 8
	n := k + parity
	matrix := BuildMatrix(k, n, 2, 42)
	original := sampleBlocks(k, blockSize)
	fec := computeParity(matrix, original, blockSize)

	blocks := make([][]byte, k)
	copy(blocks, original)
	for i := range blocks {
		blocks[i] = nil
	}

	if _, err := Repair(matrix, blocks, fec, blockSize); err != ErrUnrepaired {
		t.Fatalf("want ErrUnrepaired, got %v", err)
	}
}

func TestRepairMissingParityRowIsUnusable(t *testing.T) {
	const k, parity, blockSize = 6, 2, 8
	n := k + parity
	matrix := BuildMatrix(k, n, 2, 42)
	original := sampleBlocks(k, blockSize)
	fec := computeParity(matrix, original, blockSize)
	fec[0] = nil

	blocks := make([][]byte, k)
	copy(blocks, original)
	// knock out a column of row 0 (now unusable); only another row covering
	// the same column can bring it back, and must bring it back correctly.
	missing := matrix[0][0]
	blocks[missing] = nil
	coveredElsewhere := false
	for _, cols := range matrix[1:] {
		for _, col := range cols {
			if col == missing {
				coveredElsewhere = true
			}
		}
	}

	got, err := Repair(matrix, blocks, fec, blockSize)
	if !coveredElsewhere {
		if err != ErrUnrepaired {
			t.Fatalf("want ErrUnrepaired, got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if !bytes.Equal(got[missing], original[missing]) {
		t.Fatalf("block %d repaired wrongly; a row without parity must not be used", missing)
	}
}
