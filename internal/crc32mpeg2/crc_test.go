package crc32mpeg2

import "testing"

func TestChecksumResidueIsZero(t *testing.T) {
	cases := [][]byte{
		[]byte("abc"),
		[]byte(""),
		[]byte("the quick brown fox jumps over the lazy dog"),
		make([]byte, 300),
	}
	for _, msg := range cases {
		trailer := Checksum(msg)
		full := append(append([]byte{}, msg...), byte(trailer>>24), byte(trailer>>16), byte(trailer>>8), byte(trailer))
		if got := Checksum(full); got != 0 {
			t.Fatalf("Checksum(msg||trailer) = %#x, want 0 (msg len %d)", got, len(msg))
		}
	}
}

func TestChecksumDetectsBitFlip(t *testing.T) {
	msg := []byte("carousel file descriptor payload")
	trailer := Checksum(msg)
	full := append(append([]byte{}, msg...), byte(trailer>>24), byte(trailer>>16), byte(trailer>>8), byte(trailer))
	for i := range full {
		corrupt := append([]byte{}, full...)
		corrupt[i] ^= 0x01
		if Checksum(corrupt) == 0 {
			t.Fatalf("bit flip at byte %d undetected", i)
		}
	}
}
