package op

import (
	"bytes"
	"testing"
)

func TestParsePacket(t *testing.T) {
	data := []byte{9, TypeFrag, 7, 2, 0, 'h', 'e', 'l', 'l', 'o'}
	p, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if p.Length != 9 || p.FragmentType != TypeFrag || p.CarouselID != 7 || p.LastFragment != 2 || p.FragmentIndex != 0 {
		t.Fatalf("unexpected header fields: %+v", p)
	}
	if !bytes.Equal(p.Payload, []byte("hello")) {
		t.Fatalf("payload = %q, want %q", p.Payload, "hello")
	}
}

func TestParsePacketShortHeader(t *testing.T) {
	if _, err := ParsePacket([]byte{1, 2, 3}); err != ErrMalformedShort {
		t.Fatalf("want ErrMalformedShort, got %v", err)
	}
}

func TestParsePacketTruncatedPayload(t *testing.T) {
	// Length claims 20 bytes total but only 3 payload bytes follow the header.
	data := []byte{20, TypeSingle, 1, 0, 0, 'a', 'b', 'c'}
	p, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if !bytes.Equal(p.Payload, []byte("abc")) {
		t.Fatalf("payload = %q, want truncated %q", p.Payload, "abc")
	}
}
