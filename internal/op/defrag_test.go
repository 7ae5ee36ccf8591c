package op

import (
	"bytes"
	"testing"

	"github.com/klauspost/reedsolomon"
	"pgregory.net/rapid"
)

func frag(ftype, carousel, last, idx uint8, payload []byte) Packet {
	return Packet{
		Length:        uint8(len(payload) + 4),
		FragmentType:  ftype,
		CarouselID:    carousel,
		LastFragment:  last,
		FragmentIndex: idx,
		Payload:       payload,
	}
}

func TestDefragmenterSingleFragment(t *testing.T) {
	d := NewDefragmenter()
	got, ok := d.Push(frag(TypeSingle, 1, 0, 0, []byte("one shot")))
	if !ok {
		t.Fatal("expected completion on single fragment")
	}
	if !bytes.Equal(got, []byte("one shot")) {
		t.Fatalf("got %q", got)
	}
}

func TestDefragmenterMultiFragment(t *testing.T) {
	d := NewDefragmenter()
	if _, ok := d.Push(frag(TypeFrag, 5, 2, 0, []byte("ab"))); ok {
		t.Fatal("should not complete yet")
	}
	if _, ok := d.Push(frag(TypeFrag, 5, 2, 1, []byte("cd"))); ok {
		t.Fatal("should not complete yet")
	}
	got, ok := d.Push(frag(TypeFrag, 5, 2, 2, []byte("ef")))
	if !ok {
		t.Fatal("expected completion on final fragment")
	}
	if !bytes.Equal(got, []byte("abcdef")) {
		t.Fatalf("got %q, want %q", got, "abcdef")
	}
}

func TestDefragmenterMultiFragmentTerminalTypeSingle(t *testing.T) {
	// 0x3c (TypeSingle) is the terminal-fragment marker for any datagram,
	// not just a lone-fragment one; a non-zero fragment_index must still
	// accumulate through the normal completeness check.
	d := NewDefragmenter()
	if _, ok := d.Push(frag(TypeFrag, 6, 2, 0, []byte("ab"))); ok {
		t.Fatal("should not complete yet")
	}
	if _, ok := d.Push(frag(TypeFrag, 6, 2, 1, []byte("cd"))); ok {
		t.Fatal("should not complete yet")
	}
	got, ok := d.Push(frag(TypeSingle, 6, 2, 2, []byte("ef")))
	if !ok {
		t.Fatal("expected completion on terminal TypeSingle fragment")
	}
	if !bytes.Equal(got, []byte("abcdef")) {
		t.Fatalf("got %q, want %q (fragments 0-1 must not be discarded)", got, "abcdef")
	}
}

func TestDefragmenterOutOfOrder(t *testing.T) {
	d := NewDefragmenter()
	d.Push(frag(TypeFrag, 3, 2, 2, []byte("ef")))
	d.Push(frag(TypeFrag, 3, 2, 0, []byte("ab")))
	got, ok := d.Push(frag(TypeFrag, 3, 2, 1, []byte("cd")))
	if !ok {
		t.Fatal("expected completion")
	}
	if !bytes.Equal(got, []byte("abcdef")) {
		t.Fatalf("got %q", got)
	}
}

func TestDefragmenterRetrogradeResets(t *testing.T) {
	d := NewDefragmenter()
	d.Push(frag(TypeFrag, 4, 3, 0, []byte("aa")))
	d.Push(frag(TypeFrag, 4, 3, 1, []byte("bb")))
	// carousel id 4 restarts from fragment 0 before the previous datagram
	// (which needed 4 fragments) ever completed.
	d.Push(frag(TypeFrag, 4, 1, 0, []byte("xx")))
	got, ok := d.Push(frag(TypeFrag, 4, 1, 1, []byte("yy")))
	if !ok {
		t.Fatal("expected completion on restarted datagram")
	}
	if !bytes.Equal(got, []byte("xxyy")) {
		t.Fatalf("got %q, want %q (stale fragments from prior pass must not leak in)", got, "xxyy")
	}
}

func TestDefragmenterIndependentCarouselIDs(t *testing.T) {
	d := NewDefragmenter()
	d.Push(frag(TypeFrag, 1, 1, 0, []byte("A1")))
	d.Push(frag(TypeFrag, 2, 1, 0, []byte("B1")))
	got1, ok1 := d.Push(frag(TypeFrag, 1, 1, 1, []byte("A2")))
	got2, ok2 := d.Push(frag(TypeFrag, 2, 1, 1, []byte("B2")))
	if !ok1 || !ok2 {
		t.Fatal("expected both carousel ids to complete independently")
	}
	if !bytes.Equal(got1, []byte("A1A2")) || !bytes.Equal(got2, []byte("B1B2")) {
		t.Fatalf("got %q / %q", got1, got2)
	}
}

func TestDefragmenterFECRecoversLostShare(t *testing.T) {
	const k, parity, shardLen = 3, 1, 4
	datagram := []byte("aaaabbbbcccc")
	shards := make([][]byte, k+parity)
	for i := 0; i < k; i++ {
		s := make([]byte, shardLen)
		copy(s, datagram[i*shardLen:(i+1)*shardLen])
		shards[i] = s
	}
	enc, err := reedsolomon.New(k, parity)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	for i := k; i < k+parity; i++ {
		shards[i] = make([]byte, shardLen)
	}
	if err := enc.Encode(shards); err != nil {
		t.Fatalf("encode: %v", err)
	}

	d := NewDefragmenter()
	// fragment 1 (data) is lost; data fragments use TypeFrag, parity uses TypeFEC.
	d.Push(frag(TypeFrag, 9, uint8(k-1), 0, shards[0]))
	d.Push(frag(TypeFrag, 9, uint8(k-1), 2, shards[2]))
	got, ok := d.Push(frag(TypeFEC, 9, uint8(k+parity-1), uint8(k), shards[k]))
	if !ok {
		t.Fatal("expected FEC completion once k shares of any kind are present")
	}
	if !bytes.Equal(got, datagram) {
		t.Fatalf("got %q, want %q", got, datagram)
	}
}

func TestDefragmenterInvariantCompleteAfterKFragments(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		parts := make([][]byte, n)
		var want bytes.Buffer
		for i := range parts {
			parts[i] = rapid.SliceOfN(rapid.Byte(), 1, 4).Draw(rt, "part")
			want.Write(parts[i])
		}
		order := rapid.Permutation(seq(n)).Draw(rt, "order")

		d := NewDefragmenter()
		var got []byte
		completed := false
		for _, idx := range order {
			payload, ok := d.Push(frag(TypeFrag, 42, uint8(n-1), uint8(idx), parts[idx]))
			if ok {
				completed = true
				got = payload
			}
		}
		if !completed {
			rt.Fatal("defragmenter never completed after all fragments pushed")
		}
		if !bytes.Equal(got, want.Bytes()) {
			rt.Fatalf("got %q, want %q", got, want.Bytes())
		}
	})
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
