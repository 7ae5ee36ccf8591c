package op

import (
	"bytes"

	"github.com/go-outernet/receiver/internal/metrics"
	"github.com/go-outernet/receiver/internal/pktfec"
)

// partial tracks one carousel id's in-progress datagram.
type partial struct {
	fragments map[uint8][]byte // fragment_index -> payload, data and FEC shares alike
	dataCount int              // highest seen last_fragment+1 among data (TypeFrag/TypeSingle) fragments
	fecType   bool             // true once a TypeFEC fragment has been seen for this id
	fecCount  int              // number of parity shares declared (lazily learned, see Push)
	shardLen  int              // payload length of a full-size share, for FEC padding
	lastLen   int              // actual payload length of the final data fragment, if directly seen
	done      bool             // datagram already decoded and handed off
}

// Defragmenter reassembles OP fragments into complete datagrams, keyed by
// carousel id. Each carousel id is an independent reassembly slot; a new
// first-fragment for an id resets that slot's in-progress state (the sender
// always restarts a carousel id from fragment 0, so an out-of-order restart
// is detected by fragment_index regressing below what's already been seen).
type Defragmenter struct {
	slots map[uint8]*partial
}

// NewDefragmenter returns an empty Defragmenter.
func NewDefragmenter() *Defragmenter {
	return &Defragmenter{slots: make(map[uint8]*partial)}
}

// Push feeds one OP fragment into its carousel id's reassembly slot. It
// returns the complete datagram and true once enough fragments (and, for
// TypeFEC, enough parity shares) have arrived to reconstruct it.
func (d *Defragmenter) Push(p Packet) ([]byte, bool) {
	switch p.FragmentType {
	case TypeSingle:
		if p.FragmentIndex == 0 {
			delete(d.slots, p.CarouselID)
			return append([]byte(nil), p.Payload...), true
		}
		// 0x3c only marks the terminal fragment of any datagram, single or
		// multi-fragment; a non-zero index means this datagram spans
		// multiple fragments and 0x3c just closes it out like TypeFrag does.
		return d.pushFragment(p)

	case TypeFrag, TypeFEC:
		return d.pushFragment(p)

	default:
		return nil, false
	}
}

func (d *Defragmenter) pushFragment(p Packet) ([]byte, bool) {
	s, ok := d.slots[p.CarouselID]
	if !ok {
		s = &partial{fragments: make(map[uint8][]byte)}
		d.slots[p.CarouselID] = s
	} else if d.isRetrograde(s, p) {
		metrics.IncCarouselResync()
		s = &partial{fragments: make(map[uint8][]byte)}
		d.slots[p.CarouselID] = s
	}
	if s.done {
		return nil, false
	}

	s.fragments[p.FragmentIndex] = append([]byte(nil), p.Payload...)
	if len(p.Payload) > s.shardLen {
		s.shardLen = len(p.Payload)
	}

	if p.FragmentType == TypeFEC {
		s.fecType = true
		// last_fragment on a FEC fragment declares the index of the final
		// parity share; the data share count comes from the data fragments'
		// own last_fragment, since shares 0..k-1 are data and k..n-1 are
		// parity (see internal/pktfec).
		n := int(p.LastFragment) + 1
		if n > s.fecCount {
			s.fecCount = n
		}
	} else {
		n := int(p.LastFragment) + 1
		if n > s.dataCount {
			s.dataCount = n
		}
		if int(p.FragmentIndex) == s.dataCount-1 {
			s.lastLen = len(p.Payload)
		}
	}

	datagram, ok := d.tryDecode(s)
	if !ok {
		return nil, false
	}
	s.done = true
	delete(d.slots, p.CarouselID)
	return datagram, true
}

// isRetrograde reports whether p starts a new pass over a carousel id whose
// slot already holds fragments at or beyond p's index — i.e. the carousel
// has looped back to fragment 0 before the previous pass completed.
func (d *Defragmenter) isRetrograde(s *partial, p Packet) bool {
	if p.FragmentIndex != 0 {
		return false
	}
	_, have := s.fragments[0]
	return have
}

// tryDecode checks whether s has everything needed to reconstruct its
// datagram, and does so if possible.
func (d *Defragmenter) tryDecode(s *partial) ([]byte, bool) {
	if !s.fecType {
		return decodePlain(s)
	}
	return decodeFEC(s)
}

// decodePlain concatenates non-FEC fragments 0..dataCount-1 in order.
func decodePlain(s *partial) ([]byte, bool) {
	if s.dataCount == 0 {
		return nil, false
	}
	var buf bytes.Buffer
	for i := 0; i < s.dataCount; i++ {
		frag, ok := s.fragments[uint8(i)]
		if !ok {
			return nil, false
		}
		buf.Write(frag)
	}
	return buf.Bytes(), true
}

// decodeFEC reconstructs a datagram protected by packet-level FEC. Shares
// 0..dataCount-1 are systematic data shares; dataCount..fecCount-1 are
// Reed-Solomon parity shares (see internal/pktfec). Decoding proceeds once
// any dataCount of the fecCount total shares have arrived.
func decodeFEC(s *partial) ([]byte, bool) {
	if s.dataCount == 0 || s.fecCount == 0 || s.fecCount <= s.dataCount {
		return nil, false
	}
	if len(s.fragments) < s.dataCount {
		return nil, false
	}

	shares := make(map[int][]byte, len(s.fragments))
	for idx, payload := range s.fragments {
		shares[int(idx)] = payload
	}

	shards, err := pktfec.Recover(s.dataCount, s.fecCount, s.shardLen, shares)
	if err != nil {
		metrics.IncPktFECFailure()
		return nil, false
	}
	metrics.IncPktFECRecovery()

	var buf bytes.Buffer
	for i := 0; i < s.dataCount-1; i++ {
		buf.Write(shards[i])
	}
	// The final data share may be shorter than a full shard (Reed-Solomon
	// requires equal-length shards, so it was zero-padded on encode). If it
	// was directly received we know its true length; if it was recovered
	// from parity we don't, and fall back to the full shard — the LDP
	// parser reads its own length field and ignores the padding bytes
	// beyond it.
	last := shards[s.dataCount-1]
	if s.lastLen > 0 && s.lastLen <= len(last) {
		last = last[:s.lastLen]
	}
	buf.Write(last)
	return buf.Bytes(), true
}
