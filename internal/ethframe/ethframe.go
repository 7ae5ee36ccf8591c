// Package ethframe strips the Ethernet envelope each carousel carrier wraps
// its OP payload in, and tracks the ground station's source MAC.
package ethframe

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-outernet/receiver/internal/logging"
)

const headerLen = 14

// ExpectedEthertype is the ethertype the carousel broadcast uses; frames
// carrying any other value, or not addressed to the broadcast MAC, are
// still forwarded (so the receiver keeps working against a capture that
// doesn't exactly reproduce this), but each one is logged at debug level.
var ExpectedEthertype = [2]byte{0x8f, 0xff}

var broadcastMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ErrTooShort is returned when a frame is too short to hold an Ethernet
// header.
var ErrTooShort = errors.New("ethframe: frame shorter than header")

// Tracker strips the Ethernet envelope from frames and reports the first
// time it observes a new source MAC (the ground station modem).
type Tracker struct {
	groundStationMAC [6]byte
	known            bool
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Strip removes the 14-byte Ethernet header and returns the payload. It
// logs (but does not reject) frames with an unexpected destination MAC or
// ethertype, and logs the first time the source MAC changes.
func (t *Tracker) Strip(frame []byte) ([]byte, error) {
	if len(frame) < headerLen {
		return nil, ErrTooShort
	}
	var dst, src [6]byte
	copy(dst[:], frame[0:6])
	copy(src[:], frame[6:12])
	ethertype := [2]byte{frame[12], frame[13]}

	if dst != broadcastMAC || ethertype != ExpectedEthertype {
		logging.L().Debug("ethframe: unexpected envelope",
			"dst_mac", formatMAC(dst), "src_mac", formatMAC(src),
			"ethertype", fmt.Sprintf("0x%04x", binary.BigEndian.Uint16(ethertype[:])))
	}
	if !t.known || src != t.groundStationMAC {
		logging.L().Debug("ethframe: ground station MAC observed", "mac", formatMAC(src))
		t.groundStationMAC = src
		t.known = true
	}

	return frame[headerLen:], nil
}

func formatMAC(mac [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
