// Package kissframe implements KISS byte-stuffed frame extraction from a
// continuous byte stream, used by the capture-file and live-serial carriers
// to recover discrete Ethernet-framed datagrams.
package kissframe

const (
	fend  = 0xc0
	fesc  = 0xdb
	tfend = 0xdc
	tfesc = 0xdd
)

// Deframer extracts KISS frames from a byte stream pushed incrementally.
// Each complete frame's first byte is a KISS command/port nibble pair; only
// frames whose low nibble is 0 (data frames, not control frames) are kept,
// and that leading byte is stripped before the frame is returned.
type Deframer struct {
	pdu       []byte
	transpose bool
}

// NewDeframer returns an empty Deframer.
func NewDeframer() *Deframer {
	return &Deframer{}
}

// Push feeds a chunk of stream bytes into the deframer and returns any
// frames completed by it, in stream order.
func (d *Deframer) Push(data []byte) [][]byte {
	var frames [][]byte
	for _, c := range data {
		switch {
		case c == fend:
			if len(d.pdu) > 0 && d.pdu[0]&0x0f == 0 {
				frames = append(frames, append([]byte(nil), d.pdu[1:]...))
			}
			d.pdu = nil
		case d.transpose:
			switch c {
			case tfend:
				d.pdu = append(d.pdu, fend)
			case tfesc:
				d.pdu = append(d.pdu, fesc)
			}
			d.transpose = false
		case c == fesc:
			d.transpose = true
		default:
			d.pdu = append(d.pdu, c)
		}
	}
	return frames
}
