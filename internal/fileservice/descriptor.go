package fileservice

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// signatureLen is the fixed length of the descriptor's detached signature,
// per the carousel's file-announcement wire layout.
const signatureLen = 128

// Descriptor is the parsed metadata carried in a file announcement (LDP
// type 0x69): an XML document identifying the file, its expected hash and
// size, its block size, and an optional FEC scheme.
type Descriptor struct {
	ID        uint32
	Path      string
	Hash      string
	Size      int64
	BlockSize int
	FEC       *FECParams
}

// FECParams describes the LDPC block-level repair scheme protecting a
// file's blocks, parsed from a descriptor's fec element of the form
// "ldpc:k=<k>,n=<n>,N1=<n1>[,seed=<seed>]".
type FECParams struct {
	K, N, N1 int
	Seed     int64
}

type descriptorXML struct {
	ID        string `xml:"id"`
	Path      string `xml:"path"`
	Hash      string `xml:"hash"`
	Size      string `xml:"size"`
	BlockSize string `xml:"block_size"`
	FEC       string `xml:"fec"`
}

// ParseDescriptorPacket splits a file-announcement payload into its
// certificate, signature, and descriptor XML, and parses the XML. The
// certificate and signature are skipped, not validated; the signature is
// taken to be signatureLen bytes (DESIGN.md records that choice).
func ParseDescriptorPacket(payload []byte) (Descriptor, error) {
	if len(payload) < 2 {
		return Descriptor{}, fmt.Errorf("fileservice: descriptor packet too short")
	}
	certLen := int(payload[0])<<8 | int(payload[1])
	rest := payload[2:]
	if certLen > len(rest) {
		return Descriptor{}, fmt.Errorf("fileservice: certificate length exceeds payload")
	}
	rest = rest[certLen:]
	if signatureLen > len(rest) {
		return Descriptor{}, fmt.Errorf("fileservice: signature length exceeds payload")
	}
	xmlData := rest[signatureLen:]
	return ParseDescriptorXML(xmlData)
}

// ParseDescriptorXML parses a file descriptor's XML body directly.
func ParseDescriptorXML(data []byte) (Descriptor, error) {
	var raw descriptorXML
	if err := xml.Unmarshal(data, &raw); err != nil {
		return Descriptor{}, fmt.Errorf("fileservice: parsing descriptor xml: %w", err)
	}

	id, err := strconv.ParseUint(strings.TrimSpace(raw.ID), 10, 32)
	if err != nil {
		return Descriptor{}, fmt.Errorf("fileservice: invalid id %q: %w", raw.ID, err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(raw.Size), 10, 64)
	if err != nil {
		return Descriptor{}, fmt.Errorf("fileservice: invalid size %q: %w", raw.Size, err)
	}
	blockSize, err := strconv.Atoi(strings.TrimSpace(raw.BlockSize))
	if err != nil {
		return Descriptor{}, fmt.Errorf("fileservice: invalid block_size %q: %w", raw.BlockSize, err)
	}

	d := Descriptor{
		ID:        uint32(id),
		Path:      strings.TrimSpace(raw.Path),
		Hash:      strings.TrimSpace(raw.Hash),
		Size:      size,
		BlockSize: blockSize,
	}

	// Only the "ldpc:" scheme is understood; any other fec value leaves FEC
	// nil, so the file is reconstructed as if no FEC were declared.
	if fec := strings.TrimSpace(raw.FEC); strings.HasPrefix(fec, "ldpc:") {
		params, err := parseFECParams(fec)
		if err != nil {
			return Descriptor{}, err
		}
		d.FEC = &params
	}

	return d, nil
}

// parseFECParams parses "ldpc:k=10,n=14,N1=3[,seed=1]". seed defaults to 1,
// per spec.md §3, when absent.
func parseFECParams(s string) (FECParams, error) {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme != "ldpc" {
		return FECParams{}, fmt.Errorf("fileservice: unsupported fec scheme %q", s)
	}

	p := FECParams{Seed: 1}
	for _, field := range strings.Split(rest, ",") {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return FECParams{}, fmt.Errorf("fileservice: malformed fec field %q", field)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return FECParams{}, fmt.Errorf("fileservice: invalid fec field %q: %w", field, err)
		}
		switch strings.TrimSpace(key) {
		case "k":
			p.K = n
		case "n":
			p.N = n
		case "N1":
			p.N1 = n
		case "seed":
			p.Seed = int64(n)
		default:
			return FECParams{}, fmt.Errorf("fileservice: unknown fec field %q", key)
		}
	}
	if p.K <= 0 || p.N <= p.K || p.N1 <= 0 {
		return FECParams{}, fmt.Errorf("fileservice: incomplete fec params %q", s)
	}
	return p, nil
}
