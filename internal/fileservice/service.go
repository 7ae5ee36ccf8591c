// Package fileservice reconstructs files broadcast as a sequence of LDP
// datagrams: one descriptor announcing the file, followed by its data
// blocks and, optionally, LDPC parity blocks.
package fileservice

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-outernet/receiver/internal/ldp"
	"github.com/go-outernet/receiver/internal/logging"
	"github.com/go-outernet/receiver/internal/metrics"
)

const (
	// TypeDescriptor announces a new file and its reconstruction metadata.
	TypeDescriptor = 0x69
	// TypeBlock carries one data block of an announced file.
	TypeBlock = 0x18
	// TypeFEC carries one LDPC parity block of an announced file.
	TypeFEC = 0xff
	// TypeSignalingA and TypeSignalingB carry out-of-band file catalog
	// updates; parsing their signed, deflated payload is a non-goal (see
	// DESIGN.md), so they're only logged.
	TypeSignalingA = 0x42
	TypeSignalingB = 0x5a

	blockHeaderLen = 6 // file id (4) + block number (2)
)

// Event reports a file lifecycle transition for the monitor hub.
type Event struct {
	Kind string // "announced", "completed", "failed"
	ID   uint32
	Path string
	Size int64
	Err  string
}

// Service reconstructs files announced over the carousel and writes them
// under outputDir.
type Service struct {
	outputDir string
	onEvent   func(Event)
	files     map[uint32]*inProgress
	lastID    uint32
	haveLast  bool
}

// New returns a Service writing completed files under outputDir and
// registers its handlers with router. onEvent, if non-nil, is called for
// every file lifecycle transition.
func New(router *ldp.Router, outputDir string, onEvent func(Event)) *Service {
	s := &Service{
		outputDir: outputDir,
		onEvent:   onEvent,
		files:     make(map[uint32]*inProgress),
	}
	router.Register(TypeDescriptor, s.handleDescriptor)
	router.Register(TypeBlock, s.handleBlock)
	router.Register(TypeFEC, s.handleFEC)
	router.Register(TypeSignalingA, s.handleSignaling)
	router.Register(TypeSignalingB, s.handleSignaling)
	return s
}

func (s *Service) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

func (s *Service) handleDescriptor(p ldp.Packet) {
	desc, err := ParseDescriptorPacket(p.Payload)
	if err != nil {
		logging.L().Warn("fileservice: malformed descriptor", "error", err)
		metrics.IncError(metrics.ErrDescriptor)
		return
	}

	logging.L().Info("fileservice: file announced", "id", desc.ID, "path", desc.Path, "size", desc.Size)
	metrics.IncFileAnnounced()
	s.files[desc.ID] = newInProgress(desc)
	s.emit(Event{Kind: "announced", ID: desc.ID, Path: desc.Path, Size: desc.Size})
}

func (s *Service) handleBlock(p ldp.Packet) {
	id, n, block, ok := parseBlockPayload(p.Payload)
	if !ok {
		return
	}
	f, ok := s.files[id]
	if !ok {
		return
	}
	if err := f.pushBlock(n, block); err != nil {
		logging.L().Debug("fileservice: push block", "error", err)
		return
	}
	if !f.maybeReconstructable() {
		return
	}
	s.tryReconstruct(id)
	// The "last file" mechanism: a file whose reconstruction stalled (FEC
	// repair short a block, or simply unattempted) gets one more chance
	// once the carousel rolls over and a different file reaches this same
	// point, before this file takes over as the new last.
	if s.haveLast && s.lastID != id {
		s.tryReconstruct(s.lastID)
	}
	s.lastID = id
	s.haveLast = true
}

func (s *Service) handleFEC(p ldp.Packet) {
	id, n, block, ok := parseBlockPayload(p.Payload)
	if !ok {
		return
	}
	f, ok := s.files[id]
	if !ok {
		return
	}
	if err := f.pushFEC(n, block); err != nil {
		logging.L().Debug("fileservice: push fec block", "error", err)
		return
	}
	s.tryReconstruct(id)
}

func (s *Service) handleSignaling(p ldp.Packet) {
	logging.L().Debug("fileservice: signaling datagram received (catalog updates not implemented)", "type", p.Type, "len", len(p.Payload))
}

func parseBlockPayload(payload []byte) (id uint32, n int, block []byte, ok bool) {
	if len(payload) < blockHeaderLen {
		return 0, 0, nil, false
	}
	id = binary.BigEndian.Uint32(payload[0:4])
	n = int(binary.BigEndian.Uint16(payload[4:6]))
	block = payload[blockHeaderLen:]
	return id, n, block, true
}

// tryReconstruct attempts to finish file id, writing it to disk and dropping
// its in-progress state on success. On failure the state is kept, so that
// further blocks, a later retry, or a fresh announcement of the same id can
// still lead to a successful reconstruction.
func (s *Service) tryReconstruct(id uint32) {
	f, ok := s.files[id]
	if !ok {
		return
	}

	contents, err := f.reconstruct()
	if err != nil {
		if f.desc.FEC != nil {
			// leave it pending: more parity blocks may still arrive.
			logging.L().Debug("fileservice: reconstruction pending more fec blocks", "id", id, "error", err)
			return
		}
		logging.L().Warn("fileservice: reconstruction failed", "id", id, "path", f.desc.Path, "error", err)
		metrics.IncFileFailed()
		metrics.IncError(metrics.ErrFileHash)
		s.emit(Event{Kind: "failed", ID: id, Path: f.desc.Path, Err: err.Error()})
		return
	}

	if err := s.writeFile(f.desc.Path, contents); err != nil {
		logging.L().Error("fileservice: write failed", "id", id, "path", f.desc.Path, "error", err)
		metrics.IncFileFailed()
		metrics.IncError(metrics.ErrFileWrite)
		s.emit(Event{Kind: "failed", ID: id, Path: f.desc.Path, Err: err.Error()})
		return
	}

	logging.L().Info("fileservice: file reconstructed", "id", id, "path", f.desc.Path)
	metrics.IncFileCompleted()
	s.emit(Event{Kind: "completed", ID: id, Path: f.desc.Path, Size: f.desc.Size})
	delete(s.files, id)
	if s.haveLast && s.lastID == id {
		s.haveLast = false
	}
}

// writeFile writes contents to a temp file under outputDir and renames it
// into place, so a reader never observes a partially written file.
func (s *Service) writeFile(relPath string, contents []byte) error {
	dst := filepath.Join(s.outputDir, relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, contents, 0o644); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
