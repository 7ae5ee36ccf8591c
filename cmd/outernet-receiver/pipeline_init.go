package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-outernet/receiver/internal/ethframe"
	"github.com/go-outernet/receiver/internal/fileservice"
	"github.com/go-outernet/receiver/internal/ldp"
	"github.com/go-outernet/receiver/internal/metrics"
	"github.com/go-outernet/receiver/internal/monitor"
	"github.com/go-outernet/receiver/internal/op"
	"github.com/go-outernet/receiver/internal/timeservice"
)

// pipeline carries one Ethernet-framed carousel packet through envelope
// stripping, OP reassembly, LDP validation and routing to the time and file
// services. A single pipeline instance is shared by whichever carrier is
// active; carriers never run concurrently with each other, but do run
// concurrently with the monitor server, so any state it touches besides the
// pipeline itself must be safe for that.
type pipeline struct {
	tracker *ethframe.Tracker
	defrag  *op.Defragmenter
	router  *ldp.Router
	ts      *timeservice.Service
	fs      *fileservice.Service
	hub     *monitor.Hub
	log     *slog.Logger
}

func newPipeline(hub *monitor.Hub, outputDir string, l *slog.Logger) *pipeline {
	p := &pipeline{
		tracker: ethframe.NewTracker(),
		defrag:  op.NewDefragmenter(),
		router:  ldp.NewRouter(),
		hub:     hub,
		log:     l,
	}
	p.ts = timeservice.New(p.router, p.onTimeSync)
	p.fs = fileservice.New(p.router, outputDir, p.onFileEvent)
	return p
}

func (p *pipeline) onTimeSync(s timeservice.Sync) {
	p.hub.Broadcast(monitor.Event{
		Time:     nowFunc(),
		Kind:     "time_sync",
		ServerID: s.ServerID,
	})
}

func (p *pipeline) onFileEvent(e fileservice.Event) {
	evt := monitor.Event{
		Time:   nowFunc(),
		Kind:   e.Kind,
		FileID: e.ID,
		Path:   e.Path,
		Size:   e.Size,
		Error:  e.Err,
	}
	p.hub.Broadcast(evt)
}

// HandleFrame pushes one raw Ethernet-framed carousel packet through the
// full pipeline. It never returns an error: a rejected packet is simply
// dropped (the parsing stages log the reason, and the OP and LDP parsers
// also count it), since a broadcast receiver has no sender to report back to.
func (p *pipeline) HandleFrame(frame []byte) {
	payload, err := p.tracker.Strip(frame)
	if err != nil {
		p.log.Debug("ethframe_drop", "error", err)
		return
	}

	opPkt, err := op.ParsePacket(payload)
	if err != nil {
		metrics.IncOPFragmentShort()
		p.log.Debug("op_drop", "error", err)
		return
	}
	metrics.IncOPFragmentRx()

	datagram, ok := p.defrag.Push(opPkt)
	if !ok {
		return
	}

	ldpPkt, err := ldp.Parse(datagram)
	if err != nil {
		metrics.IncLDPMalformed(ldpMalformedKind(err))
		p.log.Debug("ldp_drop", "error", err)
		return
	}
	metrics.IncLDPRx()

	p.router.Route(ldpPkt)
}

func ldpMalformedKind(err error) string {
	switch {
	case errors.Is(err, ldp.ErrMalformedShort):
		return metrics.MalformedShort
	case errors.Is(err, ldp.ErrMalformedLength):
		return metrics.MalformedLength
	case errors.Is(err, ldp.ErrMalformedCRC):
		return metrics.MalformedCRC
	default:
		return metrics.MalformedShort
	}
}

// nowFunc is a seam for tests; production code always uses wall-clock time.
var nowFunc = func() time.Time { return time.Now() }
