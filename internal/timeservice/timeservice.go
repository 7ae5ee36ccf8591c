// Package timeservice handles the broadcast time synchronization LDP
// datagram (type 0x81): a sequence of TLV descriptors giving the
// broadcaster's server id and the current server time.
package timeservice

import (
	"encoding/binary"
	"time"

	"github.com/go-outernet/receiver/internal/ldp"
	"github.com/go-outernet/receiver/internal/logging"
	"github.com/go-outernet/receiver/internal/metrics"
)

const (
	descServerID = 0x01
	descServerTime = 0x02

	// DatagramType is the LDP type carrying time broadcast TLVs.
	DatagramType = 0x81
)

// Sync holds the most recently received time broadcast.
type Sync struct {
	ServerID string
	// ServerTime is the broadcaster's UTC time at the moment this datagram
	// was sent.
	ServerTime time.Time
}

// Service decodes time broadcasts and passes each one to an optional
// observer; it keeps no broadcast of its own.
type Service struct {
	onSync func(Sync)
}

// New returns a Service and registers it with router for datagram type
// 0x81. onSync, if non-nil, is called once per parsed time broadcast.
func New(router *ldp.Router, onSync func(Sync)) *Service {
	s := &Service{onSync: onSync}
	router.Register(DatagramType, s.handle)
	return s
}

func (s *Service) handle(p ldp.Packet) {
	var sync Sync
	payload := p.Payload
	for len(payload) > 2 {
		descID := payload[0]
		descLen := int(payload[1])
		if descLen > len(payload)-2 {
			break
		}
		data := payload[2 : 2+descLen]
		payload = payload[2+descLen:]

		switch {
		case descID == descServerID:
			sync.ServerID = string(data)
		case descID == descServerTime && len(data) == 8:
			secs := binary.BigEndian.Uint64(data)
			sync.ServerTime = time.Unix(int64(secs), 0).UTC()
		default:
			logging.L().Debug("timeservice: unknown descriptor", "id", descID)
		}
	}

	metrics.IncTimeSyncUpdate()
	logging.L().Info("timeservice: sync received", "server_id", sync.ServerID, "server_time", sync.ServerTime)
	if s.onSync != nil {
		s.onSync(sync)
	}
}
