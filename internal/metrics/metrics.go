package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-outernet/receiver/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	OPFragmentsRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "op_fragments_rx_total",
		Help: "Total OP fragments received off the carousel channel.",
	})
	OPFragmentsShort = promauto.NewCounter(prometheus.CounterOpts{
		Name: "op_fragments_short_total",
		Help: "Total OP fragments shorter than the header length.",
	})
	PktFECRecoveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pktfec_recoveries_total",
		Help: "Total datagrams reconstructed from packet-level FEC parity shares.",
	})
	PktFECFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pktfec_failures_total",
		Help: "Total packet-level FEC reconstruction attempts that failed.",
	})
	LDPDatagramsRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ldp_datagrams_rx_total",
		Help: "Total LDP datagrams successfully parsed.",
	})
	LDPMalformedShort = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ldp_malformed_short_total",
		Help: "Total LDP datagrams rejected as too short.",
	})
	LDPMalformedLength = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ldp_malformed_length_total",
		Help: "Total LDP datagrams rejected for a length field mismatch.",
	})
	LDPMalformedCRC = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ldp_malformed_crc_total",
		Help: "Total LDP datagrams rejected for a checksum mismatch.",
	})
	LDPUnroutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ldp_unrouted_total",
		Help: "Total LDP datagrams whose type has no registered handler.",
	})
	LDPCRepairRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ldpc_repair_rounds_total",
		Help: "Total LDPC single-erasure repair passes attempted over a file's blocks.",
	})
	LDPCRepairFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ldpc_repair_failures_total",
		Help: "Total LDPC repair passes that could not recover all missing blocks.",
	})
	FilesAnnounced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "files_announced_total",
		Help: "Total files announced by a file descriptor.",
	})
	FilesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "files_completed_total",
		Help: "Total files written to disk after successful reconstruction.",
	})
	FilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "files_failed_total",
		Help: "Total failed reconstructions of files without FEC (hash mismatch, missing blocks) and failed file writes.",
	})
	CarouselResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carousel_resyncs_total",
		Help: "Total times a carousel id's reassembly slot was reset by a retrograde restart.",
	})
	TimeSyncUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "time_sync_updates_total",
		Help: "Total time broadcast TLV updates applied.",
	})
	MonitorDroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_dropped_events_total",
		Help: "Total monitor events dropped due to slow clients.",
	})
	MonitorKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_kicked_clients_total",
		Help: "Total monitor clients disconnected due to backpressure kick policy.",
	})
	MonitorActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_active_clients",
		Help: "Current number of connected monitor clients.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrCarrierRead   = "carrier_read"
	ErrDescriptor    = "descriptor_parse"
	ErrFileWrite     = "file_write"
	ErrFileHash      = "file_hash_mismatch"
	ErrLDPCUnrepaired = "ldpc_unrepaired"
	ErrMonitorWrite  = "monitor_write"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready on
// addr, using a mux of its own, and returns the running server.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localOPFragments   uint64
	localPktFECRepairs uint64
	localLDPRx         uint64
	localLDPMalformed  uint64
	localFilesDone     uint64
	localFilesFailed   uint64
	localErrors        uint64
	localMonitorClients uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	OPFragments    uint64
	PktFECRepairs  uint64
	LDPRx          uint64
	LDPMalformed   uint64
	FilesDone      uint64
	FilesFailed    uint64
	Errors         uint64 // sum across error labels
	MonitorClients uint64
}

func Snap() Snapshot {
	return Snapshot{
		OPFragments:    atomic.LoadUint64(&localOPFragments),
		PktFECRepairs:  atomic.LoadUint64(&localPktFECRepairs),
		LDPRx:          atomic.LoadUint64(&localLDPRx),
		LDPMalformed:   atomic.LoadUint64(&localLDPMalformed),
		FilesDone:      atomic.LoadUint64(&localFilesDone),
		FilesFailed:    atomic.LoadUint64(&localFilesFailed),
		Errors:         atomic.LoadUint64(&localErrors),
		MonitorClients: atomic.LoadUint64(&localMonitorClients),
	}
}

func IncOPFragmentRx() {
	OPFragmentsRx.Inc()
	atomic.AddUint64(&localOPFragments, 1)
}

func IncOPFragmentShort() {
	OPFragmentsShort.Inc()
}

func IncPktFECRecovery() {
	PktFECRecoveries.Inc()
	atomic.AddUint64(&localPktFECRepairs, 1)
}

func IncPktFECFailure() {
	PktFECFailures.Inc()
}

func IncLDPRx() {
	LDPDatagramsRx.Inc()
	atomic.AddUint64(&localLDPRx, 1)
}

// LDP malformed-datagram reasons, used as the kind argument to IncLDPMalformed.
const (
	MalformedShort  = "short"
	MalformedLength = "length"
	MalformedCRC    = "crc"
)

func IncLDPMalformed(kind string) {
	switch kind {
	case MalformedShort:
		LDPMalformedShort.Inc()
	case MalformedLength:
		LDPMalformedLength.Inc()
	case MalformedCRC:
		LDPMalformedCRC.Inc()
	}
	atomic.AddUint64(&localLDPMalformed, 1)
}

func IncFileCompleted() {
	FilesCompleted.Inc()
	atomic.AddUint64(&localFilesDone, 1)
}

func IncFileFailed() {
	FilesFailed.Inc()
	atomic.AddUint64(&localFilesFailed, 1)
}

func IncFileAnnounced() {
	FilesAnnounced.Inc()
}

func IncCarouselResync() {
	CarouselResyncs.Inc()
}

func IncTimeSyncUpdate() {
	TimeSyncUpdates.Inc()
}

func IncLDPCRepairRound() {
	LDPCRepairRounds.Inc()
}

func IncLDPCRepairFailure() {
	LDPCRepairFailures.Inc()
}

func IncMonitorDrop() {
	MonitorDroppedEvents.Inc()
}

func IncMonitorKick() {
	MonitorKickedClients.Inc()
}

func SetMonitorClients(n int) {
	MonitorActiveClients.Set(float64(n))
	atomic.StoreUint64(&localMonitorClients, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrCarrierRead, ErrDescriptor, ErrFileWrite, ErrFileHash, ErrLDPCUnrepaired, ErrMonitorWrite,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
