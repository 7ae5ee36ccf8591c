package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-outernet/receiver/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"op_fragments", snap.OPFragments,
					"pktfec_repairs", snap.PktFECRepairs,
					"ldp_rx", snap.LDPRx,
					"ldp_malformed", snap.LDPMalformed,
					"files_done", snap.FilesDone,
					"files_failed", snap.FilesFailed,
					"errors", snap.Errors,
					"monitor_clients", snap.MonitorClients,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
