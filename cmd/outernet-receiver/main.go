package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/go-outernet/receiver/internal/metrics"
	"github.com/go-outernet/receiver/internal/monitor"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("outernet-receiver %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	h := initHub(cfg, l)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	pl := newPipeline(h, cfg.outputDir, l)

	var carrierErr error
	switch cfg.carrier {
	case carrierMulticast:
		carrierErr = runMulticastCarrier(ctx, cfg, pl, l, &wg)
	case carrierKissfile:
		carrierErr = runKissfileCarrier(ctx, cfg, pl, l, &wg)
	case carrierSerial:
		carrierErr = runSerialCarrier(ctx, cfg, pl, l, &wg)
	}
	if carrierErr != nil {
		l.Error("carrier_init_error", "carrier", cfg.carrier, "error", carrierErr)
		return
	}
	var carrierReady atomic.Bool
	carrierReady.Store(true)
	l.Info("carrier_started", "carrier", cfg.carrier)

	var monSrv *monitor.Server
	if cfg.monitorAddr != "" {
		monSrv = monitor.NewServer(
			monitor.WithHub(h),
			monitor.WithListenAddr(cfg.monitorAddr),
			monitor.WithLogger(l),
			monitor.WithFlushInterval(cfg.monitorFlushIval),
			monitor.WithBatchSize(cfg.monitorBatchSize),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monSrv.Serve(ctx); err != nil {
				l.Error("monitor_server_error", "error", err)
				cancel()
			}
		}()

		// Start mDNS advertisement once the monitor listener is ready.
		go func() {
			if !cfg.mdnsEnable {
				return
			}
			select {
			case <-monSrv.Ready():
			case <-ctx.Done():
				return
			}
			addr := monSrv.Addr()
			var portNum int
			if _, p, err := net.SplitHostPort(addr); err == nil {
				if pn, perr := strconv.Atoi(p); perr == nil {
					portNum = pn
				}
			}
			if portNum == 0 {
				lastColon := strings.LastIndex(addr, ":")
				if lastColon >= 0 {
					if pn, perr := strconv.Atoi(addr[lastColon+1:]); perr == nil {
						portNum = pn
					}
				}
			}
			cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
				return
			}
			l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
			go func() { <-ctx.Done(); cleanupMDNS() }()
		}()
	}

	metrics.SetReadinessFunc(func() bool {
		return carrierReady.Load() && ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	if monSrv != nil {
		_ = monSrv.Shutdown(context.Background())
	}
	wg.Wait()
}
