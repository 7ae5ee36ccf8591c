package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/go-outernet/receiver/internal/metrics"
	"github.com/go-outernet/receiver/internal/netio"
)

// multicastAddr resolves --host/--port into a host:port group address,
// defaulting to the documented IPv4 rendezvous point when --host is unset.
func multicastAddr(cfg *appConfig) string {
	host := cfg.host
	if host == "" {
		defaultHost, _, _ := net.SplitHostPort(netio.DefaultGroupV4)
		host = defaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.port))
}

// runMulticastCarrier joins the carousel's multicast group and feeds every
// datagram it reads into the pipeline until ctx is cancelled.
func runMulticastCarrier(ctx context.Context, cfg *appConfig, p *pipeline, l *slog.Logger, wg *sync.WaitGroup) error {
	addr := multicastAddr(cfg)
	listener, err := netio.Listen(addr, nil)
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer listener.Close()
		go func() { <-ctx.Done(); _ = listener.Close() }()

		buf := make([]byte, multicastDatagramMaxLen)
		l.Info("multicast_carrier_started", "group", addr)
		for {
			n, _, err := listener.ReadFrom(buf)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				metrics.IncError(metrics.ErrCarrierRead)
				l.Warn("multicast_read_error", "error", err)
				continue
			}
			frame := append([]byte(nil), buf[:n]...)
			p.HandleFrame(frame)
		}
	}()
	return nil
}
