package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-outernet/receiver/internal/kissframe"
	"github.com/go-outernet/receiver/internal/metrics"
	"github.com/go-outernet/receiver/internal/serial"
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// openSerialPort is a hook for tests.
var openSerialPort = serial.Open

// runSerialCarrier reads a KISS-framed byte stream off a UART-attached
// demodulator and feeds deframed Ethernet packets into the pipeline. The
// receiver never writes to the port: the carousel channel is simplex.
func runSerialCarrier(ctx context.Context, cfg *appConfig, p *pipeline, l *slog.Logger, wg *sync.WaitGroup) error {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, defaultSerialReadTimeout)
	if err != nil {
		return err
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sp.Close()
		defer l.Info("serial_rx_end")

		buf := make([]byte, serialReadBufSize)
		deframer := kissframe.NewDeframer()
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := sp.Read(buf)
			if n > 0 {
				for _, frame := range deframer.Push(buf[:n]) {
					p.HandleFrame(frame)
				}
				backoff = rxBackoffMin
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					return // device removed or fatal
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue // ignore transient EOF
				}
				metrics.IncError(metrics.ErrCarrierRead)
				l.Warn("serial_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
			}
		}
	}()
	return nil
}
