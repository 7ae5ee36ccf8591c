package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-outernet/receiver/internal/kissframe"
)

// runKissfileCarrier replays a captured KISS-framed byte stream through the
// pipeline once and returns. Useful for offline analysis of a recording
// taken from the ground station modem, or for exercising the pipeline
// without live hardware.
func runKissfileCarrier(ctx context.Context, cfg *appConfig, p *pipeline, l *slog.Logger, wg *sync.WaitGroup) error {
	data, err := os.ReadFile(cfg.kissFile)
	if err != nil {
		return fmt.Errorf("reading capture file: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Info("kissfile_carrier_started", "file", cfg.kissFile, "bytes", len(data))
		deframer := kissframe.NewDeframer()
		for _, frame := range deframer.Push(data) {
			if ctx.Err() != nil {
				return
			}
			p.HandleFrame(frame)
		}
		l.Info("kissfile_carrier_done", "file", cfg.kissFile)
	}()
	return nil
}
