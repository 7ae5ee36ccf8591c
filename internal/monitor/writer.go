package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-outernet/receiver/internal/metrics"
)

// startWriter launches the goroutine pushing hub events to a single client
// connection as newline-delimited JSON, batched on a flush ticker.
func (s *Server) startWriter(ctxDone <-chan struct{}, conn net.Conn, cl *Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			if s.Hub != nil {
				s.Hub.Remove(cl)
			}
			s.totalDisconnected.Add(1)
			logger.Info("monitor_client_disconnected")
		}()
		t := time.NewTicker(s.flushInterval)
		defer t.Stop()
		batch := make([]Event, 0, s.batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			for _, e := range batch {
				if err := enc.Encode(e); err != nil {
					batch = batch[:0]
					return fmt.Errorf("monitor: encoding event: %w", err)
				}
			}
			batch = batch[:0]
			if _, err := conn.Write(buf.Bytes()); err != nil {
				wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				return wrap
			}
			return nil
		}
		for {
			select {
			case e := <-cl.Out:
				batch = append(batch, e)
				if len(batch) >= s.batchSize {
					if err := flush(); err != nil {
						return
					}
				}
			case <-t.C:
				if err := flush(); err != nil {
					return
				}
			case <-cl.Closed:
				_ = flush()
				return
			case <-ctxDone:
				_ = flush()
				return
			}
		}
	}()
}
