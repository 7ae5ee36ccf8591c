package monitor

import (
	"errors"

	"github.com/go-outernet/receiver/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrConnWrite = errors.New("conn_write")
	ErrContext   = errors.New("context_cancelled")
)

func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrMonitorWrite
	default:
		return "other"
	}
}
