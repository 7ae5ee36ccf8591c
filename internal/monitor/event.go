// Package monitor broadcasts receiver lifecycle events to connected TCP
// clients as newline-delimited JSON, for operator tooling to tail the
// receiver's state without grepping logs.
package monitor

import "time"

// Event is one newline-delimited JSON line pushed to every monitor client.
type Event struct {
	Time time.Time `json:"time"`
	Kind string    `json:"kind"` // "announced", "completed", "failed" (files), "time_sync"

	FileID   uint32 `json:"file_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
	ServerID string `json:"server_id,omitempty"`
	CarouselID uint8 `json:"carousel_id,omitempty"`
}
