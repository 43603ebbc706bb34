package models

import "time"

// LogEvent is one entry of an append-only, bounded event stream (risk changes, feedback, drawings).
type LogEvent struct {
	Stream  string         `json:"stream"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}
