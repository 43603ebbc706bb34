package models

import "time"

// FeedSource labels where the latest payload came from.
type FeedSource string

const (
	SourceWebSocket FeedSource = "websocket"
	SourcePolling   FeedSource = "polling"
	SourceYFinance  FeedSource = "yfinance"
)

// FeedState is the single "latest feed" slot shared by the push and pull channels.
// Payload always holds the last successfully received payload; Err carries the most
// recent advisory and is cleared by the next successful publish.
type FeedState struct {
	Seq     uint64     `json:"seq"`
	Symbol  string     `json:"symbol"`
	Source  FeedSource `json:"source"`
	Payload any        `json:"-"`
	Err     string     `json:"error,omitempty"`
	At      time.Time  `json:"at"`
}
