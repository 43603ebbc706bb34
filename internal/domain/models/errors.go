package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when the upstream answered but had no candles.
	ErrNoData = errors.New("no market data")
	// ErrMalformedPayload marks a feed payload that normalized to zero candles.
	ErrMalformedPayload = errors.New("malformed feed payload")
	// ErrInvalidArgument marks a caller error (bad symbol, bad range).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrArchiveDisabled is returned by history queries when no archive is configured.
	ErrArchiveDisabled = errors.New("candle archive disabled")
	// ErrSocketDrop marks a push channel that closed or failed to dial.
	ErrSocketDrop = errors.New("feed socket dropped")
)

// UpstreamError marks a failed upstream call (non-2xx status or transport failure).
type UpstreamError struct {
	Provider string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s unavailable: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("upstream %s unavailable: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err wraps an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
