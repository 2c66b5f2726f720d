package domain

import (
	"errors"
	"fmt"
)

var (
	// Stale messages are dropped with a log line and never surfaced to callers.
	ErrStaleMessage = errors.New("order book message is outdated")
	// Returned by stream listeners when the underlying frame sequence ends.
	ErrStreamClosed = errors.New("stream closed")
)

// NetworkError is a connection level failure: refused, reset or timed out.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HttpStatusError carries the status and the body of a non-200 response.
type HttpStatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HttpStatusError) Error() string {
	return fmt.Sprintf("error fetching %s: HTTP %d, response: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ProtocolError reports a payload whose shape does not match what the exchange documents.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

type UnknownInstrumentError struct {
	TradingPair  string
	InstrumentID int64
}

func (e *UnknownInstrumentError) Error() string {
	if e.TradingPair != "" {
		return fmt.Sprintf("unknown instrument for trading pair %s", e.TradingPair)
	}
	return fmt.Sprintf("unknown instrument id %d", e.InstrumentID)
}

func IsUnknownInstrument(err error) bool {
	var target *UnknownInstrumentError
	return errors.As(err, &target)
}
