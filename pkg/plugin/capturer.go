package plugin

import (
	"context"

	"firestige.xyz/facerelay/internal/core"
)

// Capturer produces raw LiveLink datagrams, one per call.
//
// Next blocks until a datagram arrives, ctx is done (returns ctx.Err()) or
// the source is exhausted (returns io.EOF). The returned Data is only valid
// until the next call.
type Capturer interface {
	Plugin
	Next(ctx context.Context) (core.RawFrame, error)
	Stats() CaptureStats
}

// CaptureStats represents capture statistics.
type CaptureStats struct {
	PacketsReceived uint64 // datagrams handed to the caller
	PacketsDropped  uint64 // datagrams skipped by the capturer (filtered, truncated)
	BytesReceived   uint64
}
