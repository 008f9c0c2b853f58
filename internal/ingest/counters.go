package ingest

import "sync/atomic"

// Counters tracks pipeline activity. Everything here is monotonic and safe
// for concurrent use; the UI reads snapshots.
type Counters struct {
	received   atomic.Int64
	heartbeats atomic.Int64
	malformed  atomic.Int64
	accepted   atomic.Int64
	duplicates atomic.Int64
	outOfOrder atomic.Int64

	flushed       atomic.Int64
	writeFailures atomic.Int64
	overflowDrops atomic.Int64
	reconnects    atomic.Int64
}

// CounterSnapshot is a point-in-time copy for status reporting.
type CounterSnapshot struct {
	Received   int64 `json:"received"`
	Heartbeats int64 `json:"heartbeats"`
	Malformed  int64 `json:"malformed"`
	Accepted   int64 `json:"accepted"`
	Duplicates int64 `json:"duplicates"`
	OutOfOrder int64 `json:"out_of_order"`

	Flushed       int64 `json:"flushed"`
	WriteFailures int64 `json:"write_failures"`
	OverflowDrops int64 `json:"overflow_drops"`
	Reconnects    int64 `json:"reconnects"`
}

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Received:      c.received.Load(),
		Heartbeats:    c.heartbeats.Load(),
		Malformed:     c.malformed.Load(),
		Accepted:      c.accepted.Load(),
		Duplicates:    c.duplicates.Load(),
		OutOfOrder:    c.outOfOrder.Load(),
		Flushed:       c.flushed.Load(),
		WriteFailures: c.writeFailures.Load(),
		OverflowDrops: c.overflowDrops.Load(),
		Reconnects:    c.reconnects.Load(),
	}
}
