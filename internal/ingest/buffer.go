package ingest

import (
	"sync"

	"tickd/internal/model"
)

// Verdict is the buffer's ruling on one offered tick.
type Verdict int

const (
	// VerdictAccepted means the tick advances the symbol's timeline: it is
	// staged for persistence and may feed the aggregate window.
	VerdictAccepted Verdict = iota
	// VerdictDuplicate means an exact redelivery of the last accepted tick.
	// Absorbed silently; feeds redeliver on reconnect as a matter of course.
	VerdictDuplicate
	// VerdictOutOfOrder means the tick is late or conflicts with the last
	// accepted timestamp. It is still staged for persistence (the sink upsert
	// is idempotent) but must not enter the aggregate window, which assumes
	// causal order.
	VerdictOutOfOrder
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictOutOfOrder:
		return "out_of_order"
	default:
		return "unknown"
	}
}

// Buffer is the per-symbol dedup/order stage between normalization and the
// batch writer. It tracks the last accepted tick per symbol and accumulates
// the pending batch the writer drains.
type Buffer struct {
	mu      sync.Mutex
	last    map[string]model.Tick
	pending map[model.TickKey]model.Tick

	flushSize int
	watermark chan struct{}
}

// NewBuffer constructs a buffer that signals its watermark channel once the
// pending batch reaches flushSize entries.
func NewBuffer(flushSize int) *Buffer {
	return &Buffer{
		last:      make(map[string]model.Tick),
		pending:   make(map[model.TickKey]model.Tick),
		flushSize: flushSize,
		watermark: make(chan struct{}, 1),
	}
}

// Offer stages a tick and rules on its ordering. Accepted ticks strictly
// advance the symbol's last timestamp, so everything handed onwards to the
// aggregates forms a strictly increasing sequence per symbol.
func (b *Buffer) Offer(tick model.Tick) Verdict {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, seen := b.last[tick.Symbol]
	if seen {
		if tick.SameObservation(prev) {
			return VerdictDuplicate
		}
		if !tick.TS.After(prev.TS) {
			// Late or conflicting observation: persist, never aggregate.
			b.stage(tick)
			return VerdictOutOfOrder
		}
	}

	b.last[tick.Symbol] = tick
	b.stage(tick)
	return VerdictAccepted
}

func (b *Buffer) stage(tick model.Tick) {
	b.pending[tick.Key()] = tick
	if len(b.pending) >= b.flushSize {
		select {
		case b.watermark <- struct{}{}:
		default:
		}
	}
}

// Drain hands the current pending batch to the caller and starts a fresh one.
// The swap is the only synchronization point between ingestion and flushing.
func (b *Buffer) Drain() map[model.TickKey]model.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = make(map[model.TickKey]model.Tick)
	return batch
}

// Watermark signals when the pending batch crosses the flush size.
func (b *Buffer) Watermark() <-chan struct{} {
	return b.watermark
}

// Pending reports the number of staged ticks.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Reset clears ordering state. Pending ticks survive a reset; they still need
// to reach the sink.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = make(map[string]model.Tick)
}
