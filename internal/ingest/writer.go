package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tickd/internal/model"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultFlushTimeout  = 5 * time.Second
	defaultMaxBacklog    = 5000
)

// Sink is the durable keyed time-series store the writer flushes into.
type Sink interface {
	// UpsertMany writes rows idempotently keyed on (symbol, ts). A non-nil
	// error means the sink was unreachable and nothing may be assumed
	// written; with a nil error, failed lists the keys rejected per row.
	UpsertMany(ctx context.Context, ticks []model.Tick) (failed []model.TickKey, err error)
}

// WriterConfig tunes the flush cadence and backlog bound.
type WriterConfig struct {
	Interval     time.Duration
	FlushTimeout time.Duration
	MaxBacklog   int
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.Interval <= 0 {
		c.Interval = defaultFlushInterval
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = defaultFlushTimeout
	}
	if c.MaxBacklog <= 0 {
		c.MaxBacklog = defaultMaxBacklog
	}
	return c
}

// Writer drains the buffer on a time or size trigger and upserts batches into
// the sink. Failed batches are retained and retried on the next cycle up to a
// bounded backlog; beyond the bound the oldest entries are dropped and the
// loss is counted, never silent.
type Writer struct {
	buffer   *Buffer
	sink     Sink
	cfg      WriterConfig
	counters *Counters

	mu       sync.Mutex // guards retained; writes happen on the Run goroutine, Backlog is read from status paths
	retained *orderedBatch
}

// NewWriter constructs a writer over the given buffer and sink.
func NewWriter(buffer *Buffer, sink Sink, cfg WriterConfig, counters *Counters) *Writer {
	return &Writer{
		buffer:   buffer,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		counters: counters,
		retained: newOrderedBatch(),
	}
}

// Run flushes until ctx is cancelled, then performs one best-effort final
// flush so an orderly stop does not strand staged ticks. It never blocks
// ingestion; the only shared point with the ingest path is the buffer drain.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), w.cfg.FlushTimeout)
			w.FlushOnce(finalCtx)
			cancel()
			return
		case <-ticker.C:
			w.FlushOnce(ctx)
		case <-w.buffer.Watermark():
			w.FlushOnce(ctx)
		}
	}
}

// FlushOnce drains the buffer into the retained batch and attempts one write.
func (w *Writer) FlushOnce(ctx context.Context) {
	w.mu.Lock()
	w.retained.merge(w.buffer.Drain())
	batch := w.retained.ticks()
	w.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	flushCtx, cancel := context.WithTimeout(ctx, w.cfg.FlushTimeout)
	failed, err := w.sink.UpsertMany(flushCtx, batch)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.counters.writeFailures.Add(1)
		logx.Errorf("writer: flush of %d ticks failed, retrying next cycle: %v", len(batch), err)
		w.enforceBound()
		return
	}

	w.counters.flushed.Add(int64(len(batch) - len(failed)))
	if len(failed) == 0 {
		w.retained.clear()
		return
	}

	w.counters.writeFailures.Add(int64(len(failed)))
	logx.Errorf("writer: %d of %d rows rejected, retained for retry", len(failed), len(batch))
	w.retained.retainOnly(failed)
	w.enforceBound()
}

// Backlog reports how many ticks are retained awaiting a successful flush.
func (w *Writer) Backlog() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retained.len()
}

// enforceBound drops the oldest retained entries beyond the backlog bound.
// One overflow signal per exceeding batch.
func (w *Writer) enforceBound() {
	dropped := w.retained.evictOldest(w.cfg.MaxBacklog)
	if dropped > 0 {
		w.counters.overflowDrops.Add(int64(dropped))
		logx.Errorf("writer: write backlog overflow, dropped %d oldest ticks (bound %d)", dropped, w.cfg.MaxBacklog)
	}
}

// orderedBatch keeps retained ticks keyed for idempotent overwrite while
// preserving oldest-first order for bounded eviction. Only the writer
// goroutine touches it.
type orderedBatch struct {
	order []model.TickKey
	items map[model.TickKey]model.Tick
}

func newOrderedBatch() *orderedBatch {
	return &orderedBatch{items: make(map[model.TickKey]model.Tick)}
}

func (b *orderedBatch) merge(incoming map[model.TickKey]model.Tick) {
	if len(incoming) == 0 {
		return
	}
	fresh := make([]model.Tick, 0, len(incoming))
	for key, tick := range incoming {
		if _, ok := b.items[key]; ok {
			b.items[key] = tick
			continue
		}
		fresh = append(fresh, tick)
	}
	sort.Slice(fresh, func(i, j int) bool {
		if !fresh[i].TS.Equal(fresh[j].TS) {
			return fresh[i].TS.Before(fresh[j].TS)
		}
		return fresh[i].Symbol < fresh[j].Symbol
	})
	for _, tick := range fresh {
		key := tick.Key()
		b.order = append(b.order, key)
		b.items[key] = tick
	}
}

func (b *orderedBatch) ticks() []model.Tick {
	out := make([]model.Tick, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.items[key])
	}
	return out
}

func (b *orderedBatch) retainOnly(keys []model.TickKey) {
	keep := make(map[model.TickKey]struct{}, len(keys))
	for _, key := range keys {
		keep[key] = struct{}{}
	}
	order := b.order[:0]
	for _, key := range b.order {
		if _, ok := keep[key]; ok {
			order = append(order, key)
		} else {
			delete(b.items, key)
		}
	}
	b.order = order
}

func (b *orderedBatch) evictOldest(bound int) int {
	excess := len(b.order) - bound
	if excess <= 0 {
		return 0
	}
	for _, key := range b.order[:excess] {
		delete(b.items, key)
	}
	b.order = append(b.order[:0], b.order[excess:]...)
	return excess
}

func (b *orderedBatch) clear() {
	b.order = b.order[:0]
	b.items = make(map[model.TickKey]model.Tick)
}

func (b *orderedBatch) len() int {
	return len(b.order)
}
