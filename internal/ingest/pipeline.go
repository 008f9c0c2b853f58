package ingest

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tickd/internal/model"
	"tickd/pkg/feed"
)

const (
	defaultWorkers     = 4
	defaultWindowSize  = 10
	defaultFlushSize   = 500
	workerQueueDepth   = 256
	acceptedHookTimeout = time.Second
)

// PipelineConfig collects the tuning knobs for one ingestion pipeline.
type PipelineConfig struct {
	Symbols          []string
	WindowSize       int
	Workers          int
	FlushSize        int
	FlushInterval    time.Duration
	FlushTimeout     time.Duration
	MaxBacklog       int
	ConnectTimeout   time.Duration
	HeartbeatTimeout time.Duration
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.WindowSize <= 0 {
		c.WindowSize = defaultWindowSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.FlushSize <= 0 {
		c.FlushSize = defaultFlushSize
	}
	return c
}

// Option customises pipeline construction.
type Option func(*Pipeline)

// WithAcceptedHook installs a callback invoked for every accepted tick, after
// the aggregates are updated. Used to refresh the latest-price cache; failures
// there must not slow ingestion, so the hook gets a bounded context.
func WithAcceptedHook(hook func(context.Context, model.Tick)) Option {
	return func(p *Pipeline) {
		p.hook = hook
	}
}

// Pipeline wires the full ingest path: connection manager → normalizer →
// per-symbol workers (dedup/order buffer + aggregates) → batch writer → sink.
// Work is sharded to a consistent worker by symbol hash, which preserves
// per-symbol ordering without a global lock.
type Pipeline struct {
	cfg  PipelineConfig
	hook func(context.Context, model.Tick)

	counters *Counters
	buffer   *Buffer
	aggs     *Aggregates
	writer   *Writer
	manager  *Manager

	mu         sync.Mutex
	running    bool
	runCtx     context.Context
	runCancel  context.CancelFunc
	workers    []chan model.Tick
	workerWg   sync.WaitGroup
	writerDone chan struct{}
}

// NewPipeline assembles a pipeline over a feed session factory and a sink.
func NewPipeline(factory feed.Factory, sink Sink, cfg PipelineConfig, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:      cfg,
		counters: &Counters{},
	}
	p.buffer = NewBuffer(cfg.FlushSize)
	p.aggs = NewAggregates(cfg.WindowSize)
	p.writer = NewWriter(p.buffer, sink, WriterConfig{
		Interval:     cfg.FlushInterval,
		FlushTimeout: cfg.FlushTimeout,
		MaxBacklog:   cfg.MaxBacklog,
	}, p.counters)
	p.manager = NewManager(factory, ManagerConfig{
		Symbols:          cfg.Symbols,
		ConnectTimeout:   cfg.ConnectTimeout,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
	}, p.dispatch, p.counters)

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start spins up workers, the writer loop and the connection manager. It
// returns immediately; connection failures are retried in the background.
// Aggregate state from a previous run is discarded.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	p.aggs.Reset()
	p.buffer.Reset()

	runCtx, cancel := context.WithCancel(ctx)
	p.runCtx = runCtx
	p.runCancel = cancel

	p.workers = make([]chan model.Tick, p.cfg.Workers)
	for i := range p.workers {
		ch := make(chan model.Tick, workerQueueDepth)
		p.workers[i] = ch
		p.workerWg.Add(1)
		go func(ch <-chan model.Tick) {
			defer p.workerWg.Done()
			p.worker(ch)
		}(ch)
	}

	p.writerDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		p.writer.Run(runCtx)
	}(p.writerDone)

	p.manager.Start(runCtx)
	p.running = true
	logx.Infof("ingest: pipeline started, %d symbols, %d workers", len(p.cfg.Symbols), p.cfg.Workers)
}

// Stop tears the pipeline down in dependency order: the feed connection
// first, then the workers once in-flight ticks are drained, then the writer
// with one best-effort final flush.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	p.manager.Stop()
	for _, ch := range p.workers {
		close(ch)
	}
	p.workerWg.Wait()
	p.workers = nil

	p.runCancel()
	<-p.writerDone

	p.running = false
	logx.Info("ingest: pipeline stopped")
}

// Status reports the connection state as seen by the manager.
func (p *Pipeline) Status() feed.ConnectionState {
	return p.manager.Status()
}

// Metrics returns the rolling view for one symbol.
func (p *Pipeline) Metrics(symbol string) (Metrics, bool) {
	return p.aggs.Read(symbol)
}

// TrackedSymbols lists symbols that have aggregate state.
func (p *Pipeline) TrackedSymbols() []string {
	return p.aggs.Symbols()
}

// Counters returns a snapshot of pipeline activity.
func (p *Pipeline) Counters() CounterSnapshot {
	return p.counters.Snapshot()
}

// Backlog reports ticks retained by the writer pending a successful flush.
func (p *Pipeline) Backlog() int {
	return p.writer.Backlog()
}

// dispatch normalizes one frame and routes the tick to its symbol's worker.
// Runs on the manager's session goroutine; a full worker queue applies
// backpressure here, which in turn slows the socket read.
func (p *Pipeline) dispatch(msg feed.RawMessage) {
	tick, err := Normalize(msg.Payload)
	if err != nil {
		p.counters.malformed.Add(1)
		logx.Infof("ingest: dropped frame: %v", err)
		return
	}

	ch := p.workers[shard(tick.Symbol, len(p.workers))]
	select {
	case ch <- tick:
	case <-p.runCtx.Done():
	}
}

// worker applies the dedup/order policy and updates aggregates for its shard.
func (p *Pipeline) worker(ticks <-chan model.Tick) {
	for tick := range ticks {
		switch p.buffer.Offer(tick) {
		case VerdictAccepted:
			p.counters.accepted.Add(1)
			p.aggs.Update(tick)
			if p.hook != nil {
				hookCtx, cancel := context.WithTimeout(context.Background(), acceptedHookTimeout)
				p.hook(hookCtx, tick)
				cancel()
			}
		case VerdictDuplicate:
			p.counters.duplicates.Add(1)
		case VerdictOutOfOrder:
			p.counters.outOfOrder.Add(1)
		}
	}
}

func shard(symbol string, buckets int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(buckets))
}
