package ingest

import (
	"sync"
	"time"

	"tickd/internal/model"
)

// Metrics is the per-symbol rolling view served to the UI.
type Metrics struct {
	Symbol        string    `json:"symbol"`
	LastPrice     float64   `json:"last_price"`
	ChangePct     float64   `json:"change_pct"`
	MovingAverage float64   `json:"moving_average"`
	WindowFill    int       `json:"window_fill"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Aggregates maintains rolling state per symbol: last price, change against
// the previous accepted price, and an N-period moving average kept with a
// running sum so updates and reads are O(1).
//
// Each symbol owns an independently locked cell, so two symbols never contend
// and a reader never observes a half-updated window.
type Aggregates struct {
	window int

	mu    sync.RWMutex
	cells map[string]*cell
}

type cell struct {
	mu sync.Mutex

	last      float64
	prev      float64
	hasPrev   bool
	updatedAt time.Time

	// ring holds the trailing window; sum tracks it incrementally.
	ring []float64
	head int
	fill int
	sum  float64
}

// NewAggregates constructs the engine with an N-tick window per symbol.
func NewAggregates(window int) *Aggregates {
	if window <= 0 {
		window = 10
	}
	return &Aggregates{
		window: window,
		cells:  make(map[string]*cell),
	}
}

// Update folds one accepted tick into its symbol's state. Callers must only
// feed ticks in accepted (strictly increasing timestamp) order per symbol.
func (a *Aggregates) Update(tick model.Tick) {
	c := a.cell(tick.Symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fill > 0 {
		c.prev = c.last
		c.hasPrev = true
	}
	c.last = tick.Price
	c.updatedAt = tick.TS

	if c.fill == len(c.ring) {
		c.sum -= c.ring[c.head]
	} else {
		c.fill++
	}
	c.ring[c.head] = tick.Price
	c.sum += tick.Price
	c.head = (c.head + 1) % len(c.ring)
}

// Read returns the current metrics snapshot for a symbol. The second return
// is false until the symbol has seen at least one accepted tick.
func (a *Aggregates) Read(symbol string) (Metrics, bool) {
	a.mu.RLock()
	c := a.cells[symbol]
	a.mu.RUnlock()
	if c == nil {
		return Metrics{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fill == 0 {
		return Metrics{}, false
	}

	m := Metrics{
		Symbol:        symbol,
		LastPrice:     c.last,
		MovingAverage: c.sum / float64(c.fill),
		WindowFill:    c.fill,
		UpdatedAt:     c.updatedAt,
	}
	if c.hasPrev && c.prev != 0 {
		m.ChangePct = (c.last - c.prev) / c.prev * 100
	}
	return m, true
}

// Symbols lists every symbol with state, for status reporting.
func (a *Aggregates) Symbols() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.cells))
	for sym := range a.cells {
		out = append(out, sym)
	}
	return out
}

// Reset drops all symbol state. Used on a stop→start transition.
func (a *Aggregates) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cells = make(map[string]*cell)
}

func (a *Aggregates) cell(symbol string) *cell {
	a.mu.RLock()
	c := a.cells[symbol]
	a.mu.RUnlock()
	if c != nil {
		return c
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c = a.cells[symbol]; c == nil {
		c = &cell{ring: make([]float64, a.window)}
		a.cells[symbol] = c
	}
	return c
}
