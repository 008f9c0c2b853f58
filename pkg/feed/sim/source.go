package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"tickd/pkg/feed"
)

const (
	defaultInterval = 250 * time.Millisecond
	defaultBase     = 100.0
	messageBuffer   = 256
)

func init() {
	feed.RegisterSource("sim", func(name string, cfg *feed.SourceConfig) (feed.Source, error) {
		return New(name, cfg), nil
	})
}

// Source is an in-memory feed that walks prices randomly for the subscribed
// symbols. It deliberately mimics the rough edges of a real push feed: it
// re-delivers an old frame now and then and emits periodic heartbeats, so the
// full dedup path gets exercised in local runs.
type Source struct {
	name     string
	interval time.Duration

	mu        sync.Mutex
	out       chan feed.RawMessage
	connected bool
	stop      chan struct{}
	stopOnce  sync.Once
}

// New constructs a simulated source.
func New(name string, cfg *feed.SourceConfig) *Source {
	interval := defaultInterval
	if cfg != nil && cfg.Interval > 0 {
		interval = cfg.Interval
	}
	return &Source{
		name:     name,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Connect marks the session usable.
func (s *Source) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	s.connected = true
	s.out = make(chan feed.RawMessage, messageBuffer)
	return nil
}

// Subscribe starts the generator for the given symbols.
func (s *Source) Subscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return fmt.Errorf("sim: subscribe before connect")
	}
	if len(symbols) == 0 {
		return fmt.Errorf("sim: empty symbol set")
	}
	clean := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			clean = append(clean, sym)
		}
	}
	go s.run(clean, s.out)
	return nil
}

// Messages returns the generated frame stream.
func (s *Source) Messages() <-chan feed.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Close stops the generator and closes the message channel.
func (s *Source) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Source) run(symbols []string, out chan<- feed.RawMessage) {
	defer close(out)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	prices := make(map[string]float64, len(symbols))
	volumes := make(map[string]int64, len(symbols))
	for _, sym := range symbols {
		prices[sym] = defaultBase + rng.Float64()*defaultBase
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastFrame []byte
	var emitted int
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		sym := symbols[emitted%len(symbols)]
		emitted++

		// One frame in twenty is a heartbeat, one in fifteen a redelivery.
		switch {
		case emitted%20 == 0:
			s.emit(out, feed.RawMessage{
				Kind:       feed.KindHeartbeat,
				Payload:    []byte(`{"success":true,"message":"HeartBeat"}`),
				ReceivedAt: time.Now(),
			})
			continue
		case emitted%15 == 0 && lastFrame != nil:
			s.emit(out, feed.RawMessage{Kind: feed.KindTick, Payload: lastFrame, ReceivedAt: time.Now()})
			continue
		}

		prices[sym] *= 1 + (rng.Float64()-0.5)*0.004
		volumes[sym] += int64(rng.Intn(500))
		payload, err := json.Marshal(map[string]any{
			"symbol":    sym,
			"timestamp": time.Now().Format(time.RFC3339Nano),
			"ltp":       prices[sym],
			"volume":    volumes[sym],
		})
		if err != nil {
			continue
		}
		lastFrame = payload
		s.emit(out, feed.RawMessage{Kind: feed.KindTick, Payload: payload, ReceivedAt: time.Now()})
	}
}

func (s *Source) emit(out chan<- feed.RawMessage, msg feed.RawMessage) {
	select {
	case out <- msg:
	case <-s.stop:
	}
}
