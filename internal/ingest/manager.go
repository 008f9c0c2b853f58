package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zeromicro/go-zero/core/logx"

	"tickd/pkg/feed"
)

const (
	defaultConnectTimeout   = 10 * time.Second
	defaultSubscribeTimeout = 5 * time.Second
	defaultHeartbeatTimeout = 30 * time.Second

	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// ManagerConfig tunes connection lifecycle behaviour.
type ManagerConfig struct {
	Symbols          []string
	ConnectTimeout   time.Duration
	SubscribeTimeout time.Duration
	HeartbeatTimeout time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = defaultSubscribeTimeout
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	return c
}

// Manager owns the feed connection lifecycle: connect, subscribe, heartbeat
// watchdog, reconnect with backoff. Every inbound data frame is handed to the
// dispatch callback; the manager itself never inspects tick payloads.
type Manager struct {
	factory  feed.Factory
	cfg      ManagerConfig
	dispatch func(feed.RawMessage)
	counters *Counters

	state atomic.Int32

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewManager constructs a manager. dispatch is invoked from the session
// goroutine, one message at a time.
func NewManager(factory feed.Factory, cfg ManagerConfig, dispatch func(feed.RawMessage), counters *Counters) *Manager {
	return &Manager{
		factory:  factory,
		cfg:      cfg.withDefaults(),
		dispatch: dispatch,
		counters: counters,
	}
}

// Start launches the connection loop and returns immediately. Calling it
// while already running is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go func(done chan struct{}) {
		defer close(done)
		m.run(runCtx)
	}(m.done)
}

// Stop closes the upstream connection and waits for the loop to unwind.
// Messages already dispatched finish processing; nothing is aborted mid-tick.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	m.setState(feed.StateDisconnected)
}

// Status reports the current connection state.
func (m *Manager) Status() feed.ConnectionState {
	return feed.ConnectionState(m.state.Load())
}

func (m *Manager) setState(s feed.ConnectionState) {
	m.state.Store(int32(s))
}

// run cycles connect → subscribe → session until ctx is cancelled. Connection
// failures degrade the state and schedule a retry with exponential backoff and
// jitter; they never bubble up.
func (m *Manager) run(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = backoffBase
	policy.MaxInterval = backoffCap
	policy.RandomizationFactor = 1 // full jitter
	policy.MaxElapsedTime = 0

	for ctx.Err() == nil {
		src, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			m.setState(feed.StateDegraded)
			logx.Errorf("feed: connect failed: %v", err)
			if !m.sleep(ctx, policy.NextBackOff()) {
				break
			}
			continue
		}

		m.setState(feed.StateSubscribed)
		policy.Reset()
		m.session(ctx, src)
		if ctx.Err() != nil {
			m.unsubscribe(src)
			_ = src.Close()
			break
		}
		_ = src.Close()
		// Unsolicited drop: degrade, back off, reconnect with the full
		// symbol set.
		m.counters.reconnects.Add(1)
		m.setState(feed.StateDegraded)
		if !m.sleep(ctx, policy.NextBackOff()) {
			break
		}
	}
	m.setState(feed.StateDisconnected)
}

// connect builds a fresh session and subscribes the full symbol set. The
// session only counts as live once the subscription went through.
func (m *Manager) connect(ctx context.Context) (feed.Source, error) {
	m.setState(feed.StateConnecting)

	src, err := m.factory()
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	err = src.Connect(connectCtx)
	cancel()
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	subCtx, cancel := context.WithTimeout(ctx, m.cfg.SubscribeTimeout)
	err = src.Subscribe(subCtx, m.cfg.Symbols)
	cancel()
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return src, nil
}

// session pumps messages until the source dies, the watchdog fires, or ctx is
// cancelled. Any frame, heartbeats included, feeds the liveness watchdog.
func (m *Manager) session(ctx context.Context, src feed.Source) {
	watchdog := time.NewTimer(m.cfg.HeartbeatTimeout)
	defer watchdog.Stop()

	msgs := src.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case <-watchdog.C:
			logx.Errorf("feed: no message within %s, forcing reconnect", m.cfg.HeartbeatTimeout)
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if !watchdog.Stop() {
				select {
				case <-watchdog.C:
				default:
				}
			}
			watchdog.Reset(m.cfg.HeartbeatTimeout)

			m.counters.received.Add(1)
			if msg.Kind == feed.KindHeartbeat {
				m.counters.heartbeats.Add(1)
				continue
			}
			m.dispatch(msg)
		}
	}
}

// unsubscribe tells the upstream we are leaving on an orderly stop. Sources
// that drop subscription state with the session simply skip it.
func (m *Manager) unsubscribe(src feed.Source) {
	u, ok := src.(interface {
		Unsubscribe(ctx context.Context, symbols []string) error
	})
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SubscribeTimeout)
	defer cancel()
	if err := u.Unsubscribe(ctx, m.cfg.Symbols); err != nil {
		logx.Infof("feed: unsubscribe on stop: %v", err)
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
