package truedata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"tickd/pkg/feed"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultHeartbeat    = 15 * time.Second
	defaultWriteTimeout = 5 * time.Second
	messageBuffer       = 1024
)

func init() {
	feed.RegisterSource("truedata", func(name string, cfg *feed.SourceConfig) (feed.Source, error) {
		return NewClient(name, cfg)
	})
}

// Client is a push-socket client for the TrueData live feed. One Client owns
// one websocket session; after the session dies the Client is spent and the
// caller dials a fresh one through Connect.
type Client struct {
	name string
	cfg  *feed.SourceConfig
	auth *Authenticator

	mu       sync.Mutex
	conn     *websocket.Conn
	msgs     chan feed.RawMessage
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewClient builds a client from source configuration.
func NewClient(name string, cfg *feed.SourceConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("truedata: nil source config")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("truedata: source %s requires url", name)
	}
	client := &Client{
		name:    name,
		cfg:     cfg,
		stopped: make(chan struct{}),
	}
	if cfg.AuthURL != "" {
		client.auth = NewAuthenticator(cfg.AuthURL, cfg.Username, cfg.Password)
	}
	return client, nil
}

// Connect authenticates, dials the push socket and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	wsURL, err := c.sessionURL(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout()}
	conn, resp, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("truedata: dial %s: status %d: %w", c.cfg.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("truedata: dial %s: %w", c.cfg.URL, err)
	}

	c.conn = conn
	c.msgs = make(chan feed.RawMessage, messageBuffer)
	go c.readLoop(conn, c.msgs)
	return nil
}

// sessionURL appends credentials to the configured socket URL. When an auth
// endpoint is configured a bearer token is fetched first.
func (c *Client) sessionURL(ctx context.Context) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("truedata: parse url %s: %w", c.cfg.URL, err)
	}
	q := u.Query()
	if c.auth != nil {
		token, err := c.auth.Token(ctx)
		if err != nil {
			return "", err
		}
		q.Set("token", token)
	} else if c.cfg.Username != "" {
		q.Set("user", c.cfg.Username)
		q.Set("password", c.cfg.Password)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe registers the symbol set on the live session.
func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return fmt.Errorf("truedata: empty symbol set")
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("truedata: subscribe before connect")
	}

	frame, err := json.Marshal(subscribeRequest{Method: methodAddSymbol, Symbols: symbols})
	if err != nil {
		return fmt.Errorf("truedata: encode subscribe: %w", err)
	}

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("truedata: send subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes symbols from the live session.
func (c *Client) Unsubscribe(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("truedata: unsubscribe before connect")
	}

	frame, err := json.Marshal(unsubscribeRequest{Method: methodRemoveSymbol, Symbols: symbols})
	if err != nil {
		return fmt.Errorf("truedata: encode unsubscribe: %w", err)
	}

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("truedata: send unsubscribe: %w", err)
	}
	return nil
}

// Messages returns the inbound frame stream for this session.
func (c *Client) Messages() <-chan feed.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs
}

// Close tears down the socket. The read loop notices and closes the message
// channel so downstream consumers drain naturally.
func (c *Client) Close() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopped)
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			deadline := time.Now().Add(defaultWriteTimeout)
			_ = conn.SetWriteDeadline(deadline)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			err = conn.Close()
		}
	})
	return err
}

func (c *Client) readLoop(conn *websocket.Conn, out chan<- feed.RawMessage) {
	defer close(out)
	heartbeat := c.heartbeatInterval()

	for {
		// No frame at all inside two heartbeat windows means the session is
		// dead even if TCP still looks healthy.
		_ = conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopped:
			default:
				logx.Errorf("truedata %s: read loop ended: %v", c.name, err)
			}
			return
		}

		msg := feed.RawMessage{
			Kind:       classify(payload),
			Payload:    payload,
			ReceivedAt: time.Now(),
		}
		select {
		case out <- msg:
		case <-c.stopped:
			return
		}
	}
}

// classify splits control frames from tick frames. Control frames carry a
// success/message envelope; everything else is assumed to be tick-shaped and
// left to the normalizer.
func classify(payload []byte) feed.MessageKind {
	var envelope controlEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return feed.KindTick
	}
	if envelope.Success != nil || envelope.Message == msgHeartbeat || envelope.Message == msgSymbolList {
		return feed.KindHeartbeat
	}
	return feed.KindTick
}

func (c *Client) dialTimeout() time.Duration {
	if c.cfg.DialTimeout > 0 {
		return c.cfg.DialTimeout
	}
	return defaultDialTimeout
}

func (c *Client) heartbeatInterval() time.Duration {
	if c.cfg.Heartbeat > 0 {
		return c.cfg.Heartbeat
	}
	return defaultHeartbeat
}
