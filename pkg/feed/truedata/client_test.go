package truedata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickd/pkg/feed"
)

var upgrader = websocket.Upgrader{}

// pushServer fakes the TrueData push socket: it acknowledges a subscribe,
// then replays the given frames.
func pushServer(t *testing.T, frames []string, gotSubscribe chan<- subscribeRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trial100", r.URL.Query().Get("user"))
		assert.Equal(t, "secret", r.URL.Query().Get("password"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribeRequest
		require.NoError(t, json.Unmarshal(payload, &sub))
		gotSubscribe <- sub

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"success":true,"message":"symbols added"}`))
		for _, frame := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		}

		// Hold the session open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestClientSessionFlow(t *testing.T) {
	gotSubscribe := make(chan subscribeRequest, 1)
	srv := pushServer(t, []string{
		`{"symbol":"RELIANCE","timestamp":"2024-06-03T10:00:00Z","ltp":2845.5,"volume":100}`,
		`{"success":true,"message":"HeartBeat"}`,
	}, gotSubscribe)
	defer srv.Close()

	client, err := NewClient("truedata", &feed.SourceConfig{
		URL:      wsURL(srv.URL),
		Username: "trial100",
		Password: "secret",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	require.NoError(t, client.Subscribe(ctx, []string{"RELIANCE", "TCS"}))

	select {
	case sub := <-gotSubscribe:
		assert.Equal(t, methodAddSymbol, sub.Method)
		assert.Equal(t, []string{"RELIANCE", "TCS"}, sub.Symbols)
	case <-ctx.Done():
		t.Fatal("server never saw the subscribe frame")
	}

	var kinds []feed.MessageKind
	for len(kinds) < 3 {
		select {
		case msg, ok := <-client.Messages():
			require.True(t, ok, "session ended early")
			kinds = append(kinds, msg.Kind)
		case <-ctx.Done():
			t.Fatalf("timed out after %d frames", len(kinds))
		}
	}

	// Subscribe ack, tick, heartbeat.
	assert.Equal(t, []feed.MessageKind{feed.KindHeartbeat, feed.KindTick, feed.KindHeartbeat}, kinds)

	assert.NoError(t, client.Unsubscribe(ctx, []string{"TCS"}))
}

func TestClientCloseEndsStream(t *testing.T) {
	gotSubscribe := make(chan subscribeRequest, 1)
	srv := pushServer(t, nil, gotSubscribe)
	defer srv.Close()

	client, err := NewClient("truedata", &feed.SourceConfig{
		URL:      wsURL(srv.URL),
		Username: "trial100",
		Password: "secret",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Subscribe(ctx, []string{"TCS"}))
	<-gotSubscribe

	require.NoError(t, client.Close())

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-client.Messages():
			if !ok {
				return // channel closed, loop exited cleanly
			}
		case <-deadline:
			t.Fatal("message channel never closed after Close")
		}
	}
}

func TestClientSubscribeBeforeConnect(t *testing.T) {
	client, err := NewClient("truedata", &feed.SourceConfig{URL: "wss://push.example.com"})
	require.NoError(t, err)

	err = client.Subscribe(context.Background(), []string{"TCS"})
	assert.ErrorContains(t, err, "subscribe before connect")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("truedata", nil)
	assert.Error(t, err)

	_, err = NewClient("truedata", &feed.SourceConfig{})
	assert.ErrorContains(t, err, "requires url")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, feed.KindHeartbeat, classify([]byte(`{"success":true,"message":"HeartBeat"}`)))
	assert.Equal(t, feed.KindHeartbeat, classify([]byte(`{"message":"HeartBeat"}`)))
	assert.Equal(t, feed.KindTick, classify([]byte(`{"symbol":"TCS","timestamp":"2024-06-03T10:00:00Z","ltp":100}`)))
	assert.Equal(t, feed.KindTick, classify([]byte(`not json`)))
}
