package sim

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickd/pkg/feed"
)

func TestSourceGeneratesTicks(t *testing.T) {
	src := New("sim", &feed.SourceConfig{Interval: 2 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, src.Connect(ctx))
	require.NoError(t, src.Subscribe(ctx, []string{"tcs", " reliance "}))
	defer src.Close()

	symbols := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for len(symbols) < 2 {
		select {
		case msg, ok := <-src.Messages():
			require.True(t, ok, "stream ended early")
			if msg.Kind != feed.KindTick {
				continue
			}
			var tick struct {
				Symbol    string  `json:"symbol"`
				Timestamp string  `json:"timestamp"`
				LTP       float64 `json:"ltp"`
				Volume    int64   `json:"volume"`
			}
			require.NoError(t, json.Unmarshal(msg.Payload, &tick))
			assert.Greater(t, tick.LTP, 0.0)
			_, err := time.Parse(time.RFC3339Nano, tick.Timestamp)
			assert.NoError(t, err)
			symbols[tick.Symbol] = true
		case <-timeout:
			t.Fatalf("expected ticks for both symbols, saw %v", symbols)
		}
	}

	assert.True(t, symbols["TCS"], "symbols should be uppercased")
	assert.True(t, symbols["RELIANCE"], "symbols should be trimmed")
}

func TestSourceEmitsHeartbeatsAndRedeliveries(t *testing.T) {
	src := New("sim", &feed.SourceConfig{Interval: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, src.Connect(ctx))
	require.NoError(t, src.Subscribe(ctx, []string{"TCS"}))
	defer src.Close()

	var heartbeats int
	payloads := map[string]int{}
	timeout := time.After(5 * time.Second)
	for i := 0; i < 60; i++ {
		select {
		case msg, ok := <-src.Messages():
			require.True(t, ok)
			if msg.Kind == feed.KindHeartbeat {
				heartbeats++
				continue
			}
			payloads[string(msg.Payload)]++
		case <-timeout:
			t.Fatal("generator too slow")
		}
	}

	assert.Greater(t, heartbeats, 0, "heartbeats should appear in the stream")
	var redelivered bool
	for _, n := range payloads {
		if n > 1 {
			redelivered = true
			break
		}
	}
	assert.True(t, redelivered, "some frames should be exact redeliveries")
}

func TestSourceSubscribeValidation(t *testing.T) {
	src := New("sim", nil)

	err := src.Subscribe(context.Background(), []string{"TCS"})
	assert.ErrorContains(t, err, "before connect")

	require.NoError(t, src.Connect(context.Background()))
	err = src.Subscribe(context.Background(), nil)
	assert.ErrorContains(t, err, "empty symbol set")
	src.Close()
}
