package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"tickd/internal/model"
)

// maxFutureSkew bounds how far ahead of wall clock a tick timestamp may sit
// before it is treated as garbage rather than clock drift.
const maxFutureSkew = 5 * time.Minute

// NormalizeError reports a raw frame that could not be turned into a tick.
// These are per-message conditions: the frame is dropped and counted, never
// escalated.
type NormalizeError struct {
	Field  string
	Reason string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize: field %s: %s", e.Field, e.Reason)
}

// rawTick mirrors the feed's touchline JSON. Pointers distinguish absent
// fields from zero values.
type rawTick struct {
	Symbol    *string  `json:"symbol"`
	Timestamp *string  `json:"timestamp"`
	LTP       *float64 `json:"ltp"`
	Volume    *int64   `json:"volume"`
}

// Normalize validates a raw feed payload and converts it into a canonical
// tick. It is a pure function over its inputs and the wall clock; safe to call
// from any goroutine.
func Normalize(payload []byte) (model.Tick, error) {
	return normalizeAt(payload, time.Now())
}

func normalizeAt(payload []byte, now time.Time) (model.Tick, error) {
	var raw rawTick
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.Tick{}, &NormalizeError{Field: "payload", Reason: "not a tick frame"}
	}

	if raw.Symbol == nil || strings.TrimSpace(*raw.Symbol) == "" {
		return model.Tick{}, &NormalizeError{Field: "symbol", Reason: "missing or empty"}
	}
	symbol := strings.ToUpper(strings.TrimSpace(*raw.Symbol))

	if raw.Timestamp == nil {
		return model.Tick{}, &NormalizeError{Field: "timestamp", Reason: "missing"}
	}
	ts, err := time.Parse(time.RFC3339Nano, *raw.Timestamp)
	if err != nil {
		return model.Tick{}, &NormalizeError{Field: "timestamp", Reason: fmt.Sprintf("unparseable %q", *raw.Timestamp)}
	}
	if ts.After(now.Add(maxFutureSkew)) {
		return model.Tick{}, &NormalizeError{Field: "timestamp", Reason: "too far in the future"}
	}

	if raw.LTP == nil {
		return model.Tick{}, &NormalizeError{Field: "ltp", Reason: "missing"}
	}
	price := *raw.LTP
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return model.Tick{}, &NormalizeError{Field: "ltp", Reason: "not finite"}
	}
	if price < 0 {
		return model.Tick{}, &NormalizeError{Field: "ltp", Reason: "negative"}
	}

	var volume int64
	if raw.Volume != nil {
		volume = *raw.Volume
	}
	if volume < 0 {
		return model.Tick{}, &NormalizeError{Field: "volume", Reason: "negative"}
	}

	return model.Tick{Symbol: symbol, TS: ts, Price: price, Volume: volume}, nil
}
