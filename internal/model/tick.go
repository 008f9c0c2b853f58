package model

import "time"

// Tick is one price/volume observation for an instrument at an instant. The
// timestamp keeps whatever zone offset the feed delivered; nothing downstream
// coerces it.
type Tick struct {
	Symbol string    `json:"symbol" msgpack:"symbol"`
	TS     time.Time `json:"ts" msgpack:"ts"`
	Price  float64   `json:"price" msgpack:"price"`
	Volume int64     `json:"volume" msgpack:"volume"`
}

// TickKey is the storage identity of a tick. Two ticks with the same key refer
// to the same observation; the sink upserts on it.
type TickKey struct {
	Symbol string
	TSNano int64
}

// Key returns the identity key for the tick.
func (t Tick) Key() TickKey {
	return TickKey{Symbol: t.Symbol, TSNano: t.TS.UnixNano()}
}

// SameObservation reports whether two ticks agree on identity and payload.
// Feeds redeliver frames around reconnects; an exact match is a duplicate, a
// key match with different fields is a conflict the caller must arbitrate.
func (t Tick) SameObservation(other Tick) bool {
	return t.Symbol == other.Symbol &&
		t.TS.Equal(other.TS) &&
		t.Price == other.Price &&
		t.Volume == other.Volume
}
