package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickKeyEqualAcrossZones(t *testing.T) {
	utc := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	ist := utc.In(time.FixedZone("IST", 5*3600+1800))

	a := Tick{Symbol: "TCS", TS: utc, Price: 100, Volume: 1}
	b := Tick{Symbol: "TCS", TS: ist, Price: 100, Volume: 1}

	// Identity is the instant, not its textual rendering.
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, a.SameObservation(b))
}

func TestSameObservation(t *testing.T) {
	ts := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	base := Tick{Symbol: "TCS", TS: ts, Price: 100, Volume: 1}

	assert.True(t, base.SameObservation(base))
	assert.False(t, base.SameObservation(Tick{Symbol: "INFY", TS: ts, Price: 100, Volume: 1}))
	assert.False(t, base.SameObservation(Tick{Symbol: "TCS", TS: ts.Add(time.Nanosecond), Price: 100, Volume: 1}))
	assert.False(t, base.SameObservation(Tick{Symbol: "TCS", TS: ts, Price: 100.5, Volume: 1}))
	assert.False(t, base.SameObservation(Tick{Symbol: "TCS", TS: ts, Price: 100, Volume: 2}))
}
