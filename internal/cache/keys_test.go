package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickLatestKey(t *testing.T) {
	assert.Equal(t, "tickd:tick:latest:RELIANCE", TickLatestKey("reliance"))
	assert.Equal(t, "tickd:tick:latest:NIFTY 50", TickLatestKey(" NIFTY 50 "))
}

func TestNewTTLSet(t *testing.T) {
	ttl := NewTTLSet(5, 120, 900)
	assert.Equal(t, 5*time.Second, ttl.Short)
	assert.Equal(t, 2*time.Minute, ttl.Medium)
	assert.Equal(t, 15*time.Minute, ttl.Long)

	// Zero values fall back to the standard tiers.
	ttl = NewTTLSet(0, 0, 0)
	assert.Equal(t, 10*time.Second, ttl.Short)
	assert.Equal(t, time.Minute, ttl.Medium)
	assert.Equal(t, 5*time.Minute, ttl.Long)
}
