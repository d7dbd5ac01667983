package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiter_Burst(t *testing.T) {
	krl := New(0.001, 2)
	defer krl.Stop()

	assert.True(t, krl.Allow("a"))
	assert.True(t, krl.Allow("a"))
	assert.False(t, krl.Allow("a"))

	// Other keys have their own bucket
	assert.True(t, krl.Allow("b"))
}

func TestKeyedRateLimiter_Evict(t *testing.T) {
	krl := New(1, 1)
	defer krl.Stop()

	krl.Allow("old")
	krl.Allow("new")
	assert.Equal(t, 2, krl.Len())

	krl.mu.Lock()
	krl.limiters["old"].lastSeen = time.Now().Add(-time.Hour)
	krl.mu.Unlock()

	krl.evict(time.Now().Add(-time.Minute))
	assert.Equal(t, 1, krl.Len())
}
