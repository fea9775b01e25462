package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryThrottleWindow(t *testing.T) {
	throttle := NewMemoryThrottle(3, time.Hour)
	ctx := context.Background()

	assert.True(t, throttle.Allow(ctx, "ops@store.test"))

	for i := 0; i < 3; i++ {
		throttle.RecordFailure(ctx, "ops@store.test")
	}
	assert.False(t, throttle.Allow(ctx, "ops@store.test"))

	// Other subjects are unaffected.
	assert.True(t, throttle.Allow(ctx, "other@store.test"))

	// A successful login clears the window.
	throttle.Reset(ctx, "ops@store.test")
	assert.True(t, throttle.Allow(ctx, "ops@store.test"))
}

func TestMemoryThrottleWindowLapses(t *testing.T) {
	throttle := NewMemoryThrottle(1, 10*time.Millisecond)
	ctx := context.Background()

	throttle.RecordFailure(ctx, "ops@store.test")
	assert.False(t, throttle.Allow(ctx, "ops@store.test"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, throttle.Allow(ctx, "ops@store.test"))
}

func TestNoopThrottleAllowsEverything(t *testing.T) {
	throttle := NoopThrottle{}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		throttle.RecordFailure(ctx, "ops@store.test")
	}
	assert.True(t, throttle.Allow(ctx, "ops@store.test"))
}
