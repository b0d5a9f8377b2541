package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelaySeries(t *testing.T) {
	policy := DefaultRetryPolicy()

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, expected := range want {
		assert.Equal(t, expected, policy.NextDelay(i+1), "attempt %d", i+1)
	}
}

func TestNextDelayClampsAndDefaults(t *testing.T) {
	policy := RetryPolicy{}
	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))

	policy = RetryPolicy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 10}
	assert.Equal(t, 3*time.Second, policy.NextDelay(5))

	// Attempts below 1 behave like the first attempt.
	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, time.Second, policy.NextDelay(-3))
}
