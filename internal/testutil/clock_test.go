package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_StartsAtStart(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, time.Second)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, int64(1), clock.Calls())
}

func TestStepClock_AdvancesByStep(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, time.Minute)

	clock.Now()
	assert.Equal(t, start.Add(time.Minute), clock.Now())
	assert.Equal(t, start.Add(2*time.Minute), clock.Now())
}

func TestStepClock_Reset(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, time.Hour)

	clock.Now()
	clock.Now()
	clock.Reset()

	assert.Equal(t, int64(0), clock.Calls())
	assert.Equal(t, start, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(time.Unix(0, 0), time.Second)
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(numGoroutines*callsPerGoroutine), clock.Calls())
}
