package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSteppingClock_Advances(t *testing.T) {
	clock := NewSteppingClock(Epoch, time.Second)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, Epoch.Add(2*time.Second), clock.Peek())
}

func TestSteppingClock_ZeroStepFreezes(t *testing.T) {
	clock := NewSteppingClock(Epoch, 0)

	assert.Equal(t, clock.Now(), clock.Now())
}

func TestSteppingClock_Reset(t *testing.T) {
	clock := NewSteppingClock(Epoch, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()

	assert.Equal(t, Epoch, clock.Now())
}

func TestSteppingClock_Concurrent(t *testing.T) {
	clock := NewSteppingClock(Epoch, time.Second)

	var wg sync.WaitGroup
	seen := make(chan time.Time, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- clock.Now()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, 100, "every call must observe a distinct instant")
	assert.Equal(t, Epoch.Add(100*time.Second), clock.Peek())
}
