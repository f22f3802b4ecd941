package alarm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHappyPathCreateFiresHandlerAfterDelay(t *testing.T) {
	s := NewTimerScheduler()

	var mu sync.Mutex
	fired := false

	s.OnAlarm("test-alarm", func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	s.Create("test-alarm", 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, fired)
}

func TestHappyPathClearCancelsPendingAlarm(t *testing.T) {
	s := NewTimerScheduler()

	var mu sync.Mutex
	fired := false

	s.OnAlarm("test-alarm", func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	s.Create("test-alarm", 10*time.Millisecond)
	s.Clear("test-alarm")

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired)
}

func TestHappyPathCreateIsIdempotentReArm(t *testing.T) {
	s := NewTimerScheduler()

	var mu sync.Mutex
	count := 0

	s.OnAlarm("test-alarm", func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	s.Create("test-alarm", 10*time.Millisecond)
	s.Create("test-alarm", 100*time.Millisecond)

	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 0, count)
	mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestSadPathClearUnknownAlarmIsNoop(t *testing.T) {
	s := NewTimerScheduler()
	assert.NotPanics(t, func() { s.Clear("never-armed") })
}
