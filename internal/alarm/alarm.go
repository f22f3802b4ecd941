// Package alarm specifies the host alarm facility the session cache's
// inactivity timer is scheduled through (spec.md §4.6, §5, §6). Using a
// host alarm rather than an in-process timer is deliberate: the host may
// suspend or restart the process between arming and firing.
package alarm

import (
	"sync"
	"time"
)

// Scheduler creates, clears, and fires one-shot, named alarms. Clearing
// or re-arming an alarm that does not exist is a no-op, not an error.
type Scheduler interface {
	Create(name string, delay time.Duration)
	Clear(name string)
	OnAlarm(name string, fn func())
}

// TimerScheduler is the production Scheduler, backed by time.AfterFunc.
// It is the fallback an embedding host uses when it has no
// restart-proof alarm facility of its own; spec.md §9 notes that such a
// host must instead persist expires-at and re-check on next operation.
type TimerScheduler struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	handlers map[string]func()
}

// NewTimerScheduler returns a ready-to-use TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers:   make(map[string]*time.Timer),
		handlers: make(map[string]func()),
	}
}

func (s *TimerScheduler) OnAlarm(name string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[name] = fn
}

// Create arms name to fire after delay, replacing any previous timer
// under the same name (idempotent re-arm).
func (s *TimerScheduler) Create(name string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[name]; ok {
		existing.Stop()
	}

	handler := s.handlers[name]

	s.timers[name] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, name)
		s.mu.Unlock()

		if handler != nil {
			handler()
		}
	})
}

// Clear cancels name if armed. Idempotent.
func (s *TimerScheduler) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[name]; ok {
		existing.Stop()
		delete(s.timers, name)
	}
}
