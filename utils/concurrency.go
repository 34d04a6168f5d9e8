package utils

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs one goroutine per submitted job, delaying the start of the
// job at position i by i * stagger so that outbound requests are spread out
// instead of issued in a burst.
type Scheduler struct {
	stagger time.Duration
	logger  *Logger
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler with the given per-position start delay.
func NewScheduler(stagger time.Duration, logger *Logger) *Scheduler {
	if stagger < 0 {
		stagger = 0
	}
	return &Scheduler{stagger: stagger, logger: logger}
}

// Offset returns the start delay applied to the job at position index.
func (s *Scheduler) Offset(index int) time.Duration {
	return time.Duration(index) * s.stagger
}

// Submit starts job in its own goroutine after Offset(index) has elapsed.
// If ctx is cancelled during the delay the job is not run. A panicking job
// is recovered and logged so it cannot take down its siblings.
func (s *Scheduler) Submit(ctx context.Context, index int, job func(ctx context.Context)) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil && s.logger != nil {
				s.logger.Error("[scheduler] job %d panicked: %v", index, r)
			}
		}()

		if err := Sleep(ctx, s.Offset(index)); err != nil {
			return
		}
		job(ctx)
	}()
}

// Wait blocks until all submitted jobs have completed.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// KeySet is a thread-safe set of string keys.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been added.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
