package queue

import (
	"context"
	"sync"
	"time"
)

const DateLayout = "2006-01-02"

// BusinessDate is the calendar day of t in loc; token numbers are unique within it.
func BusinessDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// MemorySequencer keeps one counter per business date in process memory.
type MemorySequencer struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{counters: make(map[string]int)}
}

func (s *MemorySequencer) Next(_ context.Context, businessDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[businessDate]++
	return s.counters[businessDate], nil
}

func (s *MemorySequencer) Reset(_ context.Context, businessDate string) error {
	s.mu.Lock()
	delete(s.counters, businessDate)
	s.mu.Unlock()
	return nil
}
