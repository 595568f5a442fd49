package capture

import (
	"sync"

	"github.com/google/uuid"

	"github.com/apitrail/apitrail/internal/models"
)

// Feed keeps a bounded window of recent capture records and notifies
// live subscribers. Slow subscribers drop records instead of blocking
// the capture path.
type Feed struct {
	mu          sync.RWMutex
	recent      []*models.CaptureRecord
	maxRecent   int
	subscribers map[string]chan *models.CaptureRecord
}

// NewFeed creates a feed retaining up to maxRecent records
func NewFeed(maxRecent int) *Feed {
	if maxRecent <= 0 {
		maxRecent = 1000
	}
	return &Feed{
		recent:      make([]*models.CaptureRecord, 0),
		maxRecent:   maxRecent,
		subscribers: make(map[string]chan *models.CaptureRecord),
	}
}

// Publish records a capture and notifies subscribers without blocking.
// Sends happen under the lock: they never block, and Unsubscribe
// closes channels under the same lock, so a send can never hit a
// closed channel.
func (f *Feed) Publish(rec *models.CaptureRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recent = append(f.recent, rec)
	if len(f.recent) > f.maxRecent {
		f.recent = f.recent[len(f.recent)-f.maxRecent:]
	}

	for _, ch := range f.subscribers {
		select {
		case ch <- rec:
		default:
			// Channel full, drop for this subscriber
		}
	}
}

// SetMaxRecent resizes the retention window, trimming oldest records
// when it shrinks. Non-positive values are ignored.
func (f *Feed) SetMaxRecent(n int) {
	if n <= 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.maxRecent = n
	if len(f.recent) > n {
		f.recent = f.recent[len(f.recent)-n:]
	}
}

// Recent returns up to limit of the newest records, newest first
func (f *Feed) Recent(limit int) []*models.CaptureRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.recent) {
		limit = len(f.recent)
	}

	out := make([]*models.CaptureRecord, 0, limit)
	for i := len(f.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.recent[i])
	}
	return out
}

// Subscribe registers a live subscriber and returns its id and channel
func (f *Feed) Subscribe() (string, chan *models.CaptureRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan *models.CaptureRecord, 100)
	f.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (f *Feed) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subscribers[id]; ok {
		close(ch)
		delete(f.subscribers, id)
	}
}

// Stats returns feed counters
func (f *Feed) Stats() map[string]interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return map[string]interface{}{
		"recentCaptures":    len(f.recent),
		"maxRecent":         f.maxRecent,
		"activeSubscribers": len(f.subscribers),
	}
}
