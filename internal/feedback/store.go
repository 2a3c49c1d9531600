// Package feedback keeps the bounded log of notes captured by the
// "feedback" voice command.
//
// The Store is shared by every in-flight dispatch. Appends (including the
// capacity eviction) are serialised by a mutex; readers load an immutable
// snapshot and never block writers.
package feedback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadzzz/pathlight/internal/metrics"
)

// DefaultCapacity is the default number of items kept in memory.
const DefaultCapacity = 200

// Item is one captured feedback note. Items are immutable once appended.
type Item struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"ts"`
	Note       string    `json:"note"`
	Transcript string    `json:"transcript"`
	RequestID  string    `json:"request_id"`
}

// Store is a capacity-bounded, oldest-first log of feedback items.
type Store struct {
	capacity int
	mirror   Mirror

	mu    sync.Mutex
	items atomic.Pointer[[]Item] // oldest first; never mutated after publish
}

// NewStore creates a store holding at most capacity items. A non-positive
// capacity selects DefaultCapacity. mirror may be nil.
func NewStore(capacity int, mirror Mirror) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{capacity: capacity, mirror: mirror}
	empty := []Item{}
	s.items.Store(&empty)
	return s
}

// Capacity returns the item bound.
func (s *Store) Capacity() int { return s.capacity }

// Append adds item, evicting the oldest items beyond capacity, then writes
// it to the mirror. Mirror failures are logged and never undo the append.
func (s *Store) Append(ctx context.Context, item Item) {
	s.mu.Lock()
	cur := *s.items.Load()
	next := make([]Item, 0, min(len(cur)+1, s.capacity))
	evicted := len(cur) + 1 - s.capacity
	if evicted < 0 {
		evicted = 0
	}
	next = append(next, cur[evicted:]...)
	next = append(next, item)
	s.items.Store(&next)
	s.mu.Unlock()

	metrics.RecordFeedbackAppend(len(next), evicted)
	slog.Info("feedback saved", "id", item.ID, "request_id", item.RequestID, "note_length", len(item.Note))

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Write(ctx, item); err != nil {
		metrics.RecordMirrorFailure(s.mirror.Name())
		slog.Warn("feedback mirror write failed", "mirror", s.mirror.Name(), "id", item.ID, "error", err)
	}
}

// Restore replaces the in-memory log with items (oldest first), keeping only
// the newest capacity entries. It does not touch the mirror.
func (s *Store) Restore(items []Item) {
	if len(items) > s.capacity {
		items = items[len(items)-s.capacity:]
	}
	next := append([]Item(nil), items...)

	s.mu.Lock()
	s.items.Store(&next)
	s.mu.Unlock()
	metrics.SetFeedbackItems(len(next))
}

// Len returns the number of items held.
func (s *Store) Len() int {
	return len(*s.items.Load())
}

// ListRecent returns up to limit items, newest first. A non-positive limit
// returns every item.
func (s *Store) ListRecent(limit int) []Item {
	cur := *s.items.Load()
	if limit <= 0 || limit > len(cur) {
		limit = len(cur)
	}
	out := make([]Item, 0, limit)
	for i := len(cur) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cur[i])
	}
	return out
}

// Latest returns the newest item.
func (s *Store) Latest() (Item, bool) {
	cur := *s.items.Load()
	if len(cur) == 0 {
		return Item{}, false
	}
	return cur[len(cur)-1], true
}
