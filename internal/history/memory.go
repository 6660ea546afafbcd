package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   []Congratulation
	nextID int64
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, c *Congratulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Normalize(s.now())
	c.ID = s.nextID
	s.nextID++
	s.rows = append(s.rows, *c)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Congratulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.rows {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Congratulation, int, error) {
	s.mu.RLock()
	var matched []Congratulation
	for _, c := range s.rows {
		if f.ClientID != 0 && c.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Channel != "" && c.Channel != f.Channel {
			continue
		}
		matched = append(matched, c)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].SentAt.Equal(matched[j].SentAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].SentAt.After(matched[j].SentAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []Congratulation{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}
