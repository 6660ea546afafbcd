package client

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps clients in process memory.
// It backs local development when no database is configured, and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	rows   map[int64]Client
	nextID int64
}

// NewMemoryRepository returns a repository seeded with the given clients.
// Seeds without an ID get one assigned.
func NewMemoryRepository(seed ...Client) *MemoryRepository {
	r := &MemoryRepository{rows: make(map[int64]Client), nextID: 1}
	for _, c := range seed {
		if c.ID == 0 {
			c.ID = r.nextID
		}
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
		r.rows[c.ID] = c
	}
	return r
}

func (r *MemoryRepository) ListAll(_ context.Context) ([]Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(Client) bool { return true }), nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Client, int, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	r.mu.RLock()
	matched := r.sorted(func(c Client) bool {
		if f.Segment != "" && c.Segment != f.Segment {
			return false
		}
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(c.FirstName), search) ||
			strings.Contains(strings.ToLower(c.LastName), search) ||
			strings.Contains(strings.ToLower(c.Email), search)
	})
	r.mu.RUnlock()

	total := len(matched)
	if f.Offset >= total {
		return []Client{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) Create(_ context.Context, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(c.Email, 0) {
		return ErrDuplicateEmail
	}
	now := time.Now().UTC()
	c.ID = r.nextID
	c.CreatedAt, c.UpdatedAt = now, now
	r.nextID++
	r.rows[c.ID] = *c
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rows[c.ID]
	if !ok {
		return ErrNotFound
	}
	if r.emailTaken(c.Email, c.ID) {
		return ErrDuplicateEmail
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	r.rows[c.ID] = *c
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// emailTaken must be called with the lock held.
func (r *MemoryRepository) emailTaken(email string, except int64) bool {
	for id, c := range r.rows {
		if id != except && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) sorted(keep func(Client) bool) []Client {
	out := make([]Client, 0, len(r.rows))
	for _, c := range r.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
