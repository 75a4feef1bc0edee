package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/reality-filter-bot/internal/models"
)

// MemoryStorage keeps everything in process memory. Suitable for dev/testing.
type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[int64]*models.User
	messages []models.MessageRecord
	nextID   int64
	now      func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[int64]*models.User),
		now:   time.Now,
	}
}

func (s *MemoryStorage) UpsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.ID]; ok {
		existing.Handle = user.Handle
		existing.DisplayName = user.DisplayName
		return nil
	}

	cp := *user
	cp.WakeAt = nil
	cp.CreatedAt = s.now()
	s.users[user.ID] = &cp
	return nil
}

// GetUser returns a copy of the stored user.
func (s *MemoryStorage) GetUser(_ context.Context, id int64) (*models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	if u.WakeAt != nil {
		w := *u.WakeAt
		cp.WakeAt = &w
	}
	return &cp, true, nil
}

func (s *MemoryStorage) ListUsers(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStorage) SwapWakeAt(_ context.Context, userID int64, wakeAt *time.Time) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		u = &models.User{ID: userID, CreatedAt: s.now()}
		s.users[userID] = u
	}

	prev := u.WakeAt
	if wakeAt != nil {
		w := *wakeAt
		u.WakeAt = &w
	} else {
		u.WakeAt = nil
	}
	return prev, nil
}

func (s *MemoryStorage) AppendMessage(_ context.Context, msg *models.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg.ID = s.nextID
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MemoryStorage) CountByCategory(_ context.Context, ownerID int64, since time.Time) ([]models.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Category]int)
	for _, m := range s.messages {
		if m.OwnerID != ownerID {
			continue
		}
		if !since.IsZero() && !m.CreatedAt.After(since) {
			continue
		}
		counts[m.Category]++
	}
	return sortCounts(counts), nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func sortCounts(counts map[models.Category]int) []models.CategoryCount {
	out := make([]models.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, models.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
