package subscribe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/techknowlogia/core/internal/models"
)

// MemoryStore keeps subscribers in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.SubscriberModel
	byEmail map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*models.SubscriberModel),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (*models.SubscriberModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSubscriber(m.byID[id]), nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*models.SubscriberModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSubscriber(sub), nil
}

func (m *MemoryStore) FindByConfirmTokenHash(_ context.Context, hash string) (*models.SubscriberModel, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.byID {
		if sub.ConfirmTokenHash == hash {
			return cloneSubscriber(sub), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Create(_ context.Context, sub *models.SubscriberModel) error {
	sub.EnsureID()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[sub.Email]; ok {
		return ErrDuplicate
	}
	if _, ok := m.byID[sub.ID]; ok {
		return ErrDuplicate
	}
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}
	m.byID[sub.ID] = cloneSubscriber(sub)
	m.byEmail[sub.Email] = sub.ID
	return nil
}

func (m *MemoryStore) Save(_ context.Context, sub *models.SubscriberModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[sub.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Email != sub.Email {
		if _, taken := m.byEmail[sub.Email]; taken {
			return ErrDuplicate
		}
		delete(m.byEmail, current.Email)
		m.byEmail[sub.Email] = sub.ID
	}
	m.byID[sub.ID] = cloneSubscriber(sub)
	return nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]models.SubscriberModel, error) {
	m.mu.RLock()
	out := make([]models.SubscriberModel, 0, len(m.byID))
	for _, sub := range m.byID {
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		out = append(out, *cloneSubscriber(sub))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.SubscriberModel{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, status string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if status == "" {
		return int64(len(m.byID)), nil
	}
	var n int64
	for _, sub := range m.byID {
		if sub.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byEmail, sub.Email)
	delete(m.byID, id)
	return nil
}

func (m *MemoryStore) PurgeExpiredTokens(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, sub := range m.byID {
		if sub.Status != models.SubscriberPending || !sub.HasOutstandingToken() {
			continue
		}
		if sub.ConfirmTokenExpiresAt != nil && sub.ConfirmTokenExpiresAt.Before(before) {
			sub.ClearConfirmToken()
			sub.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func cloneSubscriber(sub *models.SubscriberModel) *models.SubscriberModel {
	if sub == nil {
		return nil
	}
	out := *sub
	out.ConfirmedAt = cloneTime(sub.ConfirmedAt)
	out.UnsubscribedAt = cloneTime(sub.UnsubscribedAt)
	out.ConfirmTokenExpiresAt = cloneTime(sub.ConfirmTokenExpiresAt)
	out.LastConfirmationSentAt = cloneTime(sub.LastConfirmationSentAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
