package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bizledger/internal/model"

	"github.com/google/uuid"
)

// InMemoryClientStore implements repository.ClientRepository over a map.
type InMemoryClientStore struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*model.Client
}

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{clients: make(map[uuid.UUID]*model.Client)}
}

func (s *InMemoryClientStore) Create(ctx context.Context, client *model.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	stored := *client
	s.clients[client.ID] = &stored
	return nil
}

func (s *InMemoryClientStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, notFound("client", id)
	}
	loaded := *client
	return &loaded, nil
}

func (s *InMemoryClientStore) List(ctx context.Context) ([]model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.Client, 0, len(s.clients))
	for _, client := range s.clients {
		all = append(all, *client)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CompanyName < all[j].CompanyName
	})
	return all, nil
}

// InMemorySequenceStore implements repository.SequenceRepository with a
// per-(docType, year) counter.
type InMemorySequenceStore struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{values: make(map[string]int64)}
}

func (s *InMemorySequenceStore) Next(ctx context.Context, docType string, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s-%d", docType, year)
	s.values[key]++
	return s.values[key], nil
}

// InMemoryAuditStore implements repository.AuditRepository as an
// append-only slice.
type InMemoryAuditStore struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{}
}

func (s *InMemoryAuditStore) Create(ctx context.Context, entry *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemoryAuditStore) List(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.AuditLog, 0, len(s.entries))
	for _, e := range s.entries {
		if entityID != "" && e.EntityID != entityID {
			continue
		}
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.AuditLog{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// Actions returns the recorded action names in insertion order.
func (s *InMemoryAuditStore) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := make([]string, len(s.entries))
	for i, entry := range s.entries {
		actions[i] = entry.Action
	}
	return actions
}

// InMemoryUserStore implements repository.UserRepository over a map.
type InMemoryUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[uuid.UUID]*model.User)}
}

func (s *InMemoryUserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *InMemoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	loaded := *user
	return &loaded, nil
}

func (s *InMemoryUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			loaded := *user
			return &loaded, nil
		}
	}
	return nil, notFound("user", email)
}

func (s *InMemoryUserStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}
