package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"bizledger/internal/model"

	"github.com/google/uuid"
)

// InMemoryCreditNoteStore implements repository.CreditNoteRepository over a map.
type InMemoryCreditNoteStore struct {
	mu    sync.Mutex
	notes map[uuid.UUID]*model.CreditNote
}

func NewInMemoryCreditNoteStore() *InMemoryCreditNoteStore {
	return &InMemoryCreditNoteStore{notes: make(map[uuid.UUID]*model.CreditNote)}
}

func (s *InMemoryCreditNoteStore) Create(ctx context.Context, note *model.CreditNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	stored := *note
	s.notes[note.ID] = &stored
	return nil
}

func (s *InMemoryCreditNoteStore) FindByID(ctx context.Context, id uuid.UUID) (*model.CreditNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, notFound("credit note", id)
	}
	loaded := *note
	return &loaded, nil
}

func (s *InMemoryCreditNoteStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.CreditNote, error) {
	return s.FindByID(ctx, id)
}

func (s *InMemoryCreditNoteStore) List(ctx context.Context, page, limit int) ([]model.CreditNote, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.CreditNote, 0, len(s.notes))
	for _, note := range s.notes {
		all = append(all, *note)
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
		return []model.CreditNote{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *InMemoryCreditNoteStore) ListAvailableByClient(ctx context.Context, clientID uuid.UUID) ([]model.CreditNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var available []model.CreditNote
	for _, note := range s.notes {
		if note.ClientID != clientID {
			continue
		}
		if note.Status == model.CreditNoteCancelled {
			continue
		}
		if !note.RemainingAmount.IsPositive() {
			continue
		}
		available = append(available, *note)
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].CreatedAt.After(available[j].CreatedAt)
	})
	return available, nil
}

func (s *InMemoryCreditNoteStore) Update(ctx context.Context, note *model.CreditNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[note.ID]; !ok {
		return notFound("credit note", note.ID)
	}
	stored := *note
	s.notes[note.ID] = &stored
	return nil
}
