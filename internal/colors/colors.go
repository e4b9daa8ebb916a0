// Package colors holds the session's color assignments. Assignments are
// seeded from config, edited through the API and lost on restart.
package colors

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"strcal/internal/calendar"
	"strcal/internal/model"
)

type Store struct {
	mu       sync.RWMutex
	items    []model.ColorAssignment
	validate *validator.Validate
}

// NewStore seeds the store. Seeds go through Upsert, so duplicates collapse
// to the last value and invalid entries are rejected.
func NewStore(v *validator.Validate, seed []model.ColorAssignment) (*Store, error) {
	s := &Store{validate: v}
	if err := s.Upsert(seed...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) List() []model.ColorAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ColorAssignment, len(s.items))
	copy(out, s.items)
	return out
}

// Upsert validates every assignment first, then replaces the entry with the
// same (category, id) or appends. Nothing is stored if any entry is invalid,
// which keeps at most one assignment per pair.
func (s *Store) Upsert(items ...model.ColorAssignment) error {
	for i, a := range items {
		if err := s.validate.Struct(a); err != nil {
			return fmt.Errorf("colors: assignment %d (%s/%s): %w", i, a.Category, a.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range items {
		if i := s.indexOf(a.Category, a.ID); i >= 0 {
			s.items[i] = a
			continue
		}
		s.items = append(s.items, a)
	}
	return nil
}

// Delete removes an assignment; the entity falls back to its default color.
func (s *Store) Delete(category model.ColorCategory, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(category, id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// Resolver snapshots the current assignments.
func (s *Store) Resolver() *calendar.Resolver {
	return calendar.NewResolver(s.List())
}

func (s *Store) indexOf(category model.ColorCategory, id string) int {
	for i, a := range s.items {
		if a.Category == category && a.ID == id {
			return i
		}
	}
	return -1
}
