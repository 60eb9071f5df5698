package policy

import (
	"context"
	"fmt"
	"sync"
)

var ErrNotFound = fmt.Errorf("policy not found")

type MemDefinitionStore struct {
	mu   sync.RWMutex
	defs map[string]map[string]*Definition
}

var _ DefinitionStore = (*MemDefinitionStore)(nil)

func NewMemDefinitionStore() *MemDefinitionStore {
	return &MemDefinitionStore{
		defs: make(map[string]map[string]*Definition),
	}
}

func (s *MemDefinitionStore) Create(ctx context.Context, def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.defs[def.Scope]
	if !ok {
		m = make(map[string]*Definition)
		s.defs[def.Scope] = m
	}
	if _, ok := m[def.ID]; ok {
		return fmt.Errorf("policy already exists: %s/%s", def.Scope, def.ID)
	}
	cp := *def
	m[def.ID] = &cp
	return nil
}

func (s *MemDefinitionStore) Update(ctx context.Context, def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.defs[def.Scope]
	if _, ok := m[def.ID]; !ok {
		return ErrNotFound
	}
	cp := *def
	m[def.ID] = &cp
	return nil
}

func (s *MemDefinitionStore) Delete(ctx context.Context, scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.defs[scope]
	if _, ok := m[id]; !ok {
		return ErrNotFound
	}
	delete(m, id)
	return nil
}

func (s *MemDefinitionStore) Get(ctx context.Context, scope, id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[scope][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *def
	return &cp, nil
}

func (s *MemDefinitionStore) List(ctx context.Context, scope string) ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Definition, 0, len(s.defs[scope]))
	for _, def := range s.defs[scope] {
		cp := *def
		out = append(out, &cp)
	}
	return out, nil
}
