package db

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore хранит учетные данные в памяти процесса, то есть живет ровно столько, сколько вкладка
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	profile *Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, token string, profile *Profile) error {
	if token == "" {
		return fmt.Errorf("access token must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.profile = cloneProfile(profile)
	return nil
}

func (s *MemoryStore) SaveToken(_ context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("access token must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Read(_ context.Context) (Credentials, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return Credentials{}, false, nil
	}
	return Credentials{AccessToken: s.token, Profile: cloneProfile(s.profile)}, true, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.profile = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
