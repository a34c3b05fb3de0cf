package sessionstore

import (
	"context"
	"sync"

	"dropinbox/internal/domain"
)

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	sess *domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, sess domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &sess
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sess.Complete() {
		return nil, nil
	}
	sess := *m.sess
	return &sess, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
