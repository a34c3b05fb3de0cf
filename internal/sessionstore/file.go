package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"dropinbox/internal/domain"
)

const sessionFile = "session.json"

// record is the on-disk layout. Field names follow the keys the web client
// kept in browser storage; expiration is a decimal string of epoch ms.
type record struct {
	SessionID  string `json:"sessionID,omitempty"`
	Email      string `json:"email,omitempty"`
	Expiration string `json:"expiration,omitempty"`
}

// FileStore persists the session as a JSON file. Writes go to a temp file
// that is renamed over the old one.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Path() string {
	return filepath.Join(f.dir, sessionFile)
}

func (f *FileStore) Save(_ context.Context, sess domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(record{
		SessionID:  sess.SessionID,
		Email:      sess.Address,
		Expiration: strconv.FormatInt(sess.ExpiresAt, 10),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, sessionFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Load returns an error only for an unreadable or corrupt file. Missing
// fields read as no session.
func (f *FileStore) Load(_ context.Context) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	expiresAt, err := strconv.ParseInt(rec.Expiration, 10, 64)
	if err != nil {
		return nil, nil
	}
	sess := &domain.Session{SessionID: rec.SessionID, Address: rec.Email, ExpiresAt: expiresAt}
	if !sess.Complete() {
		return nil, nil
	}
	return sess, nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
