// Package sessions provides the durable token-to-credential stores and
// token generation.
package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"

	"go.pilab.hu/kerja/domain"
)

const nonceSize = 24

// FileStore implements domain.SessionStore as a whole-file JSON snapshot,
// rewritten synchronously on every mutation and loaded once at startup.
// Fine for the expected scale of tens to low thousands of sessions.
//
// With a seal key configured, credential values are sealed with
// nacl/secretbox before they touch disk.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]string
	sealKey  *[32]byte
}

// NewFileStore loads the snapshot at path. A missing or empty file starts
// an empty store; a malformed one fails startup, since resetting would
// silently log out every user.
func NewFileStore(path, sealKey string) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		sessions: make(map[string]string),
	}
	if sealKey != "" {
		key := sha256.Sum256([]byte(sealKey))
		s.sealKey = &key
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}

	// A zero-length file means we crashed between create and first write.
	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.sessions); err != nil {
		return nil, fmt.Errorf("session file %s is corrupt: %w", path, err)
	}

	log.Info().Int("sessions", len(s.sessions)).Str("path", path).Msg("session store loaded")

	return s, nil
}

// Put stores the token-to-credential mapping and persists the snapshot.
func (s *FileStore) Put(_ context.Context, token, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := credential
	if s.sealKey != nil {
		sealed, err := s.seal(credential)
		if err != nil {
			return fmt.Errorf("failed to seal credential: %w", err)
		}
		value = sealed
	}

	s.sessions[token] = value

	return s.persistLocked()
}

// Get returns the credential for token, or domain.ErrSessionNotFound.
func (s *FileStore) Get(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.sessions[token]
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	if s.sealKey != nil {
		return s.open(value)
	}

	return value, nil
}

// Remove deletes the session and persists the snapshot. Removing an
// absent token is a no-op that still succeeds.
func (s *FileStore) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return nil
	}
	delete(s.sessions, token)

	return s.persistLocked()
}

// Count returns the number of stored sessions.
func (s *FileStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Close implements domain.SessionStore. The snapshot is already durable
// after every mutation, so there is nothing to flush.
func (s *FileStore) Close(_ context.Context) error {
	return nil
}

// persistLocked rewrites the whole snapshot. Callers hold the write lock,
// which serializes mutations and keeps interleaved rewrites from losing
// updates.
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", s.path, err)
	}

	return nil
}

func (s *FileStore) seal(credential string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(credential), &nonce, s.sealKey)

	return base64.StdEncoding.EncodeToString(box), nil
}

func (s *FileStore) open(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) < nonceSize {
		return "", errors.New("stored credential is malformed")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, s.sealKey)
	if !ok {
		return "", errors.New("failed to unseal credential, wrong seal key?")
	}

	return string(plain), nil
}

var _ domain.SessionStore = (*FileStore)(nil)
