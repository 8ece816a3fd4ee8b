package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contribconnect/contribconnect/internal/graph"
)

const sessionPrefix = "session!"

// SessionMessage is one turn of persisted conversation history. Only final
// user/assistant turns are kept; intermediate tool exchanges are rebuilt per
// request.
type SessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is a persisted conversation.
type Session struct {
	ID        string           `json:"sessionId"`
	Messages  []SessionMessage `json:"messages"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// SessionStore persists conversations through the shared graph store.
type SessionStore struct {
	store *graph.Store
}

// NewSessionStore creates a session store over the shared store handle.
func NewSessionStore(store *graph.Store) *SessionStore {
	return &SessionStore{store: store}
}

// Load retrieves a session, creating a fresh one (with a new uuid when id is
// empty) if absent.
func (s *SessionStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		now := time.Now().UTC()
		return &Session{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}, nil
	}

	var session Session
	err := s.store.GetJSON(ctx, sessionPrefix+id, &session)
	if errors.Is(err, graph.ErrKeyNotFound) {
		now := time.Now().UTC()
		return &Session{ID: id, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return &session, nil
}

// Save persists a session.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.PutJSON(ctx, sessionPrefix+session.ID, session); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}
