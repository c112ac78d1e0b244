// Package session holds per-bill analysis state for the lifetime of the
// process. Mutations on one session are serialized; different sessions
// never contend.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/medbill/internal/model"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

type Stage string

const (
	StageUploaded     Stage = "uploaded"
	StageConfirmed    Stage = "confirmed"
	StageInterviewing Stage = "interviewing"
)

// Session is the mutable state tracked for one uploaded bill.
type Session struct {
	ID              string
	Stage           Stage
	Bill            model.BillRecord
	Discrepancies   []model.Discrepancy
	ChatHistory     []model.ChatMessage
	FinalAssessment *model.Assessment
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s *Session) clone() *Session {
	c := *s
	c.Bill = s.Bill.Clone()
	c.Discrepancies = slices.Clone(s.Discrepancies)
	c.ChatHistory = slices.Clone(s.ChatHistory)
	if s.FinalAssessment != nil {
		a := *s.FinalAssessment
		c.FinalAssessment = &a
	}
	return &c
}

type entry struct {
	// lock is a one-slot semaphore so waiters can give up on ctx.
	lock chan struct{}

	mu   sync.RWMutex
	sess *Session
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) release() { <-e.lock }

func (e *entry) load() *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sess
}

// Store is an in-memory session table. Readers always see the last
// committed version; Update never publishes a partial change.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Create registers a new session in the Uploaded stage and returns a copy of it.
func (s *Store) Create(bill model.BillRecord) *Session {
	now := s.now().UTC()
	sess := &Session{
		ID:            "session-" + uuid.NewString(),
		Stage:         StageUploaded,
		Bill:          bill.Clone(),
		Discrepancies: []model.Discrepancy{},
		ChatHistory:   []model.ChatMessage{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.entries[sess.ID] = &entry{lock: make(chan struct{}, 1), sess: sess}
	s.mu.Unlock()
	return sess.clone()
}

// Get returns a copy of the committed session.
func (s *Store) Get(id string) (*Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.load().clone(), nil
}

// Update runs fn on a private copy of the session while holding the
// session's lock, and commits the copy only if fn succeeds and ctx is still
// live. The lock is held across fn, so long collaborator calls made inside
// fn block other mutations of the same session.
func (s *Store) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	working := e.load().clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.now().UTC()

	e.mu.Lock()
	e.sess = working
	e.mu.Unlock()
	return working.clone(), nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
