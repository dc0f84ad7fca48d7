// Package credentials persists the session token, the only durable piece of
// client state. Absence of a token means logged out.
package credentials

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrNoToken is returned by a Backend that holds no token.
var ErrNoToken = errors.New("credentials: no token stored")

// ErrUnavailable wraps backend write failures. Callers may log it; the store
// has already degraded to the logged-out state.
var ErrUnavailable = errors.New("credentials: storage unavailable")

// Backend is the durable medium behind a Store.
type Backend interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

// Watcher is implemented by backends that can observe changes made by other
// processes. onChange is called after any external modification.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Store serialises token reads and writes and notifies subscribers after
// every durable change.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu       sync.Mutex
	degraded bool
	last     string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(token string)
}

func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend: backend,
		logger:  logger,
		subs:    map[int]func(string){},
	}
	s.last, _ = s.Get(context.Background())
	return s
}

// Get returns the stored token. Any backend failure reads as no token.
func (s *Store) Get(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx)
}

func (s *Store) getLocked(ctx context.Context) (string, bool) {
	if s.degraded {
		return "", false
	}
	token, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			s.logger.Warn("token read failed", zap.Error(err))
		}
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Set durably stores token, then notifies subscribers.
func (s *Store) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear(ctx)
	}
	s.mu.Lock()
	if err := s.backend.Save(ctx, token); err != nil {
		s.degraded = true
		changed := s.last != ""
		s.last = ""
		s.mu.Unlock()
		s.logger.Warn("token write failed; continuing logged out", zap.Error(err))
		if changed {
			s.notify("")
		}
		return errors.Join(ErrUnavailable, err)
	}
	s.degraded = false
	s.last = token
	s.mu.Unlock()

	s.notify(token)
	return nil
}

// Clear durably removes the token, then notifies subscribers.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.clearLocked(ctx)
	s.mu.Unlock()

	s.notify("")
	return err
}

// ClearIf removes the token only when it still equals expected. It reports
// whether a clear happened.
func (s *Store) ClearIf(ctx context.Context, expected string) (bool, error) {
	s.mu.Lock()
	current, ok := s.getLocked(ctx)
	if !ok || current != expected {
		s.mu.Unlock()
		return false, nil
	}
	err := s.clearLocked(ctx)
	s.mu.Unlock()

	s.notify("")
	return true, err
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.last = ""
	if err := s.backend.Remove(ctx); err != nil && !errors.Is(err, ErrNoToken) {
		s.degraded = true
		s.logger.Warn("token removal failed; continuing logged out", zap.Error(err))
		return errors.Join(ErrUnavailable, err)
	}
	s.degraded = false
	return nil
}

// Subscribe registers fn for token changes. The returned function removes it.
func (s *Store) Subscribe(fn func(token string)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(token string) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(string), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(token)
	}
}

// Watch follows external changes when the backend supports it, notifying
// subscribers whenever the durable token differs from the last one seen.
// It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, ok := s.backend.(Watcher)
	if !ok {
		<-ctx.Done()
		return nil
	}
	return watcher.Watch(ctx, func() { s.Reload(ctx) })
}

// Reload re-reads the backend and notifies subscribers if the token changed.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	token, _ := s.getLocked(ctx)
	changed := token != s.last
	s.last = token
	s.mu.Unlock()

	if changed {
		s.logger.Debug("token changed externally", zap.Bool("present", token != ""))
		s.notify(token)
	}
}
