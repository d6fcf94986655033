package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry hands out string ids for sessions and serializes every call on
// one session, so hosts that serve several clients can share it.
type Registry struct {
	opener Opener
	log    zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// NewRegistry returns an empty registry that opens sessions with opener.
func NewRegistry(opener Opener, log zerolog.Logger) *Registry {
	return &Registry{
		opener:  opener,
		log:     log,
		entries: make(map[string]*entry),
	}
}

// Open parses files and returns the new session's id.
func (r *Registry) Open(ctx context.Context, files []string) (string, error) {
	sess, err := Open(ctx, r.opener, files)
	if err != nil {
		r.log.Debug().Err(err).Strs("files", files).Msg("session construction failed")
		return "", err
	}
	id := uuid.NewString()

	r.mu.Lock()
	r.entries[id] = &entry{sess: sess}
	n := len(r.entries)
	r.mu.Unlock()

	r.log.Info().Str("session", id).Int("files", len(files)).Int("open", n).Msg("session opened")
	return id, nil
}

// Do runs fn with exclusive access to the session.
func (r *Registry) Do(id string, fn func(*Session) error) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return fn(e.sess)
}

// Export runs one of the Session.Export* methods and copies the document out
// of the export buffer before the session is unlocked.
func (r *Registry) Export(id string, export func(*Session) ([]byte, error)) (string, error) {
	var doc string
	err := r.Do(id, func(s *Session) error {
		data, err := export(s)
		if err != nil {
			return err
		}
		doc = string(data)
		return nil
	})
	return doc, err
}

// Close removes and closes the session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.sess.Close()
	e.sess = nil
	r.log.Info().Str("session", id).Msg("session closed")
	return err
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Close(id)
	}
}

// Has reports whether id names an open session.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
