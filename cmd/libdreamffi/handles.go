package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"unicode/utf8"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/dusk-indust/dreamffi/internal/dm"
	"github.com/dusk-indust/dreamffi/internal/session"
)

// docSlot owns the memory a document handed to the host lives in. Store
// replaces the previous document and returns a pointer to the new one;
// Release frees it.
type docSlot interface {
	Store(data []byte) unsafe.Pointer
	Release()
}

// errorDoc is the JSON shape of every error reported to the host.
type errorDoc struct {
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

const (
	kindClosed   = "Closed"
	kindInternal = "Internal"
)

// errorDocument serializes err for the host.
func errorDocument(err error) []byte {
	doc := errorDoc{Kind: kindInternal, Message: err.Error()}
	var ce *dm.ConstructionError
	var qe *session.QueryError
	switch {
	case errors.As(err, &ce):
		doc.Kind, doc.Path = string(ce.Kind), ce.Path
	case errors.As(err, &qe):
		doc.Kind, doc.Path = string(qe.Kind), qe.Path
	case errors.Is(err, session.ErrClosed):
		doc.Kind = kindClosed
	}
	data, merr := json.Marshal(doc)
	if merr != nil {
		return []byte(`{"kind":"Internal","message":"unserializable error"}`)
	}
	return data
}

// handleTable maps the integers handed to the host onto sessions. Unknown
// handles are reported, never dereferenced.
type handleTable struct {
	opener  session.Opener
	newSlot func() docSlot
	log     zerolog.Logger

	mu      sync.Mutex
	next    uintptr
	entries map[uintptr]*handleEntry
}

type handleEntry struct {
	mu      sync.Mutex
	sess    *session.Session
	doc     docSlot
	errDoc  docSlot
	lastErr unsafe.Pointer
}

func newHandleTable(opener session.Opener, newSlot func() docSlot, log zerolog.Logger) *handleTable {
	return &handleTable{
		opener:  opener,
		newSlot: newSlot,
		log:     log,
		entries: make(map[uintptr]*handleEntry),
	}
}

// open parses files and returns a new non-zero handle.
func (t *handleTable) open(ctx context.Context, files []string) (uintptr, error) {
	for _, f := range files {
		if !utf8.ValidString(f) {
			return 0, &dm.ConstructionError{Kind: dm.EncodingError, Path: f, Err: dm.ErrInvalidEncoding}
		}
	}
	sess, err := session.Open(ctx, t.opener, files)
	if err != nil {
		t.log.Debug().Err(err).Int("files", len(files)).Msg("sdmm_parse failed")
		return 0, err
	}

	t.mu.Lock()
	t.next++
	h := t.next
	t.entries[h] = &handleEntry{sess: sess, doc: t.newSlot(), errDoc: t.newSlot()}
	t.mu.Unlock()

	t.log.Debug().Uint64("handle", uint64(h)).Int("files", len(files)).Msg("session opened")
	return h, nil
}

func (t *handleTable) lookup(h uintptr) *handleEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[h]
}

// free closes the session behind h and releases every document it handed
// out. It reports whether h was known.
func (t *handleTable) free(h uintptr) bool {
	t.mu.Lock()
	e, ok := t.entries[h]
	delete(t.entries, h)
	t.mu.Unlock()
	if !ok {
		t.log.Debug().Uint64("handle", uint64(h)).Msg("free of unknown handle")
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.sess.Close()
	e.sess = nil
	e.doc.Release()
	e.errDoc.Release()
	e.lastErr = nil
	return true
}

// query runs export on the session behind h. On success the document is
// stored in the handle's slot, replacing the previous one; on failure the
// error document is recorded and nil returned.
func (t *handleTable) query(h uintptr, export func(*session.Session) ([]byte, error)) unsafe.Pointer {
	e := t.lookup(h)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil
	}

	data, err := export(e.sess)
	if err != nil {
		t.log.Debug().Err(err).Uint64("handle", uint64(h)).Msg("query failed")
		e.lastErr = e.errDoc.Store(errorDocument(err))
		return nil
	}
	return e.doc.Store(data)
}

// typeInfo is query for TypeInfo. A path that is not valid UTF-8 cannot
// name any type.
func (t *handleTable) typeInfo(h uintptr, path string) unsafe.Pointer {
	return t.query(h, func(s *session.Session) ([]byte, error) {
		if !utf8.ValidString(path) {
			return nil, &session.QueryError{Kind: session.PathNotFound, Path: path, Err: dm.ErrInvalidEncoding}
		}
		return s.ExportTypeInfo(path)
	})
}

// lastError returns the most recent error document recorded on h, or nil.
func (t *handleTable) lastError(h uintptr) unsafe.Pointer {
	e := t.lookup(h)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// len returns the number of live handles.
func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
