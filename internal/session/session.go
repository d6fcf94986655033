// Package session holds a completed DreamMaker parse and answers read-only
// queries over it. Every query has an Export variant that serializes the
// result into the session's single export buffer.
//
// A Session is not safe for concurrent use. Callers serialize access to one
// session themselves, or go through a Registry.
package session

import (
	"context"
	"fmt"

	"github.com/dusk-indust/dreamffi/internal/dm"
)

// DiagnosticThreshold is the most severe rank returned by Diagnostics.
// Anything more severe (Error) is excluded and reported by Errors instead.
const DiagnosticThreshold = dm.SeverityWarning

// Opener produces a parse outcome from an ordered file list whose last entry
// is the environment. *dm.Loader is the production implementation.
type Opener interface {
	Open(ctx context.Context, files []string) (*dm.Outcome, error)
}

// Tree is the read-only view of a declaration tree a Session queries.
type Tree interface {
	Resolve(path string) (*dm.Type, bool)
	AllPaths() []string
}

// Diagnostic is the exported form of a front-end diagnostic with its file
// resolved to a path.
type Diagnostic struct {
	Severity dm.Severity `json:"severity"`
	File     string      `json:"file"`
	Line     int         `json:"line"`
	Column   int         `json:"column"`
	Message  string      `json:"message"`
	Notes    []string    `json:"notes,omitempty"`
}

// SpecialFiles maps every special file category to its paths. It always
// holds all three keys.
type SpecialFiles map[dm.SpecialKind][]string

// Session owns one parse. Its parsed state never changes after construction.
type Session struct {
	ctx         *dm.Context
	tree        Tree
	annotations *dm.AnnotationTree
	special     SpecialFiles

	buf    ExportBuffer
	closed bool
}

// Open parses files with opener and wraps the result. Construction failures
// are returned as *ConstructionError.
func Open(ctx context.Context, opener Opener, files []string) (*Session, error) {
	out, err := opener.Open(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return New(out), nil
}

// Parse opens files with the builtin front-end.
func Parse(ctx context.Context, files []string, opts dm.Options) (*Session, error) {
	return Open(ctx, dm.NewLoader(opts), files)
}

// New wraps an existing outcome. The session takes ownership of out.
func New(out *dm.Outcome) *Session {
	special := make(SpecialFiles, len(dm.SpecialKinds))
	for _, kind := range dm.SpecialKinds {
		special[kind] = out.SpecialFiles(kind)
	}
	annotations := out.Annotations
	if annotations == nil {
		annotations = dm.NewAnnotationTree()
	}
	return &Session{
		ctx:         out.Context,
		tree:        out.Tree,
		annotations: annotations,
		special:     special,
	}
}

// Close releases the parse and the export buffer. Queries afterwards return
// ErrClosed, as does a second Close.
func (s *Session) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.buf.Release()
	s.ctx = nil
	s.tree = nil
	s.annotations = nil
	s.special = nil
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// FileList returns every file that contributed to the parse, in the
// front-end's registration order.
func (s *Session) FileList() ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.ctx.FileList(), nil
}

// Diagnostics returns diagnostics at or below DiagnosticThreshold, in the
// order they were reported. Error-severity diagnostics are not included.
func (s *Session) Diagnostics() ([]Diagnostic, error) {
	return s.diagnostics(func(sev dm.Severity) bool {
		return !sev.MoreSevereThan(DiagnosticThreshold)
	})
}

// Errors returns the diagnostics excluded from Diagnostics.
func (s *Session) Errors() ([]Diagnostic, error) {
	return s.diagnostics(func(sev dm.Severity) bool {
		return sev.MoreSevereThan(DiagnosticThreshold)
	})
}

func (s *Session) diagnostics(keep func(dm.Severity) bool) ([]Diagnostic, error) {
	if s.closed {
		return nil, ErrClosed
	}
	out := []Diagnostic{}
	for _, d := range s.ctx.Diagnostics() {
		if !keep(d.Severity) {
			continue
		}
		out = append(out, Diagnostic{
			Severity: d.Severity,
			File:     s.ctx.FilePath(d.Location.File),
			Line:     d.Location.Line,
			Column:   d.Location.Column,
			Message:  d.Message,
			Notes:    d.Notes,
		})
	}
	return out, nil
}

// TypeList returns the path of every node in the declaration tree.
func (s *Session) TypeList() ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.tree.AllPaths(), nil
}

// TypeInfo returns a copy of the node at path. "" and "/" both return the
// root. An unknown path yields a PathNotFound *QueryError.
func (s *Session) TypeInfo(path string) (*dm.Type, error) {
	if s.closed {
		return nil, ErrClosed
	}
	t, ok := s.tree.Resolve(path)
	if !ok {
		return nil, &QueryError{Kind: PathNotFound, Path: path}
	}
	return t.Clone(), nil
}

// SpecialFiles returns the maps, scripts and skins recorded during parsing.
func (s *Session) SpecialFiles() (SpecialFiles, error) {
	if s.closed {
		return nil, ErrClosed
	}
	out := make(SpecialFiles, len(s.special))
	for kind, files := range s.special {
		out[kind] = append([]string{}, files...)
	}
	return out, nil
}

// Annotations returns the annotation tree recorded while parsing.
func (s *Session) Annotations() (*dm.AnnotationTree, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.annotations, nil
}
