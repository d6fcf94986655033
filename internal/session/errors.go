package session

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/dreamffi/internal/dm"
)

// ErrClosed is returned by every query on a session after Close.
var ErrClosed = errors.New("session: closed")

// ErrUnknownSession is returned by Registry lookups for ids it does not hold.
var ErrUnknownSession = errors.New("session: unknown session")

// ConstructionError is the front-end's construction failure, surfaced
// unchanged by Open.
type ConstructionError = dm.ConstructionError

// QueryErrorKind classifies a failed query.
type QueryErrorKind string

const (
	PathNotFound        QueryErrorKind = "PathNotFound"
	SerializationFailed QueryErrorKind = "SerializationFailed"
)

// QueryError reports a query that could not produce a result. The session
// stays usable after any QueryError.
type QueryError struct {
	Kind QueryErrorKind
	Path string
	Err  error
}

func (e *QueryError) Error() string {
	switch {
	case e.Kind == PathNotFound && e.Err != nil:
		return fmt.Sprintf("%s: %q: %v", e.Kind, e.Path, e.Err)
	case e.Kind == PathNotFound:
		return fmt.Sprintf("%s: %q", e.Kind, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError reports whether err is a QueryError of the given kind.
func IsQueryError(err error, kind QueryErrorKind) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Kind == kind
}
