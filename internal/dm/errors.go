package dm

import (
	"errors"
	"fmt"
)

// ErrNoEnvironment is wrapped when Open is given an empty file list.
var ErrNoEnvironment = errors.New("no environment file given")

// ErrInvalidEncoding is wrapped by EncodingError construction failures.
var ErrInvalidEncoding = errors.New("file is not valid UTF-8")

// ConstructionErrorKind classifies why a parse could not be constructed.
type ConstructionErrorKind string

const (
	EnvironmentLoadFailed ConstructionErrorKind = "EnvironmentLoadFailed"
	FileOpenFailed        ConstructionErrorKind = "FileOpenFailed"
	EncodingError         ConstructionErrorKind = "EncodingError"
)

// ConstructionError is returned by Open when the file list cannot be loaded.
type ConstructionError struct {
	Kind ConstructionErrorKind
	Path string
	Err  error
}

func (e *ConstructionError) Error() string {
	switch {
	case e.Path == "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// IsConstructionError reports whether err is a ConstructionError of the given kind.
func IsConstructionError(err error, kind ConstructionErrorKind) bool {
	var ce *ConstructionError
	return errors.As(err, &ce) && ce.Kind == kind
}
