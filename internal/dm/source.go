package dm

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// defaultWorkers bounds concurrent reads when Options.Workers is unset.
const defaultWorkers = 4

// sourceFile is a file read from disk and decoded.
type sourceFile struct {
	path string // absolute
	text string
}

// errOpen and errEncoding distinguish the two readSource failure modes so
// callers can map them onto construction errors or diagnostics.
type errOpen struct{ err error }

func (e errOpen) Error() string { return e.err.Error() }
func (e errOpen) Unwrap() error { return e.err }

type errEncoding struct{}

func (errEncoding) Error() string { return ErrInvalidEncoding.Error() }
func (errEncoding) Unwrap() error { return ErrInvalidEncoding }

// readSource reads path and returns its text with any UTF-8 byte order mark
// removed. Input that is not valid UTF-8 is rejected rather than repaired.
func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errOpen{err: err}
	}
	return decodeSource(data)
}

func decodeSource(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errEncoding{}
	}
	out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return "", errEncoding{}
	}
	return string(out), nil
}

// loadSources reads every path concurrently. The environment is the last
// path. When several files fail, the failure reported is the first one in
// list order so that repeated runs report the same error.
func loadSources(ctx context.Context, paths, absPaths []string, workers int) ([]sourceFile, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	out := make([]sourceFile, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			text, err := readSource(absPaths[i])
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i] = sourceFile{path: absPaths[i], text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	envIdx := len(paths) - 1
	for i, err := range errs {
		if err == nil {
			continue
		}
		return nil, classifyLoadError(paths[i], i == envIdx, err)
	}
	return out, nil
}

func classifyLoadError(path string, isEnv bool, err error) *ConstructionError {
	if _, ok := err.(errEncoding); ok {
		return &ConstructionError{Kind: EncodingError, Path: path, Err: ErrInvalidEncoding}
	}
	if oe, ok := err.(errOpen); ok {
		err = oe.err
	}
	if isEnv {
		return &ConstructionError{Kind: EnvironmentLoadFailed, Path: path, Err: err}
	}
	return &ConstructionError{Kind: FileOpenFailed, Path: path, Err: err}
}
