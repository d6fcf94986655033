// Package dm is a DreamMaker front-end: it preprocesses an environment and
// its included files, resolves indentation, and builds a declaration tree,
// recording diagnostics and annotations along the way.
package dm

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Options tunes Open.
type Options struct {
	// Defines are applied on top of the builtin macros.
	Defines map[string]string
	// Workers bounds concurrent reads of the listed files.
	Workers int
	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger
}

// Outcome is everything Open produces for one environment.
type Outcome struct {
	Context     *Context
	Tree        *Tree
	Annotations *AnnotationTree
	Special     map[SpecialKind][]string
}

// SpecialFiles returns the paths recorded for kind, never nil.
func (o *Outcome) SpecialFiles(kind SpecialKind) []string {
	files := o.Special[kind]
	out := make([]string, len(files))
	copy(out, files)
	return out
}

// Open parses files. The last entry is the environment; the others are
// pushed on top of it in reverse so that files[0] is read first. Failures to
// read any listed file abort with a *ConstructionError. Problems inside the
// sources, including unreadable #include targets, become diagnostics.
func Open(ctx context.Context, files []string, opts Options) (*Outcome, error) {
	if len(files) == 0 {
		return nil, &ConstructionError{Kind: EnvironmentLoadFailed, Err: ErrNoEnvironment}
	}
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	envIdx := len(files) - 1
	absPaths := make([]string, len(files))
	for i, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, classifyLoadError(f, i == envIdx, err)
		}
		absPaths[i] = filepath.Clean(abs)
	}

	sources, err := loadSources(ctx, files, absPaths, opts.Workers)
	if err != nil {
		return nil, err
	}

	dmctx := NewContext()
	annotations := NewAnnotationTree()
	pp := newPreprocessor(dmctx, annotations, sources[envIdx], opts.Defines)
	for i := envIdx - 1; i >= 0; i-- {
		pp.pushFile(sources[i].path, sources[i].text)
	}

	lines := pp.run()
	indented := resolveIndentation(dmctx, lines)
	tree := buildTree(dmctx, annotations, indented)

	counts := dmctx.CountBySeverity()
	log.Debug().
		Str("environment", files[envIdx]).
		Int("files", len(dmctx.FileList())).
		Int("types", tree.Len()).
		Int("errors", counts[SeverityError]).
		Int("warnings", counts[SeverityWarning]).
		Msg("parsed environment")

	return &Outcome{
		Context:     dmctx,
		Tree:        tree,
		Annotations: annotations,
		Special:     pp.special,
	}, nil
}

// Loader binds Options to Open.
type Loader struct {
	opts Options
}

// NewLoader returns a Loader that opens environments with opts.
func NewLoader(opts Options) *Loader {
	return &Loader{opts: opts}
}

// Open parses files with the loader's options.
func (l *Loader) Open(ctx context.Context, files []string) (*Outcome, error) {
	return Open(ctx, files, l.opts)
}
