package dm

// AnnotationKind classifies an annotation.
type AnnotationKind string

const (
	AnnotationTreePath   AnnotationKind = "tree_path"
	AnnotationVariable   AnnotationKind = "variable"
	AnnotationProcHeader AnnotationKind = "proc_header"
	AnnotationInclude    AnnotationKind = "include"
	AnnotationMacro      AnnotationKind = "macro_definition"
)

// Annotation marks a source position with the construct found there.
type Annotation struct {
	Location Location       `json:"location"`
	Kind     AnnotationKind `json:"kind"`
	Path     string         `json:"path,omitempty"` // owning type path or include target
	Name     string         `json:"name,omitempty"`
}

// AnnotationTree collects annotations recorded as a byproduct of parsing.
type AnnotationTree struct {
	items  []Annotation
	byLine map[lineKey][]int
}

type lineKey struct {
	file FileID
	line int
}

// NewAnnotationTree returns an empty tree.
func NewAnnotationTree() *AnnotationTree {
	return &AnnotationTree{byLine: make(map[lineKey][]int)}
}

// Add records a.
func (t *AnnotationTree) Add(a Annotation) {
	key := lineKey{file: a.Location.File, line: a.Location.Line}
	t.byLine[key] = append(t.byLine[key], len(t.items))
	t.items = append(t.items, a)
}

// Len returns the number of recorded annotations.
func (t *AnnotationTree) Len() int {
	return len(t.items)
}

// OnLine returns the annotations recorded for a file line, in insertion order.
func (t *AnnotationTree) OnLine(file FileID, line int) []Annotation {
	idx := t.byLine[lineKey{file: file, line: line}]
	out := make([]Annotation, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.items[i])
	}
	return out
}

// All returns a copy of every annotation.
func (t *AnnotationTree) All() []Annotation {
	out := make([]Annotation, len(t.items))
	copy(out, t.items)
	return out
}
