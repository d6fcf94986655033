package dm

import (
	"slices"
	"strings"
)

// Tree is the declaration tree built from parsed sources. Paths are
// slash-delimited and absolute; the root has the empty path and is also
// addressed by "/".
type Tree struct {
	root  *Type
	types map[string]*Type
	order []string
}

// Type is a node of the declaration tree.
type Type struct {
	Path       string               `json:"path"`
	Name       string               `json:"name"`
	ParentType string               `json:"parentType"`
	Location   Location             `json:"location"`
	Vars       map[string]*TypeVar  `json:"vars"`
	Procs      map[string]*TypeProc `json:"procs"`
	Children   []string             `json:"children"`
}

// TypeVar is a variable as seen on one type: its most recent value and, when
// the type declares it, the declaration.
type TypeVar struct {
	Value       VarValue        `json:"value"`
	Declaration *VarDeclaration `json:"declaration,omitempty"`
}

// VarValue holds the unevaluated expression assigned to a var.
type VarValue struct {
	Expression string   `json:"expression,omitempty"`
	Location   Location `json:"location"`
}

// VarDeclaration records a `var/...` declaration.
type VarDeclaration struct {
	Type     string   `json:"type,omitempty"`
	Flags    []string `json:"flags,omitempty"`
	Location Location `json:"location"`
}

// TypeProc is a proc or verb on one type.
type TypeProc struct {
	Declaration *ProcDeclaration `json:"declaration,omitempty"`
	Values      []ProcValue      `json:"values"`
}

// ProcDeclaration records a `proc/` or `verb/` declaration.
type ProcDeclaration struct {
	Kind     string   `json:"kind"`
	Location Location `json:"location"`
}

// ProcValue is one definition of a proc body.
type ProcValue struct {
	Parameters []string `json:"parameters"`
	Location   Location `json:"location"`
}

// NewTree returns a tree holding only the root.
func NewTree() *Tree {
	root := newType("", "")
	return &Tree{
		root:  root,
		types: map[string]*Type{"": root},
		order: []string{""},
	}
}

func newType(path, parent string) *Type {
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	return &Type{
		Path:       path,
		Name:       name,
		ParentType: parent,
		Vars:       make(map[string]*TypeVar),
		Procs:      make(map[string]*TypeProc),
		Children:   []string{},
	}
}

// Root returns the root node.
func (t *Tree) Root() *Type {
	return t.root
}

// Resolve returns the node at path. "" and "/" resolve to the root; any other
// path must match exactly.
func (t *Tree) Resolve(path string) (*Type, bool) {
	if path == "" || path == "/" {
		return t.root, true
	}
	ty, ok := t.types[path]
	return ty, ok
}

// AllPaths returns every node path, root first, in creation order.
func (t *Tree) AllPaths() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.order)
}

// Ensure returns the node at the absolute path built from segments, creating
// it and any missing ancestors. loc is recorded on nodes it creates.
func (t *Tree) Ensure(segments []string, loc Location) *Type {
	cur := t.root
	path := ""
	for _, seg := range segments {
		path += "/" + seg
		next, ok := t.types[path]
		if !ok {
			next = newType(path, cur.Path)
			next.Location = loc
			t.types[path] = next
			t.order = append(t.order, path)
			cur.Children = append(cur.Children, path)
		}
		cur = next
	}
	return cur
}

// Declares reports whether ty or a type on its parent chain declares var
// name.
func (t *Tree) Declares(ty *Type, name string) bool {
	seen := map[string]bool{}
	for cur, ok := ty, true; ok && !seen[cur.Path]; cur, ok = t.Resolve(cur.ParentType) {
		seen[cur.Path] = true
		if v, found := cur.Vars[name]; found && v.Declaration != nil {
			return true
		}
		if cur.Path == "" {
			break
		}
	}
	return false
}

// Clone returns a deep copy of the node.
func (ty *Type) Clone() *Type {
	out := *ty
	out.Vars = make(map[string]*TypeVar, len(ty.Vars))
	for name, v := range ty.Vars {
		cv := *v
		if v.Declaration != nil {
			d := *v.Declaration
			d.Flags = slices.Clone(v.Declaration.Flags)
			cv.Declaration = &d
		}
		out.Vars[name] = &cv
	}
	out.Procs = make(map[string]*TypeProc, len(ty.Procs))
	for name, p := range ty.Procs {
		cp := TypeProc{Values: make([]ProcValue, len(p.Values))}
		if p.Declaration != nil {
			d := *p.Declaration
			cp.Declaration = &d
		}
		for i, pv := range p.Values {
			cp.Values[i] = ProcValue{Parameters: slices.Clone(pv.Parameters), Location: pv.Location}
		}
		out.Procs[name] = &cp
	}
	out.Children = slices.Clone(ty.Children)
	return &out
}

// splitPath breaks a slash path into non-empty segments.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
