package dm

import (
	"slices"
	"strings"
)

type scopeKind int

const (
	scopeType scopeKind = iota
	scopeVarBlock
	scopeProcBlock
	scopeProcBody
)

type scope struct {
	depth    int
	kind     scopeKind
	typ      *Type
	procKind string   // scopeProcBlock
	prefix   []string // scopeVarBlock flags and type segments
}

// varFlags are the modifiers accepted between var/ and the declared type.
var varFlags = []string{"const", "static", "global", "tmp", "final"}

// treeBuilder assembles the declaration tree from indented statements.
type treeBuilder struct {
	ctx         *Context
	tree        *Tree
	annotations *AnnotationTree
	scopes      []scope
}

func buildTree(ctx *Context, annotations *AnnotationTree, lines []indentedLine) *Tree {
	b := &treeBuilder{ctx: ctx, tree: NewTree(), annotations: annotations}
	for _, ln := range lines {
		b.line(ln)
	}
	b.checkOverrides()
	return b.tree
}

// builtinVars are declared by the engine on every datum and atom.
var builtinVars = map[string]bool{
	"type": true, "parent_type": true, "tag": true, "vars": true,
	"name": true, "desc": true, "icon": true, "icon_state": true,
	"density": true, "opacity": true, "layer": true, "plane": true,
	"loc": true, "x": true, "y": true, "z": true, "dir": true,
	"invisibility": true, "luminosity": true, "mouse_opacity": true,
	"suffix": true, "text": true, "verbs": true, "contents": true,
	"overlays": true, "underlays": true, "alpha": true, "color": true,
	"pixel_x": true, "pixel_y": true, "appearance_flags": true,
	"animate_movement": true, "step_size": true, "glide_size": true,
	"bound_width": true, "bound_height": true, "gender": true,
	"key": true, "ckey": true, "client": true, "sight": true,
	"see_invisible": true,
}

// checkOverrides reports var overrides that no type in the parent chain
// declares.
func (b *treeBuilder) checkOverrides() {
	for _, path := range b.tree.order {
		t := b.tree.types[path]
		names := make([]string, 0, len(t.Vars))
		for name, v := range t.Vars {
			if v.Declaration == nil && !builtinVars[name] {
				names = append(names, name)
			}
		}
		slices.Sort(names)
		for _, name := range names {
			if !b.tree.Declares(t, name) {
				b.ctx.Infof(t.Vars[name].Value.Location, "override of undeclared var %s on %s", name, typeLabel(t))
			}
		}
	}
}

func (b *treeBuilder) line(ln indentedLine) {
	for len(b.scopes) > 0 && b.scopes[len(b.scopes)-1].depth >= ln.depth {
		b.scopes = b.scopes[:len(b.scopes)-1]
	}

	cur := scope{depth: -1, kind: scopeType, typ: b.tree.Root()}
	if len(b.scopes) > 0 {
		cur = b.scopes[len(b.scopes)-1]
	}

	switch cur.kind {
	case scopeProcBody:
		return
	case scopeVarBlock:
		b.varBlockLine(cur, ln)
		return
	case scopeProcBlock:
		b.procBlockLine(cur, ln)
		return
	}

	base := cur.typ
	if strings.HasPrefix(ln.text, "/") {
		base = b.tree.Root()
	}
	b.statement(base, ln)
}

func (b *treeBuilder) push(s scope) {
	b.scopes = append(b.scopes, s)
}

func (b *treeBuilder) statement(base *Type, ln indentedLine) {
	lhs, rhs, hasValue := splitAssignment(ln.text)
	if i := strings.IndexByte(lhs, '('); i >= 0 {
		b.procHeader(base, ln, lhs[:i], lhs[i:], "")
		return
	}

	segs := splitPath(lhs)
	if len(segs) == 0 {
		return
	}

	if k := slices.Index(segs, "var"); k >= 0 {
		owner := b.ensure(base, segs[:k], ln.loc)
		rest := segs[k+1:]
		if len(rest) == 0 {
			if hasValue {
				b.ctx.Errorf(ln.loc, "var declaration without a name")
				return
			}
			b.push(scope{depth: ln.depth, kind: scopeVarBlock, typ: owner})
			return
		}
		b.declareVar(owner, rest, rhs, hasValue, ln.loc)
		return
	}

	last := segs[len(segs)-1]
	if (last == "proc" || last == "verb") && !hasValue {
		owner := b.ensure(base, segs[:len(segs)-1], ln.loc)
		b.push(scope{depth: ln.depth, kind: scopeProcBlock, typ: owner, procKind: last})
		return
	}

	if hasValue {
		owner := b.ensure(base, segs[:len(segs)-1], ln.loc)
		b.overrideVar(owner, last, rhs, ln.loc)
		return
	}

	t := b.ensure(base, segs, ln.loc)
	b.annotations.Add(Annotation{Location: ln.loc, Kind: AnnotationTreePath, Path: t.Path})
	b.push(scope{depth: ln.depth, kind: scopeType, typ: t})
}

func (b *treeBuilder) varBlockLine(cur scope, ln indentedLine) {
	lhs, rhs, hasValue := splitAssignment(ln.text)
	if strings.ContainsRune(lhs, '(') {
		b.ctx.Warnf(ln.loc, "unexpected proc definition inside var block")
		b.push(scope{depth: ln.depth, kind: scopeProcBody})
		return
	}
	segs := splitPath(lhs)
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 && !hasValue && slices.Contains(varFlags, segs[0]) {
		prefix := append(slices.Clone(cur.prefix), segs[0])
		b.push(scope{depth: ln.depth, kind: scopeVarBlock, typ: cur.typ, prefix: prefix})
		return
	}
	b.declareVar(cur.typ, append(slices.Clone(cur.prefix), segs...), rhs, hasValue, ln.loc)
}

func (b *treeBuilder) procBlockLine(cur scope, ln indentedLine) {
	lhs, _, _ := splitAssignment(ln.text)
	i := strings.IndexByte(lhs, '(')
	if i < 0 {
		b.ctx.Warnf(ln.loc, "expected %s definition", cur.procKind)
		return
	}
	b.procHeader(cur.typ, ln, lhs[:i], lhs[i:], cur.procKind)
}

// procHeader handles `[path/][proc|verb/]name(params)`.
func (b *treeBuilder) procHeader(base *Type, ln indentedLine, pathPart, paramPart, kind string) {
	segs := splitPath(pathPart)
	if len(segs) == 0 {
		b.ctx.Errorf(ln.loc, "proc definition without a name")
		b.push(scope{depth: ln.depth, kind: scopeProcBody})
		return
	}
	name := segs[len(segs)-1]
	ownerSegs := segs[:len(segs)-1]
	if n := len(ownerSegs); n > 0 && (ownerSegs[n-1] == "proc" || ownerSegs[n-1] == "verb") {
		kind = ownerSegs[n-1]
		ownerSegs = ownerSegs[:n-1]
	}
	owner := b.ensure(base, ownerSegs, ln.loc)

	proc, ok := owner.Procs[name]
	if !ok {
		proc = &TypeProc{Values: []ProcValue{}}
		owner.Procs[name] = proc
	}
	if kind != "" {
		if proc.Declaration != nil {
			b.ctx.Warnf(ln.loc, "%s %s redeclared on %s", kind, name, typeLabel(owner))
		} else {
			proc.Declaration = &ProcDeclaration{Kind: kind, Location: ln.loc}
		}
	}
	proc.Values = append(proc.Values, ProcValue{Parameters: splitParams(paramPart), Location: ln.loc})

	b.annotations.Add(Annotation{Location: ln.loc, Kind: AnnotationProcHeader, Path: owner.Path, Name: name})
	b.push(scope{depth: ln.depth, kind: scopeProcBody})
}

// declareVar handles the segments following `var/`: flags, type path, name.
func (b *treeBuilder) declareVar(owner *Type, rest []string, rhs string, hasValue bool, loc Location) {
	var flags []string
	for len(rest) > 1 && slices.Contains(varFlags, rest[0]) {
		flags = append(flags, rest[0])
		rest = rest[1:]
	}
	name := rest[len(rest)-1]
	typePath := ""
	if len(rest) > 1 {
		typePath = "/" + strings.Join(rest[:len(rest)-1], "/")
	}

	v, ok := owner.Vars[name]
	if !ok {
		v = &TypeVar{}
		owner.Vars[name] = v
	}
	if v.Declaration != nil {
		b.ctx.Warnf(loc, "var %s redeclared on %s", name, typeLabel(owner))
	} else {
		v.Declaration = &VarDeclaration{Type: typePath, Flags: flags, Location: loc}
	}
	v.Value = VarValue{Location: loc}
	if hasValue {
		v.Value.Expression = rhs
	}

	b.annotations.Add(Annotation{Location: loc, Kind: AnnotationVariable, Path: owner.Path, Name: name})
}

func (b *treeBuilder) overrideVar(owner *Type, name, rhs string, loc Location) {
	if name == "parent_type" {
		owner.ParentType = normalizeTypePath(rhs)
	}
	v, ok := owner.Vars[name]
	if !ok {
		v = &TypeVar{}
		owner.Vars[name] = v
	}
	v.Value = VarValue{Expression: rhs, Location: loc}
	b.annotations.Add(Annotation{Location: loc, Kind: AnnotationVariable, Path: owner.Path, Name: name})
}

// ensure resolves segs relative to base, creating missing nodes.
func (b *treeBuilder) ensure(base *Type, segs []string, loc Location) *Type {
	if len(segs) == 0 {
		return base
	}
	full := append(splitPath(base.Path), segs...)
	return b.tree.Ensure(full, loc)
}

func typeLabel(t *Type) string {
	if t.Path == "" {
		return "/"
	}
	return t.Path
}

func normalizeTypePath(expr string) string {
	segs := splitPath(strings.TrimSpace(expr))
	if len(segs) == 0 {
		return ""
	}
	return "/" + strings.Join(segs, "/")
}

// splitAssignment splits a statement at its first top-level '='. Comparison
// operators and '=' inside strings or brackets are ignored.
func splitAssignment(text string) (lhs, rhs string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(text) && text[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("!<>+-*/|&^%", text[i-1]) >= 0 {
				continue
			}
			return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:]), true
		}
	}
	return strings.TrimSpace(text), "", false
}

// splitParams splits "(a, b = f(1, 2))" into its top-level parameters.
func splitParams(part string) []string {
	inner := strings.TrimPrefix(strings.TrimSpace(part), "(")
	if i := strings.LastIndexByte(inner, ')'); i >= 0 {
		inner = inner[:i]
	}

	params := []string{}
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				if p := strings.TrimSpace(inner[start:i]); p != "" {
					params = append(params, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(inner[start:]); p != "" {
		params = append(params, p)
	}
	return params
}
