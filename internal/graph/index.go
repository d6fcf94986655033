package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/dreamffi/internal/dm"
	"github.com/dusk-indust/dreamffi/internal/session"
)

// Source is the read-only view of a parse that BuildIndex consumes.
// *session.Session satisfies it.
type Source interface {
	FileList() ([]string, error)
	TypeList() ([]string, error)
	TypeInfo(path string) (*dm.Type, error)
	SpecialFiles() (session.SpecialFiles, error)
	Annotations() (*dm.AnnotationTree, error)
}

var specialFileKinds = map[dm.SpecialKind]FileKind{
	dm.SpecialMaps:    FileKindMap,
	dm.SpecialScripts: FileKindScript,
	dm.SpecialSkins:   FileKindSkin,
}

// BuildIndex writes every file, type and member of src into store, links
// them, and groups coupled files into modules. The root type is implicit:
// top-level types have no CHILD_OF edge.
func BuildIndex(ctx context.Context, store Store, src Source) (*GraphStats, error) {
	if err := store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	files, err := src.FileList()
	if err != nil {
		return nil, err
	}
	fileNodes, err := indexFiles(ctx, store, src, files)
	if err != nil {
		return nil, err
	}
	if err := indexIncludes(ctx, store, src, files, fileNodes); err != nil {
		return nil, err
	}

	types, err := indexTypes(ctx, store, src, files)
	if err != nil {
		return nil, err
	}
	if err := linkTypes(ctx, store, types, fileNodes); err != nil {
		return nil, err
	}

	code := make([]FileNode, 0, len(files))
	for _, f := range files {
		code = append(code, fileNodes[f])
	}
	if _, err := ComputeModules(ctx, store, code); err != nil {
		return nil, fmt.Errorf("compute modules: %w", err)
	}

	return store.Stats(ctx)
}

func indexFiles(ctx context.Context, store Store, src Source, files []string) (map[string]FileNode, error) {
	nodes := make(map[string]FileNode, len(files))
	add := func(node FileNode) error {
		if _, ok := nodes[node.Path]; ok {
			return nil
		}
		nodes[node.Path] = node
		return store.AddFile(ctx, node)
	}

	for i, f := range files {
		if err := add(FileNode{Path: f, Kind: FileKindCode, Seq: i}); err != nil {
			return nil, fmt.Errorf("add file %s: %w", f, err)
		}
	}

	special, err := src.SpecialFiles()
	if err != nil {
		return nil, err
	}
	seq := len(files)
	for _, kind := range dm.SpecialKinds {
		for _, f := range special[kind] {
			if err := add(FileNode{Path: f, Kind: specialFileKinds[kind], Seq: seq}); err != nil {
				return nil, fmt.Errorf("add file %s: %w", f, err)
			}
			seq++
		}
	}
	return nodes, nil
}

func indexIncludes(ctx context.Context, store Store, src Source, files []string, nodes map[string]FileNode) error {
	annotations, err := src.Annotations()
	if err != nil {
		return err
	}
	for _, a := range annotations.All() {
		if a.Kind != dm.AnnotationInclude {
			continue
		}
		from := fileAt(files, a.Location.File)
		if _, ok := nodes[from]; !ok {
			continue
		}
		if _, ok := nodes[a.Path]; !ok {
			continue
		}
		if err := store.AddEdge(ctx, Edge{SourceID: from, TargetID: a.Path, Kind: EdgeKindIncludes}); err != nil {
			return fmt.Errorf("add include %s -> %s: %w", from, a.Path, err)
		}
	}
	return nil
}

type indexedType struct {
	*dm.Type
	file string
}

func indexTypes(ctx context.Context, store Store, src Source, files []string) ([]indexedType, error) {
	paths, err := src.TypeList()
	if err != nil {
		return nil, err
	}
	types := make([]indexedType, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := src.TypeInfo(p)
		if err != nil {
			return nil, err
		}
		node := TypeNode{
			Path: t.Path,
			Name: t.Name,
			File: fileAt(files, t.Location.File),
			Line: t.Location.Line,
		}
		if err := store.AddType(ctx, node); err != nil {
			return nil, fmt.Errorf("add type %s: %w", t.Path, err)
		}
		for _, m := range typeMembers(t, files) {
			if err := store.AddMember(ctx, m); err != nil {
				return nil, fmt.Errorf("add member %s: %w", m.ID(), err)
			}
		}
		types = append(types, indexedType{Type: t, file: node.File})
	}
	return types, nil
}

// linkTypes adds the edges between types and to their files. All nodes must
// already exist.
func linkTypes(ctx context.Context, store Store, types []indexedType, files map[string]FileNode) error {
	known := make(map[string]bool, len(types))
	for _, t := range types {
		known[t.Path] = true
	}

	for _, t := range types {
		var edges []Edge
		if _, ok := files[t.file]; ok {
			edges = append(edges, Edge{SourceID: t.Path, TargetID: t.file, Kind: EdgeKindDefinedIn})
		}
		parent := parentPath(t.Path)
		if parent != "" {
			edges = append(edges, Edge{SourceID: t.Path, TargetID: parent, Kind: EdgeKindChildOf})
		}
		if t.ParentType != parent && known[t.ParentType] {
			edges = append(edges, Edge{SourceID: t.Path, TargetID: t.ParentType, Kind: EdgeKindExtends})
		}
		for _, name := range sortedKeys(t.Vars) {
			edges = append(edges, Edge{SourceID: t.Path, TargetID: memberID(t.Path, MemberKindVar, name), Kind: EdgeKindHasMember})
		}
		for _, name := range sortedKeys(t.Procs) {
			edges = append(edges, Edge{SourceID: t.Path, TargetID: memberID(t.Path, procKind(t.Procs[name]), name), Kind: EdgeKindHasMember})
		}

		for _, e := range edges {
			if err := store.AddEdge(ctx, e); err != nil {
				return fmt.Errorf("add edge %s %s -> %s: %w", e.Kind, e.SourceID, e.TargetID, err)
			}
		}
	}
	return nil
}

func typeMembers(t *dm.Type, files []string) []MemberNode {
	var out []MemberNode
	for _, name := range sortedKeys(t.Vars) {
		v := t.Vars[name]
		loc := v.Value.Location
		if v.Declaration != nil {
			loc = v.Declaration.Location
		}
		out = append(out, MemberNode{
			TypePath: t.Path,
			Name:     name,
			Kind:     MemberKindVar,
			Declared: v.Declaration != nil,
			File:     fileAt(files, loc.File),
			Line:     loc.Line,
		})
	}
	for _, name := range sortedKeys(t.Procs) {
		p := t.Procs[name]
		var loc dm.Location
		switch {
		case p.Declaration != nil:
			loc = p.Declaration.Location
		case len(p.Values) > 0:
			loc = p.Values[0].Location
		}
		out = append(out, MemberNode{
			TypePath: t.Path,
			Name:     name,
			Kind:     procKind(p),
			Declared: p.Declaration != nil,
			File:     fileAt(files, loc.File),
			Line:     loc.Line,
		})
	}
	return out
}

// procKind is the declared kind, or proc for bare overrides.
func procKind(p *dm.TypeProc) MemberKind {
	if p.Declaration != nil && p.Declaration.Kind == string(MemberKindVerb) {
		return MemberKindVerb
	}
	return MemberKindProc
}

func fileAt(files []string, id dm.FileID) string {
	if id < 0 || int(id) >= len(files) {
		return ""
	}
	return files[id]
}

// parentPath returns the path-wise parent of a type, "" for top-level types.
func parentPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return ""
	}
	return path[:i]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
