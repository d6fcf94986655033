package export

import (
	"context"
	"fmt"
	"time"

	"github.com/dusk-indust/dreamffi/internal/graph"
)

// IndexExport is the top-level JSON snapshot of a type index.
type IndexExport struct {
	Environment string             `json:"environment"`
	ExportedAt  string             `json:"exportedAt"`
	Stats       graph.GraphStats   `json:"stats"`
	Types       []TypeExport       `json:"types"`
	Modules     []graph.ModuleNode `json:"modules,omitempty"`
}

// TypeExport describes one indexed type with its members and direct parents.
type TypeExport struct {
	Path    string             `json:"path"`
	File    string             `json:"file,omitempty"`
	Line    int                `json:"line,omitempty"`
	Parents []string           `json:"parents,omitempty"`
	Members []graph.MemberNode `json:"members,omitempty"`
}

// now is replaced in tests.
var now = time.Now

// ExportIndex snapshots store. environment labels the snapshot.
func ExportIndex(ctx context.Context, store graph.Store, environment string) (*IndexExport, error) {
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	types, err := store.QueryTypes(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	modules, err := store.GetModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("get modules: %w", err)
	}

	out := &IndexExport{
		Environment: environment,
		ExportedAt:  now().UTC().Format(time.RFC3339),
		Stats:       *stats,
		Types:       make([]TypeExport, 0, len(types)),
		Modules:     modules,
	}
	for _, t := range types {
		parents, err := store.GetHierarchy(ctx, t.Path, graph.DirectionAncestors, 1)
		if err != nil {
			return nil, fmt.Errorf("parents of %s: %w", t.Path, err)
		}
		members, err := store.GetMembers(ctx, t.Path)
		if err != nil {
			return nil, fmt.Errorf("members of %s: %w", t.Path, err)
		}
		te := TypeExport{Path: t.Path, File: t.File, Line: t.Line, Members: members}
		for _, c := range parents {
			te.Parents = append(te.Parents, c.Nodes[len(c.Nodes)-1])
		}
		out.Types = append(out.Types, te)
	}
	return out, nil
}
