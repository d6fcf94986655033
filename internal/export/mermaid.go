package export

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/dreamffi/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram of the type hierarchy
// in a store. Types are grouped by defining file; CHILD_OF edges become solid
// arrows and EXTENDS edges dotted ones, both pointing at the parent.
func GenerateMermaid(ctx context.Context, store graph.Store) (string, error) {
	types, err := store.QueryTypes(ctx, "", 0)
	if err != nil {
		return "", fmt.Errorf("list types: %w", err)
	}

	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return "", fmt.Errorf("get edges: %w", err)
	}

	// Mermaid ids must be alphanumeric.
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	byFile := make(map[string][]string)
	for _, t := range types {
		byFile[t.File] = append(byFile[t.File], t.Path)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, f := range files {
		paths := byFile[f]
		sort.Strings(paths)
		if f == "" {
			for _, p := range paths {
				sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", getID(p), p))
			}
			continue
		}
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID("file:"+f), shortPath(f)))
		for _, p := range paths {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(p), p))
		}
		sb.WriteString("  end\n")
	}

	for _, e := range edges {
		var arrow string
		switch e.Kind {
		case graph.EdgeKindChildOf:
			arrow = "-->"
		case graph.EdgeKindExtends:
			arrow = "-.->"
		default:
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", getID(e.SourceID), arrow, getID(e.TargetID)))
	}

	return sb.String(), nil
}

// shortPath returns the last 2 path segments for readability.
func shortPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
