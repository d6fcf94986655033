package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ComputeModules finds groups of files coupled through the type hierarchy
// and stores them as ModuleNodes.
//
// Two files are coupled when a type defined in one has a CHILD_OF or EXTENDS
// edge to a type defined in the other. Every connected component of two or
// more files becomes a module named after the files' common directory.
func ComputeModules(ctx context.Context, store Store, files []FileNode) ([]ModuleNode, error) {
	adj, err := buildAdjacency(ctx, store, files)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(files))
	names := make(map[string]bool)
	var modules []ModuleNode

	for _, f := range files {
		if visited[f.Path] {
			continue
		}
		component := bfsComponent(f.Path, adj, visited)
		if len(component) < 2 {
			continue
		}
		sort.Strings(component)

		module := ModuleNode{
			Name:          uniqueName(moduleName(component), names),
			CohesionScore: computeCohesion(component, adj),
			Members:       component,
		}
		if err := store.AddModule(ctx, module); err != nil {
			return nil, err
		}
		for _, member := range component {
			edge := Edge{SourceID: member, TargetID: module.Name, Kind: EdgeKindBelongs}
			if err := store.AddEdge(ctx, edge); err != nil {
				return nil, err
			}
		}
		modules = append(modules, module)
	}

	return modules, nil
}

// buildAdjacency constructs a bidirectional file adjacency list from the
// hierarchy edges in a single pass over all edges.
func buildAdjacency(ctx context.Context, store Store, files []FileNode) (map[string]map[string]bool, error) {
	adj := make(map[string]map[string]bool, len(files))
	for _, f := range files {
		adj[f.Path] = make(map[string]bool)
	}

	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("get edges: %w", err)
	}

	definedIn := make(map[string]string)
	for _, e := range edges {
		if e.Kind == EdgeKindDefinedIn {
			definedIn[e.SourceID] = e.TargetID
		}
	}
	for _, e := range edges {
		if !isHierarchy(e.Kind) {
			continue
		}
		a, b := definedIn[e.SourceID], definedIn[e.TargetID]
		if a == b || adj[a] == nil || adj[b] == nil {
			continue
		}
		adj[a][b] = true
		adj[b][a] = true
	}

	return adj, nil
}

// bfsComponent performs BFS from start on the adjacency list and returns
// all reachable nodes. It marks visited nodes as it goes.
func bfsComponent(start string, adj map[string]map[string]bool, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	return component
}

// computeCohesion returns the density of a component: coupled file pairs
// over all possible pairs.
func computeCohesion(component []string, adj map[string]map[string]bool) float64 {
	n := len(component)
	if n < 2 {
		return 0
	}
	pairs := 0
	for i, a := range component {
		for _, b := range component[i+1:] {
			if adj[a][b] {
				pairs++
			}
		}
	}
	return float64(pairs) / float64(n*(n-1)/2)
}

// moduleName is the common directory of paths, or the first path when they
// share none.
func moduleName(paths []string) string {
	if prefix := longestCommonPrefix(paths); prefix != "" && prefix != "/" {
		return prefix
	}
	return paths[0]
}

func uniqueName(name string, taken map[string]bool) string {
	candidate := name
	for i := 2; taken[candidate]; i++ {
		candidate = fmt.Sprintf("%s#%d", name, i)
	}
	taken[candidate] = true
	return candidate
}

// longestCommonPrefix finds the longest common directory prefix among a set
// of slash paths, keeping the trailing slash. Returns "" if there is none.
func longestCommonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	if len(paths) == 1 {
		return paths[0]
	}

	prefix := paths[0]
	for _, p := range paths[1:] {
		for !strings.HasPrefix(p, prefix) {
			trimmed := strings.TrimRight(prefix, "/")
			idx := strings.LastIndex(trimmed, "/")
			if idx < 0 {
				return ""
			}
			prefix = trimmed[:idx+1]
			if prefix == "/" || prefix == "" {
				return prefix
			}
		}
	}

	if !strings.HasSuffix(prefix, "/") {
		idx := strings.LastIndex(prefix, "/")
		if idx < 0 {
			return ""
		}
		prefix = prefix[:idx+1]
	}

	return prefix
}
