package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu        sync.RWMutex
	files     map[string]FileNode
	types     map[string]TypeNode
	typeOrder []string
	members   map[string]MemberNode // key: MemberNode.ID()
	edges     []Edge
	modules   []ModuleNode
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		files:   make(map[string]FileNode),
		types:   make(map[string]TypeNode),
		members: make(map[string]MemberNode),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddFile stores a file node keyed by its path.
func (m *MemStore) AddFile(_ context.Context, node FileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[node.Path] = node
	return nil
}

// AddType stores a type node keyed by its path.
func (m *MemStore) AddType(_ context.Context, node TypeNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[node.Path]; !ok {
		m.typeOrder = append(m.typeOrder, node.Path)
	}
	m.types[node.Path] = node
	return nil
}

// AddMember stores a member node keyed by its id.
func (m *MemStore) AddMember(_ context.Context, node MemberNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[node.ID()] = node
	return nil
}

// AddModule appends a module to the internal slice.
func (m *MemStore) AddModule(_ context.Context, node ModuleNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules = append(m.modules, node)
	return nil
}

// AddEdge appends an edge to the internal slice.
func (m *MemStore) AddEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

// GetFile returns the file node for the given path, or nil if not found.
func (m *MemStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// GetType returns the type node for the given path, or nil if not found.
func (m *MemStore) GetType(_ context.Context, path string) (*TypeNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[path]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// QueryTypes returns types whose path contains query (case-insensitive), in
// insertion order, up to limit results. A limit <= 0 returns all matches.
func (m *MemStore) QueryTypes(_ context.Context, query string, limit int) ([]TypeNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowerQuery := strings.ToLower(query)
	var results []TypeNode
	for _, path := range m.typeOrder {
		if strings.Contains(strings.ToLower(path), lowerQuery) {
			results = append(results, m.types[path])
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// GetMembers returns the members of typePath sorted by id.
func (m *MemStore) GetMembers(_ context.Context, typePath string) ([]MemberNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []MemberNode
	for _, mem := range m.members {
		if mem.TypePath == typePath {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// GetHierarchy performs a BFS over CHILD_OF and EXTENDS edges from typePath
// in the given direction, up to maxDepth hops. It returns one TypeChain per
// reachable type.
func (m *MemStore) GetHierarchy(_ context.Context, typePath string, direction Direction, maxDepth int) ([]TypeChain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxDepth <= 0 {
		return nil, nil
	}
	return m.hierarchy(typePath, direction, maxDepth), nil
}

// hierarchy is GetHierarchy without locking.
func (m *MemStore) hierarchy(typePath string, direction Direction, maxDepth int) []TypeChain {
	type bfsEntry struct {
		id   string
		path []string
	}

	visited := map[string]bool{typePath: true}
	queue := []bfsEntry{{id: typePath, path: []string{typePath}}}
	var chains []TypeChain

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			for _, nb := range m.neighbors(entry.id, direction) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				chains = append(chains, TypeChain{
					Nodes: newPath,
					Depth: len(newPath) - 1,
				})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}
	return chains
}

// neighbors returns types one hierarchy hop from id.
func (m *MemStore) neighbors(id string, direction Direction) []string {
	var result []string
	for _, e := range m.edges {
		if !isHierarchy(e.Kind) {
			continue
		}
		switch direction {
		case DirectionAncestors:
			// the edge points from child to parent
			if e.SourceID == id {
				result = append(result, e.TargetID)
			}
		case DirectionDescendants:
			if e.TargetID == id {
				result = append(result, e.SourceID)
			}
		}
	}
	return result
}

// AssessImpact reports the types defined in changedFiles and every type that
// inherits from them.
func (m *MemStore) AssessImpact(_ context.Context, changedFiles []string) (*ImpactResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	changedSet := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changedSet[f] = true
	}

	directSet := make(map[string]bool)
	for _, e := range m.edges {
		if e.Kind == EdgeKindDefinedIn && changedSet[e.TargetID] {
			directSet[e.SourceID] = true
		}
	}

	transitiveSet := make(map[string]bool)
	for t := range directSet {
		for _, c := range m.hierarchy(t, DirectionDescendants, len(m.types)+1) {
			last := c.Nodes[len(c.Nodes)-1]
			if !directSet[last] {
				transitiveSet[last] = true
			}
		}
	}

	return newImpactResult(directSet, transitiveSet, len(m.types)), nil
}

// GetModules returns all stored modules.
func (m *MemStore) GetModules(_ context.Context) ([]ModuleNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ModuleNode, len(m.modules))
	copy(out, m.modules)
	return out, nil
}

// GetAllEdges returns a copy of all edges in the store.
func (m *MemStore) GetAllEdges(_ context.Context) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out, nil
}

// Stats returns counts of all node and edge types in the index.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &GraphStats{
		FileCount:   len(m.files),
		TypeCount:   len(m.types),
		MemberCount: len(m.members),
		ModuleCount: len(m.modules),
		EdgeCount:   len(m.edges),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// newImpactResult builds an ImpactResult with sorted type lists.
func newImpactResult(direct, transitive map[string]bool, totalTypes int) *ImpactResult {
	res := &ImpactResult{
		DirectlyAffected:     setToSlice(direct),
		TransitivelyAffected: setToSlice(transitive),
	}
	if totalTypes > 0 {
		res.RiskScore = float64(len(direct)+len(transitive)) / float64(totalTypes)
		if res.RiskScore > 1 {
			res.RiskScore = 1
		}
	}
	return res
}

// setToSlice converts a string bool map to a sorted slice.
func setToSlice(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
