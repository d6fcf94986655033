package graph

import (
	"context"
	"io"
)

// Store is the interface for the type index backend.
// Implementations: KuzuStore (persistent), MemStore (in-process and tests).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddFile(ctx context.Context, node FileNode) error
	AddType(ctx context.Context, node TypeNode) error
	AddMember(ctx context.Context, node MemberNode) error
	AddModule(ctx context.Context, node ModuleNode) error
	AddEdge(ctx context.Context, edge Edge) error

	// Read operations.
	GetFile(ctx context.Context, path string) (*FileNode, error)
	GetType(ctx context.Context, path string) (*TypeNode, error)
	QueryTypes(ctx context.Context, query string, limit int) ([]TypeNode, error)
	GetMembers(ctx context.Context, typePath string) ([]MemberNode, error)

	// Graph traversal.
	GetHierarchy(ctx context.Context, typePath string, direction Direction, maxDepth int) ([]TypeChain, error)
	AssessImpact(ctx context.Context, changedFiles []string) (*ImpactResult, error)
	GetModules(ctx context.Context) ([]ModuleNode, error)
	GetAllEdges(ctx context.Context) ([]Edge, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Direction controls hierarchy traversal direction.
type Direction string

const (
	DirectionAncestors   Direction = "ancestors"   // what does this type inherit from?
	DirectionDescendants Direction = "descendants" // what inherits from this type?
)
