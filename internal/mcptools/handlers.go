package mcptools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/dusk-indust/dreamffi/internal/graph"
	"github.com/dusk-indust/dreamffi/internal/session"
)

// SessionService holds the session registry used by MCP tool handlers, plus
// a lazily built type index per session for the graph tools.
type SessionService struct {
	registry *session.Registry
	log      zerolog.Logger

	mu      sync.Mutex
	indexes map[string]*graph.MemStore
}

// NewSessionService creates a SessionService that opens sessions with opener.
func NewSessionService(opener session.Opener, log zerolog.Logger) *SessionService {
	return &SessionService{
		registry: session.NewRegistry(opener, log),
		log:      log,
		indexes:  make(map[string]*graph.MemStore),
	}
}

// Registry returns the registry backing the service.
func (s *SessionService) Registry() *session.Registry {
	return s.registry
}

// Close closes every open session.
func (s *SessionService) Close() {
	s.registry.CloseAll()
	s.mu.Lock()
	for id, store := range s.indexes {
		store.Close()
		delete(s.indexes, id)
	}
	s.mu.Unlock()
}

// ParseEnvironment parses an ordered file list and opens a session on it.
func (s *SessionService) ParseEnvironment(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ParseEnvironmentInput,
) (*mcp.CallToolResult, ParseEnvironmentOutput, error) {
	if len(input.Files) == 0 {
		return nil, ParseEnvironmentOutput{}, fmt.Errorf("files is required")
	}
	id, err := s.registry.Open(ctx, input.Files)
	if err != nil {
		return nil, ParseEnvironmentOutput{}, err
	}
	return nil, ParseEnvironmentOutput{SessionID: id}, nil
}

// CloseSession closes a session and then drops its type index, so an index
// built concurrently is either dropped here or rejected by index.
func (s *SessionService) CloseSession(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, CloseSessionOutput, error) {
	err := s.registry.Close(input.SessionID)

	s.mu.Lock()
	if store, ok := s.indexes[input.SessionID]; ok {
		store.Close()
		delete(s.indexes, input.SessionID)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, CloseSessionOutput{}, err
	}
	return nil, CloseSessionOutput{Closed: true}, nil
}

// GetFileList returns the JSON array of file paths; a file id is its index.
func (s *SessionService) GetFileList(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	return s.document(input.SessionID, (*session.Session).ExportFileList)
}

// GetDiagnostics returns the diagnostics document.
func (s *SessionService) GetDiagnostics(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	return s.document(input.SessionID, (*session.Session).ExportDiagnostics)
}

// GetTypeList returns the declared type paths document.
func (s *SessionService) GetTypeList(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	return s.document(input.SessionID, (*session.Session).ExportTypeList)
}

// GetSpecialFiles returns the categorized special files document.
func (s *SessionService) GetSpecialFiles(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	return s.document(input.SessionID, (*session.Session).ExportSpecialFiles)
}

// GetTypeInfo returns the document describing one type.
func (s *SessionService) GetTypeInfo(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input TypeInfoInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	return s.document(input.SessionID, func(sess *session.Session) ([]byte, error) {
		return sess.ExportTypeInfo(input.Path)
	})
}

func (s *SessionService) document(id string, export func(*session.Session) ([]byte, error)) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.registry.Export(id, export)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, DocumentOutput{Document: doc}, nil
}

// GetHierarchy walks the type hierarchy from a type.
func (s *SessionService) GetHierarchy(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetHierarchyInput,
) (*mcp.CallToolResult, GetHierarchyOutput, error) {
	if input.Path == "" {
		return nil, GetHierarchyOutput{}, fmt.Errorf("path is required")
	}

	direction := graph.DirectionDescendants
	if strings.EqualFold(input.Direction, string(graph.DirectionAncestors)) {
		direction = graph.DirectionAncestors
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	store, err := s.index(ctx, input.SessionID)
	if err != nil {
		return nil, GetHierarchyOutput{}, err
	}
	chains, err := store.GetHierarchy(ctx, input.Path, direction, maxDepth)
	if err != nil {
		return nil, GetHierarchyOutput{}, fmt.Errorf("get hierarchy: %w", err)
	}
	if chains == nil {
		chains = []graph.TypeChain{}
	}
	return nil, GetHierarchyOutput{Chains: chains}, nil
}

// AssessImpact lists the types touched by changing a set of files.
func (s *SessionService) AssessImpact(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AssessImpactInput,
) (*mcp.CallToolResult, AssessImpactOutput, error) {
	if len(input.ChangedFiles) == 0 {
		return nil, AssessImpactOutput{}, fmt.Errorf("changedFiles is required")
	}

	store, err := s.index(ctx, input.SessionID)
	if err != nil {
		return nil, AssessImpactOutput{}, err
	}
	impact, err := store.AssessImpact(ctx, input.ChangedFiles)
	if err != nil {
		return nil, AssessImpactOutput{}, fmt.Errorf("assess impact: %w", err)
	}
	return nil, AssessImpactOutput{Impact: *impact}, nil
}

// index returns the type index of a session, building it on first use.
func (s *SessionService) index(ctx context.Context, id string) (*graph.MemStore, error) {
	s.mu.Lock()
	store, ok := s.indexes[id]
	s.mu.Unlock()
	if ok {
		return store, nil
	}

	store = graph.NewMemStore()
	err := s.registry.Do(id, func(sess *session.Session) error {
		stats, err := graph.BuildIndex(ctx, store, sess)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		s.log.Debug().Str("session", id).Int("types", stats.TypeCount).Int("edges", stats.EdgeCount).Msg("type index built")
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.indexes[id]; ok {
		store.Close()
		return existing, nil
	}
	if !s.registry.Has(id) {
		store.Close()
		return nil, fmt.Errorf("%w: %s", session.ErrUnknownSession, id)
	}
	s.indexes[id] = store
	return store, nil
}
