//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the leaf directory for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(dbPath string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database %s: %w", dbPath, err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS File(
		path STRING,
		kind STRING,
		seq INT64,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Type(
		path STRING,
		name STRING,
		file STRING,
		line INT64,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Member(
		id STRING,
		type_path STRING,
		name STRING,
		kind STRING,
		declared BOOLEAN,
		file STRING,
		line INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Module(
		name STRING,
		cohesion_score DOUBLE,
		PRIMARY KEY(name)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINED_IN(FROM Type TO File)`,
	`CREATE REL TABLE IF NOT EXISTS INCLUDES(FROM File TO File)`,
	`CREATE REL TABLE IF NOT EXISTS CHILD_OF(FROM Type TO Type)`,
	`CREATE REL TABLE IF NOT EXISTS EXTENDS(FROM Type TO Type)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_MEMBER(FROM Type TO Member)`,
	`CREATE REL TABLE IF NOT EXISTS BELONGS_TO(FROM File TO Module)`,
}

// relTables maps each edge kind to its relationship table and the
// endpoint keys used to enumerate it.
var relTables = []struct {
	kind  EdgeKind
	table string
	match string
}{
	{EdgeKindDefinedIn, "DEFINED_IN", "MATCH (a:Type)-[:DEFINED_IN]->(b:File) RETURN a.path, b.path"},
	{EdgeKindIncludes, "INCLUDES", "MATCH (a:File)-[:INCLUDES]->(b:File) RETURN a.path, b.path"},
	{EdgeKindChildOf, "CHILD_OF", "MATCH (a:Type)-[:CHILD_OF]->(b:Type) RETURN a.path, b.path"},
	{EdgeKindExtends, "EXTENDS", "MATCH (a:Type)-[:EXTENDS]->(b:Type) RETURN a.path, b.path"},
	{EdgeKindHasMember, "HAS_MEMBER", "MATCH (a:Type)-[:HAS_MEMBER]->(b:Member) RETURN a.path, b.id"},
	{EdgeKindBelongs, "BELONGS_TO", "MATCH (a:File)-[:BELONGS_TO]->(b:Module) RETURN a.path, b.name"},
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddFile inserts a File node.
func (s *KuzuStore) AddFile(_ context.Context, node FileNode) error {
	return s.exec(
		"CREATE (f:File {path: $path, kind: $kind, seq: $seq})",
		map[string]any{
			"path": node.Path,
			"kind": string(node.Kind),
			"seq":  int64(node.Seq),
		},
	)
}

// AddType inserts a Type node.
func (s *KuzuStore) AddType(_ context.Context, node TypeNode) error {
	return s.exec(
		"CREATE (t:Type {path: $path, name: $name, file: $file, line: $line})",
		map[string]any{
			"path": node.Path,
			"name": node.Name,
			"file": node.File,
			"line": int64(node.Line),
		},
	)
}

// AddMember inserts a Member node.
func (s *KuzuStore) AddMember(_ context.Context, node MemberNode) error {
	return s.exec(
		`CREATE (m:Member {
			id: $id,
			type_path: $tp,
			name: $name,
			kind: $kind,
			declared: $declared,
			file: $file,
			line: $line
		})`,
		map[string]any{
			"id":       node.ID(),
			"tp":       node.TypePath,
			"name":     node.Name,
			"kind":     string(node.Kind),
			"declared": node.Declared,
			"file":     node.File,
			"line":     int64(node.Line),
		},
	)
}

// AddModule inserts a Module node.
func (s *KuzuStore) AddModule(_ context.Context, node ModuleNode) error {
	return s.exec(
		"CREATE (m:Module {name: $name, cohesion_score: $score})",
		map[string]any{
			"name":  node.Name,
			"score": node.CohesionScore,
		},
	)
}

// AddEdge inserts a relationship edge between two nodes.
func (s *KuzuStore) AddEdge(_ context.Context, edge Edge) error {
	cypher, err := edgeCypher(edge.Kind)
	if err != nil {
		return err
	}
	return s.exec(cypher, map[string]any{
		"src": edge.SourceID,
		"dst": edge.TargetID,
	})
}

// edgeCypher returns the MATCH-CREATE Cypher for the given edge kind.
func edgeCypher(kind EdgeKind) (string, error) {
	switch kind {
	case EdgeKindDefinedIn:
		return `MATCH (a:Type {path: $src}), (b:File {path: $dst})
				CREATE (a)-[:DEFINED_IN]->(b)`, nil
	case EdgeKindIncludes:
		return `MATCH (a:File {path: $src}), (b:File {path: $dst})
				CREATE (a)-[:INCLUDES]->(b)`, nil
	case EdgeKindChildOf:
		return `MATCH (a:Type {path: $src}), (b:Type {path: $dst})
				CREATE (a)-[:CHILD_OF]->(b)`, nil
	case EdgeKindExtends:
		return `MATCH (a:Type {path: $src}), (b:Type {path: $dst})
				CREATE (a)-[:EXTENDS]->(b)`, nil
	case EdgeKindHasMember:
		return `MATCH (a:Type {path: $src}), (b:Member {id: $dst})
				CREATE (a)-[:HAS_MEMBER]->(b)`, nil
	case EdgeKindBelongs:
		return `MATCH (a:File {path: $src}), (b:Module {name: $dst})
				CREATE (a)-[:BELONGS_TO]->(b)`, nil
	default:
		return "", fmt.Errorf("kuzu: unsupported edge kind: %s", kind)
	}
}

// ---------- Read operations ----------

// GetFile retrieves a single File node by path, or returns nil if not found.
func (s *KuzuStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	rows, err := s.query(
		"MATCH (f:File {path: $path}) RETURN f.path, f.kind, f.seq",
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &FileNode{
		Path: toString(r[0]),
		Kind: FileKind(toString(r[1])),
		Seq:  toInt(r[2]),
	}, nil
}

// GetType retrieves a single Type node by path, or nil if not found.
func (s *KuzuStore) GetType(_ context.Context, path string) (*TypeNode, error) {
	rows, err := s.query(
		"MATCH (t:Type {path: $path}) RETURN t.path, t.name, t.file, t.line",
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToType(rows[0]), nil
}

// QueryTypes returns types whose path contains the query string.
func (s *KuzuStore) QueryTypes(_ context.Context, queryStr string, limit int) ([]TypeNode, error) {
	cypher := `MATCH (t:Type) WHERE lower(t.path) CONTAINS lower($q)
		 RETURN t.path, t.name, t.file, t.line
		 ORDER BY t.path`
	params := map[string]any{"q": queryStr}
	if limit > 0 {
		cypher += " LIMIT $lim"
		params["lim"] = int64(limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]TypeNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToType(r))
	}
	return out, nil
}

// GetMembers returns the members attached to typePath, sorted by id.
func (s *KuzuStore) GetMembers(_ context.Context, typePath string) ([]MemberNode, error) {
	rows, err := s.query(
		`MATCH (t:Type {path: $path})-[:HAS_MEMBER]->(m:Member)
		 RETURN m.type_path, m.name, m.kind, m.declared, m.file, m.line
		 ORDER BY m.id`,
		map[string]any{"path": typePath},
	)
	if err != nil {
		return nil, err
	}
	out := make([]MemberNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, MemberNode{
			TypePath: toString(r[0]),
			Name:     toString(r[1]),
			Kind:     MemberKind(toString(r[2])),
			Declared: toBool(r[3]),
			File:     toString(r[4]),
			Line:     toInt(r[5]),
		})
	}
	return out, nil
}

// ---------- Graph traversal ----------

// GetHierarchy performs a BFS over CHILD_OF and EXTENDS edges starting from
// typePath. It returns one TypeChain per reachable type.
func (s *KuzuStore) GetHierarchy(_ context.Context, typePath string, dir Direction, maxDepth int) ([]TypeChain, error) {
	if maxDepth <= 0 {
		return nil, nil
	}

	type bfsEntry struct {
		path  []string
		depth int
	}
	visited := map[string]bool{typePath: true}
	queue := []bfsEntry{{path: []string{typePath}, depth: 0}}
	var chains []TypeChain

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		tip := cur.path[len(cur.path)-1]
		neighbors, err := s.typeNeighbors(tip, dir)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			newPath := make([]string, len(cur.path)+1)
			copy(newPath, cur.path)
			newPath[len(cur.path)] = nb
			chains = append(chains, TypeChain{
				Nodes: newPath,
				Depth: cur.depth + 1,
			})
			queue = append(queue, bfsEntry{path: newPath, depth: cur.depth + 1})
		}
	}
	return chains, nil
}

// typeNeighbors returns the types one hierarchy hop away, CHILD_OF first.
func (s *KuzuStore) typeNeighbors(path string, dir Direction) ([]string, error) {
	var out []string
	for _, kind := range hierarchyKinds {
		var cypher string
		switch dir {
		case DirectionAncestors:
			cypher = fmt.Sprintf("MATCH (a:Type {path: $path})-[:%s]->(b:Type) RETURN b.path", kind)
		case DirectionDescendants:
			cypher = fmt.Sprintf("MATCH (a:Type)-[:%s]->(b:Type {path: $path}) RETURN a.path", kind)
		default:
			return nil, fmt.Errorf("kuzu: unknown direction: %s", dir)
		}
		rows, err := s.query(cypher, map[string]any{"path": path})
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, toString(r[0]))
		}
	}
	return out, nil
}

// AssessImpact reports the types defined in changedFiles and every type
// that inherits from them.
func (s *KuzuStore) AssessImpact(ctx context.Context, changedFiles []string) (*ImpactResult, error) {
	totalTypes, err := s.countTable("Type")
	if err != nil {
		return nil, err
	}

	directSet := map[string]bool{}
	for _, f := range changedFiles {
		rows, err := s.query(
			"MATCH (t:Type)-[:DEFINED_IN]->(f:File {path: $path}) RETURN t.path",
			map[string]any{"path": f},
		)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			directSet[toString(r[0])] = true
		}
	}

	transitiveSet := map[string]bool{}
	for t := range directSet {
		chains, err := s.GetHierarchy(ctx, t, DirectionDescendants, totalTypes+1)
		if err != nil {
			return nil, err
		}
		for _, c := range chains {
			last := c.Nodes[len(c.Nodes)-1]
			if !directSet[last] {
				transitiveSet[last] = true
			}
		}
	}

	return newImpactResult(directSet, transitiveSet, totalTypes), nil
}

// GetModules returns all Module nodes with their member files.
func (s *KuzuStore) GetModules(_ context.Context) ([]ModuleNode, error) {
	rows, err := s.query(
		"MATCH (m:Module) RETURN m.name, m.cohesion_score ORDER BY m.name",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]ModuleNode, 0, len(rows))
	for _, r := range rows {
		name := toString(r[0])
		memberRows, err := s.query(
			"MATCH (f:File)-[:BELONGS_TO]->(m:Module {name: $name}) RETURN f.path",
			map[string]any{"name": name},
		)
		if err != nil {
			return nil, err
		}
		members := make([]string, 0, len(memberRows))
		for _, mr := range memberRows {
			members = append(members, toString(mr[0]))
		}
		sort.Strings(members)

		out = append(out, ModuleNode{
			Name:          name,
			CohesionScore: toFloat64(r[1]),
			Members:       members,
		})
	}
	return out, nil
}

// GetAllEdges returns all edges across all relationship tables.
func (s *KuzuStore) GetAllEdges(_ context.Context) ([]Edge, error) {
	var edges []Edge
	for _, rel := range relTables {
		rows, err := s.query(rel.match, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			edges = append(edges, Edge{
				SourceID: toString(r[0]),
				TargetID: toString(r[1]),
				Kind:     rel.kind,
			})
		}
	}
	return edges, nil
}

// ---------- Stats ----------

// Stats returns counts of all node and edge tables.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	var stats GraphStats
	counts := []struct {
		table string
		dst   *int
	}{
		{"File", &stats.FileCount},
		{"Type", &stats.TypeCount},
		{"Member", &stats.MemberCount},
		{"Module", &stats.ModuleCount},
	}
	for _, c := range counts {
		n, err := s.countTable(c.table)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	edges, err := s.countEdges()
	if err != nil {
		return nil, err
	}
	stats.EdgeCount = edges
	return &stats, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	// table is one of the fixed names above, never host input.
	rows, err := s.query(fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table), nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// countEdges returns the total number of edges across all relationship tables.
func (s *KuzuStore) countEdges() (int, error) {
	total := 0
	for _, rel := range relTables {
		rows, err := s.query(fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", rel.table), nil)
		if err != nil {
			return 0, err
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			total += toInt(rows[0][0])
		}
	}
	return total, nil
}

// rowToType converts a 4-column result row into a TypeNode.
// Column order: path, name, file, line.
func rowToType(r []any) *TypeNode {
	return &TypeNode{
		Path: toString(r[0]),
		Name: toString(r[1]),
		File: toString(r[2]),
		Line: toInt(r[3]),
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
