package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/dreamffi/internal/graph"
)

func seedStore(t *testing.T) *graph.MemStore {
	t.Helper()
	ctx := context.Background()
	s := graph.NewMemStore()

	require.NoError(t, s.AddFile(ctx, graph.FileNode{Path: "code/objects.dm", Kind: graph.FileKindCode}))
	require.NoError(t, s.AddFile(ctx, graph.FileNode{Path: "code/mobs.dm", Kind: graph.FileKindCode, Seq: 1}))
	for _, ty := range []graph.TypeNode{
		{Path: "/obj", Name: "obj", File: "code/objects.dm", Line: 1},
		{Path: "/obj/item", Name: "item", File: "code/objects.dm", Line: 4},
		{Path: "/mob", Name: "mob", File: "code/mobs.dm", Line: 1},
		{Path: "/datum/ghost", Name: "ghost", File: "code/mobs.dm", Line: 9},
	} {
		require.NoError(t, s.AddType(ctx, ty))
	}
	require.NoError(t, s.AddMember(ctx, graph.MemberNode{TypePath: "/obj", Name: "force", Kind: graph.MemberKindVar, Declared: true}))
	require.NoError(t, s.AddEdge(ctx, graph.Edge{SourceID: "/obj/item", TargetID: "/obj", Kind: graph.EdgeKindChildOf}))
	require.NoError(t, s.AddEdge(ctx, graph.Edge{SourceID: "/datum/ghost", TargetID: "/mob", Kind: graph.EdgeKindExtends}))
	require.NoError(t, s.AddEdge(ctx, graph.Edge{SourceID: "/obj", TargetID: "code/objects.dm", Kind: graph.EdgeKindDefinedIn}))
	return s
}

func TestGenerateMermaid(t *testing.T) {
	out, err := GenerateMermaid(context.Background(), seedStore(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "graph TD", lines[0])

	assert.Contains(t, out, `subgraph N0["code/mobs.dm"]`)
	assert.Contains(t, out, `N1["/datum/ghost"]`)
	assert.Contains(t, out, `N2["/mob"]`)
	assert.Contains(t, out, `subgraph N3["code/objects.dm"]`)
	assert.Contains(t, out, `N4["/obj"]`)
	assert.Contains(t, out, `N5["/obj/item"]`)
	assert.Contains(t, out, "  N5 --> N4\n")
	assert.Contains(t, out, "  N1 -.-> N2\n")
	assert.Equal(t, 2, strings.Count(out, "  end\n"))
	assert.Len(t, lines, 11, "DEFINED_IN edges are not drawn")
}

func TestGenerateMermaid_Empty(t *testing.T) {
	out, err := GenerateMermaid(context.Background(), graph.NewMemStore())
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n", out)
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "a.dm", shortPath("a.dm"))
	assert.Equal(t, "code/a.dm", shortPath("code/a.dm"))
	assert.Equal(t, "mobs/a.dm", shortPath("code/mobs/a.dm"))
}

func TestExportIndex(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	out, err := ExportIndex(context.Background(), seedStore(t), "environment.dme")
	require.NoError(t, err)

	assert.Equal(t, "environment.dme", out.Environment)
	assert.Equal(t, "2026-01-02T03:04:05Z", out.ExportedAt)
	assert.Equal(t, 4, out.Stats.TypeCount)
	require.Len(t, out.Types, 4)

	byPath := make(map[string]TypeExport)
	for _, te := range out.Types {
		byPath[te.Path] = te
	}
	assert.Equal(t, []string{"/obj"}, byPath["/obj/item"].Parents)
	assert.Equal(t, []string{"/mob"}, byPath["/datum/ghost"].Parents)
	assert.Empty(t, byPath["/obj"].Parents)
	require.Len(t, byPath["/obj"].Members, 1)
	assert.Equal(t, "force", byPath["/obj"].Members[0].Name)
}
