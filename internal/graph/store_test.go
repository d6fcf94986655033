package graph

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sorted returns a sorted copy of the given string slice so that assertions
// are deterministic regardless of store iteration order.
func sorted(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}

// terminals returns the last node of every chain, sorted.
func terminals(chains []TypeChain) []string {
	out := make([]string, len(chains))
	for i, c := range chains {
		out[i] = c.Nodes[len(c.Nodes)-1]
	}
	sort.Strings(out)
	return out
}

// seedHierarchy writes a small object hierarchy across three files:
//
//	code/obj.dm:   /obj, /obj/item
//	code/items.dm: /obj/item/sword, /obj/item/sword/long
//	code/mob.dm:   /mob, /mob/ghost (extends /obj/item)
func seedHierarchy(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	for i, f := range []string{"code/obj.dm", "code/items.dm", "code/mob.dm"} {
		require.NoError(t, s.AddFile(ctx, FileNode{Path: f, Kind: FileKindCode, Seq: i}))
	}
	types := []TypeNode{
		{Path: "/obj", Name: "obj", File: "code/obj.dm", Line: 1},
		{Path: "/obj/item", Name: "item", File: "code/obj.dm", Line: 5},
		{Path: "/obj/item/sword", Name: "sword", File: "code/items.dm", Line: 1},
		{Path: "/obj/item/sword/long", Name: "long", File: "code/items.dm", Line: 9},
		{Path: "/mob", Name: "mob", File: "code/mob.dm", Line: 1},
		{Path: "/mob/ghost", Name: "ghost", File: "code/mob.dm", Line: 4},
	}
	for _, ty := range types {
		require.NoError(t, s.AddType(ctx, ty))
		require.NoError(t, s.AddEdge(ctx, Edge{SourceID: ty.Path, TargetID: ty.File, Kind: EdgeKindDefinedIn}))
	}
	edges := []Edge{
		{SourceID: "/obj/item", TargetID: "/obj", Kind: EdgeKindChildOf},
		{SourceID: "/obj/item/sword", TargetID: "/obj/item", Kind: EdgeKindChildOf},
		{SourceID: "/obj/item/sword/long", TargetID: "/obj/item/sword", Kind: EdgeKindChildOf},
		{SourceID: "/mob/ghost", TargetID: "/mob", Kind: EdgeKindChildOf},
		{SourceID: "/mob/ghost", TargetID: "/obj/item", Kind: EdgeKindExtends},
	}
	for _, e := range edges {
		require.NoError(t, s.AddEdge(ctx, e))
	}
}

// runStoreSuite checks the Store contract against any implementation.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("file round trip", func(t *testing.T) {
		s := newStore(t)
		want := FileNode{Path: "maps/station.dmm", Kind: FileKindMap, Seq: 4}
		require.NoError(t, s.AddFile(ctx, want))

		got, err := s.GetFile(ctx, want.Path)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, *got)

		missing, err := s.GetFile(ctx, "nope.dm")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("type round trip", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)

		got, err := s.GetType(ctx, "/obj/item/sword")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, TypeNode{Path: "/obj/item/sword", Name: "sword", File: "code/items.dm", Line: 1}, *got)

		missing, err := s.GetType(ctx, "/turf")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("query types", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)

		results, err := s.QueryTypes(ctx, "SWORD", 0)
		require.NoError(t, err)
		paths := make([]string, len(results))
		for i, r := range results {
			paths[i] = r.Path
		}
		assert.Equal(t, []string{"/obj/item/sword", "/obj/item/sword/long"}, sorted(paths))

		limited, err := s.QueryTypes(ctx, "/obj", 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		none, err := s.QueryTypes(ctx, "zzz", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("members", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)
		members := []MemberNode{
			{TypePath: "/obj", Name: "force", Kind: MemberKindVar, Declared: true, File: "code/obj.dm", Line: 2},
			{TypePath: "/obj", Name: "examine", Kind: MemberKindProc, Declared: true, File: "code/obj.dm", Line: 3},
			{TypePath: "/mob", Name: "say", Kind: MemberKindVerb, Declared: true, File: "code/mob.dm", Line: 2},
		}
		for _, m := range members {
			require.NoError(t, s.AddMember(ctx, m))
			require.NoError(t, s.AddEdge(ctx, Edge{SourceID: m.TypePath, TargetID: m.ID(), Kind: EdgeKindHasMember}))
		}

		got, err := s.GetMembers(ctx, "/obj")
		require.NoError(t, err)
		assert.Equal(t, []MemberNode{members[1], members[0]}, got, "sorted by id")
		assert.Equal(t, "/obj/proc/examine", got[0].ID())
	})

	t.Run("ancestors", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)

		chains, err := s.GetHierarchy(ctx, "/obj/item/sword/long", DirectionAncestors, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"/obj", "/obj/item", "/obj/item/sword"}, terminals(chains))
		for _, c := range chains {
			if c.Nodes[len(c.Nodes)-1] == "/obj" {
				assert.Equal(t, 3, c.Depth)
				assert.Equal(t, []string{"/obj/item/sword/long", "/obj/item/sword", "/obj/item", "/obj"}, c.Nodes)
			}
		}

		shallow, err := s.GetHierarchy(ctx, "/obj/item/sword/long", DirectionAncestors, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"/obj/item/sword"}, terminals(shallow))
	})

	t.Run("ancestors follow extends", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)

		chains, err := s.GetHierarchy(ctx, "/mob/ghost", DirectionAncestors, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"/mob", "/obj", "/obj/item"}, terminals(chains))
	})

	t.Run("descendants", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)

		chains, err := s.GetHierarchy(ctx, "/obj/item", DirectionDescendants, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"/mob/ghost", "/obj/item/sword", "/obj/item/sword/long"}, terminals(chains))

		leaf, err := s.GetHierarchy(ctx, "/obj/item/sword/long", DirectionDescendants, 10)
		require.NoError(t, err)
		assert.Empty(t, leaf)

		none, err := s.GetHierarchy(ctx, "/obj", DirectionDescendants, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("assess impact", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)

		res, err := s.AssessImpact(ctx, []string{"code/obj.dm"})
		require.NoError(t, err)
		assert.Equal(t, []string{"/obj", "/obj/item"}, sorted(res.DirectlyAffected))
		assert.Equal(t, []string{"/mob/ghost", "/obj/item/sword", "/obj/item/sword/long"}, sorted(res.TransitivelyAffected))
		assert.InDelta(t, 5.0/6.0, res.RiskScore, 1e-9)

		leaf, err := s.AssessImpact(ctx, []string{"code/mob.dm"})
		require.NoError(t, err)
		assert.Equal(t, []string{"/mob", "/mob/ghost"}, sorted(leaf.DirectlyAffected))
		assert.Empty(t, leaf.TransitivelyAffected)

		untouched, err := s.AssessImpact(ctx, []string{"nowhere.dm"})
		require.NoError(t, err)
		assert.Empty(t, untouched.DirectlyAffected)
		assert.Zero(t, untouched.RiskScore)
	})

	t.Run("modules", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)
		files := []FileNode{
			{Path: "code/obj.dm", Kind: FileKindCode, Seq: 0},
			{Path: "code/items.dm", Kind: FileKindCode, Seq: 1},
			{Path: "code/mob.dm", Kind: FileKindCode, Seq: 2},
		}

		modules, err := ComputeModules(ctx, s, files)
		require.NoError(t, err)
		require.Len(t, modules, 1)
		assert.Equal(t, "code/", modules[0].Name)
		assert.Equal(t, []string{"code/items.dm", "code/mob.dm", "code/obj.dm"}, modules[0].Members)
		assert.InDelta(t, 2.0/3.0, modules[0].CohesionScore, 1e-9)

		stored, err := s.GetModules(ctx)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, modules[0].Name, stored[0].Name)
		assert.Equal(t, modules[0].Members, sorted(stored[0].Members))
	})

	t.Run("stats", func(t *testing.T) {
		s := newStore(t)
		seedHierarchy(t, s)
		require.NoError(t, s.AddMember(ctx, MemberNode{TypePath: "/obj", Name: "force", Kind: MemberKindVar}))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, GraphStats{FileCount: 3, TypeCount: 6, MemberCount: 1, EdgeCount: 11}, *stats)

		edges, err := s.GetAllEdges(ctx)
		require.NoError(t, err)
		assert.Len(t, edges, 11)
	})
}

// ---------------------------------------------------------------------------
// MemStore
// ---------------------------------------------------------------------------

func TestMemStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		t.Helper()
		s := NewMemStore()
		require.NoError(t, s.InitSchema(context.Background()))
		return s
	})
}

func TestMemStore_AddTypeKeepsFirstPosition(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddType(ctx, TypeNode{Path: "/a", Line: 1}))
	require.NoError(t, s.AddType(ctx, TypeNode{Path: "/b"}))
	require.NoError(t, s.AddType(ctx, TypeNode{Path: "/a", Line: 2}))

	got, err := s.QueryTypes(ctx, "/", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/a", got[0].Path)
	assert.Equal(t, 2, got[0].Line)
}

// ---------------------------------------------------------------------------
// Helpers under test
// ---------------------------------------------------------------------------

func TestLongestCommonPrefix(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{nil, ""},
		{[]string{"code/a.dm"}, "code/a.dm"},
		{[]string{"code/a.dm", "code/b.dm"}, "code/"},
		{[]string{"code/mobs/a.dm", "code/mobs/sub/b.dm"}, "code/mobs/"},
		{[]string{"a.dm", "b.dm"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, longestCommonPrefix(tt.paths), "%v", tt.paths)
	}
}

func TestModuleNames(t *testing.T) {
	assert.Equal(t, "code/", moduleName([]string{"code/a.dm", "code/b.dm"}))
	assert.Equal(t, "a.dm", moduleName([]string{"a.dm", "b.dm"}))

	taken := map[string]bool{}
	assert.Equal(t, "code/", uniqueName("code/", taken))
	assert.Equal(t, "code/#2", uniqueName("code/", taken))
	assert.Equal(t, "code/#3", uniqueName("code/", taken))
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "", parentPath("/obj"))
	assert.Equal(t, "/obj", parentPath("/obj/item"))
	assert.Equal(t, "/obj/item", parentPath("/obj/item/sword"))
}
