package dm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fixtureEnv returns the path to the dm_project fixture environment. Tests
// run from internal/dm/, so the relative path is ../../testdata/fixtures.
func fixtureEnv(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("../../testdata/fixtures/dm_project/environment.dme")
	require.NoError(t, err)
	return abs
}

// writeProject writes files into a temp directory and returns its path.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// openProject writes files and opens env (relative to the project) with the
// given pushed files placed before it.
func openProject(t *testing.T, files map[string]string, list ...string) *Outcome {
	t.Helper()
	dir := writeProject(t, files)
	paths := make([]string, len(list))
	for i, name := range list {
		paths[i] = filepath.Join(dir, name)
	}
	out, err := Open(context.Background(), paths, Options{})
	require.NoError(t, err)
	return out
}

func messages(diags []Diagnostic, sev Severity) []string {
	var out []string
	for _, d := range diags {
		if d.Severity == sev {
			out = append(out, d.Message)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

func TestOpen_Fixture(t *testing.T) {
	out, err := Open(context.Background(), []string{fixtureEnv(t)}, Options{Workers: 2})
	require.NoError(t, err)

	t.Run("file list", func(t *testing.T) {
		assert.Equal(t, []string{
			"environment.dme",
			"code/_defines.dm",
			"code/objects.dm",
			"code/mobs.dm",
		}, out.Context.FileList())
	})

	t.Run("special files", func(t *testing.T) {
		assert.Equal(t, []string{"maps/station.dmm"}, out.SpecialFiles(SpecialMaps))
		assert.Equal(t, []string{"scripts/startup.dms"}, out.SpecialFiles(SpecialScripts))
		assert.Equal(t, []string{"interface/skin.dmf"}, out.SpecialFiles(SpecialSkins))
	})

	t.Run("type paths", func(t *testing.T) {
		assert.Equal(t, []string{
			"",
			"/obj",
			"/obj/item",
			"/obj/item/sword",
			"/mob",
			"/mob/living",
			"/datum",
			"/datum/ghost",
		}, out.Tree.AllPaths())
	})

	t.Run("diagnostics", func(t *testing.T) {
		diags := out.Context.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, SeverityWarning, diags[0].Severity)
		assert.Equal(t, "#warn legacy defines are still in use", diags[0].Message)
		assert.Equal(t, "code/_defines.dm", out.Context.FilePath(diags[0].Location.File))
		assert.Equal(t, 3, diags[0].Location.Line)
	})

	t.Run("item vars use expanded macros", func(t *testing.T) {
		item, ok := out.Tree.Resolve("/obj/item")
		require.True(t, ok)

		wClass := item.Vars["w_class"]
		require.NotNil(t, wClass)
		require.NotNil(t, wClass.Declaration)
		assert.Equal(t, "2", wClass.Value.Expression)

		force := item.Vars["force"]
		require.NotNil(t, force)
		assert.Nil(t, force.Declaration, "force is declared on /obj, only overridden here")
		assert.Equal(t, "10", force.Value.Expression)

		examine := item.Procs["examine"]
		require.NotNil(t, examine)
		require.NotNil(t, examine.Declaration)
		assert.Equal(t, "proc", examine.Declaration.Kind)
		require.Len(t, examine.Values, 1)
		assert.Equal(t, []string{"mob/user", "verbose = FALSE"}, examine.Values[0].Parameters)
	})

	t.Run("nested child type", func(t *testing.T) {
		sword, ok := out.Tree.Resolve("/obj/item/sword")
		require.True(t, ok)
		assert.Equal(t, "sword", sword.Name)
		assert.Equal(t, "/obj/item", sword.ParentType)
		assert.Equal(t, `"sword"`, sword.Vars["name"].Value.Expression)
		assert.Equal(t, "15", sword.Vars["force"].Value.Expression)
		require.Contains(t, sword.Procs, "sharpen")
		assert.Equal(t, []string{"amount"}, sword.Procs["sharpen"].Values[0].Parameters)
		assert.NotContains(t, sword.Vars, "force += amount")
	})

	t.Run("verbs, flags and multi-line values", func(t *testing.T) {
		mob, ok := out.Tree.Resolve("/mob")
		require.True(t, ok)
		assert.Equal(t, "verb", mob.Procs["say"].Declaration.Kind)
		assert.Equal(t, []string{"const"}, mob.Vars["max_health"].Declaration.Flags)

		living, ok := out.Tree.Resolve("/mob/living")
		require.True(t, ok)
		organs := living.Vars["organs"]
		require.NotNil(t, organs)
		assert.Equal(t, "/list", organs.Declaration.Type)
		assert.Equal(t, `list( "heart", "lungs")`, organs.Value.Expression)
	})

	t.Run("parent_type override", func(t *testing.T) {
		ghost, ok := out.Tree.Resolve("/datum/ghost")
		require.True(t, ok)
		assert.Equal(t, "/mob", ghost.ParentType)
	})

	t.Run("annotations retained", func(t *testing.T) {
		assert.Greater(t, out.Annotations.Len(), 0)
		includes := 0
		for _, a := range out.Annotations.All() {
			if a.Kind == AnnotationInclude {
				includes++
			}
		}
		assert.Equal(t, 6, includes)
	})
}

func TestOpen_RootAliases(t *testing.T) {
	out, err := Open(context.Background(), []string{fixtureEnv(t)}, Options{})
	require.NoError(t, err)

	empty, ok := out.Tree.Resolve("")
	require.True(t, ok)
	slash, ok := out.Tree.Resolve("/")
	require.True(t, ok)
	assert.Same(t, empty, slash)
	assert.Same(t, out.Tree.Root(), empty)

	_, ok = out.Tree.Resolve("/obj/item/")
	assert.False(t, ok, "lookups other than the root require an exact match")
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestOpen_PushOrder(t *testing.T) {
	out := openProject(t, map[string]string{
		"a.dm":    "/a\n",
		"b.dm":    "/b\n",
		"env.dme": "/env\n",
	}, "a.dm", "b.dm", "env.dme")

	assert.Equal(t, []string{"env.dme", "b.dm", "a.dm"}, out.Context.FileList())
	assert.Equal(t, []string{"", "/a", "/b", "/env"}, out.Tree.AllPaths(),
		"files[0] is read first and the environment last")
}

func TestOpen_ConstructionErrors(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"env.dme":  "/env\n",
		"good.dm":  "/good\n",
		"bad.dm":   "/bad\n\xff\xfe\n",
		"bad.dme":  "\xc3\x28\n",
		"other.dm": "/other\n",
	})
	p := func(name string) string { return filepath.Join(dir, name) }

	tests := []struct {
		name  string
		files []string
		kind  ConstructionErrorKind
		path  string
	}{
		{"empty list", nil, EnvironmentLoadFailed, ""},
		{"missing environment", []string{p("missing.dme")}, EnvironmentLoadFailed, p("missing.dme")},
		{"missing included file", []string{p("good.dm"), p("nope.dm"), p("env.dme")}, FileOpenFailed, p("nope.dm")},
		{"environment not utf-8", []string{p("bad.dme")}, EncodingError, p("bad.dme")},
		{"included file not utf-8", []string{p("bad.dm"), p("env.dme")}, EncodingError, p("bad.dm")},
		{"first failure in list order wins", []string{p("other.dm"), p("nope1.dm"), p("nope2.dm"), p("env.dme")}, FileOpenFailed, p("nope1.dm")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Open(context.Background(), tt.files, Options{Workers: 3})
			require.Error(t, err)
			assert.Nil(t, out)

			var ce *ConstructionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, tt.path, ce.Path)
			assert.True(t, IsConstructionError(err, tt.kind))
		})
	}
}

func TestOpen_CancelledContext(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"a.dm":    "/a\n",
		"env.dme": "/obj\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, []string{filepath.Join(dir, "a.dm"), filepath.Join(dir, "env.dme")}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsConstructionError(err, FileOpenFailed), "%v", err)
	assert.False(t, IsConstructionError(err, EnvironmentLoadFailed), "%v", err)
}

func TestOpen_EmptyListWrapsSentinel(t *testing.T) {
	_, err := Open(context.Background(), []string{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEnvironment)
}

func TestOpen_EncodingErrorWrapsSentinel(t *testing.T) {
	dir := writeProject(t, map[string]string{"env.dme": "\xff\n"})
	_, err := Open(context.Background(), []string{filepath.Join(dir, "env.dme")}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestOpen_StripsByteOrderMark(t *testing.T) {
	out := openProject(t, map[string]string{
		"env.dme": "\xef\xbb\xbf/obj\n",
	}, "env.dme")
	assert.Equal(t, []string{"", "/obj"}, out.Tree.AllPaths())
	assert.Empty(t, out.Context.Diagnostics())
}

func TestOpen_DuplicatePushedFileIsReadOnce(t *testing.T) {
	out := openProject(t, map[string]string{
		"a.dm":    "/a\n\tvar/x = 1\n",
		"env.dme": "#include \"a.dm\"\n",
	}, "a.dm", "env.dme")

	assert.Equal(t, []string{"env.dme", "a.dm"}, out.Context.FileList())
	assert.Empty(t, messages(out.Context.Diagnostics(), SeverityWarning), "var x must not be redeclared")
}

func TestLoader_Open(t *testing.T) {
	loader := NewLoader(Options{Defines: map[string]string{"FOO": "42"}})
	dir := writeProject(t, map[string]string{"env.dme": "/obj\n\tx = FOO\n"})

	out, err := loader.Open(context.Background(), []string{filepath.Join(dir, "env.dme")})
	require.NoError(t, err)
	obj, ok := out.Tree.Resolve("/obj")
	require.True(t, ok)
	assert.Equal(t, "42", obj.Vars["x"].Value.Expression)
}
