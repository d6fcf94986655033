package dm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAssignment(t *testing.T) {
	tests := []struct {
		text     string
		lhs, rhs string
		ok       bool
	}{
		{`name = "x"`, "name", `"x"`, true},
		{`var/list/l = list("a" = 1)`, "var/list/l", `list("a" = 1)`, true},
		{`proc/f(a = 1)`, "proc/f(a = 1)", "", false},
		{`x = a == b`, "x", "a == b", true},
		{`force += 1`, "force += 1", "", false},
		{`if(a <= b)`, "if(a <= b)", "", false},
		{`desc = "a = b"`, "desc", `"a = b"`, true},
		{`sword`, "sword", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			lhs, rhs, ok := splitAssignment(tt.text)
			assert.Equal(t, tt.lhs, lhs)
			assert.Equal(t, tt.rhs, rhs)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSplitParams(t *testing.T) {
	tests := []struct {
		part string
		want []string
	}{
		{"()", []string{}},
		{"(a)", []string{"a"}},
		{"(mob/M, amount = 5)", []string{"mob/M", "amount = 5"}},
		{`(list/L = list(1, 2), msg = "a, b")`, []string{"list/L = list(1, 2)", `msg = "a, b"`}},
		{"(unclosed, x", []string{"unclosed", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.part, func(t *testing.T) {
			assert.Equal(t, tt.want, splitParams(tt.part))
		})
	}
}

func TestBuildTree_Blocks(t *testing.T) {
	out := openProject(t, map[string]string{
		"env.dme": "/obj\n" +
			"\tvar\n" +
			"\t\tplain = 1\n" +
			"\t\tlist/things\n" +
			"\t\tconst\n" +
			"\t\t\tLIMIT = 3\n" +
			"\tproc\n" +
			"\t\tfirst(a)\n" +
			"\t\t\treturn a\n" +
			"\t\tsecond()\n" +
			"\tverb\n" +
			"\t\tlook()\n" +
			"\tfirst(a)\n" +
			"\t\t..()\n" +
			"obj/relative\n" +
			"/obj/var/inline = 4\n" +
			"/obj/deep/path/name = \"deep\"\n",
	}, "env.dme")

	obj, ok := out.Tree.Resolve("/obj")
	require.True(t, ok)

	require.Contains(t, obj.Vars, "plain")
	assert.Equal(t, "1", obj.Vars["plain"].Value.Expression)
	assert.Equal(t, "/list", obj.Vars["things"].Declaration.Type)
	assert.Equal(t, []string{"const"}, obj.Vars["LIMIT"].Declaration.Flags)
	assert.Equal(t, "4", obj.Vars["inline"].Value.Expression)

	first := obj.Procs["first"]
	require.NotNil(t, first)
	assert.Equal(t, "proc", first.Declaration.Kind)
	assert.Len(t, first.Values, 2, "declaration plus override")
	assert.Equal(t, "proc", obj.Procs["second"].Declaration.Kind)
	assert.Equal(t, "verb", obj.Procs["look"].Declaration.Kind)

	assert.Equal(t, []string{"", "/obj", "/obj/relative", "/obj/deep", "/obj/deep/path"}, out.Tree.AllPaths())
	deep, ok := out.Tree.Resolve("/obj/deep/path")
	require.True(t, ok)
	assert.Equal(t, `"deep"`, deep.Vars["name"].Value.Expression)
	assert.Equal(t, []string{"/obj/relative", "/obj/deep"}, obj.Children)

	assert.Empty(t, out.Context.Diagnostics())
}

func TestBuildTree_Diagnostics(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		severity Severity
		message  string
	}{
		{"var redeclared", "/obj\n\tvar/x = 1\n\tvar/x = 2\n", SeverityWarning, "var x redeclared on /obj"},
		{"proc redeclared", "/obj/proc/f()\n/obj/proc/f()\n", SeverityWarning, "proc f redeclared on /obj"},
		{"var without name", "/obj/var = 1\n", SeverityError, "var declaration without a name"},
		{"proc block without call", "/obj\n\tproc\n\t\tnot_a_proc\n", SeverityWarning, "expected proc definition"},
		{"unclosed paren", "/obj/proc/f(a,\n", SeverityError, "unclosed parenthesis"},
		{"inconsistent indentation", "/obj\n\t\tname = 1\n\tdesc = 2\n", SeverityError, "inconsistent indentation"},
		{"mixed indentation", "/obj\n\tname = 1\n    desc = 2\n", SeverityWarning, "mixed tabs and spaces in indentation"},
		{"override of undeclared var", "/obj/a\n\tnever_declared = 1\n", SeverityInfo, "override of undeclared var never_declared on /obj/a"},
		{"override after redeclared parent var", "/obj\n\tvar/x = 1\n\tvar/x = 2\n/obj/a\n\tx = 3\n", SeverityWarning, "var x redeclared on /obj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := openProject(t, map[string]string{"env.dme": tt.source}, "env.dme")
			diags := out.Context.Diagnostics()
			require.Len(t, diags, 1, "%v", diags)
			assert.Equal(t, tt.severity, diags[0].Severity)
			assert.Equal(t, tt.message, diags[0].Message)
		})
	}
}

func TestBuildTree_OverrideResolution(t *testing.T) {
	out := openProject(t, map[string]string{
		"env.dme": "/obj/a\n" +
			"\tlate = 1\n" +
			"/obj\n" +
			"\tvar/late = 0\n" +
			"/datum/ghost\n" +
			"\tparent_type = /mob\n" +
			"\thealth = 5\n" +
			"\tmana = 2\n" +
			"/mob\n" +
			"\tvar/health = 100\n" +
			"\tname = \"mob\"\n",
	}, "env.dme")

	diags := out.Context.Diagnostics()
	require.Len(t, diags, 1, "%v", diags)
	assert.Equal(t, SeverityInfo, diags[0].Severity)
	assert.Equal(t, "override of undeclared var mana on /datum/ghost", diags[0].Message)
	assert.Equal(t, 8, diags[0].Location.Line)
}

func TestBuildTree_Annotations(t *testing.T) {
	out := openProject(t, map[string]string{
		"env.dme": "#define X 1\n/obj\n\tvar/v = X\n\tproc/p()\n",
	}, "env.dme")

	assert.Equal(t, []Annotation{{Location: Location{File: 0, Line: 1, Column: 1}, Kind: AnnotationMacro, Name: "X"}}, out.Annotations.OnLine(0, 1))
	assert.Equal(t, []Annotation{{Location: Location{File: 0, Line: 2, Column: 1}, Kind: AnnotationTreePath, Path: "/obj"}}, out.Annotations.OnLine(0, 2))
	assert.Equal(t, []Annotation{{Location: Location{File: 0, Line: 3, Column: 2}, Kind: AnnotationVariable, Path: "/obj", Name: "v"}}, out.Annotations.OnLine(0, 3))
	assert.Equal(t, []Annotation{{Location: Location{File: 0, Line: 4, Column: 2}, Kind: AnnotationProcHeader, Path: "/obj", Name: "p"}}, out.Annotations.OnLine(0, 4))
	assert.Empty(t, out.Annotations.OnLine(0, 5))
	assert.Equal(t, 4, out.Annotations.Len())
}

func TestSeverity(t *testing.T) {
	assert.True(t, SeverityError.MoreSevereThan(SeverityWarning))
	assert.True(t, SeverityWarning.MoreSevereThan(SeverityInfo))
	assert.False(t, SeverityHint.MoreSevereThan(SeverityInfo))

	text, err := SeverityWarning.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warning", string(text))

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("Error")))
	assert.Equal(t, SeverityError, s)
	assert.Error(t, s.UnmarshalText([]byte("fatal")))

	_, err = Severity(9).MarshalText()
	assert.Error(t, err)
}
