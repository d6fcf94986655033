package dm

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxExpansionPasses caps macro rescanning so self-referential macros terminate.
const maxExpansionPasses = 16

// builtinDefines are always defined before user defines are applied.
var builtinDefines = map[string]string{
	"DM_VERSION":   "515",
	"DM_BUILD":     "1619",
	"SPACEMAN_DMM": "1",
}

// sourceLine is a logical code line after directives and comments are removed.
type sourceLine struct {
	loc  Location
	text string
}

type condFrame struct {
	active       bool // this branch is live, enclosing frames included
	parentActive bool
	taken        bool
	seenElse     bool
	loc          Location
}

type includeFrame struct {
	file      FileID
	dir       string
	lines     []string
	next      int
	inComment bool
	conds     []condFrame
}

func (f *includeFrame) active() bool {
	return len(f.conds) == 0 || f.conds[len(f.conds)-1].active
}

// readLogical consumes one line, joining lines that end in a backslash.
func (f *includeFrame) readLogical() string {
	var sb strings.Builder
	for f.next < len(f.lines) {
		line := f.lines[f.next]
		f.next++
		if strings.HasSuffix(line, "\\") {
			sb.WriteString(line[:len(line)-1])
			continue
		}
		sb.WriteString(line)
		break
	}
	return sb.String()
}

type macro struct {
	body     string
	function bool
}

// preprocessor walks an include stack and emits code lines. The environment
// sits at the bottom of the stack; files pushed later are read first.
type preprocessor struct {
	ctx         *Context
	annotations *AnnotationTree
	envDir      string
	stack       []*includeFrame
	defines     map[string]macro
	seen        map[string]bool
	special     map[SpecialKind][]string
	out         []sourceLine
}

func newPreprocessor(ctx *Context, annotations *AnnotationTree, env sourceFile, defines map[string]string) *preprocessor {
	p := &preprocessor{
		ctx:         ctx,
		annotations: annotations,
		envDir:      filepath.Dir(env.path),
		defines:     make(map[string]macro, len(builtinDefines)+len(defines)),
		seen:        make(map[string]bool),
		special:     make(map[SpecialKind][]string, len(SpecialKinds)),
	}
	for name, body := range builtinDefines {
		p.defines[name] = macro{body: body}
	}
	for name, body := range defines {
		p.defines[name] = macro{body: body}
	}
	for _, kind := range SpecialKinds {
		p.special[kind] = []string{}
	}
	p.pushFile(env.path, env.text)
	return p
}

// pushFile registers absPath and places it on top of the include stack.
// A file already seen is skipped.
func (p *preprocessor) pushFile(absPath, text string) bool {
	if p.seen[absPath] {
		return false
	}
	p.seen[absPath] = true
	id := p.ctx.RegisterFile(p.displayPath(absPath))
	p.stack = append(p.stack, &includeFrame{
		file:  id,
		dir:   filepath.Dir(absPath),
		lines: splitLines(text),
	})
	return true
}

// displayPath renders absPath relative to the environment directory.
func (p *preprocessor) displayPath(absPath string) string {
	rel, err := filepath.Rel(p.envDir, absPath)
	if err != nil {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}

func (p *preprocessor) run() []sourceLine {
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		if top.next >= len(top.lines) {
			for _, c := range top.conds {
				p.ctx.Errorf(c.loc, "unterminated conditional directive")
			}
			p.stack = p.stack[:len(p.stack)-1]
			continue
		}

		loc := Location{File: top.file, Line: top.next + 1, Column: 1}
		text := stripComments(top.readLogical(), &top.inComment)
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "#") {
			p.directive(top, loc, strings.TrimSpace(trimmed[1:]))
			continue
		}
		if trimmed == "" || !top.active() {
			continue
		}
		p.out = append(p.out, sourceLine{loc: loc, text: p.expand(strings.TrimRight(text, " \t"))})
	}
	return p.out
}

func (p *preprocessor) directive(f *includeFrame, loc Location, body string) {
	n := identLen(body)
	name, arg := body[:n], strings.TrimSpace(body[n:])

	switch name {
	case "if", "ifdef", "ifndef":
		parentActive := f.active()
		value := false
		if parentActive {
			switch name {
			case "if":
				value = p.evalCondition(loc, arg)
			case "ifdef":
				value = p.isDefined(arg)
			case "ifndef":
				value = !p.isDefined(arg)
			}
		}
		active := parentActive && value
		f.conds = append(f.conds, condFrame{active: active, parentActive: parentActive, taken: active, loc: loc})
		return
	case "elif":
		if len(f.conds) == 0 {
			p.ctx.Errorf(loc, "#elif without #if")
			return
		}
		c := &f.conds[len(f.conds)-1]
		if c.seenElse {
			p.ctx.Errorf(loc, "#elif after #else")
		}
		if c.taken || !c.parentActive {
			c.active = false
			return
		}
		c.active = p.evalCondition(loc, arg)
		c.taken = c.active
		return
	case "else":
		if len(f.conds) == 0 {
			p.ctx.Errorf(loc, "#else without #if")
			return
		}
		c := &f.conds[len(f.conds)-1]
		if c.seenElse {
			p.ctx.Errorf(loc, "duplicate #else")
		}
		c.seenElse = true
		c.active = c.parentActive && !c.taken
		if c.active {
			c.taken = true
		}
		return
	case "endif":
		if len(f.conds) == 0 {
			p.ctx.Errorf(loc, "#endif without #if")
			return
		}
		f.conds = f.conds[:len(f.conds)-1]
		return
	}

	if !f.active() {
		return
	}

	switch name {
	case "include":
		p.include(f, loc, arg)
	case "define":
		p.define(loc, arg)
	case "undef":
		if !p.isDefined(arg) {
			p.ctx.Infof(loc, "#undef of undefined macro %q", arg)
			return
		}
		delete(p.defines, arg)
	case "warn", "warning":
		p.ctx.Warnf(loc, "#%s %s", name, arg)
	case "error":
		p.ctx.Errorf(loc, "#error %s", arg)
	case "pragma":
	default:
		p.ctx.Warnf(loc, "unknown directive #%s", name)
	}
}

func (p *preprocessor) include(f *includeFrame, loc Location, arg string) {
	if len(arg) < 2 || !((arg[0] == '"' && arg[len(arg)-1] == '"') || (arg[0] == '<' && arg[len(arg)-1] == '>')) {
		p.ctx.Errorf(loc, "malformed #include %s", arg)
		return
	}
	written := arg[1 : len(arg)-1]
	name := filepath.FromSlash(strings.ReplaceAll(written, "\\", "/"))

	resolved, ok := p.resolveInclude(f.dir, name)
	if !ok {
		p.ctx.Errorf(loc, "failed to find file %q", written)
		return
	}
	if p.seen[resolved] {
		return
	}

	display := p.displayPath(resolved)
	p.annotations.Add(Annotation{Location: loc, Kind: AnnotationInclude, Path: display})

	ext := strings.ToLower(filepath.Ext(resolved))
	if kind, ok := specialKindForExt(ext); ok {
		p.seen[resolved] = true
		p.special[kind] = append(p.special[kind], display)
		return
	}

	switch ext {
	case ".dm", ".dme":
		text, err := readSource(resolved)
		if err != nil {
			p.seen[resolved] = true
			if _, bad := err.(errEncoding); bad {
				p.ctx.Errorf(loc, "%s: %v", display, ErrInvalidEncoding)
			} else {
				p.ctx.Errorf(loc, "failed to open %s: %v", display, err)
			}
			return
		}
		p.pushFile(resolved, text)
	default:
		p.ctx.Errorf(loc, "unknown include extension %q", ext)
	}
}

// resolveInclude looks for name next to the including file, then next to the
// environment.
func (p *preprocessor) resolveInclude(dir, name string) (string, bool) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = []string{filepath.Join(dir, name), filepath.Join(p.envDir, name)}
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() {
			return filepath.Clean(c), true
		}
	}
	return "", false
}

func (p *preprocessor) define(loc Location, arg string) {
	n := identLen(arg)
	if n == 0 {
		p.ctx.Errorf(loc, "malformed #define")
		return
	}
	name, rest := arg[:n], arg[n:]
	function := strings.HasPrefix(rest, "(")
	if function {
		if i := strings.IndexByte(rest, ')'); i >= 0 {
			rest = rest[i+1:]
		}
	}
	body := strings.TrimSpace(rest)
	if old, ok := p.defines[name]; ok && old.body != body {
		p.ctx.Infof(loc, "macro %q redefined", name)
	}
	p.defines[name] = macro{body: body, function: function}
	p.annotations.Add(Annotation{Location: loc, Kind: AnnotationMacro, Name: name})
}

func (p *preprocessor) isDefined(name string) bool {
	_, ok := p.defines[strings.TrimSpace(name)]
	return ok
}

// evalCondition understands integer literals, object-like macros that expand
// to one, and defined(NAME), each optionally negated with '!'.
func (p *preprocessor) evalCondition(loc Location, expr string) bool {
	expr = strings.TrimSpace(expr)
	negate := false
	for strings.HasPrefix(expr, "!") {
		negate = !negate
		expr = strings.TrimSpace(expr[1:])
	}

	var value bool
	if rest, ok := strings.CutPrefix(expr, "defined"); ok {
		rest = strings.TrimSpace(rest)
		rest = strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
		value = p.isDefined(rest)
	} else {
		n, err := strconv.ParseInt(strings.TrimSpace(p.expand(expr)), 0, 64)
		if err != nil {
			p.ctx.Warnf(loc, "cannot evaluate #if expression %q, treating as false", expr)
		}
		value = err == nil && n != 0
	}
	return value != negate
}

// expand substitutes object-like macros on identifier boundaries outside
// string literals.
func (p *preprocessor) expand(text string) string {
	for range maxExpansionPasses {
		next, changed := p.expandOnce(text)
		if !changed {
			return next
		}
		text = next
	}
	return text
}

func (p *preprocessor) expandOnce(text string) (string, bool) {
	var sb strings.Builder
	changed := false
	var quote byte
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case quote != 0:
			sb.WriteByte(c)
			if c == '\\' && i+1 < len(text) {
				sb.WriteByte(text[i+1])
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
		case c == '"' || c == '\'':
			quote = c
			sb.WriteByte(c)
			i++
		case isIdentStart(c):
			n := identLen(text[i:])
			word := text[i : i+n]
			if m, ok := p.defines[word]; ok && !m.function {
				sb.WriteString(m.body)
				changed = true
			} else {
				sb.WriteString(word)
			}
			i += n
		case isDigit(c):
			j := i + 1
			for j < len(text) && (isIdentByte(text[j]) || text[j] == '.') {
				j++
			}
			sb.WriteString(text[i:j])
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), changed
}

// stripComments removes // and /* */ comments outside string literals.
// inComment carries block-comment state across lines.
func stripComments(line string, inComment *bool) string {
	var sb strings.Builder
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if *inComment {
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				*inComment = false
				i++
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
			}
			continue
		}
		if quote != 0 {
			sb.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				i++
				sb.WriteByte(line[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
			sb.WriteByte(c)
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return sb.String()
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			*inComment = true
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// identLen returns the length of the identifier at the start of s.
func identLen(s string) int {
	if s == "" || !isIdentStart(s[0]) {
		return 0
	}
	n := 1
	for n < len(s) && isIdentByte(s[n]) {
		n++
	}
	return n
}
