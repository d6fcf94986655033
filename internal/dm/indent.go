package dm

import "strings"

// tabWidth is the column width a tab contributes when comparing indentation.
const tabWidth = 4

// indentedLine is a logical statement with its nesting depth resolved.
type indentedLine struct {
	loc   Location
	depth int
	text  string
}

type fileIndent struct {
	widths   []int
	sawTab   bool
	sawSpace bool
	warned   bool
}

// resolveIndentation turns leading whitespace into nesting depth, tracking a
// separate indentation stack per file. Statements with unclosed parentheses
// or brackets absorb following lines of the same file until they balance.
func resolveIndentation(ctx *Context, lines []sourceLine) []indentedLine {
	states := make(map[FileID]*fileIndent)
	out := make([]indentedLine, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		ln := lines[i]
		text := ln.text
		open := bracketBalance(text)
		for open > 0 && i+1 < len(lines) && lines[i+1].loc.File == ln.loc.File {
			i++
			next := strings.TrimSpace(lines[i].text)
			text += " " + next
			open += bracketBalance(next)
		}
		if open > 0 {
			ctx.Errorf(ln.loc, "unclosed parenthesis")
		}

		st := states[ln.loc.File]
		if st == nil {
			st = &fileIndent{widths: []int{0}}
			states[ln.loc.File] = st
		}

		width, n, tabs, spaces := measureIndent(text)
		st.sawTab = st.sawTab || tabs
		st.sawSpace = st.sawSpace || spaces
		if st.sawTab && st.sawSpace && !st.warned {
			ctx.Warnf(ln.loc, "mixed tabs and spaces in indentation")
			st.warned = true
		}

		body := strings.TrimSpace(text[n:])
		if body == "" {
			continue
		}

		loc := ln.loc
		loc.Column = n + 1

		top := st.widths[len(st.widths)-1]
		switch {
		case width > top:
			st.widths = append(st.widths, width)
		case width < top:
			for len(st.widths) > 1 && st.widths[len(st.widths)-1] > width {
				st.widths = st.widths[:len(st.widths)-1]
			}
			if st.widths[len(st.widths)-1] != width {
				ctx.Errorf(loc, "inconsistent indentation")
				st.widths = append(st.widths, width)
			}
		}

		out = append(out, indentedLine{loc: loc, depth: len(st.widths) - 1, text: body})
	}
	return out
}

// measureIndent returns the indentation width, the number of leading
// whitespace bytes, and which whitespace kinds were used.
func measureIndent(text string) (width, n int, tabs, spaces bool) {
	for n < len(text) {
		switch text[n] {
		case '\t':
			width += tabWidth
			tabs = true
		case ' ':
			width++
			spaces = true
		default:
			return width, n, tabs, spaces
		}
		n++
	}
	return width, n, tabs, spaces
}

// bracketBalance counts unmatched ( and [ outside string literals.
func bracketBalance(text string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		}
	}
	return depth
}
