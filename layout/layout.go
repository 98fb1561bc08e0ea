// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package layout implements the pretty-printing intermediate
// representation: a tree of text, newline, sequence, left-align,
// and indent nodes, formatted to fit a width budget and then
// rendered to a string.
//
// Formatting is two passes. Format rewrites the tree so that it
// contains only text, newline, and sequence nodes, choosing line
// breaks; ToString walks the formatted tree emitting a single
// space between adjacent texts on the same line.
package layout

import (
	"strings"

	"github.com/pql-engine/pql/internal/assert"
)

// Kind discriminates layout nodes.
type Kind uint8

const (
	// LNewline forces a line break.
	LNewline Kind = iota
	// LText is a literal string with its display width.
	LText
	// LSequence renders children horizontally,
	// space-separated when on one line.
	LSequence
	// LLeftAlign renders each child on its own line,
	// aligned at the same column.
	LLeftAlign
	// LIndent renders a start line, an indented body,
	// and an optional tail line.
	LIndent
)

// Step is the indent step used when a subtree is pushed to
// the next line.
const Step = 3

// Layout is one pretty-layout node.
type Layout struct {
	kind  Kind
	text  string
	width int
	kids  []*Layout // sequence, leftalign
	start *Layout   // indent
	body  *Layout
	tail  *Layout // may be nil
}

func (l *Layout) Kind() Kind { return l.kind }

// Newline returns a line-break node.
func Newline() *Layout {
	return &Layout{kind: LNewline}
}

// Text returns a text node. The string must not contain
// newlines; use TextWithNewlines for strings that may.
func Text(s string) *Layout {
	return &Layout{kind: LText, text: s, width: len(s)}
}

// TextWithNewlines splits s on newlines into a sequence of
// text and newline nodes.
func TextWithNewlines(s string) *Layout {
	if !strings.Contains(s, "\n") {
		return Text(s)
	}
	var kids []*Layout
	start := 0
	for pos := 0; pos < len(s); pos++ {
		if s[pos] != '\n' {
			continue
		}
		if pos > start {
			kids = append(kids, Text(s[start:pos]))
		}
		kids = append(kids, Newline())
		start = pos + 1
	}
	if start < len(s) {
		kids = append(kids, Text(s[start:]))
	}
	return Sequence(kids...)
}

// Sequence returns a horizontal grouping of kids.
func Sequence(kids ...*Layout) *Layout {
	return &Layout{kind: LSequence, kids: kids}
}

// Pair is Sequence of two nodes.
func Pair(a, b *Layout) *Layout { return Sequence(a, b) }

// Triple is Sequence of three nodes.
func Triple(a, b, c *Layout) *Layout { return Sequence(a, b, c) }

// Quad is Sequence of four nodes.
func Quad(a, b, c, d *Layout) *Layout { return Sequence(a, b, c, d) }

// LeftAlign returns a node whose children each render on
// their own line at the same column.
func LeftAlign(kids ...*Layout) *Layout {
	return &Layout{kind: LLeftAlign, kids: kids}
}

// Indent returns a node that renders start, then body
// indented by one step, then the optional tail.
func Indent(start, body, tail *Layout) *Layout {
	return &Layout{kind: LIndent, start: start, body: body, tail: tail}
}

// singleLineWidth is the width of l if rendered on one line,
// counting the single space emitted between adjacent parts.
func (l *Layout) singleLineWidth() int {
	switch l.kind {
	case LNewline:
		return 0
	case LText:
		return l.width
	case LSequence, LLeftAlign:
		w := 0
		for i, k := range l.kids {
			if i > 0 {
				w++
			}
			w += k.singleLineWidth()
		}
		return w
	case LIndent:
		w := l.start.singleLineWidth() + 1 + l.body.singleLineWidth()
		if l.tail != nil {
			w += 1 + l.tail.singleLineWidth()
		}
		return w
	}
	return 0
}

// isSingleLine reports whether l can be collapsed to a single
// line within the given budget.
func (l *Layout) isSingleLine(budget int) bool {
	switch l.kind {
	case LNewline:
		return false
	case LSequence, LLeftAlign:
		for _, k := range l.kids {
			if !k.isSingleLine(budget) {
				return false
			}
		}
	case LIndent:
		if !l.start.isSingleLine(budget) || !l.body.isSingleLine(budget) {
			return false
		}
		if l.tail != nil && !l.tail.isSingleLine(budget) {
			return false
		}
	}
	return l.singleLineWidth() <= budget
}

// multilineWidth returns the column position after rendering
// an already-formatted tree starting at pos.
func (l *Layout) multilineWidth(pos int) int {
	switch l.kind {
	case LNewline:
		return 0
	case LText:
		return pos + l.width
	case LSequence:
		for i, k := range l.kids {
			if i > 0 && pos > 0 {
				pos++
			}
			pos = k.multilineWidth(pos)
		}
	case LLeftAlign, LIndent:
		return 0
	}
	return pos
}

// endsInNewline reports whether the last rendered element
// of l is a line break.
func (l *Layout) endsInNewline() bool {
	switch l.kind {
	case LNewline:
		return true
	case LText:
		return false
	case LSequence, LLeftAlign:
		if len(l.kids) == 0 {
			return false
		}
		return l.kids[len(l.kids)-1].endsInNewline()
	case LIndent:
		if l.tail != nil {
			return l.tail.endsInNewline()
		}
		return l.body.endsInNewline()
	}
	return false
}

// endOfLine appends a newline to kids unless one is
// already there.
func endOfLine(kids []*Layout) []*Layout {
	if n := len(kids); n == 0 || !kids[n-1].endsInNewline() {
		kids = append(kids, Newline())
	}
	return kids
}

// combineTexts concatenates text nodes into one, separated
// by single spaces.
func combineTexts(kids []*Layout) *Layout {
	var sb strings.Builder
	for i, k := range kids {
		if k.kind != LText {
			assert.Fail("layout: combining non-text node")
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(k.text)
	}
	return Text(sb.String())
}

// combineSingleLine collapses a subtree known to fit on one
// line into a single text node.
func (l *Layout) combineSingleLine() *Layout {
	switch l.kind {
	case LNewline:
		assert.Fail("layout: newline in single-line subtree")
	case LText:
		return l
	case LSequence, LLeftAlign:
		flat := make([]*Layout, len(l.kids))
		for i, k := range l.kids {
			flat[i] = k.combineSingleLine()
		}
		return combineTexts(flat)
	case LIndent:
		flat := []*Layout{
			l.start.combineSingleLine(),
			l.body.combineSingleLine(),
		}
		if l.tail != nil {
			flat = append(flat, l.tail.combineSingleLine())
		}
		return combineTexts(flat)
	}
	return l
}

// mkindent returns a text node that, together with the joining
// space the printer adds, indents the following text by n.
func mkindent(n int) *Layout {
	if n <= 1 {
		assert.Fail("layout: indent too small")
	}
	return Text(strings.Repeat(" ", n-1))
}

// indentSequence inserts indent texts at the start of every
// line of an already-formatted sequence, tracking the column
// position. Returns the position after the sequence.
func (l *Layout) indentSequence(indent, pos int) int {
	if l.kind != LSequence {
		assert.Fail("layout: indentSequence on non-sequence")
	}
	for i := 0; i < len(l.kids); i++ {
		k := l.kids[i]
		switch k.kind {
		case LNewline:
			pos = 0
		case LText:
			if pos > 0 {
				pos++
			} else {
				l.kids = append(l.kids[:i], append([]*Layout{mkindent(indent)}, l.kids[i:]...)...)
				pos = indent
				i++
			}
			pos += k.width
		case LSequence:
			pos = k.indentSequence(indent, pos)
		default:
			assert.Fail("layout: leftalign/indent inside formatted tree")
		}
	}
	return pos
}

// indented shifts a formatted block right by indent spaces.
// The block is assumed to start at column zero.
func (l *Layout) indented(indent int) *Layout {
	if indent == 0 {
		return l
	}
	switch l.kind {
	case LNewline:
		return l
	case LText:
		return Sequence(mkindent(indent), l)
	case LSequence:
		l.indentSequence(indent, 0)
		return l
	}
	assert.Fail("layout: indenting unformatted node")
	return l
}

func indentwidth(maxwidth, indent int) int {
	if indent >= maxwidth {
		return 1
	}
	return maxwidth - indent
}

// Format rewrites l to fit within maxwidth columns, returning
// a tree containing only text, newline, and sequence nodes.
// Formatting an already-formatted tree is a no-op, and no line
// exceeds maxwidth unless a single text token itself is wider.
func Format(l *Layout, maxwidth int) *Layout {
	return formatRec(l, 0, maxwidth)
}

func formatRec(l *Layout, pos, maxwidth int) *Layout {
	// fits on the current line
	if l.isSingleLine(maxwidth - pos) {
		return l.combineSingleLine()
	}

	// does not fit here, but fits on the next line after an indent
	if l.isSingleLine(indentwidth(maxwidth, Step)) {
		flat := l.combineSingleLine()
		kids := endOfLine(nil)
		return Sequence(append(kids, flat.indented(Step))...)
	}

	switch l.kind {
	case LNewline:
		// nothing to do
	case LText:
		// a single token wider than the budget is emitted as-is

	case LSequence:
		for i, k := range l.kids {
			start := pos
			if start > 0 {
				start++ // the joining space
			}
			k = formatRec(k, start, maxwidth)
			if k.isSingleLine(maxwidth - start) {
				pos = start + k.singleLineWidth()
			} else {
				pos = k.multilineWidth(pos)
			}
			l.kids[i] = k
		}

	case LLeftAlign:
		if len(l.kids) == 0 {
			assert.Fail("layout: empty leftalign")
		}
		var kids []*Layout
		var indent int
		first := l.kids[0]
		if first.isSingleLine(maxwidth - pos) {
			// anchor the column where the first child starts
			indent = pos
			kids = append(kids, first.combineSingleLine())
		} else if pos > 0 {
			// starting mid-line: break and indent the block
			indent = Step
			f := formatRec(first, 0, indentwidth(maxwidth, indent))
			kids = endOfLine(kids)
			kids = append(kids, f.indented(indent))
		} else {
			indent = 0
			kids = append(kids, formatRec(first, 0, maxwidth))
		}
		kids = endOfLine(kids)
		for _, k := range l.kids[1:] {
			k = formatRec(k, 0, indentwidth(maxwidth, indent))
			kids = append(kids, k.indented(indent))
			kids = endOfLine(kids)
		}
		return Sequence(kids...)

	case LIndent:
		var kids []*Layout
		start := l.start
		if start.isSingleLine(maxwidth - pos) {
			kids = append(kids, start.combineSingleLine())
		} else {
			kids = endOfLine(kids)
			kids = append(kids, formatRec(start, 0, maxwidth).indented(Step))
		}
		kids = endOfLine(kids)
		body := formatRec(l.body, 0, indentwidth(maxwidth, Step))
		kids = append(kids, body.indented(Step))
		kids = endOfLine(kids)
		if l.tail != nil {
			kids = append(kids, formatRec(l.tail, 0, maxwidth))
			kids = endOfLine(kids)
		}
		return Sequence(kids...)
	}
	return l
}

// ToString renders a formatted tree. A single space separates
// adjacent texts on the same line; the output always ends in
// a newline when nonempty.
func ToString(l *Layout) string {
	var sb strings.Builder
	pos := printRec(&sb, l, 0)
	if pos > 0 {
		sb.WriteByte('\n')
	}
	return sb.String()
}

func printRec(sb *strings.Builder, l *Layout, pos int) int {
	switch l.kind {
	case LNewline:
		sb.WriteByte('\n')
		return 0
	case LText:
		if pos > 0 {
			sb.WriteByte(' ')
			pos++
		}
		sb.WriteString(l.text)
		return pos + l.width
	case LSequence:
		for _, k := range l.kids {
			pos = printRec(sb, k, pos)
		}
		return pos
	}
	assert.Fail("layout: printing unformatted tree")
	return pos
}
