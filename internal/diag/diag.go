// Package diag renders syntax and compile errors against their source text.
package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/xirelogy/go-epsilon/internal/compiler"
	"github.com/xirelogy/go-epsilon/internal/parser"
	"github.com/xirelogy/go-epsilon/internal/token"
)

type Kind string

const (
	SyntaxError  Kind = "syntax error"
	CompileError Kind = "compile error"
	Error        Kind = "error"
)

// Diagnostic is one reportable problem at a source position. A zero Pos
// means the position is unknown.
type Diagnostic struct {
	Kind Kind
	Pos  token.Position
	Msg  string
}

// String renders d as "kind: [line:column] message".
func (d Diagnostic) String() string {
	if d.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Msg)
	}
	return fmt.Sprintf("%s: [%d:%d] %s", d.Kind, d.Pos.Line, d.Pos.Column, d.Msg)
}

// FromError flattens err into diagnostics. Syntax error lists yield one
// entry per error.
func FromError(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	var list parser.ErrorList
	if errors.As(err, &list) {
		out := make([]Diagnostic, 0, len(list))
		for _, e := range list {
			out = append(out, Diagnostic{Kind: SyntaxError, Pos: e.Pos, Msg: e.Msg})
		}
		return out
	}
	var syn *parser.SyntaxError
	if errors.As(err, &syn) {
		return []Diagnostic{{Kind: SyntaxError, Pos: syn.Pos, Msg: syn.Msg}}
	}
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		return []Diagnostic{{Kind: CompileError, Pos: cerr.Pos, Msg: cerr.Msg}}
	}
	return []Diagnostic{{Kind: Error, Msg: err.Error()}}
}

// Printer writes diagnostics with a source excerpt and a caret under the
// offending column.
type Printer struct {
	w     io.Writer
	lines []string

	label  *color.Color
	where  *color.Color
	gutter *color.Color
	caret  *color.Color
}

// NewPrinter returns a printer for diagnostics about source. Colour follows
// color.NoColor unless noColor forces it off.
func NewPrinter(w io.Writer, source string, noColor bool) *Printer {
	p := &Printer{
		w:      w,
		lines:  strings.Split(source, "\n"),
		label:  color.New(color.FgRed, color.Bold),
		where:  color.New(color.Bold),
		gutter: color.New(color.FgBlue),
		caret:  color.New(color.FgGreen, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.label, p.where, p.gutter, p.caret} {
			c.DisableColor()
		}
	}
	return p
}

// Print writes d and, when its line is in range, the excerpt.
func (p *Printer) Print(d Diagnostic) {
	fmt.Fprintf(p.w, "%s: ", p.label.Sprint(d.Kind))
	if d.Pos.Line > 0 {
		fmt.Fprintf(p.w, "%s ", p.where.Sprintf("[%d:%d]", d.Pos.Line, d.Pos.Column))
	}
	fmt.Fprintln(p.w, d.Msg)

	if d.Pos.Line < 1 || d.Pos.Line > len(p.lines) {
		return
	}
	line := strings.TrimRight(p.lines[d.Pos.Line-1], "\r")
	num := fmt.Sprintf("%4d", d.Pos.Line)
	fmt.Fprintf(p.w, "%s %s\n", p.gutter.Sprint(num+" |"), line)
	fmt.Fprintf(p.w, "%s %s%s\n", p.gutter.Sprint(strings.Repeat(" ", len(num))+" |"), caretPad(line, d.Pos.Column), p.caret.Sprint("^"))
}

// PrintError prints every diagnostic in err and returns how many there were.
func (p *Printer) PrintError(err error) int {
	diags := FromError(err)
	for _, d := range diags {
		p.Print(d)
	}
	return len(diags)
}

// caretPad returns whitespace reaching byte column col of line, keeping
// tabs so the caret lines up in a terminal.
func caretPad(line string, col int) string {
	n := col - 1
	if n < 0 {
		n = 0
	}
	if n > len(line) {
		n = len(line)
	}
	var sb strings.Builder
	for _, r := range line[:n] {
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
