package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders a node as a compact one-line debug string.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Program:
		for i, s := range n.Statements {
			if i > 0 {
				sb.WriteByte('\n')
			}
			format(sb, s)
		}

	case *Literal:
		sb.WriteString(FormatLiteral(n))
	case *Variable:
		sb.WriteString(n.Name)
	case *BinaryExpr:
		sb.WriteByte('(')
		format(sb, n.Left)
		sb.WriteString(" " + n.Operator.Symbol() + " ")
		format(sb, n.Right)
		sb.WriteByte(')')
	case *UnaryExpr:
		sb.WriteString("(" + n.Operator.Symbol())
		format(sb, n.Right)
		sb.WriteByte(')')
	case *Grouping:
		sb.WriteString("(group ")
		format(sb, n.Inner)
		sb.WriteByte(')')
	case *AssignExpr:
		sb.WriteString("(" + n.Name + " = ")
		format(sb, n.Value)
		sb.WriteByte(')')

	case *VarDecl:
		sb.WriteString("var " + n.Name)
		if n.Init != nil {
			sb.WriteString(" = ")
			format(sb, n.Init)
		}
		sb.WriteByte(';')
	case *PrintStmt:
		sb.WriteString("print ")
		format(sb, n.Expression)
		sb.WriteByte(';')
	case *ExprStmt:
		format(sb, n.Expression)
		sb.WriteByte(';')
	case *BlockStmt:
		sb.WriteByte('{')
		for _, s := range n.Statements {
			sb.WriteByte(' ')
			format(sb, s)
		}
		sb.WriteString(" }")
	case *IfStmt:
		sb.WriteString("if (")
		format(sb, n.Condition)
		sb.WriteString(") ")
		format(sb, n.Then)
		if n.Else != nil {
			sb.WriteString(" else ")
			format(sb, n.Else)
		}
	case *WhileStmt:
		sb.WriteString("while (")
		format(sb, n.Condition)
		sb.WriteString(") ")
		format(sb, n.Body)
	case *ReturnStmt:
		sb.WriteString("return")
		if n.Value != nil {
			sb.WriteByte(' ')
			format(sb, n.Value)
		}
		sb.WriteByte(';')
	case *FuncDecl:
		names := make([]string, len(n.Params))
		for i, p := range n.Params {
			names[i] = p.Name
		}
		sb.WriteString("fn " + n.Name + "(" + strings.Join(names, ", ") + ") ")
		format(sb, &BlockStmt{Statements: n.Body})
	case *BadStmt:
		sb.WriteString("<bad: " + n.Msg + ">")
	default:
		fmt.Fprintf(sb, "<unknown %T>", n)
	}
}

// FormatLiteral renders a literal the way it would be written in source.
// Whole floats keep a trailing ".0" so they stay distinct from integers.
func FormatLiteral(l *Literal) string {
	switch l.Kind {
	case IntLiteral:
		return strconv.FormatInt(l.Int, 10)
	case FloatLiteral:
		return FormatFloat(l.Float)
	case StringLiteral:
		return strconv.Quote(l.Str)
	default:
		return "<invalid literal>"
	}
}

// FormatFloat renders f in its shortest form, keeping a decimal point for
// whole values.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
