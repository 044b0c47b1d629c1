// Package serialize implements the LIU node (de)serializers (§4.4): an
// S-expression form for human-readable dumps and a JSON form with fixed key
// ordering for wire/snapshot use. Grounded on the teacher's
// internal/mangle/engine.go Mangle-source emission (atoms rendered as
// `pred(arg1,arg2)` text) and opal-lang-opal/core/planfmt/plan.go's
// JSON-tagged plan structs (stable field order for reproducible output).
package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/errs"
	"github.com/metanucleus/metanucleus/internal/node"
)

// ToSExpr renders n as a parenthesized S-expression. Canonical nodes
// round-trip exactly through ParseSExpr (§4.4).
func ToSExpr(n *node.Node) string {
	var b strings.Builder
	writeSExpr(&b, n)
	return b.String()
}

func writeSExpr(b *strings.Builder, n *node.Node) {
	if node.IsNil(n) {
		b.WriteString("NIL")
		return
	}
	switch n.Kind {
	case node.KindEntity:
		b.WriteString("(ENTITY ")
		b.WriteString(n.Label.String())
		b.WriteByte(')')
	case node.KindVar:
		b.WriteString("(VAR ")
		b.WriteString(n.Label.String())
		b.WriteByte(')')
	case node.KindRel, node.KindOp:
		tag := "REL"
		if n.Kind == node.KindOp {
			tag = "OP"
		}
		fmt.Fprintf(b, "(%s %s", tag, n.Label.String())
		for _, a := range n.Args {
			b.WriteByte(' ')
			writeSExpr(b, a)
		}
		b.WriteByte(')')
	case node.KindStruct:
		b.WriteString("(STRUCT")
		for _, f := range n.Fields {
			b.WriteString(" (")
			b.WriteString(f.Key)
			b.WriteByte(' ')
			writeSExpr(b, f.Value)
			b.WriteByte(')')
		}
		b.WriteByte(')')
	case node.KindList:
		b.WriteString("(LIST")
		for _, it := range n.Items {
			b.WriteByte(' ')
			writeSExpr(b, it)
		}
		b.WriteByte(')')
	case node.KindText:
		b.WriteString(strconv.Quote(n.Text))
	case node.KindNumber:
		b.WriteString(strconv.FormatFloat(n.Number, 'g', -1, 64))
	case node.KindBool:
		b.WriteString(strconv.FormatBool(n.Bool))
	}
}

// ParseSExpr parses the S-expression form produced by ToSExpr, interning
// any labels through table.
func ParseSExpr(table *atomtable.Table, s string) (*node.Node, error) {
	p := &sexprParser{table: table, src: s}
	p.skipSpace()
	n, err := p.parseNode()
	if err != nil {
		return nil, errs.NewParseError(s, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errs.NewParseError(s, fmt.Errorf("trailing input at offset %d", p.pos))
	}
	return n, nil
}

type sexprParser struct {
	table *atomtable.Table
	src   string
	pos   int
}

func (p *sexprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *sexprParser) parseNode() (*node.Node, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unexpected end of input")
	}

	switch p.src[p.pos] {
	case '(':
		return p.parseList()
	case '"':
		return p.parseString()
	default:
		return p.parseAtomLike()
	}
}

func (p *sexprParser) parseList() (*node.Node, error) {
	p.pos++ // consume '('
	p.skipSpace()
	tag, err := p.readBareToken()
	if err != nil {
		return nil, err
	}

	switch tag {
	case "ENTITY":
		p.skipSpace()
		label, err := p.readBareToken()
		if err != nil {
			return nil, err
		}
		if err := p.expectClose(); err != nil {
			return nil, err
		}
		return node.NewEntity(p.table, label)
	case "VAR":
		p.skipSpace()
		label, err := p.readBareToken()
		if err != nil {
			return nil, err
		}
		if err := p.expectClose(); err != nil {
			return nil, err
		}
		return node.NewVar(p.table, label)
	case "REL", "OP":
		p.skipSpace()
		label, err := p.readBareToken()
		if err != nil {
			return nil, err
		}
		var args []*node.Node
		for {
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == ')' {
				break
			}
			a, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		if err := p.expectClose(); err != nil {
			return nil, err
		}
		if tag == "REL" {
			return node.NewRel(p.table, label, args...)
		}
		return node.NewOp(p.table, label, args...)
	case "STRUCT":
		fields := make(map[string]*node.Node)
		for {
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == ')' {
				break
			}
			if p.pos >= len(p.src) || p.src[p.pos] != '(' {
				return nil, fmt.Errorf("expected STRUCT field at offset %d", p.pos)
			}
			p.pos++
			p.skipSpace()
			key, err := p.readBareToken()
			if err != nil {
				return nil, err
			}
			v, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			if err := p.expectClose(); err != nil {
				return nil, err
			}
			fields[key] = v
		}
		if err := p.expectClose(); err != nil {
			return nil, err
		}
		return node.NewStruct(fields)
	case "LIST":
		var items []*node.Node
		for {
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == ')' {
				break
			}
			it, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
		if err := p.expectClose(); err != nil {
			return nil, err
		}
		return node.NewList(items...), nil
	default:
		return nil, fmt.Errorf("unknown tag %q at offset %d", tag, p.pos)
	}
}

func (p *sexprParser) parseString() (*node.Node, error) {
	start := p.pos
	p.pos++ // consume opening quote
	for p.pos < len(p.src) {
		if p.src[p.pos] == '\\' {
			p.pos += 2
			continue
		}
		if p.src[p.pos] == '"' {
			p.pos++
			s, err := strconv.Unquote(p.src[start:p.pos])
			if err != nil {
				return nil, err
			}
			return node.NewText(s), nil
		}
		p.pos++
	}
	return nil, fmt.Errorf("unterminated string starting at offset %d", start)
}

func (p *sexprParser) parseAtomLike() (*node.Node, error) {
	tok, err := p.readBareToken()
	if err != nil {
		return nil, err
	}
	switch tok {
	case "NIL":
		return node.Nil, nil
	case "true":
		return node.NewBool(true), nil
	case "false":
		return node.NewBool(false), nil
	}
	if v, err := strconv.ParseFloat(tok, 64); err == nil {
		return node.NewNumber(v), nil
	}
	return nil, fmt.Errorf("unrecognized token %q at offset %d", tok, p.pos)
}

func (p *sexprParser) readBareToken() (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '(' || c == ')' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("expected token at offset %d", start)
	}
	return p.src[start:p.pos], nil
}

func (p *sexprParser) expectClose() error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return fmt.Errorf("expected ')' at offset %d", p.pos)
	}
	p.pos++
	return nil
}
