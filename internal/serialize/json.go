package serialize

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/errs"
	"github.com/metanucleus/metanucleus/internal/node"
)

// wireNode is the fixed-key-order JSON shape for a Node (§4.4): kind,
// label, value, args, fields. Struct field declaration order controls
// encoding/json's output order, so this ordering is load-bearing.
type wireNode struct {
	Kind   string      `json:"kind"`
	Label  string      `json:"label,omitempty"`
	Value  interface{} `json:"value,omitempty"`
	Args   []*wireNode `json:"args,omitempty"`
	Fields []wireField `json:"fields,omitempty"`
}

type wireField struct {
	Key   string    `json:"key"`
	Value *wireNode `json:"value"`
}

// ToJSON renders n with the fixed key ordering required for reproducible
// byte-for-byte output (§4.4, §6.1 answer digest).
func ToJSON(n *node.Node) ([]byte, error) {
	w := toWire(n)
	return json.Marshal(w)
}

func toWire(n *node.Node) *wireNode {
	if node.IsNil(n) {
		return &wireNode{Kind: node.KindNil.String()}
	}
	w := &wireNode{Kind: n.Kind.String()}
	switch n.Kind {
	case node.KindEntity, node.KindVar:
		w.Label = n.Label.String()
	case node.KindRel, node.KindOp:
		w.Label = n.Label.String()
		for _, a := range n.Args {
			w.Args = append(w.Args, toWire(a))
		}
	case node.KindStruct:
		keys := make([]string, 0, len(n.Fields))
		byKey := make(map[string]*node.Node, len(n.Fields))
		for _, f := range n.Fields {
			keys = append(keys, f.Key)
			byKey[f.Key] = f.Value
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.Fields = append(w.Fields, wireField{Key: k, Value: toWire(byKey[k])})
		}
	case node.KindList:
		for _, it := range n.Items {
			w.Args = append(w.Args, toWire(it))
		}
	case node.KindText:
		w.Value = n.Text
	case node.KindNumber:
		w.Value = n.Number
	case node.KindBool:
		w.Value = n.Bool
	}
	return w
}

// FromJSON parses the form ToJSON produces, interning labels through table.
func FromJSON(table *atomtable.Table, data []byte) (*node.Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.NewParseError(string(data), err)
	}
	n, err := fromWire(table, &w)
	if err != nil {
		return nil, errs.NewParseError(string(data), err)
	}
	return n, nil
}

func fromWire(table *atomtable.Table, w *wireNode) (*node.Node, error) {
	switch w.Kind {
	case node.KindNil.String():
		return node.Nil, nil
	case node.KindEntity.String():
		return node.NewEntity(table, w.Label)
	case node.KindVar.String():
		return node.NewVar(table, w.Label)
	case node.KindRel.String(), node.KindOp.String():
		args := make([]*node.Node, len(w.Args))
		for i, a := range w.Args {
			child, err := fromWire(table, a)
			if err != nil {
				return nil, err
			}
			args[i] = child
		}
		if w.Kind == node.KindRel.String() {
			return node.NewRel(table, w.Label, args...)
		}
		return node.NewOp(table, w.Label, args...)
	case node.KindStruct.String():
		fields := make(map[string]*node.Node, len(w.Fields))
		for _, f := range w.Fields {
			v, err := fromWire(table, f.Value)
			if err != nil {
				return nil, err
			}
			fields[f.Key] = v
		}
		return node.NewStruct(fields)
	case node.KindList.String():
		items := make([]*node.Node, len(w.Args))
		for i, a := range w.Args {
			child, err := fromWire(table, a)
			if err != nil {
				return nil, err
			}
			items[i] = child
		}
		return node.NewList(items...), nil
	case node.KindText.String():
		s, ok := w.Value.(string)
		if !ok {
			return nil, fmt.Errorf("TEXT node missing string value")
		}
		return node.NewText(s), nil
	case node.KindNumber.String():
		v, ok := w.Value.(float64)
		if !ok {
			return nil, fmt.Errorf("NUMBER node missing numeric value")
		}
		return node.NewNumber(v), nil
	case node.KindBool.String():
		v, ok := w.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("BOOL node missing boolean value")
		}
		return node.NewBool(v), nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", w.Kind)
	}
}
