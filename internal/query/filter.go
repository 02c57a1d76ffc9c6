// Package query turns untrusted query-string input into a typed filter
// tree, a sort specification and pagination parameters. Storage backends
// compile the tree into their own query language; nothing here builds
// query text.
package query

import "strings"

type Op string

const (
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpContains Op = "contains" // case-insensitive literal substring
)

// comparisonOps are the only operator tokens a client may escalate.
var comparisonOps = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
	"in":  OpIn,
}

// Node is one element of a filter tree. Leaf nodes carry Field and
// Value (or Values for OpIn); OpAnd/OpOr carry Children. The zero Node
// is the empty filter and matches every record.
type Node struct {
	Op       Op
	Field    string
	Value    any
	Values   []any
	Children []Node
}

func (n Node) IsEmpty() bool {
	if n.Op == "" {
		return true
	}
	if n.Op == OpAnd || n.Op == OpOr {
		for _, c := range n.Children {
			if !c.IsEmpty() {
				return false
			}
		}
		return true
	}
	return false
}

// IsLogical reports whether n combines children.
func (n Node) IsLogical() bool {
	return n.Op == OpAnd || n.Op == OpOr
}

func Eq(field string, v any) Node { return Node{Op: OpEq, Field: field, Value: v} }
func Ne(field string, v any) Node { return Node{Op: OpNe, Field: field, Value: v} }

func Cmp(op Op, field string, v any) Node { return Node{Op: op, Field: field, Value: v} }

func In(field string, vs ...any) Node { return Node{Op: OpIn, Field: field, Values: vs} }

func Contains(field, s string) Node { return Node{Op: OpContains, Field: field, Value: s} }

// And combines nodes, dropping empty ones. A single survivor is returned
// as is.
func And(nodes ...Node) Node { return combine(OpAnd, nodes) }

// Or combines nodes, dropping empty ones.
func Or(nodes ...Node) Node { return combine(OpOr, nodes) }

func combine(op Op, nodes []Node) Node {
	kept := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.IsEmpty() {
			continue
		}
		// flatten nested nodes of the same kind
		if n.Op == op {
			kept = append(kept, n.Children...)
			continue
		}
		kept = append(kept, n)
	}
	switch len(kept) {
	case 0:
		return Node{}
	case 1:
		return kept[0]
	}
	return Node{Op: op, Children: kept}
}

// String renders the tree for logs.
func (n Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n Node) write(b *strings.Builder) {
	switch {
	case n.IsEmpty():
		b.WriteString("{}")
	case n.IsLogical():
		b.WriteString(string(n.Op))
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b)
		}
		b.WriteByte(')')
	case n.Op == OpIn:
		b.WriteString(n.Field + " in ")
		b.WriteString(formatValues(n.Values))
	default:
		b.WriteString(n.Field + " " + string(n.Op) + " ")
		b.WriteString(formatValues([]any{n.Value}))
	}
}
