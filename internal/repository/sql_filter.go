package repository

import (
	"fmt"
	"strings"

	"github.com/unclebandit/crowdfund-backend/internal/query"
)

// sqlArgs collects positional parameters while a statement is built.
type sqlArgs struct {
	values []any
}

func (a *sqlArgs) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func column(field string) (string, error) {
	f, ok := query.Lookup(field)
	if !ok || f.Column == "" {
		return "", fmt.Errorf("field %q has no column", field)
	}
	return f.Column, nil
}

// whereClause compiles a filter tree into a WHERE clause. Every value
// becomes a parameter; column names come only from the field registry.
func whereClause(n query.Node, args *sqlArgs) (string, error) {
	if n.IsEmpty() {
		return "", nil
	}
	cond, err := compileSQL(n, args)
	if err != nil {
		return "", err
	}
	return " WHERE " + cond, nil
}

func compileSQL(n query.Node, args *sqlArgs) (string, error) {
	if n.IsLogical() {
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			if c.IsEmpty() {
				continue
			}
			p, err := compileSQL(c, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			return "TRUE", nil
		}
		sep := " AND "
		if n.Op == query.OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	}

	col, err := column(n.Field)
	if err != nil {
		return "", err
	}
	switch n.Op {
	case query.OpEq:
		return col + " = " + args.add(n.Value), nil
	case query.OpNe:
		return col + " <> " + args.add(n.Value), nil
	case query.OpGt:
		return col + " > " + args.add(n.Value), nil
	case query.OpGte:
		return col + " >= " + args.add(n.Value), nil
	case query.OpLt:
		return col + " < " + args.add(n.Value), nil
	case query.OpLte:
		return col + " <= " + args.add(n.Value), nil
	case query.OpIn:
		if len(n.Values) == 0 {
			return "FALSE", nil
		}
		ph := make([]string, len(n.Values))
		for i, v := range n.Values {
			ph[i] = args.add(v)
		}
		return col + " IN (" + strings.Join(ph, ", ") + ")", nil
	case query.OpContains:
		s, _ := n.Value.(string)
		return col + " ILIKE " + args.add("%"+escapeLike(s)+"%") + ` ESCAPE '\'`, nil
	}
	return "", fmt.Errorf("unsupported operator %q", n.Op)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderBy renders the sort keys, with id as the final tie-breaker so
// pages never overlap.
func orderBy(keys []query.SortKey) (string, error) {
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		col, err := column(k.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
