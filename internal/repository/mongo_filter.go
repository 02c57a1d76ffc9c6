package repository

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/unclebandit/crowdfund-backend/internal/query"
)

var mongoOps = map[query.Op]string{
	query.OpEq:  "$eq",
	query.OpNe:  "$ne",
	query.OpGt:  "$gt",
	query.OpGte: "$gte",
	query.OpLt:  "$lt",
	query.OpLte: "$lte",
}

func bsonField(field string) (string, error) {
	f, ok := query.Lookup(field)
	if !ok || f.Bson == "" {
		return "", fmt.Errorf("field %q has no document key", field)
	}
	return f.Bson, nil
}

// mongoFilter compiles a filter tree into a query document. Operator
// keys are emitted here and never read from client input.
func mongoFilter(n query.Node) (bson.M, error) {
	if n.IsEmpty() {
		return bson.M{}, nil
	}
	return compileMongo(n)
}

func compileMongo(n query.Node) (bson.M, error) {
	if n.IsLogical() {
		parts := make(bson.A, 0, len(n.Children))
		for _, c := range n.Children {
			if c.IsEmpty() {
				continue
			}
			p, err := compileMongo(c)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			return bson.M{}, nil
		}
		return bson.M{"$" + string(n.Op): parts}, nil
	}

	key, err := bsonField(n.Field)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case query.OpIn:
		vals := n.Values
		if vals == nil {
			vals = []any{}
		}
		return bson.M{key: bson.M{"$in": vals}}, nil
	case query.OpContains:
		s, _ := n.Value.(string)
		return bson.M{key: primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}}, nil
	}
	op, ok := mongoOps[n.Op]
	if !ok {
		return nil, fmt.Errorf("unsupported operator %q", n.Op)
	}
	return bson.M{key: bson.M{op: n.Value}}, nil
}

func mongoSort(keys []query.SortKey) (bson.D, error) {
	out := make(bson.D, 0, len(keys)+1)
	hasID := false
	for _, k := range keys {
		key, err := bsonField(k.Field)
		if err != nil {
			return nil, err
		}
		dir := 1
		if k.Desc {
			dir = -1
		}
		if key == "_id" {
			hasID = true
		}
		out = append(out, bson.E{Key: key, Value: dir})
	}
	if !hasID {
		out = append(out, bson.E{Key: "_id", Value: 1})
	}
	return out, nil
}
