package query

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// reserved keys steer the query and are never field filters. "filter"
// carries the JSON form of the field filters.
var reserved = map[string]bool{
	"sort":   true,
	"select": true,
	"page":   true,
	"limit":  true,
	"search": true,
	"filter": true,
}

var (
	bracketKey      = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)\[([^\]]*)\]$`)
	objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

type SortKey struct {
	Field string
	Desc  bool
}

// Query is the translated form of a list request.
type Query struct {
	Filter Node
	Sort   []SortKey
	Fields []string // projection; nil selects every public field
	Page   int
	Limit  int
}

// Skip is the number of records to pass over before the current page.
func (q *Query) Skip() int {
	return Skip(q.Page, q.Limit)
}

func Skip(page, limit int) int {
	return (page - 1) * limit
}

// Pages is the page count needed to show total records.
func Pages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Parse translates list query parameters. Only gt, gte, lt, lte and in
// are ever turned into comparison nodes.
func Parse(values url.Values) (*Query, error) {
	q := &Query{
		Page:  PositiveInt(values.Get("page"), DefaultPage),
		Limit: PositiveInt(values.Get("limit"), DefaultLimit),
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return nil, appErrors.NewValidation("page", "out of range")
	}

	filter, err := fieldFilters(values)
	if err != nil {
		return nil, err
	}
	if raw := values.Get("filter"); raw != "" {
		jf, err := ParseJSONFilter([]byte(raw))
		if err != nil {
			return nil, err
		}
		filter = And(filter, jf)
	}
	if s := strings.TrimSpace(values.Get("search")); s != "" {
		filter = And(filter, Search(s))
	}
	q.Filter = filter

	if q.Fields, err = parseSelect(values.Get("select")); err != nil {
		return nil, err
	}
	if q.Sort, err = ParseSort(values.Get("sort")); err != nil {
		return nil, err
	}
	return q, nil
}

// Search matches s as a case-insensitive literal in title or description.
func Search(s string) Node {
	return Or(Contains("title", s), Contains("description", s))
}

// IDOrSlug builds the single-record lookup: the key is tried as an
// identifier only when it has the identifier's exact shape.
func IDOrSlug(key string) Node {
	if objectIDPattern.MatchString(key) {
		return Or(Eq("id", strings.ToLower(key)), Eq("slug", key))
	}
	return Eq("slug", key)
}

// IsObjectID reports whether s has the 24 hex digit identifier shape.
func IsObjectID(s string) bool {
	return objectIDPattern.MatchString(s)
}

// PositiveInt parses s, falling back to def when s is absent, not a
// number, or not positive.
func PositiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func fieldFilters(values url.Values) (Node, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	nodes := make([]Node, 0, len(keys))
	for _, key := range keys {
		name, token := key, ""
		if m := bracketKey.FindStringSubmatch(key); m != nil {
			name, token = m[1], m[2]
		}
		f, err := filterField(name)
		if err != nil {
			return Node{}, err
		}
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		var n Node
		if len(vals) > 1 && token == "" {
			// repeated plain keys behave like an in-list
			n, err = inNode(f, stringsToAny(vals))
		} else {
			n, err = condition(f, token, vals[len(vals)-1])
		}
		if err != nil {
			return Node{}, err
		}
		nodes = append(nodes, n)
	}
	return And(nodes...), nil
}

// condition builds the node for one field/operator pair. An operator
// token outside the whitelist is ignored and the value is matched
// literally.
func condition(f Field, token string, raw any) (Node, error) {
	op, ok := comparisonOps[token]
	if !ok {
		v, err := convert(f, raw)
		if err != nil {
			return Node{}, err
		}
		return Eq(f.Name, v), nil
	}
	if op == OpIn {
		var items []any
		switch t := raw.(type) {
		case string:
			items = stringsToAny(splitList(t))
		case []any:
			items = t
		default:
			items = []any{t}
		}
		return inNode(f, items)
	}
	v, err := convert(f, raw)
	if err != nil {
		return Node{}, err
	}
	return Cmp(op, f.Name, v), nil
}

func inNode(f Field, items []any) (Node, error) {
	if len(items) == 0 {
		return Node{}, appErrors.NewValidation(f.Name, "in-list is empty")
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		v, err := convert(f, it)
		if err != nil {
			return Node{}, err
		}
		out = append(out, v)
	}
	return In(f.Name, out...), nil
}

// ParseJSONFilter walks a JSON object of the form
// {"field": value, "field": {"gte": value}} with the same rules as the
// query-string form.
func ParseJSONFilter(raw []byte) (Node, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Node{}, appErrors.NewValidation("filter", "malformed JSON: "+err.Error())
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var nodes []Node
	for _, name := range keys {
		f, err := filterField(name)
		if err != nil {
			return Node{}, err
		}
		switch v := doc[name].(type) {
		case map[string]any:
			ops := make([]string, 0, len(v))
			for op := range v {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				n, err := condition(f, op, v[op])
				if err != nil {
					return Node{}, err
				}
				nodes = append(nodes, n)
			}
		case []any:
			n, err := inNode(f, v)
			if err != nil {
				return Node{}, err
			}
			nodes = append(nodes, n)
		default:
			n, err := condition(f, "", v)
			if err != nil {
				return Node{}, err
			}
			nodes = append(nodes, n)
		}
	}
	return And(nodes...), nil
}

// ParseSort reads "title,-goalAmount" style specs. An empty spec sorts by
// most recently updated.
func ParseSort(spec string) ([]SortKey, error) {
	parts := splitList(spec)
	if len(parts) == 0 {
		return []SortKey{{Field: "updatedAt", Desc: true}}, nil
	}
	keys := make([]SortKey, 0, len(parts))
	for _, p := range parts {
		k := SortKey{Field: p}
		switch p[0] {
		case '-':
			k = SortKey{Field: p[1:], Desc: true}
		case '+':
			k.Field = p[1:]
		}
		f, ok := fields[k.Field]
		if !ok || !f.Sortable {
			return nil, appErrors.NewValidation("sort", fmt.Sprintf("cannot sort by %q", k.Field))
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func parseSelect(spec string) ([]string, error) {
	parts := splitList(spec)
	if len(parts) == 0 {
		return nil, nil
	}
	out := []string{"id"}
	seen := map[string]bool{"id": true}
	for _, p := range parts {
		if internalFields[p] {
			continue
		}
		if _, ok := fields[p]; !ok {
			return nil, appErrors.NewValidation("select", fmt.Sprintf("unknown field %q", p))
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
