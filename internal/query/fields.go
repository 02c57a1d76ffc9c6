package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
)

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindTime
	KindOpaque // output only
)

// Field describes one campaign attribute as seen by clients, and where
// each backend stores it.
type Field struct {
	Name       string
	Column     string
	Bson       string
	Kind       Kind
	Filterable bool
	Sortable   bool
}

var fields = map[string]Field{
	"id":            {Name: "id", Column: "id", Bson: "_id", Kind: KindString, Filterable: true, Sortable: true},
	"slug":          {Name: "slug", Column: "slug", Bson: "slug", Kind: KindString, Filterable: true, Sortable: true},
	"ownerId":       {Name: "ownerId", Column: "owner_id", Bson: "owner_id", Kind: KindString, Filterable: true},
	"title":         {Name: "title", Column: "title", Bson: "title", Kind: KindString, Filterable: true, Sortable: true},
	"description":   {Name: "description", Column: "description", Bson: "description", Kind: KindString, Filterable: true},
	"category":      {Name: "category", Column: "category", Bson: "category", Kind: KindString, Filterable: true, Sortable: true},
	"goalAmount":    {Name: "goalAmount", Column: "goal_amount", Bson: "goal_amount", Kind: KindNumber, Filterable: true, Sortable: true},
	"raisedAmount":  {Name: "raisedAmount", Column: "raised_amount", Bson: "raised_amount", Kind: KindNumber, Filterable: true, Sortable: true},
	"startDate":     {Name: "startDate", Column: "start_date", Bson: "start_date", Kind: KindTime, Filterable: true, Sortable: true},
	"endDate":       {Name: "endDate", Column: "end_date", Bson: "end_date", Kind: KindTime, Filterable: true, Sortable: true},
	"status":        {Name: "status", Column: "status", Bson: "status", Kind: KindString, Filterable: true, Sortable: true},
	"releaseStatus": {Name: "releaseStatus", Column: "release_status", Bson: "release_status", Kind: KindString, Filterable: true, Sortable: true},
	"attachments":   {Name: "attachments", Bson: "attachments", Kind: KindOpaque},
	"links":         {Name: "links", Column: "links", Bson: "links", Kind: KindOpaque},
	"createdAt":     {Name: "createdAt", Column: "created_at", Bson: "created_at", Kind: KindTime, Filterable: true, Sortable: true},
	"updatedAt":     {Name: "updatedAt", Column: "updated_at", Bson: "updated_at", Kind: KindTime, Filterable: true, Sortable: true},
}

// internalFields never leave the service, whatever the client selects.
var internalFields = map[string]bool{"metadata": true}

// Lookup returns the registered field with the given client-facing name.
func Lookup(name string) (Field, bool) {
	f, ok := fields[name]
	return f, ok
}

func filterField(name string) (Field, error) {
	f, ok := fields[name]
	if !ok || !f.Filterable {
		return Field{}, appErrors.NewValidation("filter", fmt.Sprintf("unknown field %q", name))
	}
	return f, nil
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// convert coerces a raw client value (a query-string or JSON scalar) to
// the field's kind.
func convert(f Field, raw any) (any, error) {
	switch f.Kind {
	case KindNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, appErrors.NewValidation(f.Name, fmt.Sprintf("%q is not a number", v))
			}
			return n, nil
		}
	case KindTime:
		if s, ok := raw.(string); ok {
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
					return t.UTC(), nil
				}
			}
			return nil, appErrors.NewValidation(f.Name, fmt.Sprintf("%q is not a date", s))
		}
	case KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	}
	return nil, appErrors.NewValidation(f.Name, fmt.Sprintf("unsupported value %v", raw))
}

func formatValues(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		switch t := v.(type) {
		case string:
			parts[i] = strconv.Quote(t)
		case time.Time:
			parts[i] = t.Format(time.RFC3339)
		default:
			parts[i] = fmt.Sprint(t)
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
