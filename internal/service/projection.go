package service

import (
	"regexp"
	"strings"

	"github.com/unclebandit/crowdfund-backend/internal/model"
)

// project keeps only the selected output fields. A nil selection returns
// the campaign itself; metadata is never part of either form.
func project(c *model.Campaign, fields []string) any {
	if fields == nil {
		return c
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := c.FieldValue(f); ok {
			out[f] = v
		}
	}
	return out
}

func projectAll(cs []*model.Campaign, fields []string) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		out[i] = project(c, fields)
	}
	return out
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a URL-safe key. The id suffix keeps slugs
// unique across campaigns sharing a title.
func Slugify(title, id string) string {
	base := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(base) > 60 {
		base = strings.TrimRight(base[:60], "-")
	}
	if base == "" {
		base = "campaign"
	}
	suffix := id
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return base + "-" + suffix
}
