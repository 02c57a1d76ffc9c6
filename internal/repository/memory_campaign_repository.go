package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/query"
)

// MemoryCampaignRepository keeps campaigns in process. It backs local
// development and tests and honours the same conditional-write contract
// as the database backends.
type MemoryCampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*model.Campaign
	now       func() time.Time
}

func NewMemoryCampaignRepository(seed ...*model.Campaign) *MemoryCampaignRepository {
	r := &MemoryCampaignRepository{
		campaigns: make(map[string]*model.Campaign),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, c := range seed {
		r.campaigns[c.ID] = clone(c)
	}
	return r
}

func clone(c *model.Campaign) *model.Campaign {
	cp := *c
	cp.Attachments.Image = append([]string(nil), c.Attachments.Image...)
	cp.Attachments.Video = append([]string(nil), c.Attachments.Video...)
	cp.Attachments.Document = append([]string(nil), c.Attachments.Document...)
	cp.Links = append([]string(nil), c.Links...)
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func (r *MemoryCampaignRepository) Find(ctx context.Context, filter query.Node, opts FindOptions) ([]*model.Campaign, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []*model.Campaign{}
	for _, c := range r.campaigns {
		ok, err := matches(c, filter)
		if err != nil {
			return nil, appErrors.NewValidation("filter", err.Error())
		}
		if ok {
			matched = append(matched, c)
		}
	}
	for _, k := range opts.Sort {
		if _, ok := query.Lookup(k.Field); !ok {
			return nil, appErrors.NewValidation("sort", fmt.Sprintf("cannot sort by %q", k.Field))
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		for _, k := range opts.Sort {
			a, _ := matched[i].FieldValue(k.Field)
			b, _ := matched[j].FieldValue(k.Field)
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].ID < matched[j].ID
	})

	if opts.Skip >= len(matched) {
		return []*model.Campaign{}, nil
	}
	matched = matched[opts.Skip:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	out := make([]*model.Campaign, len(matched))
	for i, c := range matched {
		out[i] = clone(c)
	}
	return out, nil
}

func (r *MemoryCampaignRepository) FindOne(ctx context.Context, filter query.Node) (*model.Campaign, error) {
	found, err := r.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, appErrors.NewCampaignNotFound("")
	}
	return found[0], nil
}

func (r *MemoryCampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return clone(c), nil
}

func (r *MemoryCampaignRepository) Count(ctx context.Context, filter query.Node) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, c := range r.campaigns {
		ok, err := matches(c, filter)
		if err != nil {
			return 0, appErrors.NewValidation("filter", err.Error())
		}
		if ok {
			total++
		}
	}
	return total, nil
}

func (r *MemoryCampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; ok {
		return &appErrors.ConflictError{ID: c.ID, Reason: "id already exists"}
	}
	for _, existing := range r.campaigns {
		if existing.Slug == c.Slug {
			return &appErrors.ConflictError{ID: c.ID, Reason: "slug already exists"}
		}
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.campaigns[c.ID] = clone(c)
	return nil
}

// locked returns the stored record if it is still in state expected.
// Callers hold the write lock.
func (r *MemoryCampaignRepository) locked(id string, expected model.State) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	if c.State() != expected {
		return nil, appErrors.NewConflict(id)
	}
	return c, nil
}

func (r *MemoryCampaignRepository) Update(ctx context.Context, id string, expected model.State, u model.CampaignUpdate) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.locked(id, expected)
	if err != nil {
		return nil, err
	}
	u.Apply(c)
	c.UpdatedAt = r.now()
	return clone(c), nil
}

func (r *MemoryCampaignRepository) CompareAndSwapState(ctx context.Context, id string, expected, next model.State) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.locked(id, expected)
	if err != nil {
		return nil, err
	}
	c.Status, c.ReleaseStatus = next.Status, next.ReleaseStatus
	c.UpdatedAt = r.now()
	return clone(c), nil
}

func (r *MemoryCampaignRepository) Delete(ctx context.Context, snapshot *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.locked(snapshot.ID, snapshot.State())
	if err != nil {
		return err
	}
	if c.RaisedAmount != snapshot.RaisedAmount {
		return appErrors.NewConflict(snapshot.ID)
	}
	delete(r.campaigns, snapshot.ID)
	return nil
}

// matches evaluates a filter tree against one record.
func matches(c *model.Campaign, n query.Node) (bool, error) {
	if n.IsEmpty() {
		return true, nil
	}
	switch n.Op {
	case query.OpAnd:
		for _, child := range n.Children {
			ok, err := matches(c, child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case query.OpOr:
		for _, child := range n.Children {
			ok, err := matches(c, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	v, ok := c.FieldValue(n.Field)
	if !ok {
		return false, fmt.Errorf("unknown field %q", n.Field)
	}
	switch n.Op {
	case query.OpEq:
		return compare(v, n.Value) == 0, nil
	case query.OpNe:
		return compare(v, n.Value) != 0, nil
	case query.OpGt:
		return sameKind(v, n.Value) && compare(v, n.Value) > 0, nil
	case query.OpGte:
		return sameKind(v, n.Value) && compare(v, n.Value) >= 0, nil
	case query.OpLt:
		return sameKind(v, n.Value) && compare(v, n.Value) < 0, nil
	case query.OpLte:
		return sameKind(v, n.Value) && compare(v, n.Value) <= 0, nil
	case query.OpIn:
		for _, want := range n.Values {
			if compare(v, want) == 0 {
				return true, nil
			}
		}
		return false, nil
	case query.OpContains:
		s, _ := v.(string)
		sub, _ := n.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
	}
	return false, fmt.Errorf("unsupported operator %q", n.Op)
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case float64:
		_, ok := b.(float64)
		return ok
	case time.Time:
		_, ok := b.(time.Time)
		return ok
	}
	return false
}

// compare orders two scalar values of the same kind. Values of
// different kinds compare as unequal.
func compare(a, b any) int {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return -1
}

var _ CampaignRepositoryInterface = (*MemoryCampaignRepository)(nil)
