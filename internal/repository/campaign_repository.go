package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/query"
)

// FindOptions carries sort and paging for Find. A zero Limit returns
// every match.
type FindOptions struct {
	Sort  []query.SortKey
	Skip  int
	Limit int
}

func (o FindOptions) check() error {
	if o.Skip < 0 || o.Limit < 0 {
		return appErrors.NewValidation("page", "skip and limit must not be negative")
	}
	return nil
}

type CampaignRepositoryInterface interface {
	Find(ctx context.Context, filter query.Node, opts FindOptions) ([]*model.Campaign, error)
	FindOne(ctx context.Context, filter query.Node) (*model.Campaign, error)
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	Count(ctx context.Context, filter query.Node) (int, error)
	Create(ctx context.Context, c *model.Campaign) error

	// Update applies u only while the record is still in state expected.
	Update(ctx context.Context, id string, expected model.State, u model.CampaignUpdate) (*model.Campaign, error)
	// CompareAndSwapState moves the record from expected to next, or
	// reports a ConflictError when another writer got there first.
	CompareAndSwapState(ctx context.Context, id string, expected, next model.State) (*model.Campaign, error)
	// Delete removes the record only if its state and raised amount still
	// match the snapshot.
	Delete(ctx context.Context, snapshot *model.Campaign) error
}

const campaignColumns = `id, slug, owner_id, title, description, category, goal_amount, raised_amount,
    start_date, end_date, status, release_status, image, video, document, links, metadata,
    created_at, updated_at`

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// CampaignRepository stores campaigns in PostgreSQL.
type CampaignRepository struct {
	DB *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var meta []byte
	err := row.Scan(
		&c.ID, &c.Slug, &c.OwnerID, &c.Title, &c.Description, &c.Category, &c.GoalAmount, &c.RaisedAmount,
		&c.StartDate, &c.EndDate, &c.Status, &c.ReleaseStatus,
		pq.Array(&c.Attachments.Image), pq.Array(&c.Attachments.Video), pq.Array(&c.Attachments.Document),
		pq.Array(&c.Links), &meta, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &c, nil
}

// ====================== Reads ======================

func (r *CampaignRepository) Find(ctx context.Context, filter query.Node, opts FindOptions) ([]*model.Campaign, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	args := &sqlArgs{}
	where, err := whereClause(filter, args)
	if err != nil {
		return nil, appErrors.NewValidation("filter", err.Error())
	}
	order, err := orderBy(opts.Sort)
	if err != nil {
		return nil, appErrors.NewValidation("sort", err.Error())
	}

	q := "SELECT " + campaignColumns + " FROM campaigns" + where + order
	if opts.Limit > 0 {
		q += " LIMIT " + args.add(opts.Limit)
	}
	if opts.Skip > 0 {
		q += " OFFSET " + args.add(opts.Skip)
	}

	rows, err := r.DB.QueryContext(ctx, q, args.values...)
	if err != nil {
		return nil, appErrors.Unexpected("find campaigns", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, appErrors.Unexpected("scan campaign", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Unexpected("find campaigns", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) FindOne(ctx context.Context, filter query.Node) (*model.Campaign, error) {
	found, err := r.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, appErrors.NewCampaignNotFound("")
	}
	return found[0], nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	q := "SELECT " + campaignColumns + " FROM campaigns WHERE id = $1"
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, appErrors.Unexpected("get campaign", err)
	}
	return c, nil
}

func (r *CampaignRepository) Count(ctx context.Context, filter query.Node) (int, error) {
	args := &sqlArgs{}
	where, err := whereClause(filter, args)
	if err != nil {
		return 0, appErrors.NewValidation("filter", err.Error())
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM campaigns"+where, args.values...).Scan(&total); err != nil {
		return 0, appErrors.Unexpected("count campaigns", err)
	}
	return total, nil
}

// ====================== Writes ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	meta, err := encodeMetadata(c.Metadata)
	if err != nil {
		return appErrors.Unexpected("create campaign", err)
	}
	q := `
        INSERT INTO campaigns (id, slug, owner_id, title, description, category, goal_amount, raised_amount,
            start_date, end_date, status, release_status, image, video, document, links, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING created_at, updated_at
    `
	err = r.DB.QueryRowContext(ctx, q,
		c.ID, c.Slug, c.OwnerID, c.Title, c.Description, c.Category, c.GoalAmount, c.RaisedAmount,
		c.StartDate, c.EndDate, c.Status, c.ReleaseStatus,
		pq.Array(nonNil(c.Attachments.Image)), pq.Array(nonNil(c.Attachments.Video)), pq.Array(nonNil(c.Attachments.Document)),
		pq.Array(nonNil(c.Links)), meta,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return classifyWrite("create campaign", c.ID, err)
}

func (r *CampaignRepository) Update(ctx context.Context, id string, expected model.State, u model.CampaignUpdate) (*model.Campaign, error) {
	args := &sqlArgs{}
	sets := []string{}
	set := func(col string, v any) { sets = append(sets, col+" = "+args.add(v)) }

	if u.Title != nil {
		set("title", *u.Title)
	}
	if u.Description != nil {
		set("description", *u.Description)
	}
	if u.Category != nil {
		set("category", *u.Category)
	}
	if u.GoalAmount != nil {
		set("goal_amount", *u.GoalAmount)
	}
	if u.StartDate != nil {
		set("start_date", *u.StartDate)
	}
	if u.EndDate != nil {
		set("end_date", *u.EndDate)
	}
	if len(u.Image) > 0 {
		set("image", pq.Array(u.Image))
	}
	if len(u.Video) > 0 {
		set("video", pq.Array(u.Video))
	}
	if len(u.Document) > 0 {
		set("document", pq.Array(u.Document))
	}
	if u.Links != nil {
		set("links", pq.Array(nonNil(*u.Links)))
	}
	if u.Status != nil {
		set("status", *u.Status)
	}
	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf(
		"UPDATE campaigns SET %s WHERE id = %s AND status = %s AND release_status = %s RETURNING %s",
		strings.Join(sets, ", "), args.add(id), args.add(expected.Status), args.add(expected.ReleaseStatus), campaignColumns,
	)
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, q, args.values...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, classifyWrite("update campaign", id, err)
	}
	return c, nil
}

func (r *CampaignRepository) CompareAndSwapState(ctx context.Context, id string, expected, next model.State) (*model.Campaign, error) {
	q := `
        UPDATE campaigns
        SET status = $1, release_status = $2, updated_at = NOW()
        WHERE id = $3 AND status = $4 AND release_status = $5
        RETURNING ` + campaignColumns
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, q, next.Status, next.ReleaseStatus, id, expected.Status, expected.ReleaseStatus))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, appErrors.Unexpected("update campaign state", err)
	}
	return c, nil
}

func (r *CampaignRepository) Delete(ctx context.Context, snapshot *model.Campaign) error {
	q := `DELETE FROM campaigns WHERE id = $1 AND status = $2 AND release_status = $3 AND raised_amount = $4`
	res, err := r.DB.ExecContext(ctx, q, snapshot.ID, snapshot.Status, snapshot.ReleaseStatus, snapshot.RaisedAmount)
	if err != nil {
		return appErrors.Unexpected("delete campaign", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return appErrors.Unexpected("delete campaign", err)
	}
	if n == 0 {
		return r.missOrConflict(ctx, snapshot.ID)
	}
	return nil
}

// missOrConflict explains why a conditional write touched no row.
func (r *CampaignRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
		return appErrors.Unexpected("check campaign", err)
	}
	if !exists {
		return appErrors.NewCampaignNotFound(id)
	}
	return appErrors.NewConflict(id)
}

func classifyWrite(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return &appErrors.ConflictError{ID: id, Reason: "slug already exists"}
		case pqCheckViolation:
			return appErrors.NewValidation("campaign", pqErr.Message)
		}
	}
	return appErrors.Unexpected(op, err)
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
