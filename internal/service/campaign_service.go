// internal/service/campaign_service.go
package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/lifecycle"
	"github.com/unclebandit/crowdfund-backend/internal/metrics"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/queue"
	"github.com/unclebandit/crowdfund-backend/internal/query"
	"github.com/unclebandit/crowdfund-backend/internal/repository"
	"github.com/unclebandit/crowdfund-backend/internal/validator"
)

const (
	searchMinLength = 2
	searchLimit     = 10
)

var searchFields = []string{"id", "title", "slug", "description", "category"}

type CampaignService struct {
	Repo      repository.CampaignRepositoryInterface
	Queue     queue.Publisher
	Logger    *zap.Logger
	Validator *validator.Validator

	// DeleteGuard refuses to delete campaigns holding undisbursed funds.
	DeleteGuard bool

	now func() time.Time
}

func NewCampaignService(repo repository.CampaignRepositoryInterface, q queue.Publisher, logger *zap.Logger) *CampaignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		Repo:        repo,
		Queue:       q,
		Logger:      logger,
		Validator:   validator.New(),
		DeleteGuard: true,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CampaignInput is the create payload.
type CampaignInput struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"required"`
	Category    string            `json:"category" validate:"required,max=100"`
	GoalAmount  float64           `json:"goalAmount" validate:"gt=0"`
	StartDate   time.Time         `json:"startDate" validate:"required"`
	EndDate     time.Time         `json:"endDate" validate:"required,gtefield=StartDate"`
	Attachments model.Attachments `json:"attachments"`
	Links       []string          `json:"links" validate:"omitempty,dive,url"`
}

// UpdateInput is the partial update payload. Absent fields are left
// untouched; status may only be set by a manager.
type UpdateInput struct {
	Title       *string            `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description" validate:"omitempty,min=1"`
	Category    *string            `json:"category" validate:"omitempty,min=1,max=100"`
	GoalAmount  *float64           `json:"goalAmount" validate:"omitempty,gt=0"`
	StartDate   *time.Time         `json:"startDate"`
	EndDate     *time.Time         `json:"endDate"`
	Attachments *model.Attachments `json:"attachments"`
	Links       *[]string          `json:"links" validate:"omitempty,dive,url"`
	Status      *string            `json:"status" validate:"omitempty,oneof=approved rejected"`
}

func (in UpdateInput) toUpdate() model.CampaignUpdate {
	u := model.CampaignUpdate{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		GoalAmount:  in.GoalAmount,
		Links:       in.Links,
	}
	if in.StartDate != nil {
		t := in.StartDate.UTC()
		u.StartDate = &t
	}
	if in.EndDate != nil {
		t := in.EndDate.UTC()
		u.EndDate = &t
	}
	if in.Attachments != nil {
		u.Image = in.Attachments.Image
		u.Video = in.Attachments.Video
		u.Document = in.Attachments.Document
	}
	return u
}

// ListResult is one page of a list query.
type ListResult struct {
	Campaigns []any
	Count     int
	Total     int
	Page      int
	Pages     int
}

// ====================== Queries ======================

// ListCampaigns translates list parameters and runs them against the
// repository.
func (s *CampaignService) ListCampaigns(ctx context.Context, values url.Values) (*ListResult, error) {
	q, err := query.Parse(values)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, q)
}

func (s *CampaignService) list(ctx context.Context, q *query.Query) (*ListResult, error) {
	s.Logger.Debug("list campaigns",
		zap.Stringer("filter", q.Filter),
		zap.Int("page", q.Page),
		zap.Int("limit", q.Limit),
	)

	total, err := s.Repo.Count(ctx, q.Filter)
	if err != nil {
		return nil, s.fail("count campaigns", err)
	}
	found, err := s.Repo.Find(ctx, q.Filter, repository.FindOptions{Sort: q.Sort, Skip: q.Skip(), Limit: q.Limit})
	if err != nil {
		return nil, s.fail("find campaigns", err)
	}
	return &ListResult{
		Campaigns: projectAll(found, q.Fields),
		Count:     len(found),
		Total:     total,
		Page:      q.Page,
		Pages:     query.Pages(total, q.Limit),
	}, nil
}

// GetCampaign resolves an identifier or slug.
func (s *CampaignService) GetCampaign(ctx context.Context, key string) (*model.Campaign, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, appErrors.NewCampaignNotFound(key)
	}
	c, err := s.Repo.FindOne(ctx, query.IDOrSlug(key))
	if err != nil {
		var nf *appErrors.NotFoundError
		if errors.As(err, &nf) {
			return nil, appErrors.NewCampaignNotFound(key)
		}
		return nil, s.fail("get campaign", err)
	}
	return c, nil
}

// ActiveCampaigns lists approved campaigns other than excludeID.
func (s *CampaignService) ActiveCampaigns(ctx context.Context, excludeID string) ([]*model.Campaign, error) {
	filter := query.Eq("status", string(model.StatusApproved))
	if excludeID != "" {
		filter = query.And(filter, query.Ne("id", excludeID))
	}
	found, err := s.Repo.Find(ctx, filter, repository.FindOptions{
		Sort: []query.SortKey{{Field: "updatedAt", Desc: true}},
	})
	if err != nil {
		return nil, s.fail("find active campaigns", err)
	}
	return found, nil
}

// MyCampaigns lists the actor's own campaigns with the usual list
// parameters.
func (s *CampaignService) MyCampaigns(ctx context.Context, actor *model.Actor, values url.Values) (*ListResult, error) {
	if actor.Anonymous() {
		return nil, appErrors.NewForbidden("list")
	}
	q, err := query.Parse(values)
	if err != nil {
		return nil, err
	}
	q.Filter = query.And(q.Filter, query.Eq("ownerId", actor.ID))
	return s.list(ctx, q)
}

// SearchCampaigns is the public type-ahead over approved campaigns.
func (s *CampaignService) SearchCampaigns(ctx context.Context, text string) ([]any, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < searchMinLength {
		return []any{}, nil
	}
	filter := query.And(query.Eq("status", string(model.StatusApproved)), query.Search(text))
	found, err := s.Repo.Find(ctx, filter, repository.FindOptions{
		Sort:  []query.SortKey{{Field: "title"}},
		Limit: searchLimit,
	})
	if err != nil {
		return nil, s.fail("search campaigns", err)
	}
	return projectAll(found, searchFields), nil
}

// OwnerHasCampaign reports whether the actor owns a campaign in status.
// An empty status means approved.
func (s *CampaignService) OwnerHasCampaign(ctx context.Context, actor *model.Actor, status string) (bool, error) {
	if actor.Anonymous() {
		return false, nil
	}
	if status == "" {
		status = string(model.StatusApproved)
	}
	if !model.Status(status).Valid() {
		return false, appErrors.NewValidation("status", "unknown status "+status)
	}
	n, err := s.Repo.Count(ctx, query.And(query.Eq("ownerId", actor.ID), query.Eq("status", status)))
	if err != nil {
		return false, s.fail("count owned campaigns", err)
	}
	return n > 0, nil
}

// ====================== Mutations ======================

func (s *CampaignService) CreateCampaign(ctx context.Context, actor *model.Actor, in CampaignInput) (*model.Campaign, error) {
	if actor.Anonymous() {
		return nil, appErrors.NewForbidden("create")
	}
	if err := s.Validator.Validate(in); err != nil {
		return nil, err
	}

	id := primitive.NewObjectID().Hex()
	c := &model.Campaign{
		ID:            id,
		Slug:          Slugify(in.Title, id),
		OwnerID:       actor.ID,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Category:      strings.TrimSpace(in.Category),
		GoalAmount:    in.GoalAmount,
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		Status:        model.StatusPending,
		ReleaseStatus: model.ReleaseNone,
		Attachments:   in.Attachments,
		Links:         in.Links,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return nil, s.fail("create campaign", err)
	}
	s.Logger.Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("slug", c.Slug),
		zap.String("owner_id", c.OwnerID),
	)
	return c, nil
}

// UpdateCampaign applies a partial update. Content and an optional status
// change are written together in one conditional update, so a lost race
// leaves the record untouched.
func (s *CampaignService) UpdateCampaign(ctx context.Context, actor *model.Actor, key string, in UpdateInput) (*model.Campaign, error) {
	if err := s.Validator.Validate(in); err != nil {
		return nil, err
	}
	c, err := s.GetCampaign(ctx, key)
	if err != nil {
		return nil, err
	}
	if !actor.CanModify(c) {
		return nil, appErrors.NewForbidden("update")
	}
	if in.Status != nil && !actor.IsManager() {
		return nil, appErrors.NewForbidden("change the status of")
	}

	u := in.toUpdate()
	if u.Empty() && in.Status == nil {
		return nil, appErrors.NewValidation("body", "no updatable fields supplied")
	}

	if !u.Empty() {
		if err := lifecycle.CheckEdit(c, u); err != nil {
			return nil, err
		}
		preview := *c
		u.Apply(&preview)
		if preview.EndDate.Before(preview.StartDate) {
			return nil, appErrors.NewValidation("endDate", "must not be before startDate")
		}
	}

	// the status decision is made before anything is written, and lands
	// in the same conditional update as the content
	action := "update"
	if in.Status != nil && model.Status(*in.Status) != c.Status {
		decide := lifecycle.Approve
		action = "approve"
		if model.Status(*in.Status) == model.StatusRejected {
			decide, action = lifecycle.Reject, "reject"
		}
		next, err := decide(c)
		if err != nil {
			metrics.Transition(action, metrics.OutcomeRejected)
			return nil, err
		}
		u.Status = &next.Status
	}
	if u.Empty() {
		return c, nil
	}

	updated, err := s.Repo.Update(ctx, c.ID, c.State(), u)
	if err != nil {
		var conflict *appErrors.ConflictError
		if u.Status != nil {
			if errors.As(err, &conflict) {
				metrics.Transition(action, metrics.OutcomeConflict)
			} else {
				metrics.Transition(action, metrics.OutcomeError)
			}
		}
		return nil, s.fail("update campaign", err)
	}
	if u.Status != nil {
		metrics.Transition(action, metrics.OutcomeApplied)
	}
	s.Logger.Info("campaign updated",
		zap.String("campaign_id", updated.ID),
		zap.String("actor_id", actor.ID),
		zap.String("from_status", string(c.Status)),
		zap.String("to_status", string(updated.Status)),
	)
	return updated, nil
}

func (s *CampaignService) DeleteCampaign(ctx context.Context, actor *model.Actor, key string) error {
	c, err := s.GetCampaign(ctx, key)
	if err != nil {
		return err
	}
	if !actor.CanModify(c) {
		return appErrors.NewForbidden("delete")
	}
	if err := lifecycle.CheckDelete(c, s.DeleteGuard); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, c); err != nil {
		return s.fail("delete campaign", err)
	}
	s.Logger.Info("campaign deleted", zap.String("campaign_id", c.ID), zap.String("actor_id", actor.ID))
	return nil
}

// fail logs unclassified errors and wraps them; client-facing errors pass
// through unchanged.
func (s *CampaignService) fail(op string, err error) error {
	err = appErrors.Unexpected(op, err)
	if !appErrors.Classified(err) {
		s.Logger.Error(op+" failed", zap.Error(err))
	}
	return err
}
