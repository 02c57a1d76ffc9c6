package service_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/repository"
	"github.com/unclebandit/crowdfund-backend/internal/service"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	topics []string
	events []model.LifecycleEvent
	err    error
}

func (m *MockPublisher) Publish(topic string, ev model.LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.topics = append(m.topics, topic)
	m.events = append(m.events, ev)
	return nil
}

func (m *MockPublisher) Events() []model.LifecycleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.LifecycleEvent(nil), m.events...)
}

const (
	medicalID = "64b7f0c2a1d3e4f5a6b7c801"
	carID     = "64b7f0c2a1d3e4f5a6b7c802"
	pendingID = "64b7f0c2a1d3e4f5a6b7c803"
	doneID    = "64b7f0c2a1d3e4f5a6b7c804"

	ownerID = "user-1"
)

var (
	owner   = &model.Actor{ID: ownerID, Role: model.RoleUser}
	other   = &model.Actor{ID: "user-2", Role: model.RoleUser}
	manager = &model.Actor{ID: "admin-1", Role: model.RoleManager}
)

func fixtures() []*model.Campaign {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return []*model.Campaign{
		{ID: medicalID, Slug: "medical-fund", OwnerID: ownerID, Title: "Medical Fund", Description: "Help with hospital bills",
			Category: "health", GoalAmount: 5000, RaisedAmount: 1200, StartDate: start, EndDate: end,
			Status: model.StatusApproved, ReleaseStatus: model.ReleaseNone,
			Metadata: map[string]any{"reviewer": "internal"}},
		{ID: carID, Slug: "car-repair", OwnerID: "user-3", Title: "Car Repair", Description: "Fix my engine",
			Category: "transport", GoalAmount: 800, RaisedAmount: 0, StartDate: start, EndDate: end,
			Status: model.StatusApproved, ReleaseStatus: model.ReleaseNone},
		{ID: pendingID, Slug: "new-roof", OwnerID: ownerID, Title: "New Roof", Description: "Storm damage",
			Category: "housing", GoalAmount: 3000, StartDate: start, EndDate: end,
			Status: model.StatusPending, ReleaseStatus: model.ReleaseNone},
		{ID: doneID, Slug: "finished", OwnerID: "user-3", Title: "Finished", Description: "All done",
			Category: "health", GoalAmount: 100, RaisedAmount: 100, StartDate: start, EndDate: end,
			Status: model.StatusCompleted, ReleaseStatus: model.ReleaseReleased},
	}
}

func newService(t *testing.T) (*service.CampaignService, *MockPublisher) {
	t.Helper()
	pub := &MockPublisher{}
	repo := repository.NewMemoryCampaignRepository(fixtures()...)
	return service.NewCampaignService(repo, pub, nil), pub
}

func errorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.Error(t, err)
	require.True(t, errors.As(err, &target), "unexpected error type %T: %v", err, err)
	return target
}

func TestSearchCampaigns(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	got, err := svc.SearchCampaigns(ctx, "ed")
	require.NoError(t, err)
	require.Len(t, got, 1)
	row := got[0].(map[string]any)
	assert.Equal(t, "Medical Fund", row["title"])
	assert.Equal(t, "medical-fund", row["slug"])
	assert.NotContains(t, row, "goalAmount")

	got, err = svc.SearchCampaigns(ctx, "e")
	require.NoError(t, err)
	assert.Empty(t, got)

	// pending campaigns are not searchable
	got, err = svc.SearchCampaigns(ctx, "roof")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetCampaignNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	nf := errorAs[*appErrors.NotFoundError](t, func() error { _, err := svc.GetCampaign(ctx, "ffffffffffffffffffffffff"); return err }())
	assert.Equal(t, "ffffffffffffffffffffffff", nf.Key)

	errorAs[*appErrors.NotFoundError](t, func() error { _, err := svc.GetCampaign(ctx, "no-such-slug"); return err }())

	c, err := svc.GetCampaign(ctx, "car-repair")
	require.NoError(t, err)
	assert.Equal(t, carID, c.ID)

	c, err = svc.GetCampaign(ctx, "64B7F0C2A1D3E4F5A6B7C801")
	require.NoError(t, err)
	assert.Equal(t, "Medical Fund", c.Title)
}

func TestListCampaignsProjection(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.ListCampaigns(context.Background(), url.Values{
		"status": {"approved"},
		"select": {"title,metadata"},
		"sort":   {"title"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []any{
		map[string]any{"id": carID, "title": "Car Repair"},
		map[string]any{"id": medicalID, "title": "Medical Fund"},
	}, res.Campaigns)
}

func TestListCampaignsRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ListCampaigns(context.Background(), url.Values{"goalAmount[gte]": {"many"}})
	errorAs[*appErrors.ValidationError](t, err)
}

func TestCreateCampaign(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	in := service.CampaignInput{
		Title:       "School Fees!",
		Description: "Tuition for next term",
		Category:    "education",
		GoalAmount:  900,
		StartDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Attachments: model.Attachments{Image: []string{"uploads/a.png"}},
		Links:       []string{"https://example.org/fees"},
	}

	c, err := svc.CreateCampaign(ctx, owner, in)
	require.NoError(t, err)
	assert.Len(t, c.ID, 24)
	assert.Equal(t, "school-fees-"+c.ID[18:], c.Slug)
	assert.Equal(t, ownerID, c.OwnerID)
	assert.Equal(t, model.StatusPending, c.Status)
	assert.Equal(t, model.ReleaseNone, c.ReleaseStatus)
	assert.Zero(t, c.RaisedAmount)

	stored, err := svc.GetCampaign(ctx, c.Slug)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.ID)

	_, err = svc.CreateCampaign(ctx, nil, in)
	errorAs[*appErrors.ForbiddenError](t, err)

	bad := in
	bad.GoalAmount = 0
	ve := errorAs[*appErrors.ValidationError](t, func() error { _, err := svc.CreateCampaign(ctx, owner, bad); return err }())
	assert.Equal(t, "goalAmount", ve.Field)

	bad = in
	bad.EndDate = in.StartDate.Add(-time.Hour)
	ve = errorAs[*appErrors.ValidationError](t, func() error { _, err := svc.CreateCampaign(ctx, owner, bad); return err }())
	assert.Equal(t, "endDate", ve.Field)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "medical-fund-abcdef", service.Slugify("  Medical   Fund!! ", "000000000000000000abcdef"))
	assert.Equal(t, "campaign-abcdef", service.Slugify("!!!", "000000000000000000abcdef"))
}

func TestUpdateCampaign(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	title := "Medical Fund 2"

	c, err := svc.UpdateCampaign(ctx, owner, medicalID, service.UpdateInput{
		Title:       &title,
		Attachments: &model.Attachments{Video: []string{"uploads/v.mp4"}},
	})
	require.NoError(t, err)
	assert.Equal(t, title, c.Title)
	assert.Equal(t, []string{"uploads/v.mp4"}, c.Attachments.Video)
	assert.Equal(t, model.StatusApproved, c.Status)

	_, err = svc.UpdateCampaign(ctx, other, medicalID, service.UpdateInput{Title: &title})
	errorAs[*appErrors.ForbiddenError](t, err)

	goal := 9999.0
	_, err = svc.UpdateCampaign(ctx, owner, medicalID, service.UpdateInput{GoalAmount: &goal})
	errorAs[*appErrors.InvalidStateError](t, err)

	c, err = svc.UpdateCampaign(ctx, owner, pendingID, service.UpdateInput{GoalAmount: &goal})
	require.NoError(t, err)
	assert.Equal(t, goal, c.GoalAmount)

	_, err = svc.UpdateCampaign(ctx, owner, medicalID, service.UpdateInput{})
	errorAs[*appErrors.ValidationError](t, err)

	_, err = svc.UpdateCampaign(ctx, manager, doneID, service.UpdateInput{Title: &title})
	errorAs[*appErrors.InvalidStateError](t, err)
}

func TestUpdateCampaignStatusNeedsManager(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	rejected := "rejected"

	_, err := svc.UpdateCampaign(ctx, owner, medicalID, service.UpdateInput{Status: &rejected})
	errorAs[*appErrors.ForbiddenError](t, err)

	c, err := svc.UpdateCampaign(ctx, manager, medicalID, service.UpdateInput{Status: &rejected})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, c.Status)

	bogus := "completed"
	_, err = svc.UpdateCampaign(ctx, manager, medicalID, service.UpdateInput{Status: &bogus})
	errorAs[*appErrors.ValidationError](t, err)
}

// racingRepo lets another manager approve the campaign between the
// service's read and its write.
type racingRepo struct {
	*repository.MemoryCampaignRepository
}

func (r racingRepo) Update(ctx context.Context, id string, expected model.State, u model.CampaignUpdate) (*model.Campaign, error) {
	next := model.State{Status: model.StatusApproved, ReleaseStatus: expected.ReleaseStatus}
	if _, err := r.MemoryCampaignRepository.CompareAndSwapState(ctx, id, expected, next); err != nil {
		return nil, err
	}
	return r.MemoryCampaignRepository.Update(ctx, id, expected, u)
}

func TestUpdateContentAndStatusIsAtomic(t *testing.T) {
	ctx := context.Background()
	title, rejected := "Roof Repairs", "rejected"

	svc, _ := newService(t)
	c, err := svc.UpdateCampaign(ctx, manager, pendingID, service.UpdateInput{Title: &title, Status: &rejected})
	require.NoError(t, err)
	assert.Equal(t, title, c.Title)
	assert.Equal(t, model.StatusRejected, c.Status)

	mem := repository.NewMemoryCampaignRepository(fixtures()...)
	svc = service.NewCampaignService(racingRepo{mem}, &MockPublisher{}, nil)
	_, err = svc.UpdateCampaign(ctx, manager, pendingID, service.UpdateInput{Title: &title, Status: &rejected})
	errorAs[*appErrors.ConflictError](t, err)

	stored, err := mem.GetByID(ctx, pendingID)
	require.NoError(t, err)
	assert.Equal(t, "New Roof", stored.Title)
	assert.Equal(t, model.StatusApproved, stored.Status)
}

func TestUpdateStatusOfSuspendedCampaignWritesNothing(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	approved := "approved"

	_, err := svc.Suspend(ctx, carID)
	require.NoError(t, err)

	_, err = svc.UpdateCampaign(ctx, manager, carID, service.UpdateInput{Status: &approved})
	errorAs[*appErrors.InvalidStateError](t, err)
	c, err := svc.GetCampaign(ctx, carID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuspended, c.Status)
}

func TestUpdateRejectsInvertedDates(t *testing.T) {
	svc, _ := newService(t)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.UpdateCampaign(context.Background(), owner, medicalID, service.UpdateInput{EndDate: &end})
	ve := errorAs[*appErrors.ValidationError](t, err)
	assert.Equal(t, "endDate", ve.Field)
}

func TestDeleteCampaign(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// funds raised but not released
	err := svc.DeleteCampaign(ctx, owner, medicalID)
	errorAs[*appErrors.InvalidStateError](t, err)

	err = svc.DeleteCampaign(ctx, other, pendingID)
	errorAs[*appErrors.ForbiddenError](t, err)

	require.NoError(t, svc.DeleteCampaign(ctx, owner, pendingID))
	_, err = svc.GetCampaign(ctx, pendingID)
	errorAs[*appErrors.NotFoundError](t, err)

	svc.DeleteGuard = false
	require.NoError(t, svc.DeleteCampaign(ctx, manager, "medical-fund"))
}

func TestOwnerHasCampaign(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	ok, err := svc.OwnerHasCampaign(ctx, owner, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.OwnerHasCampaign(ctx, other, "approved")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.OwnerHasCampaign(ctx, nil, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.OwnerHasCampaign(ctx, owner, "archived")
	errorAs[*appErrors.ValidationError](t, err)
}

func TestMyCampaigns(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.MyCampaigns(context.Background(), owner, url.Values{"sort": {"title"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	titles := []string{}
	for _, c := range res.Campaigns {
		titles = append(titles, c.(*model.Campaign).Title)
	}
	assert.Equal(t, []string{"Medical Fund", "New Roof"}, titles)

	_, err = svc.MyCampaigns(context.Background(), &model.Actor{}, nil)
	errorAs[*appErrors.ForbiddenError](t, err)
}

func TestActiveCampaignsExcludesGivenID(t *testing.T) {
	svc, _ := newService(t)
	active, err := svc.ActiveCampaigns(context.Background(), medicalID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, carID, active[0].ID)
}
