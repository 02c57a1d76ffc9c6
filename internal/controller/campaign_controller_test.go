package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/crowdfund-backend/internal/controller"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/repository"
	"github.com/unclebandit/crowdfund-backend/internal/service"
)

const (
	approvedID  = "64b7f0c2a1d3e4f5a6b7c901"
	otherID     = "64b7f0c2a1d3e4f5a6b7c902"
	completedID = "64b7f0c2a1d3e4f5a6b7c903"
)

// --- Mock Publisher ---

type MockPublisher struct {
	mu     sync.Mutex
	events []model.LifecycleEvent
}

func (m *MockPublisher) Publish(topic string, ev model.LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func newController() (*controller.CampaignController, *MockPublisher) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := repository.NewMemoryCampaignRepository(
		&model.Campaign{ID: approvedID, Slug: "water-well", OwnerID: "u1", Title: "Water Well",
			GoalAmount: 900, RaisedAmount: 450, StartDate: start, EndDate: start.AddDate(0, 1, 0),
			Status: model.StatusApproved, ReleaseStatus: model.ReleaseNone},
		&model.Campaign{ID: otherID, Slug: "bakery", OwnerID: "u2", Title: "Bakery",
			GoalAmount: 400, StartDate: start, EndDate: start.AddDate(0, 1, 0),
			Status: model.StatusApproved, ReleaseStatus: model.ReleaseNone},
		&model.Campaign{ID: completedID, Slug: "done", OwnerID: "u2", Title: "Done",
			GoalAmount: 100, RaisedAmount: 100, StartDate: start, EndDate: start.AddDate(0, 1, 0),
			Status: model.StatusCompleted, ReleaseStatus: model.ReleaseReleased},
	)
	pub := &MockPublisher{}
	svc := service.NewCampaignService(repo, pub, nil)
	return controller.NewCampaignController(svc, nil), pub
}

// withID sets the chi URL parameter the way the router would.
func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func call(h http.HandlerFunc, id string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := withID(httptest.NewRequest(http.MethodPost, "/", nil), id)
	w := httptest.NewRecorder()
	h(w, req)

	var res map[string]interface{}
	_ = json.NewDecoder(w.Result().Body).Decode(&res)
	return w, res
}

func TestSuspendHandler(t *testing.T) {
	ctrl, pub := newController()

	w, res := call(ctrl.Suspend, approvedID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, res)
	}
	data := res["data"].(map[string]interface{})
	if data["status"] != "suspended" {
		t.Errorf("expected suspended, got %v", data["status"])
	}
	if len(pub.events) != 1 || pub.events[0].Type != model.EventSuspended {
		t.Fatalf("expected one suspension event, got %+v", pub.events)
	}
	if ids := pub.events[0].ActiveCampaignIDs; len(ids) != 1 || ids[0] != otherID {
		t.Errorf("expected active campaigns [%s], got %v", otherID, ids)
	}

	// suspended is final
	w, _ = call(ctrl.ToggleApproval, approvedID)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestReleaseHandlerIsIdempotent(t *testing.T) {
	ctrl, pub := newController()

	for i := 0; i < 3; i++ {
		w, res := call(ctrl.Release, approvedID)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d: %v", i, w.Code, res)
		}
		if got := res["data"].(map[string]interface{})["releaseStatus"]; got != "requested" {
			t.Errorf("call %d: expected requested, got %v", i, got)
		}
	}
	if len(pub.events) != 1 {
		t.Errorf("expected exactly one release event, got %d", len(pub.events))
	}

	// nothing raised
	w, _ := call(ctrl.Release, otherID)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for empty campaign, got %d", w.Code)
	}
}

func TestCompleteAndToggle(t *testing.T) {
	ctrl, _ := newController()

	w, res := call(ctrl.ToggleApproval, otherID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := res["data"].(map[string]interface{})["status"]; got != "rejected" {
		t.Errorf("expected rejected, got %v", got)
	}

	w, _ = call(ctrl.Complete, approvedID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w, _ = call(ctrl.Complete, completedID)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for completed campaign, got %d", w.Code)
	}

	w, res = call(ctrl.Suspend, "64b7f0c2a1d3e4f5a6b7c9ff")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if res["success"] != false {
		t.Errorf("expected success=false, got %v", res["success"])
	}
}

func TestActiveHandler(t *testing.T) {
	ctrl, _ := newController()

	req := withID(httptest.NewRequest(http.MethodGet, "/", nil), approvedID)
	w := httptest.NewRecorder()
	ctrl.Active(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res struct {
		Data []model.Campaign `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Data) != 1 || res.Data[0].ID != otherID {
		t.Errorf("expected only %s, got %+v", otherID, res.Data)
	}
}
