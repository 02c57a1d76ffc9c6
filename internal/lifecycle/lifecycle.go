// Package lifecycle holds the campaign state machine. Functions here only
// decide; callers persist the result with a conditional update keyed on
// the state they read.
package lifecycle

import (
	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/model"
)

// transitions lists every legal status change.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusApproved, model.StatusRejected},
	model.StatusApproved: {model.StatusRejected, model.StatusSuspended, model.StatusCompleted},
	model.StatusRejected: {model.StatusApproved},
}

// CanTransition reports whether status may move from one value to another.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transition(c *model.Campaign, action string, to model.Status) (model.State, error) {
	if !CanTransition(c.Status, to) {
		return model.State{}, appErrors.NewInvalidState(action, string(c.Status), "")
	}
	return model.State{Status: to, ReleaseStatus: c.ReleaseStatus}, nil
}

// ToggleApproval flips approved and rejected. A pending campaign is
// approved.
func ToggleApproval(c *model.Campaign) (model.State, error) {
	switch c.Status {
	case model.StatusApproved:
		return transition(c, "reject", model.StatusRejected)
	case model.StatusPending, model.StatusRejected:
		return transition(c, "approve", model.StatusApproved)
	}
	return model.State{}, appErrors.NewInvalidState("toggle approval of", string(c.Status), "")
}

func Approve(c *model.Campaign) (model.State, error) {
	return transition(c, "approve", model.StatusApproved)
}

func Reject(c *model.Campaign) (model.State, error) {
	return transition(c, "reject", model.StatusRejected)
}

// Complete closes an approved campaign.
func Complete(c *model.Campaign) (model.State, error) {
	return transition(c, "complete", model.StatusCompleted)
}

// Suspend pauses an approved campaign whose funds are still held.
func Suspend(c *model.Campaign) (model.State, error) {
	if c.ReleaseStatus == model.ReleaseReleased {
		return model.State{}, appErrors.NewInvalidState("suspend", string(c.Status), "funds already released")
	}
	return transition(c, "suspend", model.StatusSuspended)
}

// RequestRelease moves releaseStatus from none to requested. changed is
// false when a release is already underway or done; that is not an
// error so that retries converge.
func RequestRelease(c *model.Campaign) (next model.State, changed bool, err error) {
	if c.RaisedAmount <= 0 {
		return model.State{}, false, appErrors.NewInvalidState("release funds of", string(c.Status), "nothing raised")
	}
	switch c.ReleaseStatus {
	case model.ReleaseRequested, model.ReleaseReleased:
		return c.State(), false, nil
	}
	return model.State{Status: c.Status, ReleaseStatus: model.ReleaseRequested}, true, nil
}

// ConfirmRelease records a completed disbursement.
func ConfirmRelease(c *model.Campaign) (next model.State, changed bool, err error) {
	switch c.ReleaseStatus {
	case model.ReleaseReleased:
		return c.State(), false, nil
	case model.ReleaseRequested:
		if c.RaisedAmount <= 0 {
			return model.State{}, false, appErrors.NewInvalidState("confirm release of", string(c.Status), "nothing raised")
		}
		return model.State{Status: c.Status, ReleaseStatus: model.ReleaseReleased}, true, nil
	}
	return model.State{}, false, appErrors.NewInvalidState("confirm release of", string(c.Status), "release was not requested")
}

// CheckEdit validates a content update against the campaign's state.
func CheckEdit(c *model.Campaign, u model.CampaignUpdate) error {
	switch c.Status {
	case model.StatusCompleted, model.StatusSuspended:
		return appErrors.NewInvalidState("edit", string(c.Status), "")
	}
	if u.GoalAmount != nil && *u.GoalAmount != c.GoalAmount && c.Status != model.StatusPending {
		return appErrors.NewInvalidState("change goal of", string(c.Status), "goal is fixed once reviewed")
	}
	return nil
}

// CheckDelete enforces the undisbursed-funds guard when enabled.
func CheckDelete(c *model.Campaign, guardUndisbursed bool) error {
	if guardUndisbursed && c.RaisedAmount > 0 && c.ReleaseStatus != model.ReleaseReleased {
		return appErrors.NewInvalidState("delete", string(c.Status), "raised funds have not been released")
	}
	return nil
}
