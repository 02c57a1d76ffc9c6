package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/lifecycle"
	"github.com/unclebandit/crowdfund-backend/internal/metrics"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/queue"
)

type decision func(*model.Campaign) (model.State, error)

func (s *CampaignService) ToggleApproval(ctx context.Context, key string) (*model.Campaign, error) {
	c, err := s.GetCampaign(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "toggle_approval", c, lifecycle.ToggleApproval)
}

func (s *CampaignService) Complete(ctx context.Context, key string) (*model.Campaign, error) {
	c, err := s.GetCampaign(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "complete", c, lifecycle.Complete)
}

// Suspend pauses an approved campaign and announces the approved
// campaigns its held funds could move to.
func (s *CampaignService) Suspend(ctx context.Context, key string) (*model.Campaign, error) {
	c, err := s.GetCampaign(ctx, key)
	if err != nil {
		return nil, err
	}
	updated, err := s.apply(ctx, "suspend", c, lifecycle.Suspend)
	if err != nil {
		return nil, err
	}

	var activeIDs []string
	active, err := s.ActiveCampaigns(ctx, updated.ID)
	if err != nil {
		s.Logger.Warn("listing active campaigns for suspension event failed", zap.String("campaign_id", updated.ID), zap.Error(err))
	}
	for _, a := range active {
		activeIDs = append(activeIDs, a.ID)
	}
	return s.announce(ctx, "suspend", c, updated, model.LifecycleEvent{
		Type:              model.EventSuspended,
		CampaignID:        updated.ID,
		OwnerID:           updated.OwnerID,
		RaisedAmount:      updated.RaisedAmount,
		ActiveCampaignIDs: activeIDs,
	})
}

// RequestRelease asks for the raised funds to be disbursed. Repeating the
// request once a release is underway returns the campaign unchanged.
func (s *CampaignService) RequestRelease(ctx context.Context, key string) (*model.Campaign, error) {
	c, err := s.GetCampaign(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.release(ctx, "request_release", c, lifecycle.RequestRelease, model.EventReleaseRequested)
}

// ConfirmRelease records a finished disbursement. It is called by the
// release worker.
func (s *CampaignService) ConfirmRelease(ctx context.Context, key string) (*model.Campaign, error) {
	c, err := s.GetCampaign(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.release(ctx, "confirm_release", c, lifecycle.ConfirmRelease, model.EventReleased)
}

func (s *CampaignService) release(ctx context.Context, action string, c *model.Campaign,
	decide func(*model.Campaign) (model.State, bool, error), event model.EventType,
) (*model.Campaign, error) {
	next, changed, err := decide(c)
	if err != nil {
		metrics.Transition(action, metrics.OutcomeRejected)
		return nil, err
	}
	if !changed {
		metrics.Transition(action, metrics.OutcomeNoop)
		s.Logger.Info("release already in progress", zap.String("campaign_id", c.ID), zap.String("release_status", string(c.ReleaseStatus)))
		return c, nil
	}
	updated, err := s.swap(ctx, action, c, next)
	if err != nil {
		return nil, err
	}
	ev := model.LifecycleEvent{
		Type:         event,
		CampaignID:   updated.ID,
		OwnerID:      updated.OwnerID,
		RaisedAmount: updated.RaisedAmount,
	}
	if event == model.EventReleased {
		// the payout already happened; released stays final
		if err := s.publish(ev); err != nil {
			s.Logger.Warn("released event not delivered", zap.String("campaign_id", updated.ID), zap.Error(err))
		}
		return updated, nil
	}
	return s.announce(ctx, action, c, updated, ev)
}

// announce publishes the event for a persisted transition. If the event
// cannot be delivered the transition is swapped back to prev, so the
// caller can retry from the original state.
func (s *CampaignService) announce(ctx context.Context, action string, prev, updated *model.Campaign, ev model.LifecycleEvent) (*model.Campaign, error) {
	pubErr := s.publish(ev)
	if pubErr == nil {
		return updated, nil
	}
	log := s.Logger.With(zap.String("campaign_id", updated.ID), zap.String("action", action))
	if _, err := s.Repo.CompareAndSwapState(ctx, updated.ID, updated.State(), prev.State()); err != nil {
		log.Error("rollback after failed publish", zap.Error(err))
	} else {
		metrics.Transition(action, metrics.OutcomeRolledBack)
		log.Warn("transition rolled back after failed publish",
			zap.String("status", string(prev.Status)),
			zap.String("release_status", string(prev.ReleaseStatus)),
		)
	}
	return nil, s.fail(action+": publish event", pubErr)
}

// apply runs a status decision and persists it with one conditional
// update.
func (s *CampaignService) apply(ctx context.Context, action string, c *model.Campaign, decide decision) (*model.Campaign, error) {
	next, err := decide(c)
	if err != nil {
		metrics.Transition(action, metrics.OutcomeRejected)
		return nil, err
	}
	return s.swap(ctx, action, c, next)
}

func (s *CampaignService) swap(ctx context.Context, action string, c *model.Campaign, next model.State) (*model.Campaign, error) {
	updated, err := s.Repo.CompareAndSwapState(ctx, c.ID, c.State(), next)
	if err != nil {
		var conflict *appErrors.ConflictError
		if errors.As(err, &conflict) {
			metrics.Transition(action, metrics.OutcomeConflict)
			s.Logger.Info("transition lost to concurrent update", zap.String("campaign_id", c.ID), zap.String("action", action))
			return nil, err
		}
		metrics.Transition(action, metrics.OutcomeError)
		return nil, s.fail(action, err)
	}
	metrics.Transition(action, metrics.OutcomeApplied)
	s.Logger.Info("campaign transition",
		zap.String("campaign_id", c.ID),
		zap.String("action", action),
		zap.String("from_status", string(c.Status)),
		zap.String("to_status", string(updated.Status)),
		zap.String("from_release", string(c.ReleaseStatus)),
		zap.String("to_release", string(updated.ReleaseStatus)),
	)
	return updated, nil
}

// publish hands an event to the queue.
func (s *CampaignService) publish(ev model.LifecycleEvent) error {
	if s.Queue == nil {
		return nil
	}
	ev.ID = uuid.NewString()
	ev.OccurredAt = s.now()
	err := s.Queue.Publish(queue.TopicFor(ev.Type), ev)
	metrics.EventPublished(string(ev.Type), err)
	if err != nil {
		s.Logger.Error("publish lifecycle event failed",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("campaign_id", ev.CampaignID),
			zap.Error(err),
		)
	}
	return err
}
