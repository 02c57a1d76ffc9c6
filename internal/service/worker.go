package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/metrics"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/queue"
)

// Disburser pays a campaign's raised funds out to its owner. The
// campaign id is the idempotency key; implementations must tolerate a
// repeated call for the same campaign.
type Disburser interface {
	Disburse(ctx context.Context, campaignID, ownerID string, amount float64) error
}

// DisburserFunc adapts a function to Disburser.
type DisburserFunc func(ctx context.Context, campaignID, ownerID string, amount float64) error

func (f DisburserFunc) Disburse(ctx context.Context, campaignID, ownerID string, amount float64) error {
	return f(ctx, campaignID, ownerID, amount)
}

// ReleaseConfirmer is the part of the campaign service the worker needs.
type ReleaseConfirmer interface {
	GetCampaign(ctx context.Context, key string) (*model.Campaign, error)
	ConfirmRelease(ctx context.Context, key string) (*model.Campaign, error)
}

// Worker processes release requests: it disburses the funds, then marks
// the campaign released.
type Worker struct {
	Campaigns ReleaseConfirmer
	Disburser Disburser
	Logger    *zap.Logger
}

func NewWorker(campaigns ReleaseConfirmer, disburser Disburser, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{Campaigns: campaigns, Disburser: disburser, Logger: logger}
}

// HandleRelease processes one release event. A returned error asks the
// queue to redeliver.
func (w *Worker) HandleRelease(ctx context.Context, ev model.LifecycleEvent) error {
	log := w.Logger.With(zap.String("event_id", ev.ID), zap.String("campaign_id", ev.CampaignID))
	if ev.Type != model.EventReleaseRequested {
		log.Warn("ignoring event on release queue", zap.String("type", string(ev.Type)))
		return nil
	}

	c, err := w.Campaigns.GetCampaign(ctx, ev.CampaignID)
	var notFound *appErrors.NotFoundError
	if errors.As(err, &notFound) {
		// deleted since the request; retrying cannot help
		metrics.Disbursement("skipped")
		log.Warn("release event for missing campaign")
		return nil
	}
	if err != nil {
		metrics.Disbursement("error")
		return fmt.Errorf("load campaign %s: %w", ev.CampaignID, err)
	}
	switch c.ReleaseStatus {
	case model.ReleaseReleased:
		// redelivery after a completed job
		metrics.Disbursement("duplicate")
		log.Info("campaign already released")
		return nil
	case model.ReleaseNone:
		metrics.Disbursement("skipped")
		log.Warn("release event for campaign without a pending release")
		return nil
	}

	if err := w.Disburser.Disburse(ctx, c.ID, c.OwnerID, c.RaisedAmount); err != nil {
		metrics.Disbursement("failed")
		log.Warn("disbursement failed", zap.Error(err))
		return fmt.Errorf("disburse campaign %s: %w", c.ID, err)
	}
	if _, err := w.Campaigns.ConfirmRelease(ctx, c.ID); err != nil {
		metrics.Disbursement("error")
		return fmt.Errorf("confirm release of %s: %w", c.ID, err)
	}
	metrics.Disbursement("released")
	log.Info("funds released", zap.Float64("amount", c.RaisedAmount), zap.String("owner_id", c.OwnerID))
	return nil
}

// HandleSuspension records a suspension for the reallocation process.
func (w *Worker) HandleSuspension(ctx context.Context, ev model.LifecycleEvent) error {
	w.Logger.Info("campaign suspended",
		zap.String("event_id", ev.ID),
		zap.String("campaign_id", ev.CampaignID),
		zap.Float64("raised_amount", ev.RaisedAmount),
		zap.Strings("active_campaign_ids", ev.ActiveCampaignIDs),
	)
	return nil
}

// HandleDisbursed records a completed payout for downstream consumers.
func (w *Worker) HandleDisbursed(ctx context.Context, ev model.LifecycleEvent) error {
	w.Logger.Info("campaign funds disbursed",
		zap.String("event_id", ev.ID),
		zap.String("campaign_id", ev.CampaignID),
		zap.Float64("raised_amount", ev.RaisedAmount),
	)
	return nil
}

// Register subscribes the worker's handlers to their topics.
func (w *Worker) Register(q queue.Queue) error {
	for topic, h := range map[string]queue.Handler{
		queue.TopicReleases:      w.HandleRelease,
		queue.TopicSuspensions:   w.HandleSuspension,
		queue.TopicDisbursements: w.HandleDisbursed,
	} {
		if err := q.Subscribe(topic, h); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}
