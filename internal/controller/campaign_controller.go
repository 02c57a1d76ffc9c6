// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/middleware"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/response"
	"github.com/unclebandit/crowdfund-backend/internal/service"
)

// CampaignController serves the manager-only lifecycle routes.
type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *zap.Logger
}

func NewCampaignController(svc *service.CampaignService, logger *zap.Logger) *CampaignController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignController{CampaignService: svc, Logger: logger}
}

type transition func(ctx context.Context, key string) (*model.Campaign, error)

func (c *CampaignController) run(w http.ResponseWriter, r *http.Request, action string, op transition) {
	id := chi.URLParam(r, "id")
	campaign, err := op(r.Context(), id)
	if err != nil {
		response.Error(w, c.Logger.With(zap.String("action", action), zap.String("campaign", id)), err)
		return
	}
	if actor := middleware.ActorFrom(r.Context()); actor != nil {
		c.Logger.Info("manager action",
			zap.String("action", action),
			zap.String("campaign_id", campaign.ID),
			zap.String("actor_id", actor.ID),
		)
	}
	response.OK(w, campaign)
}

// ToggleApproval flips a pending, approved or rejected campaign between
// approved and rejected.
func (c *CampaignController) ToggleApproval(w http.ResponseWriter, r *http.Request) {
	c.run(w, r, "toggle-approval", c.CampaignService.ToggleApproval)
}

func (c *CampaignController) Suspend(w http.ResponseWriter, r *http.Request) {
	c.run(w, r, "suspend", c.CampaignService.Suspend)
}

func (c *CampaignController) Complete(w http.ResponseWriter, r *http.Request) {
	c.run(w, r, "complete", c.CampaignService.Complete)
}

// Release requests disbursement of the raised funds. Repeated calls
// return the campaign unchanged.
func (c *CampaignController) Release(w http.ResponseWriter, r *http.Request) {
	c.run(w, r, "release", c.CampaignService.RequestRelease)
}

// Active lists approved campaigns other than {id}, the candidates for
// reallocating a suspended campaign's funds.
func (c *CampaignController) Active(w http.ResponseWriter, r *http.Request) {
	found, err := c.CampaignService.ActiveCampaigns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, c.Logger, err)
		return
	}
	response.OK(w, found)
}
