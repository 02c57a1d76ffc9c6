// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/middleware"
	"github.com/unclebandit/crowdfund-backend/internal/response"
	"github.com/unclebandit/crowdfund-backend/internal/service"
)

// maxBodyBytes bounds create and update payloads.
const maxBodyBytes = 1 << 20

// CampaignHandler serves the public and owner-facing campaign routes.
type CampaignHandler struct {
	Service *service.CampaignService
	Logger  *zap.Logger
}

func NewCampaignHandler(svc *service.CampaignService, logger *zap.Logger) *CampaignHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignHandler{Service: svc, Logger: logger}
}

func (h *CampaignHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	response.Error(w, h.Logger.With(zap.String("request_id", middleware.RequestIDFrom(r.Context()))), err)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	return true
}

func listPage(res *service.ListResult) response.Page {
	return response.Page{Count: res.Count, Total: res.Total, Page: res.Page, Pages: res.Pages}
}

// List handles GET /api/campaigns with the filter, sort, select and
// paging query parameters.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.ListCampaigns(r.Context(), r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.List(w, res.Campaigns, listPage(res))
}

// Search handles GET /api/campaigns/search?q=. The body is a bare array.
func (h *CampaignHandler) Search(w http.ResponseWriter, r *http.Request) {
	found, err := h.Service.SearchCampaigns(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, found)
}

// Me lists the caller's own campaigns.
func (h *CampaignHandler) Me(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.MyCampaigns(r.Context(), middleware.ActorFrom(r.Context()), r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.List(w, res.Campaigns, listPage(res))
}

// Owned reports whether the caller owns a campaign in ?status=
// (approved by default). Anonymous callers get false.
func (h *CampaignHandler) Owned(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	has, err := h.Service.OwnerHasCampaign(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Body{Success: !actor.Anonymous(), Data: has})
}

// Get returns one campaign by id or slug.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, c)
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CampaignInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.Service.CreateCampaign(r.Context(), middleware.ActorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, c)
}

func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.Service.UpdateCampaign(r.Context(), middleware.ActorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, c)
}

func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteCampaign(r.Context(), middleware.ActorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, struct{}{})
}
