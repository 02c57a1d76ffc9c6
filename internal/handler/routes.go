package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/crowdfund-backend/internal/auth"
	"github.com/unclebandit/crowdfund-backend/internal/controller"
	"github.com/unclebandit/crowdfund-backend/internal/middleware"
	"github.com/unclebandit/crowdfund-backend/internal/model"
)

// Mount registers the campaign API under r.
func Mount(r chi.Router, h *CampaignHandler, ctrl *controller.CampaignController, jwtService *auth.JWTService) {
	authenticated := middleware.JWT(jwtService)
	managerOnly := middleware.RequireRole(model.RoleManager)

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/search", h.Search)
		r.With(middleware.OptionalJWT(jwtService)).Get("/owned", h.Owned)
		r.With(authenticated).Get("/me", h.Me)
		r.With(authenticated).Post("/", h.Create)

		r.With(authenticated, managerOnly).Get("/active/{id}", ctrl.Active)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Put("/", h.Update)
				r.Delete("/", h.Delete)

				r.With(managerOnly).Post("/toggle-approval", ctrl.ToggleApproval)
				r.With(managerOnly).Post("/suspend", ctrl.Suspend)
				r.With(managerOnly).Post("/complete", ctrl.Complete)
				r.With(managerOnly).Post("/release", ctrl.Release)
			})
		})
	})
}
