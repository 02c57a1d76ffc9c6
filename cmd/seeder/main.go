// cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/auth"
	"github.com/unclebandit/crowdfund-backend/internal/config"
	"github.com/unclebandit/crowdfund-backend/internal/db"
	"github.com/unclebandit/crowdfund-backend/internal/logger"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/service"
)

type seedCampaign struct {
	owner    string
	title    string
	desc     string
	category string
	goal     float64
	approve  bool
}

var seedCampaigns = []seedCampaign{
	{"seed-user-1", "Medical Fund", "Help cover hospital bills after surgery", "health", 5000, true},
	{"seed-user-2", "Car Repair", "Fix the engine so I can get to work", "transport", 800, true},
	{"seed-user-1", "New Roof", "Storm damage repairs before winter", "housing", 3000, false},
	{"seed-user-3", "School Books", "Textbooks for the village school", "education", 250, true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(true).Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.IsProduction())
	defer log.Sync()

	ctx := context.Background()
	repo, closeStore, err := db.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	svc := service.NewCampaignService(repo, nil, log)
	start := time.Now().UTC().Truncate(24 * time.Hour)

	for _, s := range seedCampaigns {
		owner := &model.Actor{ID: s.owner, Role: model.RoleUser}
		c, err := svc.CreateCampaign(ctx, owner, service.CampaignInput{
			Title:       s.title,
			Description: s.desc,
			Category:    s.category,
			GoalAmount:  s.goal,
			StartDate:   start,
			EndDate:     start.AddDate(0, 2, 0),
		})
		if err != nil {
			log.Fatal("seed campaign", zap.String("title", s.title), zap.Error(err))
		}
		if s.approve {
			if c, err = svc.ToggleApproval(ctx, c.ID); err != nil {
				log.Fatal("approve campaign", zap.String("title", s.title), zap.Error(err))
			}
		}
		fmt.Printf("Seeded: %s (%s, %s)\n", c.Title, c.Slug, c.Status)
	}

	token, err := auth.NewJWTService(cfg.JWTSecret).Generate("seed-manager", model.RoleManager, 24*time.Hour)
	if err != nil {
		log.Fatal("sign manager token", zap.Error(err))
	}
	fmt.Println("Manager token (24h):", token)
	fmt.Println("Database seeding completed successfully!")
}
