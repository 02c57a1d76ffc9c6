// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/config"
	"github.com/unclebandit/crowdfund-backend/internal/db"
	"github.com/unclebandit/crowdfund-backend/internal/logger"
	"github.com/unclebandit/crowdfund-backend/internal/queue"
	"github.com/unclebandit/crowdfund-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(true).Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.IsProduction())
	defer log.Sync()

	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	ctx := context.Background()
	repo, closeStore, err := db.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("open store", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer closeStore()

	q, err := queue.DialAMQP(cfg.AMQPURL, log)
	if err != nil {
		log.Fatal("connect to rabbitmq", zap.Error(err))
	}
	defer q.Close()

	campaignService := service.NewCampaignService(repo, q, log)
	worker := service.NewWorker(campaignService, service.DisburserFunc(mockDisburse(log)), log)
	if err := worker.Register(q); err != nil {
		log.Fatal("register consumers", zap.Error(err))
	}

	log.Info("worker running, waiting for lifecycle events")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("worker stopped")
}

var errGatewayDeclined = errors.New("mock gateway declined payout")

// mockDisburse stands in for the payment gateway: 90% of payouts succeed,
// the rest are retried through the queue.
func mockDisburse(log *zap.Logger) func(ctx context.Context, campaignID, ownerID string, amount float64) error {
	return func(ctx context.Context, campaignID, ownerID string, amount float64) error {
		if rand.Intn(100) >= 90 {
			return errGatewayDeclined
		}
		log.Info("payout sent",
			zap.String("campaign_id", campaignID),
			zap.String("owner_id", ownerID),
			zap.Float64("amount", amount),
		)
		return nil
	}
}
