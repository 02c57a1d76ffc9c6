// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/auth"
	"github.com/unclebandit/crowdfund-backend/internal/config"
	"github.com/unclebandit/crowdfund-backend/internal/controller"
	"github.com/unclebandit/crowdfund-backend/internal/db"
	"github.com/unclebandit/crowdfund-backend/internal/handler"
	"github.com/unclebandit/crowdfund-backend/internal/logger"
	"github.com/unclebandit/crowdfund-backend/internal/middleware"
	"github.com/unclebandit/crowdfund-backend/internal/queue"
	"github.com/unclebandit/crowdfund-backend/internal/response"
	"github.com/unclebandit/crowdfund-backend/internal/service"
)

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
		log.Fatal("open store", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer closeStore()

	campaignService := service.NewCampaignService(repo, nil, log)
	campaignService.DeleteGuard = cfg.DeleteGuardUndisbursed

	// Events go to RabbitMQ for the worker binary, or are handled in
	// process when no broker is configured.
	var inMemory *queue.InMemoryQueue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			log.Fatal("connect to rabbitmq", zap.Error(err))
		}
		defer amqpQueue.Close()
		campaignService.Queue = amqpQueue
	} else {
		inMemory = queue.NewInMemoryQueue(log)
		worker := service.NewWorker(campaignService, service.DisburserFunc(logDisbursement(log)), log)
		if err := worker.Register(inMemory); err != nil {
			log.Fatal("register worker", zap.Error(err))
		}
		campaignService.Queue = inMemory
		log.Warn("AMQP_URL not set; lifecycle events are handled in process")
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok", "store": cfg.DBDriver})
	})
	r.Handle("/metrics", promhttp.Handler())

	handler.Mount(r,
		handler.NewCampaignHandler(campaignService, log),
		controller.NewCampaignController(campaignService, log),
		jwtService,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if inMemory != nil {
		inMemory.Wait()
	}
	log.Info("server stopped")
}

// logDisbursement stands in for the payment collaborator when the server
// runs without a broker.
func logDisbursement(log *zap.Logger) func(ctx context.Context, campaignID, ownerID string, amount float64) error {
	return func(ctx context.Context, campaignID, ownerID string, amount float64) error {
		log.Info("disbursing funds",
			zap.String("campaign_id", campaignID),
			zap.String("owner_id", ownerID),
			zap.Float64("amount", amount),
		)
		return nil
	}
}
