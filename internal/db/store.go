package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/config"
	"github.com/unclebandit/crowdfund-backend/internal/repository"
)

// OpenStore connects the campaign repository selected by DB_DRIVER and
// prepares its schema. The returned func releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.CampaignRepositoryInterface, func(), error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := OpenPostgres(ctx, cfg.PostgresDSN(), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := Migrate(pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return &repository.CampaignRepository{DB: pool}, func() { pool.Close() }, nil

	case config.DriverMongo:
		client, database, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoCampaignRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.DriverMemory:
		logger.Warn("using in-memory campaign store; data is lost on exit")
		return repository.NewMemoryCampaignRepository(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
}
