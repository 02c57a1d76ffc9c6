package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/config"
	"github.com/unclebandit/crowdfund-backend/internal/repository"
)

func TestOpenStoreMemory(t *testing.T) {
	repo, closeFn, err := OpenStore(context.Background(), &config.Config{DBDriver: config.DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &repository.MemoryCampaignRepository{}, repo)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{DBDriver: "sqlite"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_campaigns.up.sql")
	assert.Contains(t, names, "000001_create_campaigns.down.sql")
}

func TestUpMigrationsKeepExistingData(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + e.Name())
		require.NoError(t, err)
		assert.NotContains(t, strings.ToUpper(string(body)), "DROP TABLE", e.Name())
	}
}
