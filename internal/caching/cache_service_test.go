package caching

import (
	"context"
	"testing"
	"time"

	"facilityops/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CacheServiceTestSuite struct {
	suite.Suite
	server *miniredis.Miniredis
	client *redis.Client
	cache  CacheService
	ctx    context.Context
}

func (suite *CacheServiceTestSuite) SetupTest() {
	suite.server = miniredis.RunT(suite.T())
	suite.client = redis.NewClient(&redis.Options{Addr: suite.server.Addr()})
	suite.cache = NewRedisCacheService(suite.client)
	suite.ctx = context.Background()
}

func (suite *CacheServiceTestSuite) TearDownTest() {
	suite.client.Close()
}

func TestCacheServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CacheServiceTestSuite))
}

func (suite *CacheServiceTestSuite) TestWorkOrderRoundTrip() {
	wo := &models.WorkOrder{
		ID:       uuid.New(),
		Title:    "Tank survey",
		Status:   models.StatusPending,
		DueDate:  models.NewDate(2025, time.July, 1),
		Pictures: []string{"http://minio/b/1.jpg", "http://minio/b/2.jpg"},
	}
	wo.HasAtmosphericHazard = models.Yes

	require.NoError(suite.T(), suite.cache.SetWorkOrder(suite.ctx, wo, 15*time.Minute))

	got, err := suite.cache.GetWorkOrder(suite.ctx, wo.ID)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), got)
	assert.Equal(suite.T(), wo.Title, got.Title)
	assert.Equal(suite.T(), wo.Pictures, got.Pictures)
	assert.Equal(suite.T(), "2025-07-01", got.DueDate.String())
	assert.Equal(suite.T(), models.Yes, got.HasAtmosphericHazard)

	ttl := suite.server.TTL(workOrderKey(wo.ID))
	assert.Equal(suite.T(), 15*time.Minute, ttl)
}

func (suite *CacheServiceTestSuite) TestGetWorkOrder_Miss() {
	got, err := suite.cache.GetWorkOrder(suite.ctx, uuid.New())
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), got)
}

func (suite *CacheServiceTestSuite) TestDeleteWorkOrder() {
	wo := &models.WorkOrder{ID: uuid.New(), Title: "x"}
	require.NoError(suite.T(), suite.cache.SetWorkOrder(suite.ctx, wo, time.Minute))
	require.NoError(suite.T(), suite.cache.DeleteWorkOrder(suite.ctx, wo.ID))

	got, err := suite.cache.GetWorkOrder(suite.ctx, wo.ID)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), got)
}

func (suite *CacheServiceTestSuite) TestStatusCounts() {
	counts := map[models.WorkOrderStatus]int{models.StatusPending: 2, models.StatusCompleted: 5}
	require.NoError(suite.T(), suite.cache.SetStatusCounts(suite.ctx, counts, time.Minute))

	got, err := suite.cache.GetStatusCounts(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), counts, got)

	require.NoError(suite.T(), suite.cache.InvalidateStatusCounts(suite.ctx))
	got, err = suite.cache.GetStatusCounts(suite.ctx)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), got)
}

func (suite *CacheServiceTestSuite) TestIsRateLimited() {
	for i := 0; i < 3; i++ {
		limited, err := suite.cache.IsRateLimited(suite.ctx, "login:10.0.0.1", 3, time.Minute)
		require.NoError(suite.T(), err)
		assert.False(suite.T(), limited, "attempt %d", i+1)
	}

	limited, err := suite.cache.IsRateLimited(suite.ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), limited)

	// other clients are unaffected
	limited, err = suite.cache.IsRateLimited(suite.ctx, "login:10.0.0.2", 3, time.Minute)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), limited)

	suite.server.FastForward(time.Minute + time.Second)
	limited, err = suite.cache.IsRateLimited(suite.ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), limited)
}

func (suite *CacheServiceTestSuite) TestResetRateLimit() {
	for i := 0; i < 5; i++ {
		_, _ = suite.cache.IsRateLimited(suite.ctx, "login:ip", 2, time.Minute)
	}
	require.NoError(suite.T(), suite.cache.ResetRateLimit(suite.ctx, "login:ip"))

	limited, err := suite.cache.IsRateLimited(suite.ctx, "login:ip", 2, time.Minute)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), limited)
}

func (suite *CacheServiceTestSuite) TestPing() {
	assert.NoError(suite.T(), suite.cache.Ping(suite.ctx))
	suite.server.Close()
	assert.Error(suite.T(), suite.cache.Ping(suite.ctx))
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient("redis://:pw@localhost:6380/2", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", client.Options().Addr)
	assert.Equal(t, "pw", client.Options().Password)
	assert.Equal(t, 2, client.Options().DB)

	client, err = NewRedisClient("localhost:6379", "secret", 1)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", client.Options().Addr)
	assert.Equal(t, 1, client.Options().DB)
}
