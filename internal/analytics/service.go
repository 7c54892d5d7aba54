package analytics

import (
	"context"
	"fmt"
	"time"

	"facilityops/internal/caching"
	"facilityops/internal/models"
	"facilityops/internal/repositories"

	"go.uber.org/zap"
)

// AnalyticsService computes the work order dashboard figures and keeps them
// in Redis until a write invalidates them.
type AnalyticsService struct {
	workOrderRepo repositories.WorkOrderRepository
	cacheService  caching.CacheService
	ttl           time.Duration
	logger        *zap.Logger
}

// WorkOrderStats is the dashboard summary.
type WorkOrderStats struct {
	Total    int                            `json:"total"`
	ByStatus map[models.WorkOrderStatus]int `json:"byStatus"`
	Open     int                            `json:"open"`
	Cached   bool                           `json:"cached"`
}

func NewAnalyticsService(workOrderRepo repositories.WorkOrderRepository, cacheService caching.CacheService, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		workOrderRepo: workOrderRepo,
		cacheService:  cacheService,
		ttl:           ttl,
		logger:        logger,
	}
}

func (a *AnalyticsService) WorkOrderStats(ctx context.Context) (*WorkOrderStats, error) {
	counts, err := a.cacheService.GetStatusCounts(ctx)
	if err != nil {
		a.logger.Warn("stats cache read failed", zap.Error(err))
	}
	if counts != nil {
		return summarize(counts, true), nil
	}

	counts, err = a.workOrderRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count work orders: %w", err)
	}
	if err := a.cacheService.SetStatusCounts(ctx, counts, a.ttl); err != nil {
		a.logger.Warn("stats cache write failed", zap.Error(err))
	}
	return summarize(counts, false), nil
}

func summarize(counts map[models.WorkOrderStatus]int, cached bool) *WorkOrderStats {
	stats := &WorkOrderStats{ByStatus: make(map[models.WorkOrderStatus]int, len(models.WorkOrderStatuses)), Cached: cached}
	for _, s := range models.WorkOrderStatuses {
		n := counts[s]
		stats.ByStatus[s] = n
		stats.Total += n
		if s == models.StatusPending || s == models.StatusInProgress {
			stats.Open += n
		}
	}
	return stats
}
