package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"facilityops/internal/jobs/background"
	"facilityops/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const readinessTimeout = 3 * time.Second

// Pinger is satisfied by *pgxpool.Pool and caching.CacheService.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobLister is satisfied by *background.JobScheduler.
type JobLister interface {
	JobStatus() []background.JobInfo
}

// HealthHandlers handles liveness and readiness checks
type HealthHandlers struct {
	db      Pinger
	cache   Pinger
	storage services.MinioService
	jobs    JobLister
	bucket  string
	version string
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(db, cache Pinger, storage services.MinioService, jobs JobLister, bucket, version string, logger *zap.Logger) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		cache:   cache,
		storage: storage,
		jobs:    jobs,
		bucket:  bucket,
		version: version,
		started: time.Now(),
		logger:  logger,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string               `json:"status"`
	Timestamp string               `json:"timestamp"`
	Services  map[string]string    `json:"services,omitempty"`
	Jobs      []background.JobInfo `json:"jobs,omitempty"`
	Uptime    string               `json:"uptime"`
	Version   string               `json:"version"`
}

func (h *HealthHandlers) status(s string) *HealthStatus {
	return &HealthStatus{
		Status:    s,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	}
}

// LivenessCheck determines if the application is running (basic liveness check)
//
// @Summary  Liveness
// @Tags     health
// @Produce  json
// @Success  200 {object} HealthStatus
// @Router   /health [get]
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status("alive"))
}

// ReadinessCheck reports 503 until the database, Redis and the picture
// bucket all answer. The registered background jobs are listed alongside.
//
// @Summary  Readiness
// @Tags     health
// @Produce  json
// @Success  200 {object} HealthStatus
// @Failure  503 {object} HealthStatus
// @Router   /health/ready [get]
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	health := h.status("ready")
	health.Services = make(map[string]string, 3)

	checks := []struct {
		name  string
		check func(context.Context) error
	}{
		{"database", h.db.Ping},
		{"redis", h.cache.Ping},
		{"storage", h.checkStorage},
	}
	for _, chk := range checks {
		if err := chk.check(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("service", chk.name), zap.Error(err))
			health.Services[chk.name] = "unhealthy"
			health.Status = "not_ready"
			continue
		}
		health.Services[chk.name] = "healthy"
	}
	if h.jobs != nil {
		health.Jobs = h.jobs.JobStatus()
	}

	code := http.StatusOK
	if health.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, health)
}

func (h *HealthHandlers) checkStorage(ctx context.Context) error {
	ok, err := h.storage.BucketExists(ctx, h.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q does not exist", h.bucket)
	}
	return nil
}
