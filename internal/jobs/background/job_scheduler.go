package background

import (
	"context"
	"fmt"
	"sort"
	"time"

	"facilityops/internal/config"
	"facilityops/internal/repositories"
	"facilityops/internal/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const reportSweepJob = "report-cache-sweep"

// JobScheduler runs the periodic maintenance jobs and the one-off tasks
// submitted by services, such as report pre-generation.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	store         services.ReportStore
	workOrderRepo repositories.WorkOrderRepository
	taskTimeout   time.Duration
	logger        *zap.Logger
	jobs          map[string]gocron.Job
}

// zapLogger adapts zap to gocron's key/value logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }

func NewJobScheduler(store services.ReportStore, workOrderRepo repositories.WorkOrderRepository,
	cfg *config.Config, logger *zap.Logger) (*JobScheduler, error) {

	named := logger.Named("jobs")
	opts := []gocron.SchedulerOption{gocron.WithLogger(zapLogger{s: named.Sugar()})}
	if cfg.Server.ShutdownTimeout > 0 {
		opts = append(opts, gocron.WithStopTimeout(cfg.Server.ShutdownTimeout))
	}
	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		store:         store,
		workOrderRepo: workOrderRepo,
		taskTimeout:   cfg.Reports.PregenerateTimeout,
		logger:        named,
		jobs:          make(map[string]gocron.Job),
	}

	if err := js.registerJobs(cfg.Jobs); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("Starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs(cfg config.JobsConfig) error {
	if cfg.SweepInterval <= 0 {
		return nil
	}

	sweepJob, err := js.scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(js.SweepReports),
		gocron.WithName(reportSweepJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", reportSweepJob, err)
	}
	js.jobs[reportSweepJob] = sweepJob
	return nil
}

// Submit runs task once as soon as the scheduler is running. The task
// context is cancelled after the report pre-generation timeout.
func (js *JobScheduler) Submit(name string, task func(ctx context.Context) error) error {
	run := func(ctx context.Context) {
		if js.taskTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, js.taskTimeout)
			defer cancel()
		}
		start := time.Now()
		if err := task(ctx); err != nil {
			js.logger.Error("background task failed", zap.String("task", name), zap.Error(err))
			return
		}
		js.logger.Debug("background task finished", zap.String("task", name), zap.Duration("took", time.Since(start)))
	}

	_, err := js.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()),
		gocron.NewTask(run),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("submit %s: %w", name, err)
	}
	return nil
}

// SweepReports deletes cached PDFs whose work order no longer exists.
func (js *JobScheduler) SweepReports(ctx context.Context) error {
	ids, err := js.store.List()
	if err != nil {
		return fmt.Errorf("list cached reports: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	existing, err := js.workOrderRepo.ExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("check work orders: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if existing[id] {
			continue
		}
		if err := js.store.Remove(id); err != nil {
			js.logger.Warn("failed to remove orphaned report", zap.String("work_order_id", id.String()), zap.Error(err))
			continue
		}
		removed++
	}
	js.logger.Info("Report cache sweep completed", zap.Int("checked", len(ids)), zap.Int("removed", removed))
	return nil
}

// JobInfo describes one registered periodic job.
type JobInfo struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

// JobStatus lists the periodic jobs by name with their next run, which is
// unset until the scheduler has started.
func (js *JobScheduler) JobStatus() []JobInfo {
	infos := make([]JobInfo, 0, len(js.jobs))
	for name, job := range js.jobs {
		info := JobInfo{Name: name}
		if next, err := job.NextRun(); err == nil && !next.IsZero() {
			info.NextRun = &next
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

var _ services.TaskScheduler = (*JobScheduler)(nil)
