package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"facilityops/internal/caching"
	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultWorkOrderLimit = 100
	maxWorkOrderLimit     = 500
	searchLimit           = 100
	maxSearchQueryLength  = 100
	maxTitleLength        = 255
	maxAssignedToLength   = 100
)

// TaskScheduler runs fire-and-forget background work.
type TaskScheduler interface {
	Submit(name string, task func(ctx context.Context) error) error
}

// WorkOrderResult is a saved work order plus the soft validation findings
// that did not block the write.
type WorkOrderResult struct {
	*models.WorkOrder
	Warnings []models.FieldWarning `json:"warnings,omitempty"`
}

type WorkOrderService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in *models.WorkOrder, pictures []UploadFile) (*WorkOrderResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	List(ctx context.Context, filter models.WorkOrderFilter) ([]*models.WorkOrder, error)
	// Update replaces the document. in.Pictures lists the existing URLs to
	// keep; new uploads are appended after them.
	Update(ctx context.Context, id uuid.UUID, in *models.WorkOrder, pictures []UploadFile) (*WorkOrderResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]*models.WorkOrder, error)
	ListByStatus(ctx context.Context, status string) ([]*models.WorkOrder, error)
	ReportPDF(ctx context.Context, id uuid.UUID) ([]byte, error)
	ExportPDF(ctx context.Context, filter models.WorkOrderFilter) ([]byte, error)
	PregenerateReport(ctx context.Context, id uuid.UUID) error
}

type workOrderService struct {
	repo     repositories.WorkOrderRepository
	uploader ImageUploader
	reports  ReportService
	store    ReportStore
	cache    caching.CacheService
	tasks    TaskScheduler
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewWorkOrderService(
	repo repositories.WorkOrderRepository,
	uploader ImageUploader,
	reports ReportService,
	store ReportStore,
	cache caching.CacheService,
	tasks TaskScheduler,
	cacheTTL time.Duration,
	logger *zap.Logger,
) WorkOrderService {
	return &workOrderService{
		repo:     repo,
		uploader: uploader,
		reports:  reports,
		store:    store,
		cache:    cache,
		tasks:    tasks,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// prepare trims and defaults the input in place, then validates it.
func prepareWorkOrder(wo *models.WorkOrder) ([]models.FieldWarning, error) {
	for _, s := range []*string{
		&wo.Title, &wo.Description, &wo.AssignedTo, &wo.CustomerName, &wo.CustomerContact, &wo.Location,
		&wo.Surveyors, &wo.ConfinedSpaceName, &wo.Building, &wo.LocationDescription, &wo.ConfinedSpaceDescription,
	} {
		*s = strings.TrimSpace(*s)
	}
	if wo.Status == "" {
		wo.Status = models.StatusPending
	}
	if wo.Priority == "" {
		wo.Priority = models.PriorityMedium
	}

	var v common.ValidationErrors
	required := []struct {
		field string
		value string
	}{
		{"title", wo.Title},
		{"description", wo.Description},
		{"customerName", wo.CustomerName},
		{"location", wo.Location},
		{"surveyors", wo.Surveyors},
		{"confinedSpaceName", wo.ConfinedSpaceName},
		{"building", wo.Building},
		{"locationDescription", wo.LocationDescription},
	}
	for _, r := range required {
		common.ValidateRequiredString(&v, r.value, r.field)
	}
	if wo.DueDate.IsZero() {
		v.Add("dueDate", "required", "dueDate is required")
	}
	if wo.DateOfSurvey.IsZero() {
		v.Add("dateOfSurvey", "required", "dateOfSurvey is required")
	}
	common.ValidateMaxLength(&v, wo.Title, "title", maxTitleLength)
	common.ValidateMaxLength(&v, wo.AssignedTo, "assignedTo", maxAssignedToLength)
	common.ValidateMaxLength(&v, wo.Notes, "notes", models.MaxNotesLength)
	if wo.NumberOfEntryPoints < 0 {
		v.Add("numberOfEntryPoints", "min", "numberOfEntryPoints cannot be negative")
	}
	if !wo.Status.IsValid() {
		v.Add("status", "invalid", "status must be one of pending, in-progress, completed, cancelled")
	}
	if !wo.Priority.IsValid() {
		v.Add("priority", "invalid", "priority must be one of low, medium, high")
	}
	for _, field := range wo.ApplyDefaults() {
		v.Add(field, "invalid", field+" must be Y or N")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var warnings []models.FieldWarning
	for _, h := range wo.Hazards() {
		if h.Answer.Bool() && strings.TrimSpace(h.Description) == "" {
			warnings = append(warnings, models.FieldWarning{
				Field:   h.DescriptionField,
				Message: h.Field + " is Y but no description was given",
			})
		}
	}
	return warnings, nil
}

func (s *workOrderService) Create(ctx context.Context, ownerID uuid.UUID, in *models.WorkOrder, pictures []UploadFile) (*WorkOrderResult, error) {
	warnings, err := prepareWorkOrder(in)
	if err != nil {
		return nil, err
	}

	// uploads happen first so a storage failure leaves no row behind
	urls, err := s.uploader.Upload(ctx, pictures)
	if err != nil {
		return nil, err
	}

	in.ID = uuid.New()
	in.CreatedBy = ownerID
	in.Pictures = urls

	if err := s.repo.Create(ctx, in); err != nil {
		s.uploader.Remove(context.WithoutCancel(ctx), urls)
		return nil, common.NewInternalError(err)
	}

	s.logger.Info("work order created",
		zap.String("work_order_id", in.ID.String()),
		zap.String("created_by", ownerID.String()),
		zap.Int("pictures", len(urls)),
	)
	s.invalidateStats(ctx)
	s.schedulePregeneration(in.ID)
	return &WorkOrderResult{WorkOrder: in, Warnings: warnings}, nil
}

func (s *workOrderService) Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	cached, err := s.cache.GetWorkOrder(ctx, id)
	if err != nil {
		s.logger.Warn("work order cache read failed", zap.String("work_order_id", id.String()), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	wo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if err := s.cache.SetWorkOrder(ctx, wo, s.cacheTTL); err != nil {
		s.logger.Warn("work order cache write failed", zap.String("work_order_id", id.String()), zap.Error(err))
	}
	return wo, nil
}

func normalizeFilter(filter models.WorkOrderFilter) (models.WorkOrderFilter, error) {
	var v common.ValidationErrors
	if filter.Status != "" && !filter.Status.IsValid() {
		v.Add("status", "invalid", "status must be one of pending, in-progress, completed, cancelled")
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		v.Add("priority", "invalid", "priority must be one of low, medium, high")
	}
	if err := v.Err(); err != nil {
		return filter, err
	}
	filter.AssignedTo = strings.TrimSpace(filter.AssignedTo)
	if filter.Limit <= 0 {
		filter.Limit = defaultWorkOrderLimit
	}
	if filter.Limit > maxWorkOrderLimit {
		filter.Limit = maxWorkOrderLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter, nil
}

func (s *workOrderService) List(ctx context.Context, filter models.WorkOrderFilter) ([]*models.WorkOrder, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	return orders, nil
}

func (s *workOrderService) Update(ctx context.Context, id uuid.UUID, in *models.WorkOrder, pictures []UploadFile) (*WorkOrderResult, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}

	warnings, err := prepareWorkOrder(in)
	if err != nil {
		return nil, err
	}
	keep, err := keptPictures(existing.Pictures, in.Pictures)
	if err != nil {
		return nil, err
	}

	urls, err := s.uploader.Upload(ctx, pictures)
	if err != nil {
		return nil, err
	}

	in.ID = id
	in.CreatedBy = existing.CreatedBy
	in.Pictures = append(keep, urls...)

	if err := s.repo.Update(ctx, in); err != nil {
		s.uploader.Remove(context.WithoutCancel(ctx), urls)
		return nil, s.mapRepoError(err)
	}

	s.uploader.Remove(ctx, droppedPictures(existing.Pictures, keep))
	s.invalidate(ctx, id)
	s.schedulePregeneration(id)

	s.logger.Info("work order updated", zap.String("work_order_id", id.String()))
	return &WorkOrderResult{WorkOrder: in, Warnings: warnings}, nil
}

// keptPictures returns the keep list in request order. Every entry must
// already be attached to the work order.
func keptPictures(current, keep []string) ([]string, error) {
	attached := make(map[string]bool, len(current))
	for _, u := range current {
		attached[u] = true
	}
	var v common.ValidationErrors
	out := make([]string, 0, len(keep))
	seen := make(map[string]bool, len(keep))
	for i, u := range keep {
		if !attached[u] {
			v.Add("pictures["+strconv.Itoa(i)+"]", "unknown_picture", "picture is not attached to this work order")
			continue
		}
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func droppedPictures(current, keep []string) []string {
	kept := make(map[string]bool, len(keep))
	for _, u := range keep {
		kept[u] = true
	}
	var dropped []string
	for _, u := range current {
		if !kept[u] {
			dropped = append(dropped, u)
		}
	}
	return dropped
}

func (s *workOrderService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err)
	}

	s.uploader.Remove(ctx, existing.Pictures)
	s.invalidate(ctx, id)
	s.logger.Info("work order deleted", zap.String("work_order_id", id.String()))
	return nil
}

func (s *workOrderService) Search(ctx context.Context, query string) ([]*models.WorkOrder, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, common.NewFieldValidationError("q", "required", "search query is required")
	}
	if utf8.RuneCountInString(query) > maxSearchQueryLength {
		return nil, common.NewFieldValidationError("q", "too_long",
			fmt.Sprintf("search query must be at most %d characters", maxSearchQueryLength))
	}
	orders, err := s.repo.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	return orders, nil
}

func (s *workOrderService) ListByStatus(ctx context.Context, status string) ([]*models.WorkOrder, error) {
	st := models.WorkOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !st.IsValid() {
		return nil, common.NewFieldValidationError("status", "invalid", fmt.Sprintf("unknown status %q", status))
	}
	return s.List(ctx, models.WorkOrderFilter{Status: st, Limit: maxWorkOrderLimit})
}

// ReportPDF serves the cached PDF when it was rendered from the current
// version of the order, otherwise renders and caches a fresh one.
func (s *workOrderService) ReportPDF(ctx context.Context, id uuid.UUID) ([]byte, error) {
	wo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, ok, err := s.store.Load(id, wo.UpdatedAt)
	if err != nil {
		s.logger.Warn("cached report unreadable", zap.String("work_order_id", id.String()), zap.Error(err))
	} else if ok {
		return data, nil
	}

	return s.renderAndStore(wo)
}

func (s *workOrderService) PregenerateReport(ctx context.Context, id uuid.UUID) error {
	wo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load work order %s: %w", id, err)
	}
	_, err = s.renderAndStore(wo)
	return err
}

func (s *workOrderService) renderAndStore(wo *models.WorkOrder) ([]byte, error) {
	data, err := s.reports.RenderWorkOrder(wo)
	if err != nil {
		return nil, common.NewUpstreamError("Failed to render report", err)
	}
	if err := s.store.Save(wo.ID, wo.UpdatedAt, data); err != nil {
		s.logger.Warn("failed to cache report", zap.String("work_order_id", wo.ID.String()), zap.Error(err))
	}
	return data, nil
}

var workOrderReportColumns = []ReportColumn{
	{Header: "Title", Width: 4},
	{Header: "Customer", Width: 3},
	{Header: "Location", Width: 3},
	{Header: "Status", Width: 1.8},
	{Header: "Priority", Width: 1.4},
	{Header: "Assigned To", Width: 2.2},
	{Header: "Due Date", Width: 1.8},
	{Header: "Created", Width: 1.8},
}

func (s *workOrderService) ExportPDF(ctx context.Context, filter models.WorkOrderFilter) ([]byte, error) {
	if filter.Limit <= 0 {
		filter.Limit = maxWorkOrderLimit
	}
	orders, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(orders))
	for _, wo := range orders {
		rows = append(rows, []string{
			wo.Title,
			wo.CustomerName,
			wo.Location,
			string(wo.Status),
			string(wo.Priority),
			wo.AssignedTo,
			wo.DueDate.String(),
			wo.CreatedAt.Format(models.DateLayout),
		})
	}
	data, err := s.reports.RenderTabular("Work Orders", workOrderReportColumns, rows, s.now())
	if err != nil {
		return nil, common.NewUpstreamError("Failed to render report", err)
	}
	return data, nil
}

func (s *workOrderService) schedulePregeneration(id uuid.UUID) {
	if s.tasks == nil {
		return
	}
	err := s.tasks.Submit("report:"+id.String(), func(ctx context.Context) error {
		return s.PregenerateReport(ctx, id)
	})
	if err != nil {
		s.logger.Error("failed to schedule report generation", zap.String("work_order_id", id.String()), zap.Error(err))
	}
}

// invalidate drops every derived copy of the order. Failures are logged.
func (s *workOrderService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.DeleteWorkOrder(ctx, id); err != nil {
		s.logger.Warn("failed to evict work order", zap.String("work_order_id", id.String()), zap.Error(err))
	}
	if err := s.store.Remove(id); err != nil {
		s.logger.Warn("failed to remove cached report", zap.String("work_order_id", id.String()), zap.Error(err))
	}
	s.invalidateStats(ctx)
}

func (s *workOrderService) invalidateStats(ctx context.Context) {
	if err := s.cache.InvalidateStatusCounts(ctx); err != nil {
		s.logger.Warn("failed to invalidate work order stats", zap.Error(err))
	}
}

func (s *workOrderService) mapRepoError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return common.NewNotFoundError("Work order")
	}
	return common.NewInternalError(err)
}
