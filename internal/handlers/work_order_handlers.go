package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"facilityops/internal/analytics"
	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	formFieldData     = "data"
	formFieldPictures = "pictures"
)

// StatsProvider computes the work order dashboard figures.
type StatsProvider interface {
	WorkOrderStats(ctx context.Context) (*analytics.WorkOrderStats, error)
}

// WorkOrderHandlers handles work order HTTP requests
type WorkOrderHandlers struct {
	workOrderService services.WorkOrderService
	stats            StatsProvider
	logger           *zap.Logger
}

// NewWorkOrderHandlers creates a new work order handlers instance
func NewWorkOrderHandlers(workOrderService services.WorkOrderService, stats StatsProvider, logger *zap.Logger) *WorkOrderHandlers {
	return &WorkOrderHandlers{
		workOrderService: workOrderService,
		stats:            stats,
		logger:           logger,
	}
}

// ListWorkOrdersRequest represents query parameters for listing work orders
type ListWorkOrdersRequest struct {
	Status     string `query:"status"`
	Priority   string `query:"priority"`
	AssignedTo string `query:"assignedTo"`
	CreatedBy  string `query:"createdBy"`
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
}

func (r ListWorkOrdersRequest) filter() (models.WorkOrderFilter, error) {
	f := models.WorkOrderFilter{
		Status:     models.WorkOrderStatus(strings.ToLower(strings.TrimSpace(r.Status))),
		Priority:   models.Priority(strings.ToLower(strings.TrimSpace(r.Priority))),
		AssignedTo: r.AssignedTo,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
	if raw := strings.TrimSpace(r.CreatedBy); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, common.NewFieldValidationError("createdBy", "invalid_uuid", "createdBy must be a valid UUID")
		}
		f.CreatedBy = &id
	}
	return f, nil
}

func (h *WorkOrderHandlers) bindFilter(c echo.Context) (models.WorkOrderFilter, error) {
	var req ListWorkOrdersRequest
	if err := c.Bind(&req); err != nil {
		return models.WorkOrderFilter{}, common.NewValidationError("Invalid query parameters")
	}
	return req.filter()
}

// readWorkOrder decodes either a JSON body or a multipart form carrying the
// document in a "data" part and images in "pictures". release closes every
// opened file and drops the form's temp files; it is safe to call when an
// error is returned.
func (h *WorkOrderHandlers) readWorkOrder(c echo.Context) (wo *models.WorkOrder, files []services.UploadFile, release func(), err error) {
	release = func() {}

	mediaType, _, _ := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	if mediaType != echo.MIMEMultipartForm {
		wo = new(models.WorkOrder)
		if err := c.Bind(wo); err != nil {
			return nil, nil, release, invalidBody(err)
		}
		return wo, nil, release, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, release, invalidBody(err)
	}

	var opened []multipart.File
	release = func() {
		for _, f := range opened {
			_ = f.Close()
		}
		if err := form.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", zap.Error(err))
		}
	}

	data := form.Value[formFieldData]
	if len(data) == 0 || strings.TrimSpace(data[0]) == "" {
		return nil, nil, release, common.NewFieldValidationError(formFieldData, "required", "data part is required")
	}
	wo = new(models.WorkOrder)
	if err := json.Unmarshal([]byte(data[0]), wo); err != nil {
		appErr := common.NewFieldValidationError(formFieldData, "invalid_json", "data must be a JSON work order")
		appErr.Err = err
		return nil, nil, release, appErr
	}

	headers := form.File[formFieldPictures]
	if len(headers) > services.MaxPicturesPerRequest {
		return nil, nil, release, common.NewFieldValidationError(formFieldPictures, "too_many", "too many pictures in one request")
	}
	files = make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, release, common.NewInternalError(err)
		}
		opened = append(opened, f)
		files = append(files, services.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Content:     f,
		})
	}
	return wo, files, release, nil
}

// CreateWorkOrder creates a work order owned by the caller.
//
// @Summary  Create work order
// @Tags     workorders
// @Accept   json,mpfd
// @Produce  json
// @Security BearerAuth
// @Param    body     body     models.WorkOrder true  "Work order (JSON body, or the data part of a multipart form)"
// @Param    pictures formData file             false "Pictures (multipart only, repeatable)"
// @Success  201 {object} services.WorkOrderResult
// @Failure  400 {object} common.ErrorResponse
// @Failure  502 {object} common.ErrorResponse
// @Router   /api/workorders [post]
func (h *WorkOrderHandlers) CreateWorkOrder(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	wo, files, release, err := h.readWorkOrder(c)
	defer release()
	if err != nil {
		return err
	}

	result, err := h.workOrderService.Create(c.Request().Context(), user.ID, wo, files)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// ListWorkOrders lists work orders newest first. Every authenticated caller
// sees every order.
//
// @Summary  List work orders
// @Tags     workorders
// @Produce  json
// @Security BearerAuth
// @Param    status     query string false "pending, in-progress, completed or cancelled"
// @Param    priority   query string false "low, medium or high"
// @Param    assignedTo query string false "Assigned technician"
// @Param    createdBy  query string false "Creator user ID"
// @Param    limit      query int    false "Page size (default 100, max 500)"
// @Param    offset     query int    false "Offset"
// @Success  200 {array} models.WorkOrder
// @Router   /api/workorders [get]
func (h *WorkOrderHandlers) ListWorkOrders(c echo.Context) error {
	filter, err := h.bindFilter(c)
	if err != nil {
		return err
	}

	orders, err := h.workOrderService.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// GetWorkOrder handles getting a single work order by ID
//
// @Summary  Get work order
// @Tags     workorders
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Work order ID"
// @Success  200 {object} models.WorkOrder
// @Failure  404 {object} common.ErrorResponse
// @Router   /api/workorders/{id} [get]
func (h *WorkOrderHandlers) GetWorkOrder(c echo.Context) error {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		return err
	}

	wo, err := h.workOrderService.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wo)
}

// UpdateWorkOrder replaces the whole document. The pictures field lists the
// existing URLs to keep; uploaded files are appended after them.
//
// @Summary  Replace work order
// @Tags     workorders
// @Accept   json,mpfd
// @Produce  json
// @Security BearerAuth
// @Param    id       path     string           true  "Work order ID"
// @Param    body     body     models.WorkOrder true  "Work order"
// @Param    pictures formData file             false "New pictures (multipart only)"
// @Success  200 {object} services.WorkOrderResult
// @Failure  400 {object} common.ErrorResponse
// @Failure  404 {object} common.ErrorResponse
// @Router   /api/workorders/{id} [put]
func (h *WorkOrderHandlers) UpdateWorkOrder(c echo.Context) error {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		return err
	}

	wo, files, release, err := h.readWorkOrder(c)
	defer release()
	if err != nil {
		return err
	}

	result, err := h.workOrderService.Update(c.Request().Context(), id, wo, files)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// DeleteWorkOrder handles deleting a work order
//
// @Summary  Delete work order
// @Tags     workorders
// @Security BearerAuth
// @Param    id path string true "Work order ID"
// @Success  204
// @Failure  404 {object} common.ErrorResponse
// @Router   /api/workorders/{id} [delete]
func (h *WorkOrderHandlers) DeleteWorkOrder(c echo.Context) error {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.workOrderService.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SearchWorkOrders matches q against title, customer name, location and
// confined space name, case-insensitively.
//
// @Summary  Search work orders
// @Tags     workorders
// @Produce  json
// @Security BearerAuth
// @Param    q query string true "Search text"
// @Success  200 {array} models.WorkOrder
// @Failure  400 {object} common.ErrorResponse
// @Router   /api/workorders/search [get]
func (h *WorkOrderHandlers) SearchWorkOrders(c echo.Context) error {
	orders, err := h.workOrderService.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// ListByStatus handles GET /api/workorders/status/:status
//
// @Summary  Work orders by status
// @Tags     workorders
// @Produce  json
// @Security BearerAuth
// @Param    status path string true "pending, in-progress, completed or cancelled"
// @Success  200 {array} models.WorkOrder
// @Failure  400 {object} common.ErrorResponse
// @Router   /api/workorders/status/{status} [get]
func (h *WorkOrderHandlers) ListByStatus(c echo.Context) error {
	orders, err := h.workOrderService.ListByStatus(c.Request().Context(), c.Param("status"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// WorkOrderStats returns counts per status.
//
// @Summary  Work order statistics
// @Tags     workorders
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} analytics.WorkOrderStats
// @Router   /api/workorders/stats [get]
func (h *WorkOrderHandlers) WorkOrderStats(c echo.Context) error {
	stats, err := h.stats.WorkOrderStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// DownloadPDF streams the single work order report.
//
// @Summary  Work order PDF
// @Tags     workorders
// @Produce  application/pdf
// @Security BearerAuth
// @Param    id path string true "Work order ID"
// @Success  200 {file} binary
// @Failure  404 {object} common.ErrorResponse
// @Router   /api/workorders/{id}/pdf [get]
func (h *WorkOrderHandlers) DownloadPDF(c echo.Context) error {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		return err
	}

	data, err := h.workOrderService.ReportPDF(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return sendPDF(c, "workorder-"+id.String()+".pdf", data)
}

// ExportReport renders the tabular listing for the same filters as List.
//
// @Summary  Work orders report
// @Tags     workorders
// @Produce  application/pdf
// @Security BearerAuth
// @Param    status   query string false "Status filter"
// @Param    priority query string false "Priority filter"
// @Success  200 {file} binary
// @Router   /api/workorders/report [get]
func (h *WorkOrderHandlers) ExportReport(c echo.Context) error {
	filter, err := h.bindFilter(c)
	if err != nil {
		return err
	}

	data, err := h.workOrderService.ExportPDF(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return sendPDF(c, "workorders.pdf", data)
}
