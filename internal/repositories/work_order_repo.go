package repositories

import (
	"context"
	"fmt"
	"strings"

	"facilityops/internal/common"
	"facilityops/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type WorkOrderRepository interface {
	Create(ctx context.Context, wo *models.WorkOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	Update(ctx context.Context, wo *models.WorkOrder) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.WorkOrderFilter) ([]*models.WorkOrder, error)
	Search(ctx context.Context, query string, limit int) ([]*models.WorkOrder, error)
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	CountByStatus(ctx context.Context) (map[models.WorkOrderStatus]int, error)
}

type workOrderRepo struct {
	db DB
}

func NewWorkOrderRepository(db DB) WorkOrderRepository {
	return &workOrderRepo{db: db}
}

// mutable columns, in the order produced by writeArgs
const workOrderWriteColumns = `title, description, status, priority, assigned_to, due_date,
	customer_name, customer_contact, location,
	date_of_survey, surveyors, confined_space_name, building, location_description, confined_space_description,
	is_confined_space, permit_required,
	has_atmospheric_hazard, atmospheric_hazard_description,
	has_engulfment_hazard, engulfment_hazard_description,
	has_configuration_hazard, configuration_hazard_description,
	has_other_hazards, other_hazards_description,
	requires_ppe, ppe_list,
	forced_air_ventilation_sufficient, dedicated_air_monitor, warning_sign_posted,
	other_people_working_nearby, visibility_into_space, contractors_enter,
	number_of_entry_points, notes, pictures`

const workOrderColumns = `id, created_by, ` + workOrderWriteColumns + `, created_at, updated_at`

const workOrderWriteColumnCount = 36

func writeArgs(wo *models.WorkOrder) []any {
	pictures := wo.Pictures
	if pictures == nil {
		pictures = []string{}
	}
	a := &wo.Assessment
	return []any{
		wo.Title, wo.Description, string(wo.Status), string(wo.Priority), wo.AssignedTo, wo.DueDate.Time,
		wo.CustomerName, wo.CustomerContact, wo.Location,
		wo.DateOfSurvey.Time, wo.Surveyors, wo.ConfinedSpaceName, wo.Building, wo.LocationDescription, wo.ConfinedSpaceDescription,
		string(a.IsConfinedSpace), string(a.PermitRequired),
		string(a.HasAtmosphericHazard), a.AtmosphericHazardDescription,
		string(a.HasEngulfmentHazard), a.EngulfmentHazardDescription,
		string(a.HasConfigurationHazard), a.ConfigurationHazardDescription,
		string(a.HasOtherHazards), a.OtherHazardsDescription,
		string(a.RequiresPPE), a.PPEList,
		string(a.ForcedAirVentilationSufficient), string(a.DedicatedAirMonitor), string(a.WarningSignPosted),
		string(a.OtherPeopleWorkingNearby), string(a.VisibilityIntoSpace), string(a.ContractorsEnter),
		wo.NumberOfEntryPoints, wo.Notes, pictures,
	}
}

func scanWorkOrder(row pgx.Row) (*models.WorkOrder, error) {
	wo := &models.WorkOrder{}
	a := &wo.Assessment
	err := row.Scan(
		&wo.ID, &wo.CreatedBy,
		&wo.Title, &wo.Description, &wo.Status, &wo.Priority, &wo.AssignedTo, &wo.DueDate.Time,
		&wo.CustomerName, &wo.CustomerContact, &wo.Location,
		&wo.DateOfSurvey.Time, &wo.Surveyors, &wo.ConfinedSpaceName, &wo.Building, &wo.LocationDescription, &wo.ConfinedSpaceDescription,
		&a.IsConfinedSpace, &a.PermitRequired,
		&a.HasAtmosphericHazard, &a.AtmosphericHazardDescription,
		&a.HasEngulfmentHazard, &a.EngulfmentHazardDescription,
		&a.HasConfigurationHazard, &a.ConfigurationHazardDescription,
		&a.HasOtherHazards, &a.OtherHazardsDescription,
		&a.RequiresPPE, &a.PPEList,
		&a.ForcedAirVentilationSufficient, &a.DedicatedAirMonitor, &a.WarningSignPosted,
		&a.OtherPeopleWorkingNearby, &a.VisibilityIntoSpace, &a.ContractorsEnter,
		&wo.NumberOfEntryPoints, &wo.Notes, &wo.Pictures,
		&wo.CreatedAt, &wo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if wo.Pictures == nil {
		wo.Pictures = []string{}
	}
	return wo, nil
}

func scanWorkOrders(rows pgx.Rows) ([]*models.WorkOrder, error) {
	defer rows.Close()
	orders := make([]*models.WorkOrder, 0)
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, wo)
	}
	return orders, rows.Err()
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

func (r *workOrderRepo) Create(ctx context.Context, wo *models.WorkOrder) error {
	query := `
		INSERT INTO work_orders (id, created_by, ` + workOrderWriteColumns + `, created_at, updated_at)
		VALUES ($1, $2, ` + placeholders(3, workOrderWriteColumnCount) + `, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	args := append([]any{wo.ID, wo.CreatedBy}, writeArgs(wo)...)
	if err := r.db.QueryRow(ctx, query, args...).Scan(&wo.CreatedAt, &wo.UpdatedAt); err != nil {
		return fmt.Errorf("insert work order: %w", err)
	}
	return nil
}

func (r *workOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1`
	wo, err := scanWorkOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return wo, nil
}

// Update replaces every mutable column. created_by and created_at are
// never written and are read back into wo.
func (r *workOrderRepo) Update(ctx context.Context, wo *models.WorkOrder) error {
	cols := strings.Split(workOrderWriteColumns, ",")
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = fmt.Sprintf("%s = $%d", strings.TrimSpace(c), i+2)
	}
	query := `
		UPDATE work_orders
		SET ` + strings.Join(set, ", ") + `, updated_at = NOW()
		WHERE id = $1
		RETURNING created_by, created_at, updated_at
	`
	args := append([]any{wo.ID}, writeArgs(wo)...)
	err := r.db.QueryRow(ctx, query, args...).Scan(&wo.CreatedBy, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		return notFoundIfNoRows(err)
	}
	return nil
}

func (r *workOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM work_orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete work order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *workOrderRepo) List(ctx context.Context, filter models.WorkOrderFilter) ([]*models.WorkOrder, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Priority != "" {
		add("priority = $%d", string(filter.Priority))
	}
	if filter.AssignedTo != "" {
		add("assigned_to ILIKE $%d", "%"+common.EscapeLikePattern(filter.AssignedTo)+"%")
	}
	if filter.CreatedBy != nil {
		add("created_by = $%d", *filter.CreatedBy)
	}

	query := `SELECT ` + workOrderColumns + ` FROM work_orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	return scanWorkOrders(rows)
}

// Search matches the query as a literal, case-insensitive substring of the
// title, customer name, location or confined space name.
func (r *workOrderRepo) Search(ctx context.Context, query string, limit int) ([]*models.WorkOrder, error) {
	sql := `
		SELECT ` + workOrderColumns + `
		FROM work_orders
		WHERE title ILIKE $1 OR customer_name ILIKE $1 OR location ILIKE $1 OR confined_space_name ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	pattern := "%" + common.EscapeLikePattern(query) + "%"
	rows, err := r.db.Query(ctx, sql, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search work orders: %w", err)
	}
	return scanWorkOrders(rows)
}

func (r *workOrderRepo) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM work_orders WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("check work order ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

func (r *workOrderRepo) CountByStatus(ctx context.Context) (map[models.WorkOrderStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM work_orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count work orders: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.WorkOrderStatus]int, len(models.WorkOrderStatuses))
	for _, s := range models.WorkOrderStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.WorkOrderStatus(status)] = n
	}
	return counts, rows.Err()
}
