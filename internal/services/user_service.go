package services

import (
	"context"
	"errors"
	"time"

	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
	maxNameLength     = 100
	maxEmailLength    = 255
	maxPhoneLength    = 50
	maxAddressLength  = 255

	defaultUserListLimit = 100
	maxUserListLimit     = 500
)

type UserService interface {
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	// UpdateUser is the admin path; it may change the role.
	UpdateUser(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error)
	// UpdateProfile is the self-service path; a role change is forbidden.
	UpdateProfile(ctx context.Context, callerID uuid.UUID, patch models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	UsersReport(ctx context.Context) ([]byte, error)
}

type userService struct {
	userRepo   repositories.UserRepository
	reports    ReportService
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

func NewUserService(userRepo repositories.UserRepository, reports ReportService, bcryptCost int, logger *zap.Logger) UserService {
	return &userService{
		userRepo:   userRepo,
		reports:    reports,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

func validatePassword(v *common.ValidationErrors, password string) {
	switch {
	case len(password) < minPasswordLength:
		v.Add("password", "too_short", "password must be at least 6 characters")
	case len(password) > maxPasswordBytes:
		v.Add("password", "too_long", "password cannot exceed 72 bytes")
	}
}

func validateProfile(v *common.ValidationErrors, u *models.User) {
	common.ValidateRequiredString(v, u.FirstName, "firstName")
	common.ValidateMaxLength(v, u.FirstName, "firstName", maxNameLength)
	common.ValidateRequiredString(v, u.LastName, "lastName")
	common.ValidateMaxLength(v, u.LastName, "lastName", maxNameLength)
	common.ValidateEmail(v, u.Email, "email")
	common.ValidateMaxLength(v, u.Email, "email", maxEmailLength)
	common.ValidateMaxLength(v, u.Phone, "phone", maxPhoneLength)
	common.ValidateMaxLength(v, u.Address, "address", maxAddressLength)
	if !u.Role.IsValid() {
		v.Add("role", "invalid", "role must be admin or technician")
	}
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", common.NewInternalError(err)
	}
	return string(hash), nil
}

// createUser validates, hashes and inserts a user. Both registration and
// the admin create path go through it.
func createUser(ctx context.Context, repo repositories.UserRepository, in models.NewUser, cost int) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleTechnician
	}
	user := &models.User{
		ID:        uuid.New(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     common.NormalizeEmail(in.Email),
		Phone:     in.Phone,
		Address:   in.Address,
		Role:      in.Role,
	}

	var v common.ValidationErrors
	validateProfile(&v, user)
	validatePassword(&v, in.Password)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := repo.GetByEmail(ctx, user.Email); err == nil {
		return nil, common.NewDuplicateEmailError()
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, common.NewInternalError(err)
	}

	hash, err := hashPassword(in.Password, cost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := repo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, common.NewDuplicateEmailError()
		}
		return nil, common.NewInternalError(err)
	}
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	user, err := createUser(ctx, s.userRepo, in, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFoundError("User")
		}
		return nil, common.NewInternalError(err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 {
		limit = defaultUserListLimit
	}
	if limit > maxUserListLimit {
		limit = maxUserListLimit
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	return users, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	return s.applyPatch(ctx, id, patch, true)
}

func (s *userService) UpdateProfile(ctx context.Context, callerID uuid.UUID, patch models.UserPatch) (*models.User, error) {
	return s.applyPatch(ctx, callerID, patch, false)
}

// applyPatch merges patch into the stored user. Absent fields keep their
// value, a present password is re-hashed and a changed email is re-checked.
func (s *userService) applyPatch(ctx context.Context, id uuid.UUID, patch models.UserPatch, allowRole bool) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Role != nil && *patch.Role != user.Role && !allowRole {
		return nil, common.NewForbiddenError("Only administrators can change roles")
	}

	emailChanged := false
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Email != nil {
		email := common.NormalizeEmail(*patch.Email)
		emailChanged = email != user.Email
		user.Email = email
	}
	if patch.Phone != nil {
		user.Phone = *patch.Phone
	}
	if patch.Address != nil {
		user.Address = *patch.Address
	}
	if patch.Role != nil && allowRole {
		user.Role = *patch.Role
	}

	var v common.ValidationErrors
	validateProfile(&v, user)
	if patch.Password != nil {
		validatePassword(&v, *patch.Password)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if emailChanged {
		existing, err := s.userRepo.GetByEmail(ctx, user.Email)
		switch {
		case err == nil && existing.ID != user.ID:
			return nil, common.NewDuplicateEmailError()
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			return nil, common.NewInternalError(err)
		}
	}

	if patch.Password != nil {
		hash, err := hashPassword(*patch.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicateEmail):
			return nil, common.NewDuplicateEmailError()
		case errors.Is(err, repositories.ErrNotFound):
			return nil, common.NewNotFoundError("User")
		}
		return nil, common.NewInternalError(err)
	}
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return common.NewNotFoundError("User")
		}
		if errors.Is(err, repositories.ErrReferenced) {
			return common.NewConflictError("User still owns work orders")
		}
		return common.NewInternalError(err)
	}
	s.logger.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}

var userReportColumns = []ReportColumn{
	{Header: "Name", Width: 3},
	{Header: "Email", Width: 4},
	{Header: "Role", Width: 1.5},
	{Header: "Phone", Width: 2},
	{Header: "Created", Width: 2},
}

func (s *userService) UsersReport(ctx context.Context) ([]byte, error) {
	users, err := s.userRepo.List(ctx, maxUserListLimit, 0)
	if err != nil {
		return nil, common.NewInternalError(err)
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.FullName(), u.Email, string(u.Role), u.Phone, u.CreatedAt.Format(models.DateLayout)})
	}
	pdf, err := s.reports.RenderTabular("Users", userReportColumns, rows, s.now())
	if err != nil {
		return nil, common.NewUpstreamError("Failed to render report", err)
	}
	return pdf, nil
}
