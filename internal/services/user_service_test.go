package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/repositories"
	"facilityops/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserServiceTestSuite struct {
	suite.Suite
	service  UserService
	userRepo *testhelpers.MockUserRepository
	reports  *MockReportService
	ctx      context.Context
}

func (suite *UserServiceTestSuite) SetupTest() {
	suite.userRepo = new(testhelpers.MockUserRepository)
	suite.reports = new(MockReportService)
	suite.ctx = context.Background()
	suite.service = NewUserService(suite.userRepo, suite.reports, bcrypt.MinCost, zap.NewNop())
}

func (suite *UserServiceTestSuite) TearDownTest() {
	suite.userRepo.AssertExpectations(suite.T())
	suite.reports.AssertExpectations(suite.T())
}

func TestUserServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserServiceTestSuite))
}

func strPtr(s string) *string { return &s }

func rolePtr(r models.Role) *models.Role { return &r }

func (suite *UserServiceTestSuite) TestCreateUser_AdminRole() {
	suite.userRepo.On("GetByEmail", suite.ctx, "boss@x.com").Return(nil, repositories.ErrNotFound)
	suite.userRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.User")).Return(nil)

	user, err := suite.service.CreateUser(suite.ctx, models.NewUser{
		FirstName: "Grace", LastName: "Hopper", Email: "boss@x.com", Password: "secret1", Role: models.RoleAdmin,
	})

	suite.Require().NoError(err)
	suite.Equal(models.RoleAdmin, user.Role)
	suite.True(user.IsAdmin())
	suite.NoError(bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
}

func (suite *UserServiceTestSuite) TestCreateUser_DefaultsToTechnician() {
	suite.userRepo.On("GetByEmail", suite.ctx, "tech@x.com").Return(nil, repositories.ErrNotFound)
	suite.userRepo.On("Create", suite.ctx, mock.Anything).Return(nil)

	user, err := suite.service.CreateUser(suite.ctx, models.NewUser{
		FirstName: "Tess", LastName: "Tech", Email: "tech@x.com", Password: "secret1",
	})

	suite.Require().NoError(err)
	suite.Equal(models.RoleTechnician, user.Role)
}

func (suite *UserServiceTestSuite) TestCreateUser_UnknownRole() {
	_, err := suite.service.CreateUser(suite.ctx, models.NewUser{
		FirstName: "Tess", LastName: "Tech", Email: "tech@x.com", Password: "secret1", Role: "owner",
	})

	suite.Require().Error(err)
	details := common.ToAppError(err).Details.(common.ValidationErrors)
	suite.Equal([]string{"role"}, details.Fields())
}

func (suite *UserServiceTestSuite) TestCreateUser_PasswordTooLong() {
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err := suite.service.CreateUser(suite.ctx, models.NewUser{
		FirstName: "Tess", LastName: "Tech", Email: "tech@x.com", Password: string(long),
	})

	details := common.ToAppError(err).Details.(common.ValidationErrors)
	suite.Equal("too_long", details.Errors[0].Code)
}

func (suite *UserServiceTestSuite) TestUpdateProfile_MergesPresentFields() {
	user := testhelpers.NewUser(models.RoleTechnician)
	email, lastName, hash := user.Email, user.LastName, user.PasswordHash
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil)
	suite.userRepo.On("Update", suite.ctx, user).Return(nil)

	updated, err := suite.service.UpdateProfile(suite.ctx, user.ID, models.UserPatch{
		FirstName: strPtr("Renamed"),
		Phone:     strPtr(""),
	})

	suite.Require().NoError(err)
	suite.Equal("Renamed", updated.FirstName)
	suite.Equal("", updated.Phone)
	suite.Equal(lastName, updated.LastName)
	suite.Equal(email, updated.Email)
	suite.Equal(hash, updated.PasswordHash)
	suite.userRepo.AssertNotCalled(suite.T(), "GetByEmail", mock.Anything, mock.Anything)
}

func (suite *UserServiceTestSuite) TestUpdateProfile_RoleChangeForbidden() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil)

	_, err := suite.service.UpdateProfile(suite.ctx, user.ID, models.UserPatch{Role: rolePtr(models.RoleAdmin)})

	suite.True(common.IsType(err, common.ErrorTypeForbidden))
	suite.userRepo.AssertNotCalled(suite.T(), "Update", mock.Anything, mock.Anything)
}

func (suite *UserServiceTestSuite) TestUpdateProfile_SameRoleAllowed() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil)
	suite.userRepo.On("Update", suite.ctx, user).Return(nil)

	updated, err := suite.service.UpdateProfile(suite.ctx, user.ID, models.UserPatch{Role: rolePtr(models.RoleTechnician)})

	suite.Require().NoError(err)
	suite.Equal(models.RoleTechnician, updated.Role)
}

func (suite *UserServiceTestSuite) TestUpdateUser_AdminChangesRole() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil)
	suite.userRepo.On("Update", suite.ctx, user).Return(nil)

	updated, err := suite.service.UpdateUser(suite.ctx, user.ID, models.UserPatch{Role: rolePtr(models.RoleAdmin)})

	suite.Require().NoError(err)
	suite.True(updated.IsAdmin())
}

func (suite *UserServiceTestSuite) TestUpdateProfile_EmailTaken() {
	user := testhelpers.NewUser(models.RoleTechnician)
	other := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil)
	suite.userRepo.On("GetByEmail", suite.ctx, other.Email).Return(other, nil)

	_, err := suite.service.UpdateProfile(suite.ctx, user.ID, models.UserPatch{Email: strPtr(other.Email)})

	suite.True(common.IsType(err, common.ErrorTypeDuplicateEmail))
}

func (suite *UserServiceTestSuite) TestUpdateProfile_PasswordRehashed() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil)
	suite.userRepo.On("Update", suite.ctx, user).Return(nil)

	updated, err := suite.service.UpdateProfile(suite.ctx, user.ID, models.UserPatch{Password: strPtr("n3w-secret")})

	suite.Require().NoError(err)
	suite.NoError(bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("n3w-secret")))
}

func (suite *UserServiceTestSuite) TestUpdateProfile_ShortPassword() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil)

	_, err := suite.service.UpdateProfile(suite.ctx, user.ID, models.UserPatch{Password: strPtr("abc")})

	details := common.ToAppError(err).Details.(common.ValidationErrors)
	suite.Equal([]string{"password"}, details.Fields())
}

func (suite *UserServiceTestSuite) TestGetUser_NotFound() {
	id := uuid.New()
	suite.userRepo.On("GetByID", suite.ctx, id).Return(nil, repositories.ErrNotFound)

	_, err := suite.service.GetUser(suite.ctx, id)

	appErr := common.ToAppError(err)
	suite.Equal(common.ErrorTypeNotFound, appErr.Type)
	suite.Equal("User not found", appErr.Message)
}

func (suite *UserServiceTestSuite) TestDeleteUser() {
	id := uuid.New()
	suite.userRepo.On("Delete", suite.ctx, id).Return(nil).Once()
	suite.userRepo.On("Delete", suite.ctx, id).Return(repositories.ErrNotFound).Once()

	suite.NoError(suite.service.DeleteUser(suite.ctx, id))
	suite.True(common.IsType(suite.service.DeleteUser(suite.ctx, id), common.ErrorTypeNotFound))
}

func (suite *UserServiceTestSuite) TestDeleteUser_OwnsWorkOrders() {
	id := uuid.New()
	suite.userRepo.On("Delete", suite.ctx, id).Return(repositories.ErrReferenced).Once()

	appErr := common.ToAppError(suite.service.DeleteUser(suite.ctx, id))
	suite.Equal(common.ErrorTypeConflict, appErr.Type)
	suite.Equal(http.StatusConflict, appErr.StatusCode)
}

func (suite *UserServiceTestSuite) TestListUsers_ClampsPaging() {
	suite.userRepo.On("List", suite.ctx, 100, 0).Return([]*models.User{}, nil).Once()
	suite.userRepo.On("List", suite.ctx, 500, 0).Return([]*models.User{}, nil).Once()
	suite.userRepo.On("List", suite.ctx, 20, 40).Return(nil, errors.New("boom")).Once()

	_, err := suite.service.ListUsers(suite.ctx, 0, -5)
	suite.NoError(err)
	_, err = suite.service.ListUsers(suite.ctx, 10000, 0)
	suite.NoError(err)
	_, err = suite.service.ListUsers(suite.ctx, 20, 40)
	suite.True(common.IsType(err, common.ErrorTypeInternal))
}

func (suite *UserServiceTestSuite) TestUsersReport() {
	user := testhelpers.NewUser(models.RoleAdmin)
	user.CreatedAt = time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)
	suite.userRepo.On("List", suite.ctx, 500, 0).Return([]*models.User{user}, nil)

	expectedRows := [][]string{{user.FullName(), user.Email, "admin", user.Phone, "2025-03-04"}}
	suite.reports.On("RenderTabular", "Users", userReportColumns, expectedRows, mock.AnythingOfType("time.Time")).
		Return([]byte("%PDF-1.3"), nil)

	data, err := suite.service.UsersReport(suite.ctx)

	suite.Require().NoError(err)
	suite.Equal([]byte("%PDF-1.3"), data)
}

func (suite *UserServiceTestSuite) TestUsersReport_RenderFailureIsUpstream() {
	suite.userRepo.On("List", suite.ctx, 500, 0).Return([]*models.User{}, nil)
	suite.reports.On("RenderTabular", "Users", userReportColumns, [][]string{}, mock.AnythingOfType("time.Time")).
		Return(nil, errors.New("font missing"))

	_, err := suite.service.UsersReport(suite.ctx)

	appErr := common.ToAppError(err)
	suite.Equal(common.ErrorTypeUpstream, appErr.Type)
	suite.Equal(502, appErr.StatusCode)
}
