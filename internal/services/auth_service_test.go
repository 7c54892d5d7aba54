package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"facilityops/internal/common"
	"facilityops/internal/models"
	"facilityops/internal/repositories"
	"facilityops/testhelpers"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type AuthServiceTestSuite struct {
	suite.Suite
	service   AuthService
	userRepo  *testhelpers.MockUserRepository
	cacheSvc  *testhelpers.MockCacheService
	ctx       context.Context
	window    time.Duration
	clientIP  string
	throttleK string
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.userRepo = new(testhelpers.MockUserRepository)
	suite.cacheSvc = new(testhelpers.MockCacheService)
	suite.ctx = context.Background()
	suite.clientIP = "10.0.0.7"
	suite.throttleK = "login:10.0.0.7"
	suite.window = testhelpers.AuthConfig().LoginWindow

	svc, err := NewAuthService(suite.userRepo, suite.cacheSvc, testhelpers.AuthConfig(), zap.NewNop())
	suite.Require().NoError(err)
	suite.service = svc
}

func (suite *AuthServiceTestSuite) TearDownTest() {
	suite.userRepo.AssertExpectations(suite.T())
	suite.cacheSvc.AssertExpectations(suite.T())
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func (suite *AuthServiceTestSuite) allowLogin() {
	suite.cacheSvc.On("IsRateLimited", suite.ctx, suite.throttleK, 5, suite.window).Return(false, nil).Once()
}

func (suite *AuthServiceTestSuite) TestRegister_CreatesTechnician() {
	suite.userRepo.On("GetByEmail", suite.ctx, "a@x.com").Return(nil, repositories.ErrNotFound)
	suite.userRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.User")).Return(nil)

	resp, err := suite.service.Register(suite.ctx, models.NewUser{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "  A@X.com ",
		Password:  "secret1",
		Role:      models.RoleAdmin,
	})

	suite.Require().NoError(err)
	suite.Equal(models.RoleTechnician, resp.User.Role)
	suite.Equal("a@x.com", resp.User.Email)
	suite.NotEqual("secret1", resp.User.PasswordHash)
	suite.Equal("Bearer", resp.TokenType)

	claims, err := suite.service.ValidateToken(resp.Token)
	suite.Require().NoError(err)
	suite.Equal(resp.User.ID.String(), claims.Subject)
	suite.Equal("technician", claims.Role)
	suite.Equal(testhelpers.TestIssuer, claims.Issuer)
}

func (suite *AuthServiceTestSuite) TestRegister_DuplicateEmail() {
	existing := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByEmail", suite.ctx, existing.Email).Return(existing, nil)

	_, err := suite.service.Register(suite.ctx, models.NewUser{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     existing.Email,
		Password:  "secret1",
	})

	suite.True(common.IsType(err, common.ErrorTypeDuplicateEmail))
	suite.userRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestRegister_DuplicateOnInsert() {
	suite.userRepo.On("GetByEmail", suite.ctx, "a@x.com").Return(nil, repositories.ErrNotFound)
	suite.userRepo.On("Create", suite.ctx, mock.Anything).Return(repositories.ErrDuplicateEmail)

	_, err := suite.service.Register(suite.ctx, models.NewUser{
		FirstName: "Ada", LastName: "Lovelace", Email: "a@x.com", Password: "secret1",
	})

	suite.True(common.IsType(err, common.ErrorTypeDuplicateEmail))
}

func (suite *AuthServiceTestSuite) TestRegister_ValidationFailsBeforeLookup() {
	_, err := suite.service.Register(suite.ctx, models.NewUser{
		FirstName: "",
		LastName:  "Lovelace",
		Email:     "not-an-email",
		Password:  "12345",
	})

	suite.Require().Error(err)
	appErr := common.ToAppError(err)
	suite.Equal(common.ErrorTypeValidation, appErr.Type)
	details := appErr.Details.(common.ValidationErrors)
	fields := details.Fields()
	suite.Contains(fields, "firstName")
	suite.Contains(fields, "email")
	suite.Contains(fields, "password")
}

func (suite *AuthServiceTestSuite) TestLogin_Success() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.allowLogin()
	suite.userRepo.On("GetByEmail", suite.ctx, user.Email).Return(user, nil)
	suite.cacheSvc.On("ResetRateLimit", suite.ctx, suite.throttleK).Return(nil)

	resp, err := suite.service.Login(suite.ctx, user.Email, testhelpers.TestPassword, suite.clientIP)

	suite.Require().NoError(err)
	suite.Equal(user.ID, resp.User.ID)
	suite.NotEmpty(resp.Token)
	suite.WithinDuration(time.Now().Add(30*24*time.Hour), resp.ExpiresAt, 5*time.Second)
}

func (suite *AuthServiceTestSuite) TestLogin_WrongPassword() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.allowLogin()
	suite.userRepo.On("GetByEmail", suite.ctx, user.Email).Return(user, nil)

	_, err := suite.service.Login(suite.ctx, user.Email, "wrong1", suite.clientIP)

	suite.True(common.IsType(err, common.ErrorTypeInvalidCredentials))
	suite.cacheSvc.AssertNotCalled(suite.T(), "ResetRateLimit", mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestLogin_UnknownEmailLooksLikeWrongPassword() {
	suite.allowLogin()
	suite.userRepo.On("GetByEmail", suite.ctx, "nobody@x.com").Return(nil, repositories.ErrNotFound)

	_, err := suite.service.Login(suite.ctx, "Nobody@X.com", "secret1", suite.clientIP)

	appErr := common.ToAppError(err)
	suite.Equal(common.ErrorTypeInvalidCredentials, appErr.Type)
	suite.Equal("Invalid email or password", appErr.Message)
}

func (suite *AuthServiceTestSuite) TestLogin_RateLimited() {
	suite.cacheSvc.On("IsRateLimited", suite.ctx, suite.throttleK, 5, suite.window).Return(true, nil)

	_, err := suite.service.Login(suite.ctx, "a@x.com", "secret1", suite.clientIP)

	suite.True(common.IsType(err, common.ErrorTypeRateLimited))
	suite.userRepo.AssertNotCalled(suite.T(), "GetByEmail", mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestLogin_ThrottleUnavailableDoesNotBlock() {
	user := testhelpers.NewUser(models.RoleAdmin)
	suite.cacheSvc.On("IsRateLimited", suite.ctx, suite.throttleK, 5, suite.window).Return(false, errors.New("redis down"))
	suite.userRepo.On("GetByEmail", suite.ctx, user.Email).Return(user, nil)
	suite.cacheSvc.On("ResetRateLimit", suite.ctx, suite.throttleK).Return(errors.New("redis down"))

	resp, err := suite.service.Login(suite.ctx, user.Email, testhelpers.TestPassword, suite.clientIP)

	suite.Require().NoError(err)
	suite.True(resp.User.IsAdmin())
}

func (suite *AuthServiceTestSuite) TestValidateToken_Expired() {
	user := testhelpers.NewUser(models.RoleTechnician)
	token := testhelpers.SignToken(suite.T(), user, -time.Minute)

	_, err := suite.service.ValidateToken(token)

	appErr := common.ToAppError(err)
	suite.Equal(common.ErrorTypeUnauthenticated, appErr.Type)
	suite.Equal("Token has expired", appErr.Message)
}

func (suite *AuthServiceTestSuite) TestValidateToken_RejectsForeignTokens() {
	user := testhelpers.NewUser(models.RoleTechnician)
	exp := time.Now().Add(time.Hour).Unix()

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(), "iss": "someone-else", "exp": exp,
	}).SignedString([]byte(testhelpers.TestJWTSecret))
	suite.Require().NoError(err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
		"sub": user.ID.String(), "iss": testhelpers.TestIssuer, "exp": exp,
	}).SignedString([]byte(testhelpers.TestJWTSecret))
	suite.Require().NoError(err)

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(), "iss": testhelpers.TestIssuer, "exp": exp,
	}).SignedString([]byte("another-secret-that-is-32-bytes-long!!"))
	suite.Require().NoError(err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(), "iss": testhelpers.TestIssuer,
	}).SignedString([]byte(testhelpers.TestJWTSecret))
	suite.Require().NoError(err)

	for name, token := range map[string]string{
		"issuer":  wrongIssuer,
		"alg":     wrongAlg,
		"key":     wrongKey,
		"expiry":  noExpiry,
		"garbage": "not.a.token",
	} {
		_, err := suite.service.ValidateToken(token)
		appErr := common.ToAppError(err)
		suite.Equal(common.ErrorTypeUnauthenticated, appErr.Type, name)
		suite.Equal("Invalid token", appErr.Message, name)
	}
}

func (suite *AuthServiceTestSuite) TestGenerateToken_UsesClock() {
	user := testhelpers.NewUser(models.RoleTechnician)
	issued := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	suite.service.(*authService).now = func() time.Time { return issued }

	resp, err := suite.service.GenerateToken(user)
	suite.Require().NoError(err)
	suite.True(issued.Add(30 * 24 * time.Hour).Equal(resp.ExpiresAt))

	// the token is long expired by the real clock
	suite.service.(*authService).now = time.Now
	_, err = suite.service.ValidateToken(resp.Token)
	suite.Equal("Token has expired", common.ToAppError(err).Message)
}

func (suite *AuthServiceTestSuite) TestAuthenticate() {
	user := testhelpers.NewUser(models.RoleAdmin)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(user, nil).Once()

	got, err := suite.service.Authenticate(suite.ctx, testhelpers.SignToken(suite.T(), user, time.Hour))
	suite.Require().NoError(err)
	suite.Equal(user.ID, got.ID)
}

func (suite *AuthServiceTestSuite) TestAuthenticate_MissingToken() {
	_, err := suite.service.Authenticate(suite.ctx, "")
	suite.Equal("Missing bearer token", common.ToAppError(err).Message)
}

func (suite *AuthServiceTestSuite) TestAuthenticate_DeletedUser() {
	user := testhelpers.NewUser(models.RoleTechnician)
	suite.userRepo.On("GetByID", suite.ctx, user.ID).Return(nil, repositories.ErrNotFound)

	_, err := suite.service.Authenticate(suite.ctx, testhelpers.SignToken(suite.T(), user, time.Hour))
	appErr := common.ToAppError(err)
	suite.Equal(common.ErrorTypeUnauthenticated, appErr.Type)
	suite.Equal("User no longer exists", appErr.Message)
}

func (suite *AuthServiceTestSuite) TestAuthorize() {
	tech := testhelpers.NewUser(models.RoleTechnician)
	admin := testhelpers.NewUser(models.RoleAdmin)

	suite.NoError(suite.service.Authorize(admin, models.RoleAdmin))
	suite.NoError(suite.service.Authorize(tech, models.RoleAdmin, models.RoleTechnician))
	suite.True(common.IsType(suite.service.Authorize(tech, models.RoleAdmin), common.ErrorTypeForbidden))
	suite.True(common.IsType(suite.service.Authorize(nil, models.RoleAdmin), common.ErrorTypeUnauthenticated))

	suite.True(suite.service.HasCapability(tech, models.CapWorkOrdersWrite))
	suite.False(suite.service.HasCapability(tech, models.CapWorkOrdersDelete))
	suite.True(suite.service.HasCapability(admin, models.CapUsersManage))
}
