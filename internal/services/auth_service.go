package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facilityops/internal/caching"
	"facilityops/internal/common"
	"facilityops/internal/config"
	"facilityops/internal/models"
	"facilityops/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and verifies bearer tokens.
type AuthService interface {
	// Register always creates a technician; the role in the input is ignored.
	Register(ctx context.Context, in models.NewUser) (*models.TokenResponse, error)
	Login(ctx context.Context, email, password, clientIP string) (*models.TokenResponse, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Authorize(user *models.User, allowed ...models.Role) error
	HasCapability(user *models.User, c models.Capability) bool
	GenerateToken(user *models.User) (*models.TokenResponse, error)
	ValidateToken(token string) (*TokenClaims, error)
}

type authService struct {
	userRepo  repositories.UserRepository
	cacheSvc  caching.CacheService
	cfg       config.AuthConfig
	jwtSecret []byte
	dummyHash []byte
	logger    *zap.Logger
	now       func() time.Time
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(userRepo repositories.UserRepository, cacheSvc caching.CacheService, cfg config.AuthConfig, logger *zap.Logger) (AuthService, error) {
	// compared against when the email is unknown so both paths cost one bcrypt
	dummy, err := bcrypt.GenerateFromPassword([]byte("facilityops-unknown-user"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &authService{
		userRepo:  userRepo,
		cacheSvc:  cacheSvc,
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		dummyHash: dummy,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *authService) Register(ctx context.Context, in models.NewUser) (*models.TokenResponse, error) {
	in.Role = models.RoleTechnician
	user, err := createUser(ctx, s.userRepo, in, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.GenerateToken(user)
}

func (s *authService) Login(ctx context.Context, email, password, clientIP string) (*models.TokenResponse, error) {
	throttleKey := "login:" + clientIP
	if s.cacheSvc != nil && s.cfg.MaxLoginAttempts > 0 {
		limited, err := s.cacheSvc.IsRateLimited(ctx, throttleKey, s.cfg.MaxLoginAttempts, s.cfg.LoginWindow)
		if err != nil {
			s.logger.Warn("login throttle unavailable", zap.Error(err))
		} else if limited {
			return nil, common.NewRateLimitedError()
		}
	}

	user, err := s.userRepo.GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewInternalError(err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, common.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.NewInvalidCredentialsError()
	}

	if s.cacheSvc != nil {
		if err := s.cacheSvc.ResetRateLimit(ctx, throttleKey); err != nil {
			s.logger.Warn("failed to reset login throttle", zap.Error(err))
		}
	}
	return s.GenerateToken(user)
}

func (s *authService) GenerateToken(user *models.User) (*models.TokenResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := TokenClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, common.NewInternalError(fmt.Errorf("failed to sign JWT: %w", err))
	}

	return &models.TokenResponse{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: expiresAt.UTC().Truncate(time.Second),
		User:      user,
	}, nil
}

// ValidateToken checks the HS256 signature, issuer and expiry.
func (s *authService) ValidateToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.NewUnauthenticatedError("Token has expired")
		}
		return nil, common.NewUnauthenticatedError("Invalid token")
	}
	if !parsed.Valid {
		return nil, common.NewUnauthenticatedError("Invalid token")
	}
	return claims, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.NewUnauthenticatedError("Missing bearer token")
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, common.NewUnauthenticatedError("Invalid token subject")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewUnauthenticatedError("User no longer exists")
		}
		return nil, common.NewInternalError(err)
	}
	return user, nil
}

// Authorize is a plain role membership check.
func (s *authService) Authorize(user *models.User, allowed ...models.Role) error {
	if user == nil {
		return common.NewUnauthenticatedError("Authentication required")
	}
	for _, r := range allowed {
		if user.Role == r {
			return nil
		}
	}
	return common.NewForbiddenError("Insufficient permissions")
}

func (s *authService) HasCapability(user *models.User, c models.Capability) bool {
	return models.HasCapability(user, c)
}
